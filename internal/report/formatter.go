package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/maxbolgarin/critique/internal/model"
	"github.com/maxbolgarin/logze/v2"
)

// Comment is one logical review comment: every finding that landed on
// the same file and line.
type Comment struct {
	FilePath   string          `json:"file_path"`
	LineNumber int             `json:"line_number"`
	Findings   []model.Finding `json:"findings"`
}

// FormattedReview is the formatter output: rendered markdown plus the
// structured comments and the computed summary.
type FormattedReview struct {
	Markdown string
	Comments []Comment
	Summary  model.ReviewSummary
}

// Formatter filters findings by the configured threshold, groups them
// into per-line comments and renders the markdown report.
type Formatter struct {
	log logze.Logger
}

func NewFormatter() *Formatter {
	return &Formatter{
		log: logze.With("component", "report_formatter"),
	}
}

// Generate builds the formatted review. Counters for files and lines
// come from the parsed diff, not from the findings, so an all-clean
// review still reports what was looked at.
func (f *Formatter) Generate(findings []model.Finding, failures []model.AnalyzerFailure, parsed *model.ParsedDiff, cfg model.ReviewConfig) FormattedReview {
	kept := filterByThreshold(findings, cfg.SeverityThreshold)
	comments := groupByFileAndLine(kept)
	summary := buildSummary(kept, parsed)

	var markdown string
	if len(kept) == 0 {
		markdown = f.renderPositive(summary, failures)
	} else {
		markdown = f.renderMarkdown(comments, summary, failures)
	}

	f.log.Debug("review formatted",
		"findings", len(kept), "dropped", len(findings)-len(kept), "comments", len(comments))

	return FormattedReview{
		Markdown: markdown,
		Comments: comments,
		Summary:  summary,
	}
}

func filterByThreshold(findings []model.Finding, threshold model.Severity) []model.Finding {
	kept := make([]model.Finding, 0, len(findings))
	for _, f := range findings {
		if f.Severity.Rank() >= threshold.Rank() {
			kept = append(kept, f)
		}
	}
	return kept
}

// groupByFileAndLine keeps the incoming finding order inside each
// comment and orders comments by file then line.
func groupByFileAndLine(findings []model.Finding) []Comment {
	type key struct {
		file string
		line int
	}
	groups := make(map[key][]model.Finding)
	var keys []key
	for _, f := range findings {
		k := key{file: f.FilePath, line: f.LineNumber}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], f)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].file != keys[j].file {
			return keys[i].file < keys[j].file
		}
		return keys[i].line < keys[j].line
	})

	comments := make([]Comment, 0, len(keys))
	for _, k := range keys {
		comments = append(comments, Comment{
			FilePath:   k.file,
			LineNumber: k.line,
			Findings:   groups[k],
		})
	}
	return comments
}

func buildSummary(findings []model.Finding, parsed *model.ParsedDiff) model.ReviewSummary {
	summary := model.ReviewSummary{
		TotalFindings: len(findings),
		BySeverity:    make(map[model.Severity]int),
		ByCategory:    make(map[model.Category]int),
	}
	for _, f := range findings {
		summary.BySeverity[f.Severity]++
		summary.ByCategory[f.Category]++
	}
	if parsed != nil {
		summary.FilesAnalyzed = parsed.FilesAnalyzed()
		summary.LinesChanged = parsed.LinesChanged()
	}
	return summary
}

func (f *Formatter) renderMarkdown(comments []Comment, summary model.ReviewSummary, failures []model.AnalyzerFailure) string {
	var sb strings.Builder

	sb.WriteString("# Code Review Results\n\n")
	renderSummarySection(&sb, summary)
	sb.WriteString("---\n\n")
	sb.WriteString("## Detailed Findings\n\n")

	currentFile := ""
	for _, comment := range comments {
		if comment.FilePath != currentFile {
			currentFile = comment.FilePath
			fmt.Fprintf(&sb, "### 📄 `%s`\n\n", escapeMarkdown(comment.FilePath))
		}

		fmt.Fprintf(&sb, "#### Line %d\n\n", comment.LineNumber)
		if len(comment.Findings) > 1 {
			fmt.Fprintf(&sb, "**%d issues found on this line:**\n\n", len(comment.Findings))
		}

		for i, finding := range comment.Findings {
			if len(comment.Findings) > 1 {
				fmt.Fprintf(&sb, "**Issue %d:**\n\n", i+1)
			}
			fmt.Fprintf(&sb, "%s %s\n\n", severityBadge(finding.Severity), categoryBadge(finding.Category))
			fmt.Fprintf(&sb, "**Description:** %s\n\n", escapeMarkdown(finding.Description))
			if finding.Suggestion != "" {
				fmt.Fprintf(&sb, "**Suggestion:** %s\n\n", escapeMarkdown(finding.Suggestion))
			}
			fmt.Fprintf(&sb, "*Detected by: %s*\n\n", escapeMarkdown(finding.AgentSource))
			if i < len(comment.Findings)-1 {
				sb.WriteString("---\n\n")
			}
		}
	}

	renderDiagnostics(&sb, failures)
	return sb.String()
}

func (f *Formatter) renderPositive(summary model.ReviewSummary, failures []model.AnalyzerFailure) string {
	var sb strings.Builder

	sb.WriteString("# Code Review Results\n\n")
	sb.WriteString("## ✅ No Issues Found!\n\n")
	sb.WriteString("Great work! The code review didn't identify any issues in the following areas:\n\n")
	sb.WriteString("- 🐛 **Logic:** No logical errors or bugs detected\n")
	sb.WriteString("- 📖 **Readability:** Code is clear and maintainable\n")
	sb.WriteString("- ⚡ **Performance:** No performance concerns identified\n")
	sb.WriteString("- 🔒 **Security:** No security vulnerabilities found\n\n")
	fmt.Fprintf(&sb, "**Files Analyzed:** %d, **Lines Changed:** %d\n\n", summary.FilesAnalyzed, summary.LinesChanged)

	renderDiagnostics(&sb, failures)
	return sb.String()
}

func renderSummarySection(sb *strings.Builder, summary model.ReviewSummary) {
	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(sb, "- **Total Issues Found:** %d\n", summary.TotalFindings)
	fmt.Fprintf(sb, "- **Files Analyzed:** %d\n", summary.FilesAnalyzed)
	fmt.Fprintf(sb, "- **Lines Changed:** %d\n\n", summary.LinesChanged)

	if len(summary.BySeverity) > 0 {
		sb.WriteString("### By Severity\n")
		for _, sev := range []model.Severity{model.SeverityCritical, model.SeverityHigh, model.SeverityMedium, model.SeverityLow} {
			if count := summary.BySeverity[sev]; count > 0 {
				fmt.Fprintf(sb, "- %s **%s:** %d\n", severityEmoji(sev), titleCase(string(sev)), count)
			}
		}
		sb.WriteString("\n")
	}

	if len(summary.ByCategory) > 0 {
		sb.WriteString("### By Category\n")
		for _, cat := range model.AllCategories() {
			if count := summary.ByCategory[cat]; count > 0 {
				fmt.Fprintf(sb, "- %s **%s:** %d\n", categoryEmoji(cat), titleCase(string(cat)), count)
			}
		}
		sb.WriteString("\n")
	}
}

func renderDiagnostics(sb *strings.Builder, failures []model.AnalyzerFailure) {
	if len(failures) == 0 {
		return
	}
	sb.WriteString("## ⚠️ Diagnostics\n\n")
	sb.WriteString("Some analyzers did not finish; their findings are missing from this review:\n\n")
	for _, failure := range failures {
		fmt.Fprintf(sb, "- **%s** (%s): %s\n",
			escapeMarkdown(string(failure.Category)), failure.Kind, escapeMarkdown(failure.Message))
	}
	sb.WriteString("\n")
}

func severityBadge(s model.Severity) string {
	switch s {
	case model.SeverityCritical:
		return "🔴 **CRITICAL**"
	case model.SeverityHigh:
		return "🟠 **HIGH**"
	case model.SeverityMedium:
		return "🟡 **MEDIUM**"
	case model.SeverityLow:
		return "🟢 **LOW**"
	}
	return "**" + strings.ToUpper(string(s)) + "**"
}

func severityEmoji(s model.Severity) string {
	switch s {
	case model.SeverityCritical:
		return "🔴"
	case model.SeverityHigh:
		return "🟠"
	case model.SeverityMedium:
		return "🟡"
	case model.SeverityLow:
		return "🟢"
	}
	return "⚪"
}

func categoryBadge(c model.Category) string {
	return "`" + categoryEmoji(c) + " " + titleCase(string(c)) + "`"
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func categoryEmoji(c model.Category) string {
	switch c {
	case model.CategoryLogic:
		return "🐛"
	case model.CategoryReadability:
		return "📖"
	case model.CategoryPerformance:
		return "⚡"
	case model.CategorySecurity:
		return "🔒"
	}
	return "📝"
}

var markdownEscaper = strings.NewReplacer(
	"\\", "\\\\",
	"`", "\\`",
	"*", "\\*",
	"_", "\\_",
	"[", "\\[",
	"]", "\\]",
	"<", "\\<",
	">", "\\>",
	"#", "\\#",
	"|", "\\|",
)

// escapeMarkdown neutralizes model-generated and code-derived text so
// it cannot break out of the report structure.
func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
