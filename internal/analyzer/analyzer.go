package analyzer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/maxbolgarin/critique/internal/model"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Gateway is the slice of the LLM gateway analyzers need.
type Gateway interface {
	Invoke(ctx context.Context, agentID, systemPrompt, userPrompt string) (string, error)
}

// ignoredLanguages are data and prose formats no analyzer reasons about.
var ignoredLanguages = map[string]struct{}{
	"markdown": {},
	"text":     {},
	"json":     {},
}

// base implements the shared analyzer machinery: the per-file loop,
// prompt assembly and the strict reply parser. Specializations differ
// only in category, system prompt and finding validation.
type base struct {
	category     model.Category
	gateway      Gateway
	systemPrompt string
	validate     func(*model.Finding) bool
	log          logze.Logger
}

var _ model.Analyzer = (*base)(nil)

func newBase(gateway Gateway, category model.Category, systemPrompt string, validate func(*model.Finding) bool) *base {
	return &base{
		category:     category,
		gateway:      gateway,
		systemPrompt: systemPrompt,
		validate:     validate,
		log:          logze.With("component", "analyzer", "category", string(category)),
	}
}

func (b *base) Category() model.Category {
	return b.category
}

// Analyze runs the per-file loop: one gateway call per eligible file,
// replies parsed into findings. A gateway or parse failure aborts the
// run with no findings; the orchestrator records it.
func (b *base) Analyze(ctx context.Context, rc *model.ReviewContext) ([]model.Finding, error) {
	system := b.systemPrompt
	if len(rc.Config.CustomRules) > 0 {
		system += "\n\nCustom Rules:\n" + formatCustomRules(rc.Config.CustomRules)
	}

	var findings []model.Finding
	for _, file := range rc.Files {
		if file.IsBinary || file.ChangedLines() == 0 {
			continue
		}
		if _, ignored := ignoredLanguages[file.Language]; ignored {
			continue
		}

		reply, err := b.gateway.Invoke(ctx, string(b.category), system, b.buildFilePrompt(rc, file))
		if err != nil {
			return nil, errm.Wrap(err, "gateway call failed", "file", file.FilePath)
		}

		parsed, err := b.parseReply(reply, file.FilePath)
		if err != nil {
			return nil, errm.Wrap(err, "failed to parse model reply", "file", file.FilePath)
		}
		findings = append(findings, parsed...)
	}

	b.log.Debug("analysis finished", "findings", len(findings))
	return findings, nil
}

// buildFilePrompt renders one file's line events with their post-change
// (additions, modifications) or pre-change (deletions) line numbers.
func (b *base) buildFilePrompt(rc *model.ReviewContext, file *model.FileChange) string {
	var sb strings.Builder

	if rc.Metadata != nil {
		fmt.Fprintf(&sb, "Pull Request: %s\n", rc.Metadata.Title)
		fmt.Fprintf(&sb, "Repository: %s\n", rc.Metadata.Repository)
		fmt.Fprintf(&sb, "Author: %s\n\n", rc.Metadata.Author)
	}

	sb.WriteString("Code Changes to Analyze:\n")
	sb.WriteString(strings.Repeat("=", 40) + "\n")
	fmt.Fprintf(&sb, "\nFile: %s\n", file.FilePath)
	fmt.Fprintf(&sb, "Language: %s\n", file.Language)

	if len(file.Additions) > 0 {
		sb.WriteString("\nAdditions:\n")
		for _, lc := range file.Additions {
			fmt.Fprintf(&sb, "+%d: %s\n", lc.NewLine, lc.Content)
		}
	}
	if len(file.Deletions) > 0 {
		sb.WriteString("\nDeletions:\n")
		for _, lc := range file.Deletions {
			fmt.Fprintf(&sb, "-%d: %s\n", lc.OldLine, lc.Content)
		}
	}
	if len(file.Modifications) > 0 {
		sb.WriteString("\nModifications:\n")
		for _, lc := range file.Modifications {
			fmt.Fprintf(&sb, "~%d: %s\n", lc.NewLine, lc.Content)
		}
	}

	sb.WriteString("\nAnalyze the changes above and return your findings as a JSON array.")
	sb.WriteString("\nLine numbers must refer to the post-change file.")
	sb.WriteString("\nReturn an empty array [] if no issues are found.")

	return sb.String()
}

// findingReply is one object of the model's JSON array reply.
type findingReply struct {
	Line        int    `json:"line"`
	LineNumber  int    `json:"line_number"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Suggestion  string `json:"suggestion"`
}

// parseReply extracts the JSON array from the reply, tolerating
// markdown fences and preamble text. Objects without a line or a
// description are dropped; unknown severities clamp to medium.
func (b *base) parseReply(reply, filePath string) ([]model.Finding, error) {
	raw, err := extractJSONArray(reply)
	if err != nil {
		return nil, err
	}

	var items []findingReply
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, errm.Wrap(err, "reply is not a valid JSON array")
	}

	findings := make([]model.Finding, 0, len(items))
	for _, item := range items {
		line := item.Line
		if line == 0 {
			line = item.LineNumber
		}
		if line <= 0 || strings.TrimSpace(item.Description) == "" {
			b.log.Debug("dropping incomplete finding", "file", filePath, "line", line)
			continue
		}

		finding := model.Finding{
			FilePath:    filePath,
			LineNumber:  line,
			Severity:    model.ParseSeverity(item.Severity),
			Category:    b.category,
			Description: item.Description,
			Suggestion:  item.Suggestion,
			AgentSource: string(b.category) + "_analyzer",
		}
		if b.validate != nil && !b.validate(&finding) {
			b.log.Debug("dropping finding failing category requirements", "file", filePath, "line", line)
			continue
		}
		findings = append(findings, finding)
	}

	return findings, nil
}

// extractJSONArray locates the first '[' and its matching ']',
// ignoring brackets inside JSON strings.
func extractJSONArray(reply string) (string, error) {
	start := strings.Index(reply, "[")
	if start < 0 {
		return "", errm.New("no JSON array found in reply")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(reply); i++ {
		c := reply[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '[':
			depth++
		case c == ']':
			depth--
			if depth == 0 {
				return reply[start : i+1], nil
			}
		}
	}
	return "", errm.New("unterminated JSON array in reply")
}

func formatCustomRules(rules map[string]string) string {
	keys := make([]string, 0, len(rules))
	for key := range rules {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&sb, "- %s: %s\n", key, rules[key])
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
