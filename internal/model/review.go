package model

import (
	"time"

	"github.com/maxbolgarin/abstract"
	"github.com/maxbolgarin/lang"
)

// Severity defines the impact level of a review finding.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = abstract.NewSafeMap(map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
})

// Rank returns the position of the severity in the total order,
// low < medium < high < critical. Unknown severities rank below low.
func (s Severity) Rank() int {
	return severityRank.Get(s)
}

func (s Severity) Compare(other Severity) int {
	return lang.If(s == other, 0, lang.If(s.Rank() < other.Rank(), -1, 1))
}

// IsValid reports whether the severity is one of the four known levels.
func (s Severity) IsValid() bool {
	return s.Rank() > 0
}

// ParseSeverity normalizes a raw severity string, clamping unknown
// values to medium. Model replies are not trusted to stay in the set.
func ParseSeverity(raw string) Severity {
	s := Severity(raw)
	if !s.IsValid() {
		return SeverityMedium
	}
	return s
}

// Category identifies one of the built-in analyzers.
type Category string

const (
	CategoryLogic       Category = "logic"
	CategoryReadability Category = "readability"
	CategoryPerformance Category = "performance"
	CategorySecurity    Category = "security"
)

// AllCategories returns the built-in analyzer categories in stable order.
func AllCategories() []Category {
	return []Category{CategoryLogic, CategoryReadability, CategoryPerformance, CategorySecurity}
}

func (c Category) IsValid() bool {
	switch c {
	case CategoryLogic, CategoryReadability, CategoryPerformance, CategorySecurity:
		return true
	}
	return false
}

// ReviewConfig controls which findings survive a review run.
type ReviewConfig struct {
	SeverityThreshold Severity          `json:"severity_threshold" yaml:"severity_threshold"`
	EnabledCategories []Category        `json:"enabled_categories" yaml:"enabled_categories"`
	CustomRules       map[string]string `json:"custom_rules,omitempty" yaml:"custom_rules,omitempty"`
}

// PrepareAndValidate fills defaults and rejects impossible configs.
func (c *ReviewConfig) PrepareAndValidate() error {
	c.SeverityThreshold = lang.Check(c.SeverityThreshold, SeverityMedium)
	if !c.SeverityThreshold.IsValid() {
		return NewValidationError("unknown severity threshold: " + string(c.SeverityThreshold))
	}
	if len(c.EnabledCategories) == 0 {
		c.EnabledCategories = AllCategories()
	}
	for _, cat := range c.EnabledCategories {
		if !cat.IsValid() {
			return NewValidationError("unknown category: " + string(cat))
		}
	}
	return nil
}

// IsEnabled reports whether the category survives the config filter.
func (c *ReviewConfig) IsEnabled(cat Category) bool {
	for _, enabled := range c.EnabledCategories {
		if enabled == cat {
			return true
		}
	}
	return false
}

// ReviewContext is the immutable bundle passed to every analyzer.
// Analyzers receive a read-only view and must not mutate it.
type ReviewContext struct {
	Files    []*FileChange
	Config   ReviewConfig
	Metadata *ChangeMetadata
}

// Finding is a structured critique tied to a file and line.
type Finding struct {
	FilePath    string   `json:"file_path"`
	LineNumber  int      `json:"line_number"`
	Severity    Severity `json:"severity"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
	Suggestion  string   `json:"suggestion,omitempty"`
	AgentSource string   `json:"agent_source"`
}

// findingWire carries the legacy "message" alias next to "description".
// Existing clients read message; description is canonical in memory.
type findingWire struct {
	FilePath    string   `json:"file_path"`
	LineNumber  int      `json:"line_number"`
	Severity    Severity `json:"severity"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
	Message     string   `json:"message"`
	Suggestion  string   `json:"suggestion,omitempty"`
	AgentSource string   `json:"agent_source"`
}

func (f Finding) MarshalJSON() ([]byte, error) {
	return marshalJSON(findingWire{
		FilePath:    f.FilePath,
		LineNumber:  f.LineNumber,
		Severity:    f.Severity,
		Category:    f.Category,
		Description: f.Description,
		Message:     f.Description,
		Suggestion:  f.Suggestion,
		AgentSource: f.AgentSource,
	})
}

func (f *Finding) UnmarshalJSON(data []byte) error {
	var wire findingWire
	if err := unmarshalJSON(data, &wire); err != nil {
		return err
	}
	*f = Finding{
		FilePath:    wire.FilePath,
		LineNumber:  wire.LineNumber,
		Severity:    wire.Severity,
		Category:    wire.Category,
		Description: lang.Check(wire.Description, wire.Message),
		Suggestion:  wire.Suggestion,
		AgentSource: wire.AgentSource,
	}
	return nil
}

// ReviewSummary aggregates the outcome of one review run.
type ReviewSummary struct {
	TotalFindings int              `json:"total_findings"`
	BySeverity    map[Severity]int `json:"by_severity"`
	ByCategory    map[Category]int `json:"by_category"`
	FilesAnalyzed int              `json:"files_analyzed"`
	LinesChanged  int              `json:"lines_changed"`
}

// AnalyzerFailure records a per-analyzer terminal outcome that does
// not fail the review.
type AnalyzerFailure struct {
	Category Category    `json:"category"`
	Kind     FailureKind `json:"kind"`
	Message  string      `json:"message"`
}

// FailureKind classifies why an analyzer produced no findings.
type FailureKind string

const (
	FailureTimeout FailureKind = "timeout"
	FailureCrash   FailureKind = "crash"
	FailureError   FailureKind = "error"
)

func (f AnalyzerFailure) Error() string {
	return string(f.Category) + " analyzer " + string(f.Kind) + ": " + f.Message
}

// ReviewResult is the persisted, externally addressable outcome of
// one pipeline execution. Re-reviewing the same PR produces a new
// independent result with a fresh ID.
type ReviewResult struct {
	ReviewID  string            `json:"review_id"`
	Metadata  *ChangeMetadata   `json:"pr_metadata,omitempty"`
	CommitSHA string            `json:"commit_sha"`
	Config    ReviewConfig      `json:"config"`
	Findings  []Finding         `json:"findings"`
	Summary   ReviewSummary     `json:"summary"`
	Failures  []AnalyzerFailure `json:"failures,omitempty"`
	Markdown  string            `json:"formatted_comments"`
	CreatedAt time.Time         `json:"timestamp"`
}

// ReviewStatus is the externally visible state of a review run.
type ReviewStatus string

const (
	StatusInProgress ReviewStatus = "in_progress"
	StatusCompleted  ReviewStatus = "completed"
	StatusFailed     ReviewStatus = "failed"
)
