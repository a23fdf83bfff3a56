package model

import (
	"context"
	"time"
)

// ModelAPI defines the interface for calling LLM model backends.
type ModelAPI interface {
	CallModel(ctx context.Context, req ModelRequest) (ModelResponse, error)
}

// ChangeProvider defines the interface for hosted-repo providers
// (GitHub, GitLab, etc.). Providers are read-only: the pipeline never
// posts anything back.
type ChangeProvider interface {
	GetPullRequest(ctx context.Context, repo string, number int) (*ChangeMetadata, error)
	GetPullRequestDiff(ctx context.Context, repo string, number int) (string, error)
}

// Analyzer is a bounded worker that transforms a ReviewContext into
// findings for one category. Implementations must be safe to run
// concurrently with other analyzers over the same context.
type Analyzer interface {
	Category() Category
	Analyze(ctx context.Context, reviewCtx *ReviewContext) ([]Finding, error)
}

// ModelConfig represents model backend configuration.
type ModelConfig struct {
	APIKey   string
	Model    string
	URL      string
	ProxyURL string
	IsTest   bool
}

// ModelRequest represents a single request to an LLM API.
type ModelRequest struct {
	SystemPrompt string
	Prompt       string
	Model        string
	MaxTokens    int
	Temperature  float32
	ResponseType string
}

// ModelResponse represents a response from an LLM API.
type ModelResponse struct {
	CreateTime       time.Time
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
