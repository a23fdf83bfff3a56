package llm

import (
	"slices"
	"time"

	"github.com/maxbolgarin/erro"
	"github.com/maxbolgarin/lang"
)

const (
	defaultTemperature = 0.1
	defaultMaxTokens   = 4000
	defaultTimeout     = 300 * time.Second
	defaultMaxRetries  = 2
	defaultRetryDelay  = time.Second
	maxRetryJitter     = 250 * time.Millisecond
	defaultUserAgent   = "critique/0.1.0 (https://github.com/maxbolgarin/critique)"
)

// BackendType represents the type of LLM backend.
type BackendType string

const (
	Gemini BackendType = "gemini"
	OpenAI BackendType = "openai"
)

var supportedBackendTypes = []BackendType{Gemini, OpenAI}

// Config represents LLM gateway configuration.
type Config struct {
	Type   BackendType `yaml:"type" env:"LLM_TYPE"` // gemini, openai
	APIKey string      `yaml:"api_key" env:"LLM_API_KEY"`
	Model  string      `yaml:"model" env:"LLM_MODEL"` // overrides the per-agent model table

	Temperature float32       `yaml:"temperature" env:"LLM_TEMPERATURE"`
	MaxTokens   int           `yaml:"max_tokens" env:"LLM_MAX_TOKENS"`
	BaseURL     string        `yaml:"base_url" env:"LLM_BASE_URL"` // custom endpoints (Azure OpenAI, local models, etc.)
	ProxyURL    string        `yaml:"proxy_url" env:"LLM_PROXY_URL"`
	MaxRetries  int           `yaml:"max_retries" env:"LLM_MAX_RETRIES"`
	RetryDelay  time.Duration `yaml:"retry_delay" env:"LLM_RETRY_DELAY"`
	Timeout     time.Duration `yaml:"timeout" env:"LLM_TIMEOUT"`
	UserAgent   string        `yaml:"user_agent" env:"LLM_USER_AGENT"`
	IsTest      bool          `yaml:"is_test" env:"LLM_IS_TEST"`
}

func (c *Config) PrepareAndValidate() error {
	if c.APIKey == "" {
		return erro.New("api key is required")
	}
	if c.Type == "" || !slices.Contains(supportedBackendTypes, c.Type) {
		return erro.New("invalid llm backend type: %s", c.Type)
	}

	c.Temperature = lang.Check(c.Temperature, defaultTemperature)
	c.MaxTokens = lang.Check(c.MaxTokens, defaultMaxTokens)
	c.Timeout = lang.Check(c.Timeout, defaultTimeout)
	c.MaxRetries = lang.Check(c.MaxRetries, defaultMaxRetries)
	c.RetryDelay = lang.Check(c.RetryDelay, defaultRetryDelay)
	c.UserAgent = lang.Check(c.UserAgent, defaultUserAgent)

	return nil
}
