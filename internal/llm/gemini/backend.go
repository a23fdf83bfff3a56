package gemini

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/maxbolgarin/critique/internal/model"
	"github.com/maxbolgarin/erro"
	"github.com/maxbolgarin/lang"
	"google.golang.org/genai"
)

const defaultModel = "gemini-2.5-flash"

var _ model.ModelAPI = (*Backend)(nil)

// Backend calls the Google Gemini API.
type Backend struct {
	client *genai.Client
	config model.ModelConfig
}

func New(ctx context.Context, cfg model.ModelConfig) (*Backend, error) {
	if cfg.APIKey == "" {
		return nil, erro.New("Gemini API key is required")
	}
	cfg.Model = lang.Check(cfg.Model, defaultModel)

	transport := &http.Transport{}
	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, erro.Wrap(err, "failed to parse proxy URL")
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPClient: &http.Client{
			Transport: transport,
		},
	})
	if err != nil {
		return nil, erro.Wrap(err, "failed to create Gemini client")
	}

	b := &Backend{
		client: client,
		config: cfg,
	}

	if cfg.IsTest {
		if err := b.testConnection(ctx); err != nil {
			return nil, erro.Wrap(err, "failed to connect to Gemini API")
		}
	}

	return b, nil
}

func (b *Backend) CallModel(ctx context.Context, req model.ModelRequest) (model.ModelResponse, error) {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType:  lang.Check(req.ResponseType, "text/plain"),
		Temperature:       &req.Temperature,
		MaxOutputTokens:   int32(req.MaxTokens),
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: req.SystemPrompt}}},
	}

	result, err := b.client.Models.GenerateContent(ctx,
		lang.Check(req.Model, b.config.Model),
		[]*genai.Content{{Parts: []*genai.Part{{Text: req.Prompt}}}},
		config,
	)
	if err != nil {
		return model.ModelResponse{}, b.handleAPIError(err)
	}

	return toModelResponse(result), nil
}

// toModelResponse flattens the SDK response. Usage metadata is
// optional in the API and may be nil.
func toModelResponse(result *genai.GenerateContentResponse) model.ModelResponse {
	var content string
	if len(result.Candidates) > 0 {
		candidate := result.Candidates[0]
		if candidate.Content != nil && len(candidate.Content.Parts) > 0 {
			content = candidate.Content.Parts[0].Text
		}
	}

	out := model.ModelResponse{
		CreateTime: result.CreateTime,
		Content:    content,
	}
	if result.UsageMetadata != nil {
		out.PromptTokens = int(result.UsageMetadata.PromptTokenCount)
		out.CompletionTokens = int(result.UsageMetadata.CandidatesTokenCount)
		out.TotalTokens = int(result.UsageMetadata.TotalTokenCount)
	}
	return out
}

// handleAPIError keeps the upstream status code in the message so the
// gateway can classify the failure.
func (b *Backend) handleAPIError(err error) error {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "location is not supported"):
		return erro.New("region not supported by Gemini API")
	case strings.Contains(errStr, "429"):
		return erro.New("429 rate limit exceeded")
	case strings.Contains(errStr, "401"):
		return erro.New("401 authentication failed")
	case strings.Contains(errStr, "403"):
		return erro.New("403 access denied")
	case strings.Contains(errStr, "400"):
		return erro.New("400 bad request to Gemini API")
	case strings.Contains(errStr, "503"):
		return erro.New("503 Gemini API service unavailable")
	case strings.Contains(errStr, "500") || strings.Contains(errStr, "502"):
		return erro.New("Gemini API server error")
	default:
		return erro.Wrap(err, "Gemini API error")
	}
}

func (b *Backend) testConnection(ctx context.Context) error {
	_, err := b.CallModel(ctx, model.ModelRequest{
		Prompt:      "Respond with 'OK' if you can understand this message.",
		MaxTokens:   10,
		Temperature: 0.5,
	})
	return err
}
