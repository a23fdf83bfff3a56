package llm

import (
	"context"
	"testing"
	"time"

	"github.com/maxbolgarin/critique/internal/model"
	"github.com/maxbolgarin/errm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAPI struct {
	replies []model.ModelResponse
	errs    []error
	calls   int
	reqs    []model.ModelRequest
}

func (s *stubAPI) CallModel(_ context.Context, req model.ModelRequest) (model.ModelResponse, error) {
	i := s.calls
	s.calls++
	s.reqs = append(s.reqs, req)
	var resp model.ModelResponse
	if i < len(s.replies) {
		resp = s.replies[i]
	}
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return resp, err
}

func testConfig() Config {
	return Config{
		Type:       Gemini,
		APIKey:     "sk-secret-key-12345",
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	}
}

func TestInvokeRetriesTransportErrors(t *testing.T) {
	api := &stubAPI{
		errs:    []error{errm.New("connection reset"), errm.New("429 rate limit exceeded"), nil},
		replies: []model.ModelResponse{{}, {}, {Content: "[]"}},
	}
	gw, err := NewWithAPI(testConfig(), api)
	require.NoError(t, err)

	out, err := gw.Invoke(context.Background(), "logic", "sys", "usr")
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
	assert.Equal(t, 3, api.calls)
}

func TestInvokeDoesNotRetryAuthErrors(t *testing.T) {
	api := &stubAPI{errs: []error{errm.New("401 authentication failed")}}
	gw, err := NewWithAPI(testConfig(), api)
	require.NoError(t, err)

	_, err = gw.Invoke(context.Background(), "logic", "sys", "usr")
	require.Error(t, err)
	assert.Equal(t, KindAuth, KindOf(err))
	assert.Equal(t, 1, api.calls)
}

func TestInvokeDoesNotRetryBadRequest(t *testing.T) {
	api := &stubAPI{errs: []error{errm.New("400 bad request: prompt rejected")}}
	gw, err := NewWithAPI(testConfig(), api)
	require.NoError(t, err)

	_, err = gw.Invoke(context.Background(), "logic", "sys", "usr")
	require.Error(t, err)
	assert.Equal(t, KindParse, KindOf(err))
	assert.Equal(t, 1, api.calls)
}

func TestInvokeExhaustsRetries(t *testing.T) {
	api := &stubAPI{errs: []error{
		errm.New("503 unavailable"), errm.New("503 unavailable"), errm.New("503 unavailable"),
	}}
	gw, err := NewWithAPI(testConfig(), api)
	require.NoError(t, err)

	_, err = gw.Invoke(context.Background(), "logic", "sys", "usr")
	require.Error(t, err)
	assert.Equal(t, KindTransport, KindOf(err))
	// Initial call plus MaxRetries.
	assert.Equal(t, 3, api.calls)
}

func TestInvokeEmptyContentIsParseError(t *testing.T) {
	api := &stubAPI{replies: []model.ModelResponse{{Content: ""}}}
	gw, err := NewWithAPI(testConfig(), api)
	require.NoError(t, err)

	_, err = gw.Invoke(context.Background(), "logic", "sys", "usr")
	require.Error(t, err)
	assert.Equal(t, KindParse, KindOf(err))
	assert.Equal(t, 1, api.calls)
}

func TestInvokeRedactsAPIKey(t *testing.T) {
	api := &stubAPI{errs: []error{errm.New("401 unauthorized: key sk-secret-key-12345 rejected")}}
	gw, err := NewWithAPI(testConfig(), api)
	require.NoError(t, err)

	_, err = gw.Invoke(context.Background(), "logic", "sys", "usr")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "sk-secret-key-12345")
	assert.Contains(t, err.Error(), RedactionMarker)
}

func TestModelForSecurityAgent(t *testing.T) {
	api := &stubAPI{replies: []model.ModelResponse{{Content: "[]"}, {Content: "[]"}}}
	gw, err := NewWithAPI(testConfig(), api)
	require.NoError(t, err)

	_, err = gw.Invoke(context.Background(), "security", "sys", "usr")
	require.NoError(t, err)
	_, err = gw.Invoke(context.Background(), "logic", "sys", "usr")
	require.NoError(t, err)

	require.Len(t, api.reqs, 2)
	assert.Equal(t, "gemini-2.5-pro", api.reqs[0].Model)
	assert.Equal(t, "gemini-2.5-flash", api.reqs[1].Model)
}

func TestModelOverrideWins(t *testing.T) {
	cfg := testConfig()
	cfg.Model = "gemini-exp"

	api := &stubAPI{replies: []model.ModelResponse{{Content: "[]"}}}
	gw, err := NewWithAPI(cfg, api)
	require.NoError(t, err)

	_, err = gw.Invoke(context.Background(), "security", "sys", "usr")
	require.NoError(t, err)
	assert.Equal(t, "gemini-exp", api.reqs[0].Model)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindTimeout, classify(context.DeadlineExceeded))
	assert.Equal(t, KindRateLimited, classify(errm.New("got 429 from upstream")))
	assert.Equal(t, KindAuth, classify(errm.New("403 access denied")))
	assert.Equal(t, KindParse, classify(errm.New("400 bad request")))
	assert.Equal(t, KindTransport, classify(errm.New("dial tcp: timeout")))
}

func TestConfigValidation(t *testing.T) {
	cfg := Config{Type: Gemini}
	assert.Error(t, cfg.PrepareAndValidate())

	cfg = Config{APIKey: "k", Type: "claude"}
	assert.Error(t, cfg.PrepareAndValidate())

	cfg = Config{APIKey: "k", Type: OpenAI}
	require.NoError(t, cfg.PrepareAndValidate())
	assert.Equal(t, defaultMaxTokens, cfg.MaxTokens)
	assert.Equal(t, defaultTimeout, cfg.Timeout)
}
