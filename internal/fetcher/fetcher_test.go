package fetcher

import (
	"context"
	"testing"
	"time"

	"github.com/maxbolgarin/errm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePRURLGitHub(t *testing.T) {
	ref, err := ParsePRURL("https://github.com/acme/api/pull/42")
	require.NoError(t, err)
	assert.Equal(t, GitHub, ref.Provider)
	assert.Equal(t, "acme/api", ref.Repository)
	assert.Equal(t, 42, ref.Number)

	ref, err = ParsePRURL("https://www.github.com/acme/api/pull/7")
	require.NoError(t, err)
	assert.Equal(t, 7, ref.Number)
}

func TestParsePRURLGitLab(t *testing.T) {
	ref, err := ParsePRURL("https://gitlab.com/group/project/-/merge_requests/15")
	require.NoError(t, err)
	assert.Equal(t, GitLab, ref.Provider)
	assert.Equal(t, "group/project", ref.Repository)
	assert.Equal(t, 15, ref.Number)

	// Nested groups keep the full project path.
	ref, err = ParsePRURL("https://gitlab.com/org/sub/project/-/merge_requests/3/diffs")
	require.NoError(t, err)
	assert.Equal(t, "org/sub/project", ref.Repository)
	assert.Equal(t, 3, ref.Number)
}

func TestParsePRURLRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"not a url",
		"github.com/acme/api/pull/42",
		"https://github.com/acme/api",
		"https://github.com/acme/api/pull/zero",
		"https://github.com/acme/api/pull/0",
		"https://github.com/acme/api/issues/42",
		"https://gitlab.com/project/merge_requests/5",
		"https://bitbucket.org/acme/api/pull-requests/9",
	}
	for _, raw := range cases {
		_, err := ParsePRURL(raw)
		require.Error(t, err, raw)
		assert.Equal(t, KindURLFormat, KindOf(err), raw)
	}
}

func TestClassifyKinds(t *testing.T) {
	assert.Equal(t, KindNotFound, classify(errm.New("GitHub API returned status 404")))
	assert.Equal(t, KindRateLimited, classify(errm.New("GitHub API returned status 429")))
	assert.Equal(t, KindRateLimited, classify(errm.New("secondary rate limit hit")))
	assert.Equal(t, KindAuth, classify(errm.New("GitLab API returned status 401")))
	assert.Equal(t, KindAuth, classify(errm.New("403 forbidden")))
	assert.Equal(t, KindTransport, classify(errm.New("connection refused")))
	assert.Equal(t, KindTransport, classify(context.DeadlineExceeded))
}

func TestKindOfUnwrapsError(t *testing.T) {
	err := &Error{Kind: KindNotFound, Message: "pull request not found"}
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, KindTransport, KindOf(errm.New("plain")))
}

func TestRetryableKinds(t *testing.T) {
	assert.True(t, retryable(KindTransport))
	assert.True(t, retryable(KindRateLimited))
	assert.False(t, retryable(KindNotFound))
	assert.False(t, retryable(KindAuth))
	assert.False(t, retryable(KindURLFormat))
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	require.NoError(t, cfg.PrepareAndValidate())
	assert.Equal(t, defaultMaxRetries, cfg.MaxRetries)
	assert.Equal(t, defaultRetryDelay, cfg.RetryDelay)
}

func TestBackoffGrowsExponentially(t *testing.T) {
	f, err := New(Config{RetryDelay: time.Second})
	require.NoError(t, err)

	assert.Equal(t, time.Second, f.backoff(1))
	assert.Equal(t, 2*time.Second, f.backoff(2))
	assert.Equal(t, 4*time.Second, f.backoff(3))
}
