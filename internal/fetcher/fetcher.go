package fetcher

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/maxbolgarin/critique/internal/fetcher/github"
	"github.com/maxbolgarin/critique/internal/fetcher/gitlab"
	"github.com/maxbolgarin/critique/internal/model"
	"github.com/maxbolgarin/lang"
	"github.com/maxbolgarin/logze/v2"
)

const (
	defaultMaxRetries = 3
	defaultRetryDelay = time.Second
)

// ProviderKind names a hosted-repo provider.
type ProviderKind string

const (
	GitHub ProviderKind = "github"
	GitLab ProviderKind = "gitlab"
)

// Config represents change fetcher configuration. Tokens here are the
// service-level fallback; a per-request token takes precedence.
type Config struct {
	GitHubToken   string `yaml:"github_token" env:"FETCHER_GITHUB_TOKEN"`
	GitLabToken   string `yaml:"gitlab_token" env:"FETCHER_GITLAB_TOKEN"`
	GitHubBaseURL string `yaml:"github_base_url" env:"FETCHER_GITHUB_BASE_URL"`
	GitLabBaseURL string `yaml:"gitlab_base_url" env:"FETCHER_GITLAB_BASE_URL"`

	MaxRetries int           `yaml:"max_retries" env:"FETCHER_MAX_RETRIES"`
	RetryDelay time.Duration `yaml:"retry_delay" env:"FETCHER_RETRY_DELAY"`
}

func (c *Config) PrepareAndValidate() error {
	c.MaxRetries = lang.Check(c.MaxRetries, defaultMaxRetries)
	c.RetryDelay = lang.Check(c.RetryDelay, defaultRetryDelay)
	return nil
}

// Fetcher resolves a remote change source into pull request metadata
// and the raw unified diff.
type Fetcher struct {
	cfg Config
	log logze.Logger
}

func New(cfg Config) (*Fetcher, error) {
	if err := cfg.PrepareAndValidate(); err != nil {
		return nil, err
	}
	return &Fetcher{
		cfg: cfg,
		log: logze.With("component", "change_fetcher"),
	}, nil
}

// Ref is a provider-neutral pull request reference.
type Ref struct {
	Provider   ProviderKind
	Repository string
	Number     int
}

// ParsePRURL recognizes the two hosted URL shapes:
//
//	https://github.com/{owner}/{repo}/pull/{number}
//	https://gitlab.com/{path...}/-/merge_requests/{number}
func ParsePRURL(raw string) (Ref, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Ref{}, &Error{Kind: KindURLFormat, Message: "not an absolute URL: " + raw}
	}

	path := strings.Trim(u.Path, "/")
	switch u.Host {
	case "github.com", "www.github.com":
		parts := strings.Split(path, "/")
		if len(parts) != 4 || parts[2] != "pull" {
			return Ref{}, &Error{Kind: KindURLFormat, Message: "expected github.com/{owner}/{repo}/pull/{number}"}
		}
		number, err := strconv.Atoi(parts[3])
		if err != nil || number <= 0 {
			return Ref{}, &Error{Kind: KindURLFormat, Message: "invalid pull request number: " + parts[3]}
		}
		return Ref{Provider: GitHub, Repository: parts[0] + "/" + parts[1], Number: number}, nil

	case "gitlab.com", "www.gitlab.com":
		idx := strings.Index(path, "/-/merge_requests/")
		if idx <= 0 {
			return Ref{}, &Error{Kind: KindURLFormat, Message: "expected gitlab.com/{project}/-/merge_requests/{number}"}
		}
		rest := path[idx+len("/-/merge_requests/"):]
		rest = strings.SplitN(rest, "/", 2)[0]
		number, err := strconv.Atoi(rest)
		if err != nil || number <= 0 {
			return Ref{}, &Error{Kind: KindURLFormat, Message: "invalid merge request number: " + rest}
		}
		return Ref{Provider: GitLab, Repository: path[:idx], Number: number}, nil
	}

	return Ref{}, &Error{Kind: KindURLFormat, Message: "unsupported provider host: " + u.Host}
}

// Fetch resolves the source to metadata plus raw diff text. Transport
// and rate-limit failures are retried with exponential backoff;
// not-found and auth failures are returned immediately.
func (f *Fetcher) Fetch(ctx context.Context, source model.ChangeSource) (*model.ChangeMetadata, string, error) {
	ref, err := f.resolveRef(source)
	if err != nil {
		return nil, "", err
	}

	provider, err := f.buildProvider(ref, source.AccessToken)
	if err != nil {
		return nil, "", &Error{Kind: KindAuth, Message: err.Error()}
	}

	meta, err := withRetry(ctx, f, ref, "metadata", func() (*model.ChangeMetadata, error) {
		return provider.GetPullRequest(ctx, ref.Repository, ref.Number)
	})
	if err != nil {
		return nil, "", err
	}

	diff, err := withRetry(ctx, f, ref, "diff", func() (string, error) {
		return provider.GetPullRequestDiff(ctx, ref.Repository, ref.Number)
	})
	if err != nil {
		return nil, "", err
	}

	return meta, diff, nil
}

func (f *Fetcher) resolveRef(source model.ChangeSource) (Ref, error) {
	if source.PRURL != "" {
		return ParsePRURL(source.PRURL)
	}
	// Bare repository+number defaults to GitHub, the dominant shape.
	return Ref{Provider: GitHub, Repository: source.Repository, Number: source.PRNumber}, nil
}

func (f *Fetcher) buildProvider(ref Ref, requestToken string) (model.ChangeProvider, error) {
	switch ref.Provider {
	case GitLab:
		return gitlab.New(gitlab.Config{
			Token:   lang.Check(requestToken, f.cfg.GitLabToken),
			BaseURL: f.cfg.GitLabBaseURL,
		})
	default:
		return github.New(github.Config{
			Token:   lang.Check(requestToken, f.cfg.GitHubToken),
			BaseURL: f.cfg.GitHubBaseURL,
		})
	}
}

func withRetry[T any](ctx context.Context, f *Fetcher, ref Ref, op string, call func() (T, error)) (T, error) {
	var zero T
	var lastErr *Error
	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return zero, &Error{Kind: KindTransport, Message: "context done before retry: " + ctx.Err().Error()}
			case <-time.After(f.backoff(attempt)):
			}
		}

		out, err := call()
		if err == nil {
			return out, nil
		}

		kind := classify(err)
		lastErr = &Error{Kind: kind, Message: err.Error()}
		if !retryable(kind) {
			return zero, lastErr
		}
		f.log.Warn("provider call failed, retrying",
			"provider", string(ref.Provider), "repository", ref.Repository,
			"number", ref.Number, "op", op,
			"attempt", attempt+1, "kind", string(kind))
	}
	return zero, lastErr
}

// backoff is delay*2^(attempt-1) for attempt >= 1.
func (f *Fetcher) backoff(attempt int) time.Duration {
	return f.cfg.RetryDelay << (attempt - 1)
}
