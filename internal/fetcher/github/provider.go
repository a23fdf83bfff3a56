package github

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-github/v57/github"
	"github.com/maxbolgarin/critique/internal/model"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"
	"golang.org/x/oauth2"
)

var _ model.ChangeProvider = (*Provider)(nil)

// Config represents GitHub provider configuration.
type Config struct {
	Token   string
	BaseURL string // for GitHub Enterprise
}

// Provider reads pull requests through the GitHub API. Read-only:
// nothing is ever posted back.
type Provider struct {
	client *github.Client
	logger logze.Logger
}

func New(cfg Config) (*Provider, error) {
	if cfg.Token == "" {
		return nil, errm.New("GitHub token is required")
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: cfg.Token},
	)
	tc := oauth2.NewClient(context.Background(), ts)

	client := github.NewClient(tc)
	if cfg.BaseURL != "" {
		var err error
		client, err = github.NewClient(tc).WithEnterpriseURLs(cfg.BaseURL, cfg.BaseURL)
		if err != nil {
			return nil, errm.Wrap(err, "failed to create GitHub Enterprise client")
		}
	}

	return &Provider{
		client: client,
		logger: logze.With("provider", "github"),
	}, nil
}

// GetPullRequest retrieves pull request metadata.
func (p *Provider) GetPullRequest(ctx context.Context, repo string, number int) (*model.ChangeMetadata, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	pr, resp, err := p.client.PullRequests.Get(ctx, owner, name, number)
	if err != nil {
		return nil, wrapAPIError(err, resp, "failed to get pull request from GitHub")
	}

	return &model.ChangeMetadata{
		Repository: repo,
		PRNumber:   number,
		Title:      pr.GetTitle(),
		Author:     pr.GetUser().GetLogin(),
		CommitSHA:  pr.GetHead().GetSHA(),
		BaseBranch: pr.GetBase().GetRef(),
		HeadBranch: pr.GetHead().GetRef(),
	}, nil
}

// GetPullRequestDiff retrieves the raw unified diff of a pull request.
func (p *Provider) GetPullRequestDiff(ctx context.Context, repo string, number int) (string, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return "", err
	}

	diff, resp, err := p.client.PullRequests.GetRaw(ctx, owner, name, number, github.RawOptions{Type: github.Diff})
	if err != nil {
		return "", wrapAPIError(err, resp, "failed to get pull request diff from GitHub")
	}
	return diff, nil
}

func splitRepo(repo string) (string, string, error) {
	parts := strings.Split(repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errm.New("invalid GitHub repository format, expected 'owner/repo'")
	}
	return parts[0], parts[1], nil
}

// wrapAPIError keeps the HTTP status in the message so callers can
// classify the failure.
func wrapAPIError(err error, resp *github.Response, msg string) error {
	if resp != nil && resp.Response != nil {
		return errm.Wrap(err, fmt.Sprintf("%s: GitHub API returned status %d", msg, resp.StatusCode))
	}
	var rle *github.RateLimitError
	if errors.As(err, &rle) {
		return errm.Wrap(err, msg+": GitHub API rate limit exceeded")
	}
	return errm.Wrap(err, msg)
}
