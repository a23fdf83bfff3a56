package gitlab

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/maxbolgarin/critique/internal/model"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/lang"
	"github.com/maxbolgarin/logze/v2"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

const defaultBaseURL = "https://gitlab.com"

var _ model.ChangeProvider = (*Provider)(nil)

// Config represents GitLab provider configuration.
type Config struct {
	Token   string
	BaseURL string // for self-hosted instances
}

// Provider reads merge requests through the GitLab API. Read-only:
// nothing is ever posted back.
type Provider struct {
	client *gitlab.Client
	logger logze.Logger
}

func New(cfg Config) (*Provider, error) {
	if cfg.Token == "" {
		return nil, errm.New("GitLab token is required")
	}

	client, err := gitlab.NewClient(cfg.Token, gitlab.WithBaseURL(lang.Check(cfg.BaseURL, defaultBaseURL)))
	if err != nil {
		return nil, errm.Wrap(err, "failed to create GitLab client")
	}

	return &Provider{
		client: client,
		logger: logze.With("provider", "gitlab"),
	}, nil
}

// GetPullRequest retrieves merge request metadata. The repository is
// the full project path ("group/project").
func (p *Provider) GetPullRequest(ctx context.Context, repo string, number int) (*model.ChangeMetadata, error) {
	mr, resp, err := p.client.MergeRequests.GetMergeRequest(repo, number, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, wrapAPIError(err, resp, "failed to get merge request from GitLab")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errm.New(fmt.Sprintf("GitLab API returned status %d", resp.StatusCode))
	}

	return &model.ChangeMetadata{
		Repository: repo,
		PRNumber:   number,
		Title:      mr.Title,
		Author:     mr.Author.Username,
		CommitSHA:  mr.SHA,
		BaseBranch: mr.TargetBranch,
		HeadBranch: mr.SourceBranch,
	}, nil
}

// GetPullRequestDiff fetches all diff pages and reassembles them into
// a single unified diff payload.
func (p *Provider) GetPullRequestDiff(ctx context.Context, repo string, number int) (string, error) {
	var allDiffs []*gitlab.MergeRequestDiff
	page := 1

	for {
		opts := &gitlab.ListMergeRequestDiffsOptions{
			ListOptions: gitlab.ListOptions{
				Page: page,
			},
		}

		diffs, resp, err := p.client.MergeRequests.ListMergeRequestDiffs(repo, number, opts, gitlab.WithContext(ctx))
		if err != nil {
			return "", wrapAPIError(err, resp, "failed to list merge request diffs")
		}
		if resp.StatusCode != http.StatusOK {
			return "", errm.New(fmt.Sprintf("GitLab API returned status %d", resp.StatusCode))
		}

		allDiffs = append(allDiffs, diffs...)

		if resp.NextPage == 0 {
			break
		}
		page = resp.NextPage
	}

	return assembleUnifiedDiff(allDiffs), nil
}

// assembleUnifiedDiff rebuilds "diff --git" headers around the per-file
// hunks GitLab returns, so the payload parses like a plain git diff.
func assembleUnifiedDiff(diffs []*gitlab.MergeRequestDiff) string {
	var sb strings.Builder
	for _, d := range diffs {
		oldPath := lang.Check(d.OldPath, d.NewPath)
		newPath := lang.Check(d.NewPath, d.OldPath)

		fmt.Fprintf(&sb, "diff --git a/%s b/%s\n", oldPath, newPath)
		if d.Diff == "" && !d.NewFile && !d.DeletedFile {
			// GitLab omits content for binary files.
			fmt.Fprintf(&sb, "Binary files a/%s and b/%s differ\n", oldPath, newPath)
			continue
		}
		if d.NewFile {
			sb.WriteString("--- /dev/null\n")
		} else {
			fmt.Fprintf(&sb, "--- a/%s\n", oldPath)
		}
		if d.DeletedFile {
			sb.WriteString("+++ /dev/null\n")
		} else {
			fmt.Fprintf(&sb, "+++ b/%s\n", newPath)
		}
		sb.WriteString(d.Diff)
		if !strings.HasSuffix(d.Diff, "\n") {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func wrapAPIError(err error, resp *gitlab.Response, msg string) error {
	if resp != nil && resp.Response != nil {
		return errm.Wrap(err, fmt.Sprintf("%s: GitLab API returned status %d", msg, resp.StatusCode))
	}
	return errm.Wrap(err, msg)
}
