// Package driven defines the driven (outbound) port interfaces implemented
// by adapters. Application services depend only on these interfaces.
package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/reviewbot/internal/domain/model"
)

// ErrNoOpenPullRequest is returned by FindOpenPullRequest when no open pull
// request matches the given head SHA. The review workflow treats it as a
// terminal failure for the triggering check run.
var ErrNoOpenPullRequest = errors.New("no open pull request for head SHA")

// GitHubClient defines the driven port for the GitHub REST API calls the two
// workflows perform. Implementations are scoped to one installation token
// and are created per workflow invocation via GitHubClientSource.
type GitHubClient interface {
	// CreateCheckRun creates a new check run on the given commit and returns
	// its GitHub-assigned ID.
	CreateCheckRun(ctx context.Context, repoFullName string, create model.CheckRunCreate) (int64, error)
	// UpdateCheckRun fully replaces the status, output, and actions of an
	// existing check run.
	UpdateCheckRun(ctx context.Context, repoFullName string, checkRunID int64, update model.CheckRunUpdate) error
	// FindOpenPullRequest returns the number of the open pull request whose
	// head commit is headSHA. Returns ErrNoOpenPullRequest when none matches.
	FindOpenPullRequest(ctx context.Context, repoFullName string, headSHA string) (int, error)
	// FetchPullRequest returns the detail projection for a single PR,
	// including GitHub's computed mergeability fields.
	FetchPullRequest(ctx context.Context, repoFullName string, prNumber int) (*model.PullRequestDetail, error)
	// FetchChangedFiles returns at most model.MaxChangedFiles entries of the
	// PR's file-change list, with patch excerpts truncated to
	// model.MaxPatchChars.
	FetchChangedFiles(ctx context.Context, repoFullName string, prNumber int) ([]model.ChangedFile, error)
	// FetchIssueComments returns all PR-level comments, oldest first.
	FetchIssueComments(ctx context.Context, repoFullName string, prNumber int) ([]model.IssueComment, error)
	// CreateIssueComment adds a PR-level comment via the Issues API.
	CreateIssueComment(ctx context.Context, repoFullName string, prNumber int, body string) error
}
