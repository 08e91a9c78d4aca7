// Package github implements the GitHubClient and GitHubClientSource ports
// using the go-github library.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/reviewbot/internal/domain/model"
	"github.com/ericfisherdev/reviewbot/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.GitHubClient = (*Client)(nil)

// Client implements the driven.GitHubClient port using the go-github library.
// A Client is bound to one bearer token; workflows obtain a fresh one per
// invocation through a GitHubClientSource.
type Client struct {
	gh *gh.Client
}

// NewClient wraps an already-configured go-github client. Transport stacking
// (caching, rate-limit handling, auth) is the responsibility of the source
// that builds the underlying client.
func NewClient(ghClient *gh.Client) *Client {
	return &Client{gh: ghClient}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base
// URL. This constructor is intended for testing, allowing injection of an
// httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	client := gh.NewClient(httpClient)

	// go-github requires the base URL to end in a slash.
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{gh: client}, nil
}

// CreateCheckRun creates a new check run on the given commit and returns its
// GitHub-assigned ID.
func (c *Client) CreateCheckRun(ctx context.Context, repoFullName string, create model.CheckRunCreate) (int64, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return 0, err
	}

	opts := gh.CreateCheckRunOptions{
		Name:    create.Name,
		HeadSHA: create.HeadSHA,
		Status:  gh.Ptr(string(create.Status)),
		Output: &gh.CheckRunOutput{
			Title:   gh.Ptr(create.Title),
			Summary: gh.Ptr(create.Summary),
			Text:    gh.Ptr(create.Text),
		},
		Actions: mapActions(create.Actions),
	}
	if create.Conclusion != "" {
		opts.Conclusion = gh.Ptr(string(create.Conclusion))
	}

	run, resp, err := c.gh.Checks.CreateCheckRun(ctx, owner, repo, opts)
	if err != nil {
		return 0, fmt.Errorf("creating check run for %s@%s: %w", repoFullName, create.HeadSHA, err)
	}

	logRateLimit(resp, repoFullName+"/check-runs", 0, 1)

	return run.GetID(), nil
}

// UpdateCheckRun fully replaces the status, output, and actions of an
// existing check run. The action list is always sent, so an empty slice
// clears any previously attached buttons.
func (c *Client) UpdateCheckRun(ctx context.Context, repoFullName string, checkRunID int64, update model.CheckRunUpdate) error {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return err
	}

	opts := gh.UpdateCheckRunOptions{
		Name:   model.CheckName,
		Status: gh.Ptr(string(update.Status)),
		Output: &gh.CheckRunOutput{
			Title:   gh.Ptr(update.Title),
			Summary: gh.Ptr(update.Summary),
			Text:    gh.Ptr(update.Text),
		},
		Actions: mapActions(update.Actions),
	}
	if update.Conclusion != "" {
		opts.Conclusion = gh.Ptr(string(update.Conclusion))
	}

	_, resp, err := c.gh.Checks.UpdateCheckRun(ctx, owner, repo, checkRunID, opts)
	if err != nil {
		return fmt.Errorf("updating check run %d for %s: %w", checkRunID, repoFullName, err)
	}

	logRateLimit(resp, repoFullName+"/check-runs", 0, 1)

	return nil
}

// FindOpenPullRequest returns the number of the open pull request whose head
// commit is headSHA. It pages through the repository's open PRs and returns
// driven.ErrNoOpenPullRequest when none matches.
func (c *Client) FindOpenPullRequest(ctx context.Context, repoFullName string, headSHA string) (int, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return 0, err
	}

	opts := &gh.PullRequestListOptions{
		State:       "open",
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	for {
		prs, resp, err := c.gh.PullRequests.List(ctx, owner, repo, opts)
		if err != nil {
			return 0, fmt.Errorf("listing open pull requests for %s (page %d): %w", repoFullName, opts.Page, err)
		}

		logRateLimit(resp, repoFullName+"/pulls", opts.Page, len(prs))

		for _, pr := range prs {
			if pr.GetHead().GetSHA() == headSHA {
				return pr.GetNumber(), nil
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return 0, fmt.Errorf("%s@%s: %w", repoFullName, headSHA, driven.ErrNoOpenPullRequest)
}

// FetchPullRequest returns the detail projection for a single PR, including
// GitHub's computed mergeability fields.
func (c *Client) FetchPullRequest(ctx context.Context, repoFullName string, prNumber int) (*model.PullRequestDetail, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	pr, resp, err := c.gh.PullRequests.Get(ctx, owner, repo, prNumber)
	if err != nil {
		return nil, fmt.Errorf("fetching PR detail for %s#%d: %w", repoFullName, prNumber, err)
	}

	logRateLimit(resp, repoFullName+"/pr-detail", 0, 1)

	return mapPullRequestDetail(pr), nil
}

// FetchChangedFiles returns the first page of the PR's file-change list,
// bounded to model.MaxChangedFiles entries to cap analysis payload size.
// Patch excerpts are truncated to model.MaxPatchChars with a marker appended.
func (c *Client) FetchChangedFiles(ctx context.Context, repoFullName string, prNumber int) ([]model.ChangedFile, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	opts := &gh.ListOptions{PerPage: model.MaxChangedFiles}
	files, resp, err := c.gh.PullRequests.ListFiles(ctx, owner, repo, prNumber, opts)
	if err != nil {
		return nil, fmt.Errorf("listing changed files for %s#%d: %w", repoFullName, prNumber, err)
	}

	logRateLimit(resp, repoFullName+"/files", 0, len(files))

	changed := make([]model.ChangedFile, 0, len(files))
	for _, f := range files {
		changed = append(changed, model.ChangedFile{
			Filename:  f.GetFilename(),
			Status:    f.GetStatus(),
			Additions: f.GetAdditions(),
			Deletions: f.GetDeletions(),
			Patch:     truncatePatch(f.GetPatch()),
		})
	}

	return changed, nil
}

// FetchIssueComments retrieves all PR-level comments (from the Issues API),
// oldest first. It handles pagination automatically.
func (c *Client) FetchIssueComments(ctx context.Context, repoFullName string, prNumber int) ([]model.IssueComment, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	opts := &gh.IssueListCommentsOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	}
	var allComments []model.IssueComment

	for {
		comments, resp, err := c.gh.Issues.ListComments(ctx, owner, repo, prNumber, opts)
		if err != nil {
			return nil, fmt.Errorf("listing issue comments for %s#%d (page %d): %w", repoFullName, prNumber, opts.Page, err)
		}

		for _, comment := range comments {
			allComments = append(allComments, model.IssueComment{
				ID:        comment.GetID(),
				Author:    comment.GetUser().GetLogin(),
				Body:      comment.GetBody(),
				CreatedAt: comment.GetCreatedAt().Time,
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allComments, nil
}

// CreateIssueComment creates a top-level (non-diff) comment on a pull request.
func (c *Client) CreateIssueComment(ctx context.Context, repoFullName string, prNumber int, body string) error {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return err
	}

	_, _, err = c.gh.Issues.CreateComment(ctx, owner, repo, prNumber, &gh.IssueComment{
		Body: gh.Ptr(body),
	})
	if err != nil {
		return fmt.Errorf("creating issue comment on %s#%d: %w", repoFullName, prNumber, err)
	}

	return nil
}

// mapActions converts domain check-run actions to go-github API types.
func mapActions(actions []model.CheckRunAction) []*gh.CheckRunAction {
	if len(actions) == 0 {
		return []*gh.CheckRunAction{}
	}

	mapped := make([]*gh.CheckRunAction, 0, len(actions))
	for _, a := range actions {
		mapped = append(mapped, &gh.CheckRunAction{
			Label:       a.Label,
			Description: a.Description,
			Identifier:  a.Identifier,
		})
	}
	return mapped
}

// mapPullRequestDetail converts a go-github PullRequest to the domain detail
// projection. It uses GetXxx() helper methods exclusively to avoid nil
// pointer panics; Mergeable stays a *bool because GitHub's field is tri-state.
func mapPullRequestDetail(pr *gh.PullRequest) *model.PullRequestDetail {
	description := pr.GetBody()
	if description == "" {
		description = "No description provided"
	}
	if len(description) > model.MaxDescriptionChars {
		description = description[:model.MaxDescriptionChars]
	}

	return &model.PullRequestDetail{
		Number:         pr.GetNumber(),
		Title:          pr.GetTitle(),
		Description:    description,
		Author:         pr.GetUser().GetLogin(),
		Branch:         pr.GetHead().GetRef(),
		BaseBranch:     pr.GetBase().GetRef(),
		Additions:      pr.GetAdditions(),
		Deletions:      pr.GetDeletions(),
		ChangedFiles:   pr.GetChangedFiles(),
		Mergeable:      pr.Mergeable,
		MergeableState: pr.GetMergeableState(),
		URL:            pr.GetHTMLURL(),
		CreatedAt:      pr.GetCreatedAt().Time,
		UpdatedAt:      pr.GetUpdatedAt().Time,
	}
}

// truncatePatch bounds a unified-diff excerpt to model.MaxPatchChars,
// appending a marker when content was dropped.
func truncatePatch(patch string) string {
	if len(patch) <= model.MaxPatchChars {
		return patch
	}
	return patch[:model.MaxPatchChars] + "...[truncated]"
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

// splitRepo splits a "owner/repo" string into its two components.
func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}
