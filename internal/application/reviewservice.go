// Package application contains the workflow services driven by inbound
// webhook events. Services depend only on port interfaces.
package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/reviewbot/internal/domain/model"
	"github.com/ericfisherdev/reviewbot/internal/domain/port/driven"
)

// ReviewService implements the review workflow: publishing the review button
// when a pull request is opened or updated, and running the analysis when
// the button is clicked.
type ReviewService struct {
	clients  driven.GitHubClientSource
	analysis driven.AnalysisClient
	flowID   string
	logger   *slog.Logger
}

// NewReviewService creates a ReviewService. flowID selects the analysis
// pipeline used for code review.
func NewReviewService(clients driven.GitHubClientSource, analysis driven.AnalysisClient, flowID string, logger *slog.Logger) *ReviewService {
	return &ReviewService{
		clients:  clients,
		analysis: analysis,
		flowID:   flowID,
		logger:   logger,
	}
}

// PublishReviewButton creates the neutral, completed check run carrying the
// review action button. Called on pull_request opened/synchronize; each call
// replaces the check for the new head SHA.
func (s *ReviewService) PublishReviewButton(ctx context.Context, ev model.PullRequestEvent) error {
	client, err := s.clients.Client(ctx)
	if err != nil {
		return fmt.Errorf("acquiring github client: %w", err)
	}

	_, err = client.CreateCheckRun(ctx, ev.RepoFullName, model.CheckRunCreate{
		Name:       model.CheckName,
		HeadSHA:    ev.HeadSHA,
		Status:     model.CheckStatusCompleted,
		Conclusion: model.CheckConclusionNeutral,
		Title:      "AI Review Available",
		Summary:    "Click the button below to start AI-powered code review",
		Text: fmt.Sprintf(
			"**PR Details:**\n- Title: %s\n- Author: %s\n- Files changed: %d\n- Additions: +%d\n- Deletions: -%d",
			ev.Title, ev.Author, ev.ChangedFiles, ev.Additions, ev.Deletions,
		),
		Actions: []model.CheckRunAction{{
			Label:       "Review PR",
			Description: "Trigger AI code review",
			Identifier:  model.ActionReviewPR,
		}},
	})
	if err != nil {
		return fmt.Errorf("publishing review button for %s#%d: %w", ev.RepoFullName, ev.Number, err)
	}

	s.logger.Info("review button published",
		"repo", ev.RepoFullName,
		"pr", ev.Number,
		"head_sha", ev.HeadSHA,
	)
	return nil
}

// RunReview executes the review workflow for a clicked review button: flip
// the check run to in-progress, gather the PR summary and diff, submit it to
// the analysis service, and publish the result as a check-run update plus a
// PR comment. Any failure after the client is acquired performs exactly one
// corrective action (marking the check run failed) and stops.
func (s *ReviewService) RunReview(ctx context.Context, ev model.CheckRunEvent) error {
	client, err := s.clients.Client(ctx)
	if err != nil {
		return fmt.Errorf("acquiring github client: %w", err)
	}

	// Progress ping is cosmetic; a failure here must not abort the review.
	if err := client.UpdateCheckRun(ctx, ev.RepoFullName, ev.CheckRunID, model.CheckRunUpdate{
		Status:  model.CheckStatusInProgress,
		Title:   "AI Review in Progress",
		Summary: "Analyzing your code...",
		Text:    "Please wait while the analysis service reviews your pull request.",
	}); err != nil {
		s.logger.Warn("failed to mark check run in progress",
			"repo", ev.RepoFullName,
			"check_run_id", ev.CheckRunID,
			"error", err,
		)
	}

	prNumber, err := resolvePullRequest(ctx, client, ev)
	if err != nil {
		s.markFailed(ctx, client, ev, fmt.Sprintf("Cannot find PR for head SHA %s", ev.HeadSHA))
		return fmt.Errorf("resolving PR for %s@%s: %w", ev.RepoFullName, ev.HeadSHA, err)
	}

	pr, err := client.FetchPullRequest(ctx, ev.RepoFullName, prNumber)
	if err != nil {
		s.markFailed(ctx, client, ev, fmt.Sprintf("Error: %v", err))
		return fmt.Errorf("fetching PR %s#%d: %w", ev.RepoFullName, prNumber, err)
	}

	files, err := client.FetchChangedFiles(ctx, ev.RepoFullName, prNumber)
	if err != nil {
		s.markFailed(ctx, client, ev, fmt.Sprintf("Error: %v", err))
		return fmt.Errorf("fetching changed files for %s#%d: %w", ev.RepoFullName, prNumber, err)
	}

	result := s.analysis.Run(ctx, buildReviewRequest(pr, files), s.flowID)
	if !result.OK {
		s.markFailed(ctx, client, ev, fmt.Sprintf("Error: %s", result.Reason))
		return fmt.Errorf("analysis failed for %s#%d: %s", ev.RepoFullName, prNumber, result.Reason)
	}

	// Publish the result. Update and comment are independent side effects;
	// a failed update is logged and does not suppress the comment.
	if err := client.UpdateCheckRun(ctx, ev.RepoFullName, ev.CheckRunID, model.CheckRunUpdate{
		Status:     model.CheckStatusCompleted,
		Conclusion: model.CheckConclusionNeutral,
		Title:      "AI Review Complete",
		Summary:    "Code review completed successfully",
		Text:       truncate(result.Message, model.MaxCheckRunText),
		Actions: []model.CheckRunAction{{
			Label:       "Check Merge Readiness",
			Description: "Analyze if PR is ready to merge",
			Identifier:  model.ActionCheckMerge,
		}},
	}); err != nil {
		s.logger.Error("failed to publish review result to check run",
			"repo", ev.RepoFullName,
			"check_run_id", ev.CheckRunID,
			"error", err,
		)
	}

	comment := fmt.Sprintf(
		"## %s\n\n%s\n\n---\n*Analysis powered by Langflow AI. Click \"Check Merge Readiness\" above for final assessment.*",
		model.ReviewMarker, result.Message,
	)
	if err := client.CreateIssueComment(ctx, ev.RepoFullName, prNumber, truncate(comment, model.MaxCommentChars)); err != nil {
		s.logger.Error("failed to post review comment",
			"repo", ev.RepoFullName,
			"pr", prNumber,
			"error", err,
		)
	}

	s.logger.Info("review completed",
		"repo", ev.RepoFullName,
		"pr", prNumber,
		"check_run_id", ev.CheckRunID,
	)
	return nil
}

// markFailed transitions the check run to completed/failure. Best effort:
// the workflow is already aborting, so a failure here is only logged.
func (s *ReviewService) markFailed(ctx context.Context, client driven.GitHubClient, ev model.CheckRunEvent, text string) {
	if err := client.UpdateCheckRun(ctx, ev.RepoFullName, ev.CheckRunID, model.CheckRunUpdate{
		Status:     model.CheckStatusCompleted,
		Conclusion: model.CheckConclusionFailure,
		Title:      "AI Review Failed",
		Summary:    "There was an error during the review process",
		Text:       truncate(text, model.MaxCheckRunText),
	}); err != nil {
		s.logger.Error("failed to mark check run failed",
			"repo", ev.RepoFullName,
			"check_run_id", ev.CheckRunID,
			"error", err,
		)
	}
}

// buildReviewRequest assembles the analysis payload from the PR detail and
// its (already truncated) file-change list.
func buildReviewRequest(pr *model.PullRequestDetail, files []model.ChangedFile) model.ReviewAnalysisRequest {
	analysisFiles := make([]model.AnalysisFile, 0, len(files))
	for _, f := range files {
		analysisFiles = append(analysisFiles, model.AnalysisFile{
			Filename:  f.Filename,
			Status:    f.Status,
			Additions: f.Additions,
			Deletions: f.Deletions,
			Patch:     f.Patch,
		})
	}

	return model.ReviewAnalysisRequest{
		Title:       pr.Title,
		Description: pr.Description,
		Author:      pr.Author,
		Branch:      pr.Branch,
		Files:       analysisFiles,
		Stats: model.AnalysisStats{
			TotalFiles: len(files),
			Additions:  pr.Additions,
			Deletions:  pr.Deletions,
		},
	}
}

// resolvePullRequest prefers the PR number embedded in the check-run payload
// and falls back to searching open pull requests by head SHA.
func resolvePullRequest(ctx context.Context, client driven.GitHubClient, ev model.CheckRunEvent) (int, error) {
	if ev.PRNumber > 0 {
		return ev.PRNumber, nil
	}
	return client.FindOpenPullRequest(ctx, ev.RepoFullName, ev.HeadSHA)
}

// truncate bounds s to max bytes.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
