package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ericfisherdev/reviewbot/internal/domain/model"
	"github.com/ericfisherdev/reviewbot/internal/domain/port/driven"
)

// noPreviousReview is the placeholder submitted to the analysis service when
// no prior review comment is found in the PR's comment history.
const noPreviousReview = "No previous review found"

// MergeService implements the merge-check workflow, the terminal stage of
// the button pair: it combines the PR's computed mergeability with the prior
// review comment and publishes a pass/neutral verdict.
//
// Unlike the review workflow, errors here abort without a failure-state
// check-run transition; they are logged only.
type MergeService struct {
	clients  driven.GitHubClientSource
	analysis driven.AnalysisClient
	flowID   string
	logger   *slog.Logger
}

// NewMergeService creates a MergeService. flowID selects the analysis
// pipeline used for merge-readiness assessment.
func NewMergeService(clients driven.GitHubClientSource, analysis driven.AnalysisClient, flowID string, logger *slog.Logger) *MergeService {
	return &MergeService{
		clients:  clients,
		analysis: analysis,
		flowID:   flowID,
		logger:   logger,
	}
}

// RunMergeCheck executes the merge-check workflow for a clicked merge
// button. The resulting check run carries no further action button.
func (s *MergeService) RunMergeCheck(ctx context.Context, ev model.CheckRunEvent) error {
	client, err := s.clients.Client(ctx)
	if err != nil {
		return fmt.Errorf("acquiring github client: %w", err)
	}

	prNumber, err := resolvePullRequest(ctx, client, ev)
	if err != nil {
		return fmt.Errorf("resolving PR for %s@%s: %w", ev.RepoFullName, ev.HeadSHA, err)
	}

	pr, err := client.FetchPullRequest(ctx, ev.RepoFullName, prNumber)
	if err != nil {
		return fmt.Errorf("fetching PR %s#%d: %w", ev.RepoFullName, prNumber, err)
	}

	comments, err := client.FetchIssueComments(ctx, ev.RepoFullName, prNumber)
	if err != nil {
		return fmt.Errorf("listing comments for %s#%d: %w", ev.RepoFullName, prNumber, err)
	}

	result := s.analysis.Run(ctx, model.MergeAnalysisRequest{
		Title:          pr.Title,
		Description:    pr.Description,
		Author:         pr.Author,
		Mergeable:      pr.Mergeable,
		MergeableState: pr.MergeableState,
		PreviousReview: latestReviewComment(comments),
	}, s.flowID)
	if !result.OK {
		return fmt.Errorf("merge analysis failed for %s#%d: %s", ev.RepoFullName, prNumber, result.Reason)
	}

	ready := strings.Contains(strings.ToLower(result.Message), "ready")

	conclusion := model.CheckConclusionNeutral
	title := "Not Ready to Merge"
	if ready {
		conclusion = model.CheckConclusionSuccess
		title = "Ready to Merge!"
	}

	if err := client.UpdateCheckRun(ctx, ev.RepoFullName, ev.CheckRunID, model.CheckRunUpdate{
		Status:     model.CheckStatusCompleted,
		Conclusion: conclusion,
		Title:      title,
		Summary:    "Merge readiness analysis completed",
		Text:       truncate(result.Message, model.MaxCheckRunText),
	}); err != nil {
		return fmt.Errorf("publishing merge verdict for %s: %w", ev.RepoFullName, err)
	}

	comment := fmt.Sprintf(
		"## Merge Readiness Analysis\n\n%s\n\n---\n*Final assessment by Langflow AI.*",
		result.Message,
	)
	if err := client.CreateIssueComment(ctx, ev.RepoFullName, prNumber, truncate(comment, model.MaxCommentChars)); err != nil {
		return fmt.Errorf("posting merge comment on %s#%d: %w", ev.RepoFullName, prNumber, err)
	}

	s.logger.Info("merge check completed",
		"repo", ev.RepoFullName,
		"pr", prNumber,
		"ready", ready,
	)
	return nil
}

// latestReviewComment returns the body of the most recent comment containing
// the review marker, or the noPreviousReview placeholder.
func latestReviewComment(comments []model.IssueComment) string {
	var found *model.IssueComment
	for i := range comments {
		c := comments[i]
		if !strings.Contains(c.Body, model.ReviewMarker) {
			continue
		}
		if found == nil || !c.CreatedAt.Before(found.CreatedAt) {
			found = &c
		}
	}
	if found == nil {
		return noPreviousReview
	}
	return found.Body
}
