package application_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/reviewbot/internal/application"
	"github.com/ericfisherdev/reviewbot/internal/domain/model"
	"github.com/ericfisherdev/reviewbot/internal/domain/port/driven"
)

const (
	testRepo   = "owner/repo"
	testFlowID = "flow-review"
)

// recordedUpdate pairs a check-run update with the run it targeted.
type recordedUpdate struct {
	checkRunID int64
	update     model.CheckRunUpdate
}

// recordedComment pairs a created comment with its PR number.
type recordedComment struct {
	prNumber int
	body     string
}

// fakeGitHub is a hand-rolled driven.GitHubClient double. Zero-value fields
// make every call succeed with empty data; error fields force failures.
type fakeGitHub struct {
	creates  []model.CheckRunCreate
	updates  []recordedUpdate
	comments []recordedComment

	createErr      error
	updateErr      error
	findErr        error
	fetchPRErr     error
	fetchFilesErr  error
	listCommentErr error
	commentErr     error

	foundPRNumber int
	prDetail      *model.PullRequestDetail
	changedFiles  []model.ChangedFile
	issueComments []model.IssueComment
}

func (f *fakeGitHub) CreateCheckRun(_ context.Context, _ string, create model.CheckRunCreate) (int64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.creates = append(f.creates, create)
	return 555, nil
}

func (f *fakeGitHub) UpdateCheckRun(_ context.Context, _ string, checkRunID int64, update model.CheckRunUpdate) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, recordedUpdate{checkRunID: checkRunID, update: update})
	return nil
}

func (f *fakeGitHub) FindOpenPullRequest(_ context.Context, _ string, _ string) (int, error) {
	if f.findErr != nil {
		return 0, f.findErr
	}
	return f.foundPRNumber, nil
}

func (f *fakeGitHub) FetchPullRequest(_ context.Context, _ string, _ int) (*model.PullRequestDetail, error) {
	if f.fetchPRErr != nil {
		return nil, f.fetchPRErr
	}
	if f.prDetail != nil {
		return f.prDetail, nil
	}
	return &model.PullRequestDetail{Number: 42, Title: "Add feature X", Author: "alice"}, nil
}

func (f *fakeGitHub) FetchChangedFiles(_ context.Context, _ string, _ int) ([]model.ChangedFile, error) {
	if f.fetchFilesErr != nil {
		return nil, f.fetchFilesErr
	}
	return f.changedFiles, nil
}

func (f *fakeGitHub) FetchIssueComments(_ context.Context, _ string, _ int) ([]model.IssueComment, error) {
	if f.listCommentErr != nil {
		return nil, f.listCommentErr
	}
	return f.issueComments, nil
}

func (f *fakeGitHub) CreateIssueComment(_ context.Context, _ string, prNumber int, body string) error {
	if f.commentErr != nil {
		return f.commentErr
	}
	f.comments = append(f.comments, recordedComment{prNumber: prNumber, body: body})
	return nil
}

// fakeSource hands out one fixed client, or fails.
type fakeSource struct {
	client driven.GitHubClient
	err    error
}

func (f *fakeSource) Client(_ context.Context) (driven.GitHubClient, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.client, nil
}

// fakeAnalysis records payloads and returns a fixed result.
type fakeAnalysis struct {
	result   model.AnalysisResult
	payloads []any
	flowIDs  []string
}

func (f *fakeAnalysis) Run(_ context.Context, payload any, flowID string) model.AnalysisResult {
	f.payloads = append(f.payloads, payload)
	f.flowIDs = append(f.flowIDs, flowID)
	return f.result
}

func prOpenedEvent() model.PullRequestEvent {
	return model.PullRequestEvent{
		RepoFullName: testRepo,
		Number:       42,
		Title:        "Add feature X",
		Author:       "alice",
		HeadSHA:      "abc123",
		ChangedFiles: 3,
		Additions:    10,
		Deletions:    2,
	}
}

func reviewClickEvent() model.CheckRunEvent {
	return model.CheckRunEvent{
		RepoFullName:     testRepo,
		CheckRunID:       555,
		HeadSHA:          "abc123",
		PRNumber:         42,
		ActionIdentifier: model.ActionReviewPR,
	}
}

func TestPublishReviewButton(t *testing.T) {
	github := &fakeGitHub{}
	svc := application.NewReviewService(&fakeSource{client: github}, &fakeAnalysis{}, testFlowID, slog.Default())

	err := svc.PublishReviewButton(t.Context(), prOpenedEvent())
	require.NoError(t, err)
	require.Len(t, github.creates, 1)

	create := github.creates[0]
	assert.Equal(t, model.CheckName, create.Name)
	assert.Equal(t, "abc123", create.HeadSHA)
	assert.Equal(t, model.CheckStatusCompleted, create.Status)
	assert.Equal(t, model.CheckConclusionNeutral, create.Conclusion)
	assert.Equal(t, "AI Review Available", create.Title)
	assert.Contains(t, create.Text, "Title: Add feature X")
	assert.Contains(t, create.Text, "Author: alice")
	assert.Contains(t, create.Text, "Additions: +10")

	require.Len(t, create.Actions, 1)
	assert.Equal(t, model.ActionReviewPR, create.Actions[0].Identifier)
	assert.Equal(t, "Review PR", create.Actions[0].Label)
}

func TestPublishReviewButton_ClientError(t *testing.T) {
	svc := application.NewReviewService(&fakeSource{err: errors.New("no credentials")}, &fakeAnalysis{}, testFlowID, slog.Default())

	err := svc.PublishReviewButton(t.Context(), prOpenedEvent())
	assert.Error(t, err)
}

func TestRunReview_HappyPath(t *testing.T) {
	github := &fakeGitHub{
		changedFiles: []model.ChangedFile{
			{Filename: "main.go", Status: "modified", Additions: 5, Deletions: 1, Patch: "@@ diff @@"},
		},
	}
	analysis := &fakeAnalysis{result: model.AnalysisResult{OK: true, Message: "Looks good"}}
	svc := application.NewReviewService(&fakeSource{client: github}, analysis, testFlowID, slog.Default())

	err := svc.RunReview(t.Context(), reviewClickEvent())
	require.NoError(t, err)

	// First update flips the run to in-progress, second carries the verdict.
	require.Len(t, github.updates, 2)

	progress := github.updates[0]
	assert.Equal(t, int64(555), progress.checkRunID)
	assert.Equal(t, model.CheckStatusInProgress, progress.update.Status)
	assert.Empty(t, progress.update.Conclusion)

	final := github.updates[1].update
	assert.Equal(t, model.CheckStatusCompleted, final.Status)
	assert.Equal(t, model.CheckConclusionNeutral, final.Conclusion)
	assert.Equal(t, "AI Review Complete", final.Title)
	assert.Equal(t, "Looks good", final.Text)
	require.Len(t, final.Actions, 1)
	assert.Equal(t, model.ActionCheckMerge, final.Actions[0].Identifier)

	require.Len(t, github.comments, 1)
	assert.Equal(t, 42, github.comments[0].prNumber)
	assert.Contains(t, github.comments[0].body, model.ReviewMarker)
	assert.Contains(t, github.comments[0].body, "Looks good")

	require.Len(t, analysis.payloads, 1)
	assert.Equal(t, []string{testFlowID}, analysis.flowIDs)

	request, ok := analysis.payloads[0].(model.ReviewAnalysisRequest)
	require.True(t, ok)
	assert.Equal(t, "Add feature X", request.Title)
	assert.Equal(t, 1, request.Stats.TotalFiles)
	require.Len(t, request.Files, 1)
	assert.Equal(t, "main.go", request.Files[0].Filename)
}

func TestRunReview_FallsBackToHeadSHASearch(t *testing.T) {
	github := &fakeGitHub{foundPRNumber: 7}
	analysis := &fakeAnalysis{result: model.AnalysisResult{OK: true, Message: "ok"}}
	svc := application.NewReviewService(&fakeSource{client: github}, analysis, testFlowID, slog.Default())

	ev := reviewClickEvent()
	ev.PRNumber = 0 // fork payloads omit the PR reference

	err := svc.RunReview(t.Context(), ev)
	require.NoError(t, err)

	require.Len(t, github.comments, 1)
	assert.Equal(t, 7, github.comments[0].prNumber)
}

func TestRunReview_MissingPRMarksFailed(t *testing.T) {
	github := &fakeGitHub{findErr: driven.ErrNoOpenPullRequest}
	svc := application.NewReviewService(&fakeSource{client: github}, &fakeAnalysis{}, testFlowID, slog.Default())

	ev := reviewClickEvent()
	ev.PRNumber = 0

	err := svc.RunReview(t.Context(), ev)
	require.Error(t, err)

	// in-progress update, then the failure transition
	require.Len(t, github.updates, 2)
	failed := github.updates[1].update
	assert.Equal(t, model.CheckStatusCompleted, failed.Status)
	assert.Equal(t, model.CheckConclusionFailure, failed.Conclusion)
	assert.Equal(t, "AI Review Failed", failed.Title)
	assert.Contains(t, failed.Text, "Cannot find PR for head SHA abc123")
	assert.Empty(t, github.comments)
}

func TestRunReview_AnalysisFailureMarksFailed(t *testing.T) {
	github := &fakeGitHub{}
	analysis := &fakeAnalysis{result: model.AnalysisResult{OK: false, Reason: "analysis service returned 500: boom"}}
	svc := application.NewReviewService(&fakeSource{client: github}, analysis, testFlowID, slog.Default())

	err := svc.RunReview(t.Context(), reviewClickEvent())
	require.Error(t, err)

	require.Len(t, github.updates, 2)
	failed := github.updates[1].update
	assert.Equal(t, model.CheckConclusionFailure, failed.Conclusion)
	assert.Contains(t, failed.Text, "boom")
	assert.Empty(t, github.comments, "no comment is posted on failure")
}

func TestRunReview_ProgressUpdateFailureDoesNotAbort(t *testing.T) {
	// Only the first update fails; the fake clears the error after one use.
	github := &failOnceGitHub{fakeGitHub: fakeGitHub{}}
	analysis := &fakeAnalysis{result: model.AnalysisResult{OK: true, Message: "fine"}}
	svc := application.NewReviewService(&fakeSource{client: github}, analysis, testFlowID, slog.Default())

	err := svc.RunReview(t.Context(), reviewClickEvent())
	require.NoError(t, err)

	require.Len(t, github.updates, 1, "the final update still lands")
	assert.Equal(t, model.CheckStatusCompleted, github.updates[0].update.Status)
	assert.Len(t, github.comments, 1)
}

func TestRunReview_RepeatedInvocationIsStable(t *testing.T) {
	github := &fakeGitHub{}
	analysis := &fakeAnalysis{result: model.AnalysisResult{OK: true, Message: "Looks good"}}
	svc := application.NewReviewService(&fakeSource{client: github}, analysis, testFlowID, slog.Default())

	require.NoError(t, svc.RunReview(t.Context(), reviewClickEvent()))
	require.NoError(t, svc.RunReview(t.Context(), reviewClickEvent()))

	// Two full passes: the final updates are identical full replacements, and
	// each pass posts its own comment.
	require.Len(t, github.updates, 4)
	assert.Equal(t, github.updates[1].update, github.updates[3].update)
	assert.Len(t, github.comments, 2)
}

func TestRunReview_LongMessageTruncated(t *testing.T) {
	long := make([]byte, model.MaxCheckRunText+500)
	for i := range long {
		long[i] = 'm'
	}

	github := &fakeGitHub{}
	analysis := &fakeAnalysis{result: model.AnalysisResult{OK: true, Message: string(long)}}
	svc := application.NewReviewService(&fakeSource{client: github}, analysis, testFlowID, slog.Default())

	err := svc.RunReview(t.Context(), reviewClickEvent())
	require.NoError(t, err)

	require.Len(t, github.updates, 2)
	assert.Len(t, github.updates[1].update.Text, model.MaxCheckRunText)

	require.Len(t, github.comments, 1)
	assert.Len(t, github.comments[0].body, model.MaxCommentChars)
}

// failOnceGitHub fails the first UpdateCheckRun call and succeeds afterwards.
type failOnceGitHub struct {
	fakeGitHub
	failed bool
}

func (f *failOnceGitHub) UpdateCheckRun(ctx context.Context, repo string, checkRunID int64, update model.CheckRunUpdate) error {
	if !f.failed {
		f.failed = true
		return errors.New("transient github error")
	}
	return f.fakeGitHub.UpdateCheckRun(ctx, repo, checkRunID, update)
}
