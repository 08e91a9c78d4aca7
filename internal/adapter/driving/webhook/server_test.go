package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/reviewbot/internal/domain/model"
)

const testSecret = "test-webhook-secret"

// --- Workflow fakes ---

type fakeReview struct {
	published []model.PullRequestEvent
	reviews   []model.CheckRunEvent
}

func (f *fakeReview) PublishReviewButton(_ context.Context, ev model.PullRequestEvent) error {
	f.published = append(f.published, ev)
	return nil
}

func (f *fakeReview) RunReview(_ context.Context, ev model.CheckRunEvent) error {
	f.reviews = append(f.reviews, ev)
	return nil
}

type fakeMerge struct {
	checks []model.CheckRunEvent
}

func (f *fakeMerge) RunMergeCheck(_ context.Context, ev model.CheckRunEvent) error {
	f.checks = append(f.checks, ev)
	return nil
}

func newTestServer(t *testing.T) (*Server, *fakeReview, *fakeMerge) {
	t.Helper()
	review := &fakeReview{}
	merge := &fakeMerge{}
	srv := NewServer(testSecret, review, merge, slog.Default()).WithSynchronousDispatch()
	return srv, review, merge
}

// deliver posts body as the given event type with a valid signature unless
// secret overrides it.
func deliver(t *testing.T, handler http.Handler, event, delivery string, body []byte, secret string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/webhooks", bytes.NewReader(body))
	req.Header.Set(headerEvent, event)
	req.Header.Set(headerDelivery, delivery)
	req.Header.Set(headerSignature, signBody(body, secret))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func pullRequestBody(action string) []byte {
	return fmt.Appendf(nil,
		`{"action":%q,"pull_request":{"number":42,"title":"Add feature X","user":{"login":"alice"},"head":{"sha":"abc123"},"changed_files":3,"additions":10,"deletions":2},"repository":{"full_name":"owner/repo"}}`,
		action)
}

func checkRunBody(action, identifier string) []byte {
	return fmt.Appendf(nil,
		`{"action":%q,"requested_action":{"identifier":%q},"check_run":{"id":77,"head_sha":"abc123","pull_requests":[{"number":42}]},"repository":{"full_name":"owner/repo"}}`,
		action, identifier)
}

func TestStatusEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["status"])
}

func TestWebhook_InvalidSignatureRejected(t *testing.T) {
	srv, review, merge := newTestServer(t)

	rec := deliver(t, srv.Handler(), "pull_request", "d-1", pullRequestBody("opened"), "wrong-secret")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, review.published, "no workflow may be dispatched on signature failure")
	assert.Empty(t, review.reviews)
	assert.Empty(t, merge.checks)
}

func TestWebhook_MissingSignatureRejected(t *testing.T) {
	srv, review, _ := newTestServer(t)

	body := pullRequestBody("opened")
	req := httptest.NewRequest(http.MethodPost, "/webhooks", bytes.NewReader(body))
	req.Header.Set(headerEvent, "pull_request")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, review.published)
}

func TestWebhook_MalformedPayload(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := deliver(t, srv.Handler(), "pull_request", "d-2", []byte(`{not json`), testSecret)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_PullRequestOpenedDispatchesPublish(t *testing.T) {
	srv, review, _ := newTestServer(t)

	rec := deliver(t, srv.Handler(), "pull_request", "d-3", pullRequestBody("opened"), testSecret)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, review.published, 1)

	ev := review.published[0]
	assert.Equal(t, "owner/repo", ev.RepoFullName)
	assert.Equal(t, 42, ev.Number)
	assert.Equal(t, "Add feature X", ev.Title)
	assert.Equal(t, "alice", ev.Author)
	assert.Equal(t, "abc123", ev.HeadSHA)
	assert.Equal(t, 3, ev.ChangedFiles)
}

func TestWebhook_PullRequestSynchronizeDispatchesPublish(t *testing.T) {
	srv, review, _ := newTestServer(t)

	rec := deliver(t, srv.Handler(), "pull_request", "d-4", pullRequestBody("synchronize"), testSecret)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, review.published, 1)
}

func TestWebhook_ReviewButtonDispatchesRunReview(t *testing.T) {
	srv, review, merge := newTestServer(t)

	rec := deliver(t, srv.Handler(), "check_run", "d-5", checkRunBody("requested_action", "review_pr"), testSecret)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, review.reviews, 1)
	assert.Empty(t, merge.checks)

	ev := review.reviews[0]
	assert.Equal(t, "owner/repo", ev.RepoFullName)
	assert.Equal(t, int64(77), ev.CheckRunID)
	assert.Equal(t, "abc123", ev.HeadSHA)
	assert.Equal(t, 42, ev.PRNumber)
	assert.Equal(t, "review_pr", ev.ActionIdentifier)
}

func TestWebhook_MergeButtonDispatchesMergeCheck(t *testing.T) {
	srv, review, merge := newTestServer(t)

	rec := deliver(t, srv.Handler(), "check_run", "d-6", checkRunBody("requested_action", "check_merge"), testSecret)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, merge.checks, 1)
	assert.Empty(t, review.reviews)
}

// TestWebhook_RoutingTotality verifies that every triple not in the dispatch
// table is acknowledged without dispatching any workflow.
func TestWebhook_RoutingTotality(t *testing.T) {
	tests := []struct {
		name  string
		event string
		body  []byte
	}{
		{"push", "push", []byte(`{"ref":"refs/heads/main","repository":{"full_name":"owner/repo"}}`)},
		{"pull_request closed", "pull_request", pullRequestBody("closed")},
		{"check_run created", "check_run", checkRunBody("created", "")},
		{"check_run unknown identifier", "check_run", checkRunBody("requested_action", "dance")},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, review, merge := newTestServer(t)

			rec := deliver(t, srv.Handler(), tt.event, fmt.Sprintf("d-tot-%d", i), tt.body, testSecret)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Empty(t, review.published)
			assert.Empty(t, review.reviews)
			assert.Empty(t, merge.checks)
		})
	}
}

func TestWebhook_DuplicateDeliveryIgnored(t *testing.T) {
	srv, review, _ := newTestServer(t)
	handler := srv.Handler()
	body := pullRequestBody("opened")

	first := deliver(t, handler, "pull_request", "dup-1", body, testSecret)
	second := deliver(t, handler, "pull_request", "dup-1", body, testSecret)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Len(t, review.published, 1, "redelivery with the same delivery id must not dispatch again")
}

func TestWebhook_DistinctDeliveriesBothDispatch(t *testing.T) {
	srv, review, _ := newTestServer(t)
	handler := srv.Handler()
	body := pullRequestBody("synchronize")

	deliver(t, handler, "pull_request", "ida", body, testSecret)
	deliver(t, handler, "pull_request", "idb", body, testSecret)

	assert.Len(t, review.published, 2)
}
