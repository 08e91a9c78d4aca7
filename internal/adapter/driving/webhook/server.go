// Package webhook implements the inbound HTTP surface: signature
// verification, delivery dedupe, and the event dispatch table that routes
// verified GitHub webhook deliveries to the workflow services.
package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/reviewbot/internal/domain/model"
)

// maxBodyBytes caps inbound webhook payloads.
const maxBodyBytes = 1 << 20 // 1 MiB

// GitHub webhook headers.
const (
	headerEvent     = "X-GitHub-Event"
	headerDelivery  = "X-GitHub-Delivery"
	headerSignature = "X-Hub-Signature-256"
)

// ReviewWorkflow is the driving-side view of the review service.
type ReviewWorkflow interface {
	PublishReviewButton(ctx context.Context, ev model.PullRequestEvent) error
	RunReview(ctx context.Context, ev model.CheckRunEvent) error
}

// MergeWorkflow is the driving-side view of the merge-check service.
type MergeWorkflow interface {
	RunMergeCheck(ctx context.Context, ev model.CheckRunEvent) error
}

// Server is the inbound webhook HTTP handler. The response to GitHub is
// written as soon as a delivery is verified and routed; the dispatched
// workflow runs on its own goroutine with a detached context so slow
// analysis calls cannot make GitHub treat the delivery as failed.
type Server struct {
	secret     string
	review     ReviewWorkflow
	merge      MergeWorkflow
	logger     *slog.Logger
	deliveries *deliveryCache
	sync       bool
}

// NewServer creates a webhook server dispatching to the given workflows.
func NewServer(secret string, review ReviewWorkflow, merge MergeWorkflow, logger *slog.Logger) *Server {
	return &Server{
		secret:     secret,
		review:     review,
		merge:      merge,
		logger:     logger,
		deliveries: newDeliveryCache(),
	}
}

// WithSynchronousDispatch makes workflow dispatch run inline with the
// request instead of on a goroutine. Intended for testing.
func (s *Server) WithSynchronousDispatch() *Server {
	s.sync = true
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleStatus)
	r.Post("/webhooks", s.handleWebhook)

	return r
}

// loggingMiddleware logs HTTP requests (no body content).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// handleStatus is the liveness probe.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "reviewbot is running"})
}

// handleWebhook verifies, dedupes, and routes one webhook delivery. The
// 200 acknowledgment is independent of the dispatched workflow's outcome.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	// The raw bytes must be consumed unparsed: the signature covers the
	// exact body, and re-serialization could change byte layout.
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	event := r.Header.Get(headerEvent)
	delivery := r.Header.Get(headerDelivery)

	if !VerifySignature(body, r.Header.Get(headerSignature), s.secret) {
		s.logger.Warn("webhook signature verification failed",
			"event", event,
			"delivery", delivery,
		)
		s.respondError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	if s.deliveries.Seen(delivery) {
		s.logger.Info("duplicate delivery ignored", "event", event, "delivery", delivery)
		s.respondJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}

	payload, err := gh.ParseWebHook(event, body)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "malformed payload")
		return
	}

	s.route(event, delivery, payload)
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// route is the dispatch table: (event, action, identifier) triples not
// listed here are logged and ignored with no side effect.
func (s *Server) route(event, delivery string, payload any) {
	switch ev := payload.(type) {
	case *gh.PullRequestEvent:
		action := ev.GetAction()
		if action != "opened" && action != "synchronize" {
			s.logIgnored(event, action, "", delivery)
			return
		}
		mapped := mapPullRequestEvent(ev)
		s.dispatch("publish_review_button", delivery, func(ctx context.Context) error {
			return s.review.PublishReviewButton(ctx, mapped)
		})

	case *gh.CheckRunEvent:
		if ev.GetAction() != "requested_action" {
			s.logIgnored(event, ev.GetAction(), "", delivery)
			return
		}
		mapped := mapCheckRunEvent(ev)
		switch mapped.ActionIdentifier {
		case model.ActionReviewPR:
			s.dispatch("run_review", delivery, func(ctx context.Context) error {
				return s.review.RunReview(ctx, mapped)
			})
		case model.ActionCheckMerge:
			s.dispatch("run_merge_check", delivery, func(ctx context.Context) error {
				return s.merge.RunMergeCheck(ctx, mapped)
			})
		default:
			s.logIgnored(event, ev.GetAction(), mapped.ActionIdentifier, delivery)
		}

	default:
		s.logIgnored(event, "", "", delivery)
	}
}

// dispatch runs a workflow detached from the request. Workflow errors never
// propagate to the HTTP response; they surface only as check-run state and
// log entries.
func (s *Server) dispatch(name, delivery string, fn func(ctx context.Context) error) {
	run := func() {
		if err := fn(context.Background()); err != nil {
			s.logger.Error("workflow failed",
				"workflow", name,
				"delivery", delivery,
				"error", err,
			)
		}
	}

	if s.sync {
		run()
		return
	}
	go run()
}

func (s *Server) logIgnored(event, action, identifier, delivery string) {
	s.logger.Info("event ignored",
		"event", event,
		"action", action,
		"identifier", identifier,
		"delivery", delivery,
	)
}

// respondJSON sends a JSON response with the given status code.
func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// respondError sends a JSON error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
