package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/ericfisherdev/reviewbot/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.GitHubClientSource = (*AppSource)(nil)
	_ driven.GitHubClientSource = (*TokenSource)(nil)
)

// newTransportClient builds the HTTP client stack shared by both sources:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
func newTransportClient() *http.Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	return github_ratelimit.NewClient(cacheTransport)
}

// AppSource implements GitHubClientSource using GitHub App authentication.
// Every Client call mints a fresh installation token; the token exchange is
// the Credential Provider half, the returned Client the API half.
type AppSource struct {
	auth      *AppAuth
	transport *http.Client
	baseURL   string // Empty in production; set by tests to an httptest URL.
}

// NewAppSource creates a source that exchanges App JWT assertions for
// installation tokens on every invocation.
func NewAppSource(auth *AppAuth) *AppSource {
	return &AppSource{
		auth:      auth,
		transport: newTransportClient(),
	}
}

// WithBaseURL overrides the GitHub REST base URL for the clients this source
// produces. Intended for testing.
func (s *AppSource) WithBaseURL(baseURL string) *AppSource {
	s.baseURL = baseURL
	return s
}

// Client mints an installation token and returns a GitHubClient bound to it.
func (s *AppSource) Client(ctx context.Context) (driven.GitHubClient, error) {
	token, err := s.auth.InstallationToken(ctx)
	if err != nil {
		return nil, err
	}

	ghClient := gh.NewClient(s.transport).WithAuthToken(token.Token)
	if s.baseURL != "" {
		base := s.baseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parsing base URL: %w", err)
		}
		ghClient.BaseURL = u
	}

	return NewClient(ghClient), nil
}

// TokenSource implements GitHubClientSource with a static personal access
// token. Used for local development where no App installation exists.
type TokenSource struct {
	client *Client
}

// NewTokenSource creates a source that always returns the same PAT-backed
// client.
func NewTokenSource(token string) *TokenSource {
	ghClient := gh.NewClient(newTransportClient()).WithAuthToken(token)
	return &TokenSource{client: NewClient(ghClient)}
}

// Client returns the shared PAT-backed client.
func (s *TokenSource) Client(_ context.Context) (driven.GitHubClient, error) {
	return s.client, nil
}
