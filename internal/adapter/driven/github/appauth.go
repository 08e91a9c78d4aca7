package github

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ericfisherdev/reviewbot/internal/domain/model"
)

const defaultAPIBaseURL = "https://api.github.com"

// JWT assertion lifetime. Issued-at is backdated slightly to absorb clock
// skew between this process and GitHub.
const (
	assertionTTL  = 10 * time.Minute
	assertionSkew = 10 * time.Second
)

// AuthError indicates that the installation token exchange returned a
// non-success status. It carries the upstream status code and response body
// for diagnostics.
type AuthError struct {
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("installation token exchange failed with status %d: %s", e.StatusCode, e.Body)
}

// AppAuth mints installation-scoped bearer tokens for a GitHub App. Each
// exchange builds a fresh RS256-signed JWT assertion and trades it for a
// short-lived installation token. Tokens are not cached.
type AppAuth struct {
	appID          string
	privateKey     *rsa.PrivateKey
	installationID int64
	baseURL        string
	httpClient     *http.Client
	now            func() time.Time
}

// NewAppAuth parses the PEM-encoded RSA private key and returns an AppAuth
// for the given app and installation.
func NewAppAuth(appID string, privateKeyPEM []byte, installationID int64) (*AppAuth, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing GitHub App private key: %w", err)
	}

	return &AppAuth{
		appID:          appID,
		privateKey:     key,
		installationID: installationID,
		baseURL:        defaultAPIBaseURL,
		httpClient:     &http.Client{Timeout: 10 * time.Second},
		now:            time.Now,
	}, nil
}

// WithBaseURL overrides the GitHub API base URL. Intended for testing
// against an httptest server.
func (a *AppAuth) WithBaseURL(baseURL string) *AppAuth {
	a.baseURL = baseURL
	return a
}

// signedJWT builds the App's identity assertion: issuer is the app ID,
// issued-at is backdated by assertionSkew, expiry is assertionTTL out.
func (a *AppAuth) signedJWT() (string, error) {
	now := a.now()

	claims := jwt.RegisteredClaims{
		Issuer:    a.appID,
		IssuedAt:  jwt.NewNumericDate(now.Add(-assertionSkew)),
		ExpiresAt: jwt.NewNumericDate(now.Add(assertionTTL)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(a.privateKey)
	if err != nil {
		return "", fmt.Errorf("signing app JWT: %w", err)
	}
	return signed, nil
}

// InstallationToken exchanges a signed JWT assertion for an installation
// access token. A non-success upstream status yields an *AuthError carrying
// the status code and body.
func (a *AppAuth) InstallationToken(ctx context.Context) (model.InstallationToken, error) {
	assertion, err := a.signedJWT()
	if err != nil {
		return model.InstallationToken{}, err
	}

	url := fmt.Sprintf("%s/app/installations/%d/access_tokens", a.baseURL, a.installationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return model.InstallationToken{}, fmt.Errorf("building token exchange request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+assertion)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return model.InstallationToken{}, fmt.Errorf("exchanging app JWT for installation token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return model.InstallationToken{}, &AuthError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var out struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.InstallationToken{}, fmt.Errorf("decoding installation token response: %w", err)
	}
	if out.Token == "" {
		return model.InstallationToken{}, fmt.Errorf("installation token response contained no token")
	}

	return model.InstallationToken{Token: out.Token, ExpiresAt: out.ExpiresAt}, nil
}
