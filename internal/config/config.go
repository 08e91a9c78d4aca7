// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// GitHub credential acquisition modes.
const (
	AuthModeApp   = "app"   // GitHub App JWT -> installation token exchange.
	AuthModeToken = "token" // Static personal access token.
)

// Analysis-service protocol generations.
const (
	ProtocolCurrent = "current"
	ProtocolLegacy  = "legacy"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	GitHubAuthMode       string
	GitHubAppID          string
	GitHubPrivateKey     []byte
	GitHubInstallationID int64
	GitHubToken          string

	WebhookSecret string
	ListenAddr    string

	LangflowEndpoint string
	LangflowAPIKey   string
	LangflowProtocol string
	ReviewFlowID     string
	MergeFlowID      string
}

// Load reads configuration from environment variables and returns a
// validated Config.
//
// REVIEWBOT_WEBHOOK_SECRET is always required. In the default "app" auth
// mode, REVIEWBOT_GITHUB_APP_ID, REVIEWBOT_GITHUB_INSTALLATION_ID, and a
// private key (REVIEWBOT_GITHUB_PRIVATE_KEY inline, or
// REVIEWBOT_GITHUB_PRIVATE_KEY_PATH; inline wins) are required and missing
// values fail startup. In "token" mode REVIEWBOT_GITHUB_TOKEN is required
// instead. Langflow settings are optional at startup; an analysis call made
// without them fails with a descriptive reason at call time.
func Load() (*Config, error) {
	secret := os.Getenv("REVIEWBOT_WEBHOOK_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("REVIEWBOT_WEBHOOK_SECRET is required")
	}

	authMode := os.Getenv("REVIEWBOT_GITHUB_AUTH")
	if authMode == "" {
		authMode = AuthModeApp
	}
	if authMode != AuthModeApp && authMode != AuthModeToken {
		return nil, fmt.Errorf("REVIEWBOT_GITHUB_AUTH has invalid value %q: expected %q or %q", authMode, AuthModeApp, AuthModeToken)
	}

	cfg := &Config{
		GitHubAuthMode:   authMode,
		WebhookSecret:    secret,
		ListenAddr:       "127.0.0.1:3000",
		LangflowEndpoint: os.Getenv("REVIEWBOT_LANGFLOW_ENDPOINT"),
		LangflowAPIKey:   os.Getenv("REVIEWBOT_LANGFLOW_API_KEY"),
		LangflowProtocol: ProtocolCurrent,
		ReviewFlowID:     os.Getenv("REVIEWBOT_LANGFLOW_REVIEW_FLOW_ID"),
		MergeFlowID:      os.Getenv("REVIEWBOT_LANGFLOW_MERGE_FLOW_ID"),
	}

	if v, ok := os.LookupEnv("REVIEWBOT_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}

	if v, ok := os.LookupEnv("REVIEWBOT_LANGFLOW_API_STYLE"); ok {
		if v != ProtocolCurrent && v != ProtocolLegacy {
			return nil, fmt.Errorf("REVIEWBOT_LANGFLOW_API_STYLE has invalid value %q: expected %q or %q", v, ProtocolCurrent, ProtocolLegacy)
		}
		cfg.LangflowProtocol = v
	}

	switch authMode {
	case AuthModeToken:
		cfg.GitHubToken = os.Getenv("REVIEWBOT_GITHUB_TOKEN")
		if cfg.GitHubToken == "" {
			return nil, fmt.Errorf("REVIEWBOT_GITHUB_TOKEN is required in token auth mode")
		}

	case AuthModeApp:
		cfg.GitHubAppID = os.Getenv("REVIEWBOT_GITHUB_APP_ID")
		if cfg.GitHubAppID == "" {
			return nil, fmt.Errorf("REVIEWBOT_GITHUB_APP_ID is required in app auth mode")
		}

		rawID := os.Getenv("REVIEWBOT_GITHUB_INSTALLATION_ID")
		if rawID == "" {
			return nil, fmt.Errorf("REVIEWBOT_GITHUB_INSTALLATION_ID is required in app auth mode")
		}
		installationID, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("REVIEWBOT_GITHUB_INSTALLATION_ID has invalid value %q: %w", rawID, err)
		}
		cfg.GitHubInstallationID = installationID

		key, err := loadPrivateKey()
		if err != nil {
			return nil, err
		}
		cfg.GitHubPrivateKey = key
	}

	return cfg, nil
}

// loadPrivateKey resolves the App signing key: the inline value takes
// priority over the file path.
func loadPrivateKey() ([]byte, error) {
	if inline := os.Getenv("REVIEWBOT_GITHUB_PRIVATE_KEY"); inline != "" {
		return []byte(inline), nil
	}

	path := os.Getenv("REVIEWBOT_GITHUB_PRIVATE_KEY_PATH")
	if path == "" {
		return nil, fmt.Errorf("one of REVIEWBOT_GITHUB_PRIVATE_KEY or REVIEWBOT_GITHUB_PRIVATE_KEY_PATH is required in app auth mode")
	}

	key, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading private key from %s: %w", path, err)
	}
	return key, nil
}
