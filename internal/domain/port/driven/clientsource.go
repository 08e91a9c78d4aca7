package driven

import "context"

// GitHubClientSource produces an authenticated GitHubClient for one workflow
// invocation. The credential acquisition strategy behind it (GitHub App
// installation token exchange, or a static personal access token) is selected
// by configuration at startup.
type GitHubClientSource interface {
	Client(ctx context.Context) (GitHubClient, error)
}
