package model

import "time"

// InstallationToken is a short-lived bearer credential scoped to one GitHub
// App installation. Tokens are minted fresh per workflow invocation and are
// not cached across requests.
type InstallationToken struct {
	Token     string
	ExpiresAt time.Time
}
