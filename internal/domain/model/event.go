package model

// PullRequestEvent is the projection of a pull_request webhook payload that
// the review workflow needs to publish the review button. It exists only for
// the duration of one delivery.
type PullRequestEvent struct {
	RepoFullName string
	Number       int
	Title        string
	Author       string
	HeadSHA      string
	ChangedFiles int
	Additions    int
	Deletions    int
}

// CheckRunEvent is the projection of a check_run webhook payload delivered
// when a check-run button is clicked.
type CheckRunEvent struct {
	RepoFullName     string
	CheckRunID       int64
	HeadSHA          string
	PRNumber         int // 0 when the payload carries no associated PR.
	ActionIdentifier string
}
