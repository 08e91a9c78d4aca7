package model

import "time"

// PullRequestDetail is a read-only projection of a pull request fetched from
// the GitHub API at workflow time. Never persisted.
type PullRequestDetail struct {
	Number         int
	Title          string
	Description    string
	Author         string
	Branch         string
	BaseBranch     string
	Additions      int
	Deletions      int
	ChangedFiles   int
	Mergeable      *bool // nil while GitHub is still computing mergeability.
	MergeableState string
	URL            string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ChangedFile is one entry of a pull request's file-change list. Patch holds
// a unified-diff excerpt, already truncated to MaxPatchChars by the adapter.
type ChangedFile struct {
	Filename  string
	Status    string
	Additions int
	Deletions int
	Patch     string
}

// IssueComment is a PR-level comment (from the Issues API).
type IssueComment struct {
	ID        int64
	Author    string
	Body      string
	CreatedAt time.Time
}
