// Package model contains the pure domain types shared by the application
// services and adapters. Types here have no dependencies on adapters or
// external libraries.
package model

// CheckName is the name under which the bot publishes its check run.
// Exactly one open check run exists per (repo, head SHA, CheckName);
// both workflows update that run in place and never create a second one.
const CheckName = "AI Code Review"

// Action identifiers attached to check-run buttons. GitHub echoes the
// identifier back in the check_run.requested_action webhook payload.
const (
	ActionReviewPR   = "review_pr"
	ActionCheckMerge = "check_merge"
)

// ReviewMarker is the substring used to locate the bot's prior review
// comment in a PR's comment history. It is the only cross-invocation state
// the system reads back from GitHub.
const ReviewMarker = "AI Code Review Results"

// Payload size limits. Patch excerpts and output text are truncated to keep
// analysis-service payloads and check-run updates within API limits.
const (
	MaxChangedFiles     = 10
	MaxPatchChars       = 1000
	MaxDescriptionChars = 500
	MaxCheckRunText     = 1000
	MaxCommentChars     = 2000
)

// CheckStatus is the lifecycle status of a check run.
type CheckStatus string

const (
	CheckStatusQueued     CheckStatus = "queued"
	CheckStatusInProgress CheckStatus = "in_progress"
	CheckStatusCompleted  CheckStatus = "completed"
)

// CheckConclusion is the terminal outcome of a completed check run.
type CheckConclusion string

const (
	CheckConclusionNeutral CheckConclusion = "neutral"
	CheckConclusionSuccess CheckConclusion = "success"
	CheckConclusionFailure CheckConclusion = "failure"
)

// CheckRunAction is a clickable button rendered on a check run.
type CheckRunAction struct {
	Label       string
	Description string
	Identifier  string
}

// CheckRunCreate describes a new check run attached to a commit.
type CheckRunCreate struct {
	Name       string
	HeadSHA    string
	Status     CheckStatus
	Conclusion CheckConclusion
	Title      string
	Summary    string
	Text       string
	Actions    []CheckRunAction
}

// CheckRunUpdate fully replaces a check run's status, output, and actions.
// Full replacement (rather than partial patching) keeps repeated deliveries
// of the same webhook safe to apply twice.
type CheckRunUpdate struct {
	Status     CheckStatus
	Conclusion CheckConclusion // Empty while Status is not completed.
	Title      string
	Summary    string
	Text       string
	Actions    []CheckRunAction
}
