package webhook

import (
	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/reviewbot/internal/domain/model"
)

// mapPullRequestEvent projects a go-github pull_request payload onto the
// domain event consumed by the review workflow.
func mapPullRequestEvent(ev *gh.PullRequestEvent) model.PullRequestEvent {
	pr := ev.GetPullRequest()
	return model.PullRequestEvent{
		RepoFullName: ev.GetRepo().GetFullName(),
		Number:       pr.GetNumber(),
		Title:        pr.GetTitle(),
		Author:       pr.GetUser().GetLogin(),
		HeadSHA:      pr.GetHead().GetSHA(),
		ChangedFiles: pr.GetChangedFiles(),
		Additions:    pr.GetAdditions(),
		Deletions:    pr.GetDeletions(),
	}
}

// mapCheckRunEvent projects a go-github check_run payload onto the domain
// event consumed by both button workflows. PRNumber is 0 when the payload
// carries no associated pull request (forks); the workflows then fall back
// to searching open PRs by head SHA.
func mapCheckRunEvent(ev *gh.CheckRunEvent) model.CheckRunEvent {
	run := ev.GetCheckRun()

	prNumber := 0
	if prs := run.PullRequests; len(prs) > 0 {
		prNumber = prs[0].GetNumber()
	}

	identifier := ""
	if ra := ev.GetRequestedAction(); ra != nil {
		identifier = ra.Identifier
	}

	return model.CheckRunEvent{
		RepoFullName:     ev.GetRepo().GetFullName(),
		CheckRunID:       run.GetID(),
		HeadSHA:          run.GetHeadSHA(),
		PRNumber:         prNumber,
		ActionIdentifier: identifier,
	}
}
