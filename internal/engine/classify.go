package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"branchsweep/internal/bitbucket"
	"branchsweep/internal/config"
	"branchsweep/internal/state"
)

// dateOnly drops the time-of-day component; inactivity is always compared at
// day granularity.
func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// inactiveDays returns the whole days elapsed between a commit date and today.
func inactiveDays(commitDate, today time.Time) int {
	return int(dateOnly(today).Sub(dateOnly(commitDate)) / (24 * time.Hour))
}

// classifyBranch resolves a branch's latest commit to its date and decides the
// disposition: RETAINED while inactivity is within the threshold (boundary
// inclusive), MARKED FOR DELETION beyond it. A commit date in the future is a
// data-quality condition: inactivity clamps to zero and the branch is retained.
func (e *Engine) classifyBranch(ctx context.Context, pol config.Policy, project, repo string, br bitbucket.Branch, today time.Time) (state.Row, error) {
	commitDate, err := e.client.GetCommitDate(ctx, project, repo, br.LatestCommit)
	if err != nil {
		return state.Row{}, err
	}

	days := inactiveDays(commitDate, today)
	if days < 0 {
		e.log.Warn("commit date is in the future; treating branch as active",
			zap.String("repository", repo),
			zap.String("branch", br.DisplayID),
			zap.Time("commitDate", commitDate))
		days = 0
	}

	status := state.StatusRetained
	if days > pol.ThresholdFor(br.DisplayID) {
		status = state.StatusMarked
	}

	return state.Row{
		Branch:       br.DisplayID,
		Commit:       br.LatestCommit,
		InactiveDays: days,
		Status:       status,
	}, nil
}

// classifyRepo fans out one commit lookup per non-excluded branch and returns
// the classifications in branch-listing order. A branch whose lookup fails is
// dropped from the result set and reported through the partial flag; the rest
// of the batch is unaffected.
func (e *Engine) classifyRepo(ctx context.Context, pol config.Policy, project, repo string, branches []bitbucket.Branch, today time.Time, concurrency int) (rows []state.Row, partial bool) {
	included := make([]bitbucket.Branch, 0, len(branches))
	for _, br := range branches {
		if pol.Excluded(br.DisplayID) {
			e.log.Debug("excluding branch",
				zap.String("repository", repo),
				zap.String("branch", br.DisplayID))
			continue
		}
		included = append(included, br)
	}

	total := len(included)
	results := collectAll(ctx, included, concurrency, func(ctx context.Context, i int, br bitbucket.Branch) (state.Row, error) {
		e.log.Debug("classifying branch",
			zap.String("repository", repo),
			zap.String("branch", br.DisplayID),
			zap.Int("index", i+1),
			zap.Int("total", total))
		return e.classifyBranch(ctx, pol, project, repo, br, today)
	})

	rows = make([]state.Row, 0, len(results))
	for i, res := range results {
		if res.err != nil {
			e.log.Error("branch classification failed",
				zap.String("repository", repo),
				zap.String("branch", included[i].DisplayID),
				zap.Error(res.err))
			partial = true
			continue
		}
		rows = append(rows, res.value)
	}
	return rows, partial
}
