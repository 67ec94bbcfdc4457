package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"branchsweep/internal/bitbucket"
	"branchsweep/internal/config"
	"branchsweep/internal/state"
)

// reconcileBranch replays one persisted classification against the current
// live branch list and, when the branch is still stale, performs the
// destructive delete sequence. Per flagged branch the states are
// PENDING -> {STILL_STALE, RECOVERED} -> {DELETED, RETAINED}.
//
// Drift detection: if the live commit reference matches the one recorded at
// classification time, the stored inactivity is reused without a second
// commit lookup. A different reference means new commits arrived; exactly one
// fresh lookup recomputes inactivity against today.
func (e *Engine) reconcileBranch(ctx context.Context, pol config.Policy, project, repo string, row state.Row, live map[string]bitbucket.Branch, restrictions []bitbucket.Restriction, today time.Time, dryRun bool) (state.Row, error) {
	current, ok := live[row.Branch]
	if !ok {
		// The branch vanished between the two phases. Nothing to delete;
		// leaving the persisted status terminal flags the defect in reports.
		e.log.Warn("persisted branch missing from live branch list",
			zap.String("repository", repo),
			zap.String("branch", row.Branch))
		return row, nil
	}

	days := row.InactiveDays
	commit := row.Commit
	if current.LatestCommit != row.Commit {
		commitDate, err := e.client.GetCommitDate(ctx, project, repo, current.LatestCommit)
		if err != nil {
			return row, fmt.Errorf("recompute inactivity for %s: %w", row.Branch, err)
		}
		days = inactiveDays(commitDate, today)
		if days < 0 {
			e.log.Warn("commit date is in the future; treating branch as active",
				zap.String("repository", repo),
				zap.String("branch", row.Branch),
				zap.Time("commitDate", commitDate))
			days = 0
		}
		commit = current.LatestCommit
	}

	out := state.Row{
		Branch:       row.Branch,
		Commit:       commit,
		InactiveDays: days,
		Status:       state.StatusRetained,
	}

	// Deletion needs both: still stale now, and flagged at classification
	// time. A branch that recovered via new commits is retained even though
	// it was previously marked.
	if days <= pol.ThresholdFor(row.Branch) || row.Status != state.StatusMarked {
		return out, nil
	}

	if dryRun {
		out.Status = state.StatusMarked
		return out, nil
	}

	if err := e.deleteBranch(ctx, project, repo, out.Branch, out.Commit, restrictions); err != nil {
		return row, err
	}
	out.Status = state.StatusDeleted
	return out, nil
}

// deleteBranch runs the strictly ordered destructive sequence: every
// permission rule matching the branch's display name is removed first, then
// the branch itself. A restriction delete that fails with anything other than
// "not found" aborts before the branch delete is ever attempted.
func (e *Engine) deleteBranch(ctx context.Context, project, repo, branch, commit string, restrictions []bitbucket.Restriction) error {
	for _, r := range restrictions {
		if r.Matcher.DisplayID != branch {
			continue
		}
		if err := e.client.DeleteRestriction(ctx, project, repo, r.ID); err != nil {
			if errors.Is(err, bitbucket.ErrNotFound) {
				continue
			}
			return fmt.Errorf("delete branch permission %d for %s: %w", r.ID, branch, err)
		}
		e.log.Debug("deleted branch permission",
			zap.String("repository", repo),
			zap.String("branch", branch),
			zap.Int64("restriction", r.ID))
	}

	if err := e.client.DeleteBranch(ctx, project, repo, branch, commit); err != nil {
		return fmt.Errorf("delete branch %s: %w", branch, err)
	}
	return nil
}

// reconcileRepo replays every persisted row for one repository. Failures are
// per-branch: a failed delete leaves that branch flagged and the rest of the
// batch proceeds.
func (e *Engine) reconcileRepo(ctx context.Context, pol config.Policy, project, repo string, rows []state.Row, branches []bitbucket.Branch, restrictions []bitbucket.Restriction, today time.Time, concurrency int, dryRun bool) (outcomes []state.Row, partial bool) {
	live := make(map[string]bitbucket.Branch, len(branches))
	for _, br := range branches {
		live[br.DisplayID] = br
	}

	total := len(rows)
	results := collectAll(ctx, rows, concurrency, func(ctx context.Context, i int, row state.Row) (state.Row, error) {
		e.log.Debug("reconciling branch",
			zap.String("repository", repo),
			zap.String("branch", row.Branch),
			zap.Int("index", i+1),
			zap.Int("total", total))
		return e.reconcileBranch(ctx, pol, project, repo, row, live, restrictions, today, dryRun)
	})

	outcomes = make([]state.Row, 0, len(results))
	for i, res := range results {
		if res.err != nil {
			e.log.Error("branch deletion failed",
				zap.String("repository", repo),
				zap.String("branch", rows[i].Branch),
				zap.Error(res.err))
			partial = true
			// The failed branch stays in the report with its prior status.
		}
		outcomes = append(outcomes, res.value)
	}
	return outcomes, partial
}
