// Package engine implements the two-phase retention state machine: scan-day
// classification of every branch's staleness, and delete-day reconciliation
// that re-validates each flagged branch against its current live state before
// irreversibly deleting it.
package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"branchsweep/internal/bitbucket"
	"branchsweep/internal/config"
	"branchsweep/internal/output"
	"branchsweep/internal/state"
)

// HostClient is the slice of the code-hosting REST API the engine consumes.
// *bitbucket.Client satisfies it; tests substitute fakes.
type HostClient interface {
	ListRepositories(ctx context.Context, project string) ([]string, error)
	ListBranches(ctx context.Context, project, repo string) ([]bitbucket.Branch, error)
	GetCommitDate(ctx context.Context, project, repo, commitID string) (time.Time, error)
	ListRestrictions(ctx context.Context, project, repo string) ([]bitbucket.Restriction, error)
	DeleteRestriction(ctx context.Context, project, repo string, id int64) error
	DeleteBranch(ctx context.Context, project, repo, name, endPoint string) error
}

func exitCodeForRun(fatal, partial bool) int {
	// Exit code contract:
	// 0 = clean run
	// 2 = partial failure (some repositories/branches errored)
	// 3 = fatal error (run did not complete)
	if fatal {
		return 3
	}
	if partial {
		return 2
	}
	return 0
}

type Engine struct {
	client HostClient
	store  state.Store
	out    *output.Manager
	log    *zap.Logger

	// now is a test seam; the engine only ever uses the date component.
	now func() time.Time
}

func New(client HostClient, store state.Store, out *output.Manager, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		client: client,
		store:  store,
		out:    out,
		log:    log,
		now:    time.Now,
	}
}

// resolveRepos returns the repositories in scope: the explicit list when one
// was given, otherwise every repository of the project. Repositories whose
// name contains "deprecated" are skipped either way.
func (e *Engine) resolveRepos(ctx context.Context, cfg *config.Config) ([]string, error) {
	repos := cfg.Targeting.Repos
	if len(repos) == 0 {
		discovered, err := e.client.ListRepositories(ctx, cfg.Targeting.Project)
		if err != nil {
			return nil, err
		}
		repos = discovered
	}

	out := make([]string, 0, len(repos))
	for _, repo := range repos {
		if strings.Contains(repo, "deprecated") {
			e.log.Info("skipping deprecated repository", zap.String("repository", repo))
			continue
		}
		out = append(out, repo)
	}
	return out, nil
}

// Scan classifies every branch of every repository in scope and persists the
// classifications for the later delete-day run. Returns the process exit code.
func (e *Engine) Scan(ctx context.Context, cfg *config.Config, pol config.Policy) int {
	project := cfg.Targeting.Project
	today := dateOnly(e.now())

	repos, err := e.resolveRepos(ctx, cfg)
	if err != nil {
		e.log.Error("failed to resolve repositories", zap.String("project", project), zap.Error(err))
		return exitCodeForRun(true, false)
	}

	partial := false
	for _, repo := range repos {
		branches, err := e.client.ListBranches(ctx, project, repo)
		if err != nil {
			e.log.Error("failed to list branches",
				zap.String("repository", repo),
				zap.Error(err))
			partial = true
			continue
		}
		e.log.Info("scanning repository",
			zap.String("project", project),
			zap.String("repository", repo),
			zap.Int("branches", len(branches)))

		rows, repoPartial := e.classifyRepo(ctx, pol, project, repo, branches, today, cfg.Runtime.Concurrency)
		partial = partial || repoPartial

		// The state document is written once per repository, after its whole
		// fan-out completed. Persistence failure is fatal: continuing would
		// leave scan day and delete day disagreeing about what was flagged.
		if err := e.store.Merge(ctx, repo, rows); err != nil {
			e.log.Error("failed to persist classifications",
				zap.String("repository", repo),
				zap.Error(err))
			return exitCodeForRun(true, partial)
		}

		if err := e.out.Write(output.RepoResult{Project: project, Repo: repo, Rows: rows}); err != nil {
			e.log.Error("failed to write results", zap.String("repository", repo), zap.Error(err))
			partial = true
		}
	}

	return exitCodeForRun(false, partial)
}

// Reconcile replays the persisted classifications of every repository in
// scope against the current live branch lists and deletes the branches that
// are still stale. Returns the process exit code.
func (e *Engine) Reconcile(ctx context.Context, cfg *config.Config, pol config.Policy) int {
	project := cfg.Targeting.Project
	today := dateOnly(e.now())

	doc, err := e.store.Read(ctx)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			e.log.Warn("no persisted classifications found; nothing to reconcile")
			return exitCodeForRun(false, false)
		}
		e.log.Error("failed to read persisted state", zap.Error(err))
		return exitCodeForRun(true, false)
	}

	repos, err := e.resolveRepos(ctx, cfg)
	if err != nil {
		e.log.Error("failed to resolve repositories", zap.String("project", project), zap.Error(err))
		return exitCodeForRun(true, false)
	}

	partial := false
	for _, repo := range repos {
		rows, ok := doc[repo]
		if !ok {
			e.log.Debug("repository has no persisted classifications; skipping",
				zap.String("repository", repo))
			continue
		}

		branches, err := e.client.ListBranches(ctx, project, repo)
		if err != nil {
			e.log.Error("failed to list branches",
				zap.String("repository", repo),
				zap.Error(err))
			partial = true
			continue
		}
		restrictions, err := e.client.ListRestrictions(ctx, project, repo)
		if err != nil {
			e.log.Error("failed to list branch permissions",
				zap.String("repository", repo),
				zap.Error(err))
			partial = true
			continue
		}
		e.log.Info("reconciling repository",
			zap.String("project", project),
			zap.String("repository", repo),
			zap.Int("flagged", countMarked(rows)),
			zap.Int("persisted", len(rows)),
			zap.Bool("dryRun", cfg.Runtime.DryRun))

		outcomes, repoPartial := e.reconcileRepo(ctx, pol, project, repo, rows, branches, restrictions, today, cfg.Runtime.Concurrency, cfg.Runtime.DryRun)
		partial = partial || repoPartial

		if err := e.out.Write(output.RepoResult{Project: project, Repo: repo, Rows: outcomes}); err != nil {
			e.log.Error("failed to write results", zap.String("repository", repo), zap.Error(err))
			partial = true
		}
	}

	return exitCodeForRun(false, partial)
}

func countMarked(rows []state.Row) int {
	n := 0
	for _, r := range rows {
		if r.Status == state.StatusMarked {
			n++
		}
	}
	return n
}
