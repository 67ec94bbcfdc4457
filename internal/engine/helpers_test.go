package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"branchsweep/internal/bitbucket"
	"branchsweep/internal/config"
	"branchsweep/internal/output"
	"branchsweep/internal/state"
)

// fakeClient is an in-memory HostClient that records every call in order.
type fakeClient struct {
	mu sync.Mutex

	repos        []string
	branches     map[string][]bitbucket.Branch
	commitDates  map[string]time.Time
	restrictions map[string][]bitbucket.Restriction

	listReposErr         error
	listBranchesErr      map[string]error
	listRestrictionsErr  map[string]error
	commitDateErr        map[string]error
	deleteRestrictionErr map[int64]error
	deleteBranchErr      map[string]error

	commitDateCalls map[string]int
	calls           []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		branches:             map[string][]bitbucket.Branch{},
		commitDates:          map[string]time.Time{},
		restrictions:         map[string][]bitbucket.Restriction{},
		listBranchesErr:      map[string]error{},
		listRestrictionsErr:  map[string]error{},
		commitDateErr:        map[string]error{},
		deleteRestrictionErr: map[int64]error{},
		deleteBranchErr:      map[string]error{},
		commitDateCalls:      map[string]int{},
	}
}

func (f *fakeClient) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeClient) ListRepositories(_ context.Context, project string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("listRepositories:%s", project)
	if f.listReposErr != nil {
		return nil, f.listReposErr
	}
	return f.repos, nil
}

func (f *fakeClient) ListBranches(_ context.Context, _, repo string) ([]bitbucket.Branch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("listBranches:%s", repo)
	if err := f.listBranchesErr[repo]; err != nil {
		return nil, err
	}
	return f.branches[repo], nil
}

func (f *fakeClient) GetCommitDate(_ context.Context, _, _, commitID string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("getCommitDate:%s", commitID)
	f.commitDateCalls[commitID]++
	if err := f.commitDateErr[commitID]; err != nil {
		return time.Time{}, err
	}
	date, ok := f.commitDates[commitID]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown commit %s", commitID)
	}
	return date, nil
}

func (f *fakeClient) ListRestrictions(_ context.Context, _, repo string) ([]bitbucket.Restriction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("listRestrictions:%s", repo)
	if err := f.listRestrictionsErr[repo]; err != nil {
		return nil, err
	}
	return f.restrictions[repo], nil
}

func (f *fakeClient) DeleteRestriction(_ context.Context, _, _ string, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("deleteRestriction:%d", id)
	return f.deleteRestrictionErr[id]
}

func (f *fakeClient) DeleteBranch(_ context.Context, _, _, name, endPoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("deleteBranch:%s@%s", name, endPoint)
	return f.deleteBranchErr[name]
}

func restriction(id int64, displayID string) bitbucket.Restriction {
	var r bitbucket.Restriction
	r.ID = id
	r.Matcher.DisplayID = displayID
	return r
}

// captureSink collects every RepoResult written to the output manager.
type captureSink struct {
	mu      sync.Mutex
	results []output.RepoResult
}

func (s *captureSink) Write(res output.RepoResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, res)
	return nil
}

func (s *captureSink) Close() error { return nil }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// testPolicy is the policy used throughout these tests:
// release/hotfix 30 days, everything else 45.
func testPolicy() config.Policy {
	return config.Policy{
		BaseURL:          "https://bitbucket.example.com",
		ExcludedBranches: []string{"master", "develop"},
		Thresholds: map[string]int{
			"release": 30,
			"hotfix":  30,
			"default": 45,
		},
	}
}

func newTestEngine(fc *fakeClient, store state.Store, today time.Time) (*Engine, *captureSink) {
	sink := &captureSink{}
	mgr := output.NewManager()
	_ = mgr.AddSink(sink)

	eng := New(fc, store, mgr, zap.NewNop())
	eng.now = func() time.Time { return today }
	return eng, sink
}

func testConfig(repos ...string) *config.Config {
	cfg := config.New()
	cfg.Targeting.Project = "PROJ"
	cfg.Targeting.Repos = repos
	cfg.Paths.Policy = "unused"
	return cfg
}
