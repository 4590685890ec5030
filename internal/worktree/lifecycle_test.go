package worktree

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Iron-Ham/swarmtree/internal/errors"
	"github.com/Iron-Ham/swarmtree/internal/testutil"
)

// newGitManager returns a Manager backed by real git over a fresh repository.
func newGitManager(t *testing.T) (*Manager, string) {
	t.Helper()
	testutil.SkipIfNoGit(t)

	dir := testutil.SetupTestRepo(t)
	m, err := New(dir, Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return m, dir
}

func TestCreate_Git(t *testing.T) {
	m, dir := newGitManager(t)
	head := testutil.RevParse(t, dir, "HEAD")

	wt, err := m.Create("run-1", "alpha")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if wt.BranchName != "swarm/run-1/alpha" {
		t.Errorf("BranchName = %q", wt.BranchName)
	}
	if got := testutil.RevParse(t, dir, wt.BranchName); got != head {
		t.Errorf("branch at %s, want HEAD %s", got, head)
	}
	if got := testutil.Git(t, wt.WorktreePath, "rev-parse", "--abbrev-ref", "HEAD"); got != wt.BranchName {
		t.Errorf("worktree has %q checked out, want %q", got, wt.BranchName)
	}
	if _, err := os.Stat(filepath.Join(wt.WorktreePath, "README.md")); err != nil {
		t.Errorf("worktree should contain the repository files: %v", err)
	}
	if !slices.Contains(testutil.ListWorktrees(t, dir), wt.WorktreePath) {
		t.Errorf("git does not list worktree %s", wt.WorktreePath)
	}

	// the main checkout stays on main
	if got := testutil.Git(t, dir, "rev-parse", "--abbrev-ref", "HEAD"); got != "main" {
		t.Errorf("main checkout moved to %q", got)
	}
}

func TestCreate_Git_Duplicate(t *testing.T) {
	m, _ := newGitManager(t)

	if _, err := m.Create("run-1", "alpha"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Create("run-1", "alpha"); !errors.Is(err, errors.ErrDuplicateBranch) {
		t.Errorf("Create() twice error = %v, want ErrDuplicateBranch", err)
	}
}

func TestCreate_Git_SameTeamAcrossRuns(t *testing.T) {
	m, dir := newGitManager(t)

	if _, err := m.Create("run-1", "alpha"); err != nil {
		t.Fatal(err)
	}
	if err := m.Cleanup("alpha", false); err != nil {
		t.Fatal(err)
	}

	wt, err := m.Create("run-2", "alpha")
	if err != nil {
		t.Fatalf("Create() for a new run error = %v", err)
	}
	if got := testutil.Git(t, wt.WorktreePath, "rev-parse", "--abbrev-ref", "HEAD"); got != "swarm/run-2/alpha" {
		t.Errorf("worktree has %q checked out", got)
	}
	if !testutil.BranchExists(t, dir, "swarm/run-1/alpha") {
		t.Error("the earlier run's branch should survive a cleanup without deleteBranch")
	}
}

func TestCreate_Git_ReplacesUncleanedWorktree(t *testing.T) {
	for _, locked := range []bool{false, true} {
		name := "unlocked"
		if locked {
			name = "locked"
		}
		t.Run(name, func(t *testing.T) {
			m, dir := newGitManager(t)

			old, err := m.Create("run-1", "alpha")
			if err != nil {
				t.Fatal(err)
			}
			if locked {
				testutil.Git(t, dir, "worktree", "lock", old.WorktreePath)
			}

			wt, err := m.Create("run-2", "alpha")
			if err != nil {
				t.Fatalf("Create() over an earlier run's worktree error = %v", err)
			}
			if got := testutil.Git(t, wt.WorktreePath, "rev-parse", "--abbrev-ref", "HEAD"); got != "swarm/run-2/alpha" {
				t.Errorf("worktree has %q checked out", got)
			}
			if !testutil.BranchExists(t, dir, "swarm/run-1/alpha") {
				t.Error("the earlier run's branch should be kept")
			}
		})
	}
}

func TestCreate_Git_UnbornHead(t *testing.T) {
	testutil.SkipIfNoGit(t)

	m, err := New(testutil.SetupEmptyRepo(t), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Create("run", "alpha"); !errors.Is(err, errors.ErrRefNotFound) {
		t.Errorf("Create() on empty repo error = %v, want ErrRefNotFound", err)
	}
}

func TestList_Git(t *testing.T) {
	m, _ := newGitManager(t)

	for _, team := range []string{"beta", "alpha"} {
		if _, err := m.Create("run-1", team); err != nil {
			t.Fatal(err)
		}
	}

	got, err := m.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	root := canonical(t, m.SandboxRoot())
	want := []TeamWorktree{
		{TeamID: "alpha", BranchName: "swarm/run-1/alpha", WorktreePath: filepath.Join(root, "alpha")},
		{TeamID: "beta", BranchName: "swarm/run-1/beta", WorktreePath: filepath.Join(root, "beta")},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
}

func TestCleanup_Git(t *testing.T) {
	m, dir := newGitManager(t)

	wt, err := m.Create("run-1", "alpha")
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Cleanup("alpha", true); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if _, err := os.Stat(wt.WorktreePath); !os.IsNotExist(err) {
		t.Error("worktree directory should be gone")
	}
	if testutil.BranchExists(t, dir, "swarm/run-1/alpha") {
		t.Error("team branch should be deleted")
	}
	if slices.Contains(testutil.ListWorktrees(t, dir), wt.WorktreePath) {
		t.Error("worktree metadata should be pruned")
	}
	if !testutil.BranchExists(t, dir, "main") {
		t.Error("main must survive")
	}

	// nothing left to clean
	if err := m.Cleanup("alpha", true); err != nil {
		t.Errorf("repeated Cleanup() error = %v", err)
	}
}

func TestCleanup_Git_LockedWorktree(t *testing.T) {
	m, dir := newGitManager(t)

	wt, err := m.Create("run-1", "alpha")
	if err != nil {
		t.Fatal(err)
	}
	testutil.Git(t, dir, "worktree", "lock", "--reason", "busy", wt.WorktreePath)

	if err := m.Cleanup("alpha", false); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if slices.Contains(testutil.ListWorktrees(t, dir), wt.WorktreePath) {
		t.Error("metadata of a locked worktree should be pruned too")
	}
}

func TestCleanupSwarm_Git(t *testing.T) {
	m, dir := newGitManager(t)

	for _, team := range []string{"alpha", "beta"} {
		if _, err := m.Create("run-1", team); err != nil {
			t.Fatal(err)
		}
	}
	testutil.CreateBranch(t, dir, "swarm/run-10/gamma")

	n, err := m.CleanupSwarm("run-1")
	if err != nil {
		t.Fatalf("CleanupSwarm() error = %v", err)
	}
	if n != 2 {
		t.Errorf("CleanupSwarm() = %d, want 2", n)
	}
	if diff := cmp.Diff([]string{"main", "swarm/run-10/gamma"}, testutil.Branches(t, dir)); diff != "" {
		t.Errorf("branches mismatch (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(m.SandboxRoot()); !os.IsNotExist(err) {
		t.Error("empty sandbox root should be removed")
	}
	if got := len(testutil.ListWorktrees(t, dir)); got != 1 {
		t.Errorf("worktrees left = %d, want only the main checkout", got)
	}

	n, err = m.CleanupSwarm("run-1")
	if err != nil || n != 0 {
		t.Errorf("CleanupSwarm() on a finished run = %d, %v", n, err)
	}
}
