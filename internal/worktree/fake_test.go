package worktree

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/Iron-Ham/swarmtree/internal/errors"
)

// fakeBackend is an in-memory Backend. Commits form a DAG through parents;
// every method can be made to fail through the fail map, keyed by method
// name.
type fakeBackend struct {
	head      string
	branches  map[string]string
	parents   map[string][]string
	merge     *TreeMerge
	fail      map[string]error
	openErr   error
	worktrees []string
	deleted   []string
	prunes    int
	unlocked  []string
	commits   int
	opens     int
	closes    int
	exclude   string
	messages  []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		head:     "c0",
		branches: map[string]string{"main": "c0"},
		parents:  map[string][]string{"c0": nil},
		fail:     map[string]error{},
	}
}

// commit adds a commit with the given parents.
func (f *fakeBackend) commit(id string, parents ...string) string {
	f.parents[id] = parents
	return id
}

func (f *fakeBackend) Open(string) (Repository, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.opens++
	return &fakeRepo{f}, nil
}

type fakeRepo struct{ f *fakeBackend }

func (r *fakeRepo) HeadCommit() (string, error) {
	if err := r.f.fail["HeadCommit"]; err != nil {
		return "", err
	}
	return r.f.head, nil
}

func (r *fakeRepo) CreateBranch(name, commit string) error {
	if err := r.f.fail["CreateBranch"]; err != nil {
		return err
	}
	if _, ok := r.f.branches[name]; ok {
		return errors.NewAlreadyExistsError("branch", name)
	}
	r.f.branches[name] = commit
	return nil
}

func (r *fakeRepo) BranchCommit(name string) (string, error) {
	if err := r.f.fail["BranchCommit"]; err != nil {
		return "", err
	}
	c, ok := r.f.branches[name]
	if !ok {
		return "", errors.NewNotFoundError("branch", name)
	}
	return c, nil
}

func (r *fakeRepo) ListBranches() ([]string, error) {
	if err := r.f.fail["ListBranches"]; err != nil {
		return nil, err
	}
	names := make([]string, 0, len(r.f.branches))
	for n := range r.f.branches {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (r *fakeRepo) DeleteBranch(name string) error {
	if err := r.f.fail["DeleteBranch"]; err != nil {
		return err
	}
	delete(r.f.branches, name)
	r.f.deleted = append(r.f.deleted, name)
	return nil
}

func (r *fakeRepo) AddWorktree(path, branch string) error {
	if err := r.f.fail["AddWorktree"]; err != nil {
		return err
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return err
	}
	r.f.worktrees = append(r.f.worktrees, path)
	return nil
}

func (r *fakeRepo) UnlockWorktree(path string) error {
	r.f.unlocked = append(r.f.unlocked, path)
	return r.f.fail["UnlockWorktree"]
}

func (r *fakeRepo) PruneWorktrees() error {
	r.f.prunes++
	return r.f.fail["PruneWorktrees"]
}

func (r *fakeRepo) IsAncestor(ancestor, descendant string) (bool, error) {
	if err := r.f.fail["IsAncestor"]; err != nil {
		return false, err
	}
	seen := map[string]bool{}
	stack := []string{descendant}
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if c == ancestor {
			return true, nil
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		stack = append(stack, r.f.parents[c]...)
	}
	return false, nil
}

func (r *fakeRepo) MergeBase(a, b string) (string, error) {
	if err := r.f.fail["MergeBase"]; err != nil {
		return "", err
	}
	return "c0", nil
}

func (r *fakeRepo) MergeTrees(base, ours, theirs string) (*TreeMerge, error) {
	if err := r.f.fail["MergeTrees"]; err != nil {
		return nil, err
	}
	if r.f.merge == nil {
		return &TreeMerge{Tree: "t-merged"}, nil
	}
	return r.f.merge, nil
}

func (r *fakeRepo) CreateCommit(tree string, parents []string, message string) (string, error) {
	if err := r.f.fail["CreateCommit"]; err != nil {
		return "", err
	}
	r.f.commits++
	id := fmt.Sprintf("m%d", r.f.commits)
	r.f.parents[id] = parents
	r.f.messages = append(r.f.messages, message)
	return id, nil
}

func (r *fakeRepo) UpdateBranch(name, newCommit, oldCommit string) error {
	if err := r.f.fail["UpdateBranch"]; err != nil {
		return err
	}
	if r.f.branches[name] != oldCommit {
		return errors.NewGitError("branch moved during merge", errors.ErrMergeBackend).WithBranch(name)
	}
	r.f.branches[name] = newCommit
	return nil
}

func (r *fakeRepo) ExcludeFile() (string, error) {
	if err := r.f.fail["ExcludeFile"]; err != nil {
		return "", err
	}
	return r.f.exclude, nil
}

func (r *fakeRepo) Close() error {
	r.f.closes++
	return nil
}

// newFakeManager returns a Manager over a fresh fake backend rooted in a
// temporary directory that looks like a repository.
func newFakeManager(t *testing.T) (*Manager, *fakeBackend) {
	t.Helper()

	repoDir := t.TempDir()
	if err := os.Mkdir(filepath.Join(repoDir, ".git"), 0755); err != nil {
		t.Fatal(err)
	}
	fake := newFakeBackend()
	fake.exclude = filepath.Join(repoDir, ".git", "info", "exclude")

	m, err := New(repoDir, Options{Backend: fake})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return m, fake
}
