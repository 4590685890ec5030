// This file provides the production Backend. References, ancestry and
// commit objects go through go-git; linked worktrees and three-way tree
// merges, which go-git does not implement, go through the git CLI via a
// CommandExecutor so tests can replace it.

package worktree

import (
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage"

	"github.com/Iron-Ham/swarmtree/internal/errors"
)

// -----------------------------------------------------------------------------
// Command Executor
// -----------------------------------------------------------------------------

// CommandExecutor abstracts command execution for testability.
type CommandExecutor interface {
	// Run executes a command and returns combined output.
	Run(dir string, name string, args ...string) ([]byte, error)

	// Output executes a command and returns stdout only. On failure the
	// error is usually an *exec.ExitError carrying stderr.
	Output(dir string, name string, args ...string) ([]byte, error)
}

// CLICommandExecutor executes commands using os/exec.
type CLICommandExecutor struct{}

// NewCLICommandExecutor creates a new CLI command executor.
func NewCLICommandExecutor() *CLICommandExecutor {
	return &CLICommandExecutor{}
}

// Run executes a command and returns combined output.
func (e *CLICommandExecutor) Run(dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// Output executes a command and returns stdout only.
func (e *CLICommandExecutor) Output(dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	return cmd.Output()
}

// -----------------------------------------------------------------------------
// GitBackend
// -----------------------------------------------------------------------------

// Identity is the author and committer of merge commits when the
// repository configuration has no user.name or user.email.
type Identity struct {
	Name  string
	Email string
}

// DefaultIdentity is used when neither the repository nor the caller
// supplies one.
var DefaultIdentity = Identity{Name: "Hive Swarm", Email: "hive@localhost"}

// GitBackend opens repositories with go-git and shells out to git for
// worktree and merge-tree operations.
type GitBackend struct {
	executor CommandExecutor
	identity Identity
	now      func() time.Time

	mergeTreeOnce sync.Once
	mergeTreeErr  error
}

// Three-way tree merges use "git merge-tree --write-tree --merge-base=",
// available since git 2.40.
const (
	minMergeTreeMajor = 2
	minMergeTreeMinor = 40
)

// NewGitBackend creates a backend using the git binary on PATH.
func NewGitBackend(identity Identity) *GitBackend {
	return NewGitBackendWithExecutor(identity, NewCLICommandExecutor())
}

// NewGitBackendWithExecutor creates a backend with a custom executor.
// This is primarily useful for testing.
func NewGitBackendWithExecutor(identity Identity, executor CommandExecutor) *GitBackend {
	if identity.Name == "" {
		identity.Name = DefaultIdentity.Name
	}
	if identity.Email == "" {
		identity.Email = DefaultIdentity.Email
	}
	return &GitBackend{
		executor: executor,
		identity: identity,
		now:      time.Now,
	}
}

// Open opens the repository at repoPath. Linked worktrees are supported.
func (b *GitBackend) Open(repoPath string) (Repository, error) {
	repo, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		return nil, errors.NewGitError("failed to open repository", errors.Join(errors.ErrRepoOpen, err)).
			WithRepository(repoPath)
	}
	return &gitRepository{
		repo:    repo,
		path:    repoPath,
		backend: b,
	}, nil
}

// Version returns the version reported by the git binary, e.g. "2.43.0".
func (b *GitBackend) Version() (string, error) {
	out, err := b.executor.Run("", "git", "--version")
	if err != nil {
		return "", errors.NewGitError("failed to run git --version", errors.Join(errors.ErrBackendIO, err)).
			WithGitOutput(string(out))
	}
	fields := strings.Fields(string(out))
	if len(fields) < 3 {
		return "", errors.NewGitError("unexpected git --version output", errors.ErrBackendIO).
			WithGitOutput(string(out))
	}
	return fields[2], nil
}

// checkMergeTree reports, once per backend, whether the git binary can
// perform three-way tree merges.
func (b *GitBackend) checkMergeTree() error {
	b.mergeTreeOnce.Do(func() {
		v, err := b.Version()
		if err != nil {
			b.mergeTreeErr = err
			return
		}
		if !versionAtLeast(v, minMergeTreeMajor, minMergeTreeMinor) {
			b.mergeTreeErr = fmt.Errorf("git %s cannot merge trees: git %d.%d or newer is required",
				v, minMergeTreeMajor, minMergeTreeMinor)
		}
	})
	return b.mergeTreeErr
}

// versionAtLeast compares the leading "major.minor" of a git version such
// as "2.39.3" or "2.40.0.windows.1". Unparseable versions fail.
func versionAtLeast(version string, major, minor int) bool {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 2 {
		return false
	}
	gotMajor, err := strconv.Atoi(parts[0])
	if err != nil {
		return false
	}
	minorDigits := parts[1]
	if i := strings.IndexFunc(minorDigits, func(r rune) bool { return r < '0' || r > '9' }); i >= 0 {
		minorDigits = minorDigits[:i]
	}
	gotMinor, err := strconv.Atoi(minorDigits)
	if err != nil {
		return false
	}
	return gotMajor > major || (gotMajor == major && gotMinor >= minor)
}

// gitRepository is a short-lived handle returned by GitBackend.Open.
type gitRepository struct {
	repo    *git.Repository
	path    string
	backend *GitBackend
}

func (r *gitRepository) HeadCommit() (string, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return "", errors.NewNotFoundError("reference", "HEAD").WithCause(err)
	}
	if _, err := r.repo.CommitObject(ref.Hash()); err != nil {
		return "", errors.NewNotFoundError("commit", ref.Hash().String()).WithCause(err)
	}
	return ref.Hash().String(), nil
}

func (r *gitRepository) CreateBranch(name, commit string) error {
	refName := plumbing.NewBranchReferenceName(name)
	if _, err := r.repo.Storer.Reference(refName); err == nil {
		return errors.NewAlreadyExistsError("branch", name)
	} else if err != plumbing.ErrReferenceNotFound {
		return r.gitError("failed to look up branch", errors.ErrBackendIO, err).WithBranch(name)
	}

	hash := plumbing.NewHash(commit)
	if _, err := r.repo.CommitObject(hash); err != nil {
		return errors.NewNotFoundError("commit", commit).WithCause(err)
	}
	if err := r.repo.Storer.SetReference(plumbing.NewHashReference(refName, hash)); err != nil {
		return r.gitError("failed to create branch", errors.ErrBackendIO, err).WithBranch(name)
	}
	return nil
}

func (r *gitRepository) BranchCommit(name string) (string, error) {
	ref, err := r.repo.Reference(plumbing.NewBranchReferenceName(name), true)
	if err != nil {
		return "", errors.NewNotFoundError("branch", name).WithCause(err)
	}
	if _, err := r.repo.CommitObject(ref.Hash()); err != nil {
		return "", errors.NewNotFoundError("branch", name).WithCause(err)
	}
	return ref.Hash().String(), nil
}

func (r *gitRepository) ListBranches() ([]string, error) {
	iter, err := r.repo.Branches()
	if err != nil {
		return nil, r.gitError("failed to list branches", errors.ErrBackendIO, err)
	}
	defer iter.Close()

	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, r.gitError("failed to list branches", errors.ErrBackendIO, err)
	}
	sort.Strings(names)
	return names, nil
}

func (r *gitRepository) DeleteBranch(name string) error {
	if err := r.repo.Storer.RemoveReference(plumbing.NewBranchReferenceName(name)); err != nil {
		return r.gitError("failed to delete branch", errors.ErrBackendIO, err).WithBranch(name)
	}
	return nil
}

func (r *gitRepository) AddWorktree(path, branch string) error {
	output, err := r.backend.executor.Run(r.path, "git", "worktree", "add", path, branch)
	if err != nil {
		return r.gitError("failed to attach worktree", errors.ErrBackendIO, err).
			WithBranch(branch).
			WithWorktree(path).
			WithGitOutput(string(output))
	}
	return nil
}

func (r *gitRepository) UnlockWorktree(path string) error {
	output, err := r.backend.executor.Run(r.path, "git", "worktree", "unlock", path)
	if err != nil {
		return r.gitError("failed to unlock worktree", errors.ErrBackendIO, err).
			WithWorktree(path).
			WithGitOutput(string(output))
	}
	return nil
}

func (r *gitRepository) PruneWorktrees() error {
	output, err := r.backend.executor.Run(r.path, "git", "worktree", "prune")
	if err != nil {
		return r.gitError("failed to prune worktrees", errors.ErrBackendIO, err).
			WithGitOutput(string(output))
	}
	return nil
}

func (r *gitRepository) IsAncestor(ancestor, descendant string) (bool, error) {
	a, err := r.commit(ancestor)
	if err != nil {
		return false, err
	}
	d, err := r.commit(descendant)
	if err != nil {
		return false, err
	}
	ok, err := a.IsAncestor(d)
	if err != nil {
		return false, r.gitError("failed to walk history", errors.ErrMergeBackend, err)
	}
	return ok, nil
}

// MergeBase picks the lowest hash when there are several best common
// ancestors so the choice is stable across runs.
func (r *gitRepository) MergeBase(a, b string) (string, error) {
	ca, err := r.commit(a)
	if err != nil {
		return "", err
	}
	cb, err := r.commit(b)
	if err != nil {
		return "", err
	}
	bases, err := ca.MergeBase(cb)
	if err != nil {
		return "", r.gitError("failed to compute merge base", errors.ErrMergeBackend, err)
	}
	if len(bases) == 0 {
		return "", r.gitError("no common ancestor between "+a+" and "+b, errors.ErrMergeBackend, nil)
	}

	best := bases[0].Hash.String()
	for _, c := range bases[1:] {
		if h := c.Hash.String(); h < best {
			best = h
		}
	}
	return best, nil
}

func (r *gitRepository) MergeTrees(base, ours, theirs string) (*TreeMerge, error) {
	if err := r.backend.checkMergeTree(); err != nil {
		return nil, r.gitError("three-way merge unavailable", errors.ErrMergeBackend, err)
	}

	out, err := r.backend.executor.Output(r.path, "git", "merge-tree", "--write-tree", "-z", "--no-messages",
		"--merge-base="+base, ours, theirs)

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr) && exitErr.ExitCode() == 1:
		// exit status 1 means the merge has conflicts; stdout is still valid
	default:
		var stderr string
		if exitErr != nil {
			stderr = string(exitErr.Stderr)
		}
		return nil, r.gitError("failed to run merge-tree", errors.ErrMergeBackend, err).WithGitOutput(stderr)
	}

	merge, perr := parseMergeTree(out)
	if perr != nil {
		return nil, r.gitError("failed to parse merge-tree output", errors.ErrMergeBackend, perr).
			WithGitOutput(string(bytes.ReplaceAll(out, []byte{0}, []byte{'\n'})))
	}
	if err != nil && len(merge.Conflicts) == 0 {
		return nil, r.gitError("merge-tree reported conflicts without conflicted entries", errors.ErrMergeBackend, err)
	}
	if len(merge.Conflicts) > 0 {
		merge.Tree = ""
	}
	return merge, nil
}

func (r *gitRepository) CreateCommit(tree string, parents []string, message string) (string, error) {
	sig := r.signature()
	commit := &object.Commit{
		Author:    sig,
		Committer: sig,
		Message:   message,
		TreeHash:  plumbing.NewHash(tree),
	}
	for _, p := range parents {
		commit.ParentHashes = append(commit.ParentHashes, plumbing.NewHash(p))
	}

	obj := r.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return "", r.gitError("failed to encode commit", errors.ErrMergeBackend, err)
	}
	hash, err := r.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return "", r.gitError("failed to write commit", errors.ErrMergeBackend, err)
	}
	return hash.String(), nil
}

func (r *gitRepository) UpdateBranch(name, newCommit, oldCommit string) error {
	refName := plumbing.NewBranchReferenceName(name)
	next := plumbing.NewHashReference(refName, plumbing.NewHash(newCommit))
	prev := plumbing.NewHashReference(refName, plumbing.NewHash(oldCommit))

	if err := r.repo.Storer.CheckAndSetReference(next, prev); err != nil {
		msg := "failed to update branch"
		if err == storage.ErrReferenceHasChanged {
			msg = "branch moved during merge"
		}
		return r.gitError(msg, errors.ErrMergeBackend, err).WithBranch(name)
	}
	return nil
}

func (r *gitRepository) ExcludeFile() (string, error) {
	out, err := r.backend.executor.Output(r.path, "git", "rev-parse", "--git-path", "info/exclude")
	if err != nil {
		return "", r.gitError("failed to locate info/exclude", errors.ErrBackendIO, err)
	}
	path := strings.TrimSpace(string(out))
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.path, path)
	}
	return path, nil
}

func (r *gitRepository) Close() error {
	if c, ok := r.repo.Storer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (r *gitRepository) commit(id string) (*object.Commit, error) {
	c, err := r.repo.CommitObject(plumbing.NewHash(id))
	if err != nil {
		return nil, r.gitError("failed to read commit "+id, errors.ErrMergeBackend, err)
	}
	return c, nil
}

// signature prefers the repository's configured user over the backend
// identity.
func (r *gitRepository) signature() object.Signature {
	sig := object.Signature{
		Name:  r.backend.identity.Name,
		Email: r.backend.identity.Email,
		When:  r.backend.now(),
	}
	cfg, err := r.repo.ConfigScoped(gitconfig.GlobalScope)
	if err != nil {
		return sig
	}
	if cfg.User.Name != "" && cfg.User.Email != "" {
		sig.Name = cfg.User.Name
		sig.Email = cfg.User.Email
	}
	return sig
}

func (r *gitRepository) gitError(message string, sentinel, cause error) *errors.GitError {
	if cause != nil {
		cause = errors.Join(sentinel, cause)
	} else {
		cause = sentinel
	}
	return errors.NewGitError(message, cause).WithRepository(r.path)
}
