// Package testutil provides testing utilities for swarmtree tests.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// Identity used for every commit made by the fixtures.
const (
	TestAuthorName  = "Swarmtree Test"
	TestAuthorEmail = "test@swarmtree.dev"
)

// SetupTestRepo creates a temporary git repository with one commit on main.
// The repository is removed when the test completes.
func SetupTestRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()

	if err := runGit(dir, "init"); err != nil {
		t.Fatalf("failed to init git repo: %v", err)
	}
	if err := runGit(dir, "config", "user.email", TestAuthorEmail); err != nil {
		t.Fatalf("failed to configure git email: %v", err)
	}
	if err := runGit(dir, "config", "user.name", TestAuthorName); err != nil {
		t.Fatalf("failed to configure git name: %v", err)
	}

	readme := filepath.Join(dir, "README.md")
	if err := os.WriteFile(readme, []byte("# Test Repository\n"), 0644); err != nil {
		t.Fatalf("failed to create README: %v", err)
	}
	if err := runGit(dir, "add", "."); err != nil {
		t.Fatalf("failed to stage files: %v", err)
	}
	if err := runGit(dir, "commit", "-m", "Initial commit"); err != nil {
		t.Fatalf("failed to create initial commit: %v", err)
	}

	// some systems default to master
	if err := runGit(dir, "branch", "-M", "main"); err != nil {
		t.Fatalf("failed to rename branch to main: %v", err)
	}

	return dir
}

// SetupEmptyRepo creates a repository without any commit, so HEAD is unborn.
func SetupEmptyRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	if err := runGit(dir, "init"); err != nil {
		t.Fatalf("failed to init git repo: %v", err)
	}
	return dir
}

// CommitFile creates or updates a file in dir (a repository or worktree)
// and commits it.
func CommitFile(t *testing.T, dir, path, content, message string) {
	t.Helper()

	fullPath := filepath.Join(dir, path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
	if err := runGit(dir, "add", path); err != nil {
		t.Fatalf("failed to stage file %s: %v", path, err)
	}
	if err := runGit(dir, "commit", "-m", message); err != nil {
		t.Fatalf("failed to commit file %s: %v", path, err)
	}
}

// CreateBranch creates a new branch at HEAD.
func CreateBranch(t *testing.T, repoDir, branch string) {
	t.Helper()

	if err := runGit(repoDir, "branch", branch); err != nil {
		t.Fatalf("failed to create branch %s: %v", branch, err)
	}
}

// CheckoutBranch switches to a branch.
func CheckoutBranch(t *testing.T, repoDir, branch string) {
	t.Helper()

	if err := runGit(repoDir, "checkout", branch); err != nil {
		t.Fatalf("failed to checkout branch %s: %v", branch, err)
	}
}

// RevParse resolves a revision to its full commit id.
func RevParse(t *testing.T, repoDir, rev string) string {
	t.Helper()

	out, err := gitOutput(repoDir, "rev-parse", "--verify", rev+"^{commit}")
	if err != nil {
		t.Fatalf("failed to resolve %s: %v", rev, err)
	}
	return out
}

// BranchExists reports whether a local branch exists.
func BranchExists(t *testing.T, repoDir, branch string) bool {
	t.Helper()

	err := runGit(repoDir, "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	return err == nil
}

// Branches returns all local branch names.
func Branches(t *testing.T, repoDir string) []string {
	t.Helper()

	out, err := gitOutput(repoDir, "for-each-ref", "--format=%(refname:short)", "refs/heads/")
	if err != nil {
		t.Fatalf("failed to list branches: %v", err)
	}
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

// FileAtRevision returns the content of path at rev.
func FileAtRevision(t *testing.T, repoDir, rev, path string) string {
	t.Helper()

	out, err := gitOutput(repoDir, "show", rev+":"+path)
	if err != nil {
		t.Fatalf("failed to read %s at %s: %v", path, rev, err)
	}
	return out
}

// ParentCount returns the number of parents of a commit.
func ParentCount(t *testing.T, repoDir, rev string) int {
	t.Helper()

	out, err := gitOutput(repoDir, "rev-list", "--parents", "-n", "1", rev)
	if err != nil {
		t.Fatalf("failed to read parents of %s: %v", rev, err)
	}
	return len(strings.Fields(out)) - 1
}

// CommitMessage returns the full message of a commit.
func CommitMessage(t *testing.T, repoDir, rev string) string {
	t.Helper()

	out, err := gitOutput(repoDir, "log", "-1", "--format=%B", rev)
	if err != nil {
		t.Fatalf("failed to read message of %s: %v", rev, err)
	}
	return out
}

// ListWorktrees returns the paths of all worktrees in the repository,
// including the main one.
func ListWorktrees(t *testing.T, repoDir string) []string {
	t.Helper()

	out, err := gitOutput(repoDir, "worktree", "list", "--porcelain")
	if err != nil {
		t.Fatalf("failed to list worktrees: %v", err)
	}

	var worktrees []string
	for _, line := range strings.Split(out, "\n") {
		if path, ok := strings.CutPrefix(line, "worktree "); ok {
			worktrees = append(worktrees, path)
		}
	}
	return worktrees
}

// SkipIfNoGit skips the test if git is not installed.
func SkipIfNoGit(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH, skipping test")
	}
}

// SkipIfGitOlderThan skips the test unless git is at least major.minor.
// Three-way merges need "git merge-tree --write-tree --merge-base" (2.40).
func SkipIfGitOlderThan(t *testing.T, major, minor int) {
	t.Helper()

	SkipIfNoGit(t)
	out, err := gitOutput("", "--version")
	if err != nil {
		t.Skipf("cannot determine git version: %v", err)
	}
	fields := strings.Fields(out)
	if len(fields) < 3 {
		t.Skipf("unexpected git --version output %q", out)
	}
	parts := strings.SplitN(fields[2], ".", 3)
	if len(parts) < 2 {
		t.Skipf("unexpected git version %q", fields[2])
	}
	gotMajor, _ := strconv.Atoi(parts[0])
	gotMinor, _ := strconv.Atoi(parts[1])
	if gotMajor < major || (gotMajor == major && gotMinor < minor) {
		t.Skipf("git %s is older than %d.%d, skipping test", fields[2], major, minor)
	}
}

// Git runs a git command in dir and fails the test on error. It returns
// trimmed stdout.
func Git(t *testing.T, dir string, args ...string) string {
	t.Helper()

	out, err := gitOutput(dir, args...)
	if err != nil {
		t.Fatalf("%v", err)
	}
	return out
}

func gitCommand(dir string, args ...string) *exec.Cmd {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME="+TestAuthorName,
		"GIT_AUTHOR_EMAIL="+TestAuthorEmail,
		"GIT_COMMITTER_NAME="+TestAuthorName,
		"GIT_COMMITTER_EMAIL="+TestAuthorEmail,
	)
	return cmd
}

// runGit runs a git command in the specified directory.
func runGit(dir string, args ...string) error {
	output, err := gitCommand(dir, args...).CombinedOutput()
	if err != nil {
		return &gitError{args: args, output: output, err: err}
	}
	return nil
}

func gitOutput(dir string, args ...string) (string, error) {
	cmd := gitCommand(dir, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return "", &gitError{args: args, output: []byte(stderr.String()), err: err}
	}
	return strings.TrimRight(string(output), "\n"), nil
}

type gitError struct {
	args   []string
	output []byte
	err    error
}

func (e *gitError) Error() string {
	return "git " + strings.Join(e.args, " ") + ": " + e.err.Error() + "\n" + string(e.output)
}

func (e *gitError) Unwrap() error {
	return e.err
}
