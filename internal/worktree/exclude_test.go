package worktree

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Iron-Ham/swarmtree/internal/testutil"
)

func readExclude(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, ".git", "info", "exclude"))
	if os.IsNotExist(err) {
		return ""
	}
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestExcludeSandbox_Git(t *testing.T) {
	m, dir := newGitManager(t)

	ignored, err := m.SandboxIgnored()
	if err != nil {
		t.Fatalf("SandboxIgnored() error = %v", err)
	}
	if ignored {
		t.Fatal("a fresh repository should not ignore the sandbox")
	}

	if err := m.ExcludeSandbox(); err != nil {
		t.Fatalf("ExcludeSandbox() error = %v", err)
	}
	if err := m.ExcludeSandbox(); err != nil {
		t.Fatalf("second ExcludeSandbox() error = %v", err)
	}

	content := readExclude(t, dir)
	if n := strings.Count(content, "/.hive-worktrees/\n"); n != 1 {
		t.Errorf("pattern appears %d times in info/exclude:\n%s", n, content)
	}
	if ignored, err := m.SandboxIgnored(); err != nil || !ignored {
		t.Errorf("SandboxIgnored() after exclude = %v, %v", ignored, err)
	}

	// git agrees the sandbox is ignored
	if _, err := m.Create("run", "alpha"); err != nil {
		t.Fatal(err)
	}
	if status := testutil.Git(t, dir, "status", "--porcelain"); status != "" {
		t.Errorf("sandbox shows up in git status: %q", status)
	}
}

func TestExcludeSandbox_RespectsGitignore(t *testing.T) {
	m, dir := newGitManager(t)
	testutil.CommitFile(t, dir, ".gitignore", "*.log\n.hive-worktrees/\n", "ignore sandbox")
	before := readExclude(t, dir)

	ignored, err := m.SandboxIgnored()
	if err != nil || !ignored {
		t.Fatalf("SandboxIgnored() = %v, %v; want true", ignored, err)
	}
	if err := m.ExcludeSandbox(); err != nil {
		t.Fatal(err)
	}
	if got := readExclude(t, dir); got != before {
		t.Errorf("info/exclude changed although .gitignore covers the sandbox:\n%s", got)
	}
}

func TestExcludeSandbox_AppendsAfterUnterminatedLine(t *testing.T) {
	m, dir := newGitManager(t)
	path := filepath.Join(dir, ".git", "info", "exclude")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("*.tmp"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := m.ExcludeSandbox(); err != nil {
		t.Fatal(err)
	}
	if got, want := readExclude(t, dir), "*.tmp\n/.hive-worktrees/\n"; got != want {
		t.Errorf("info/exclude = %q, want %q", got, want)
	}
}

func TestExcludeSandbox_OutsideRepository(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := testutil.SetupTestRepo(t)

	m, err := New(dir, Options{SandboxDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	ignored, err := m.SandboxIgnored()
	if err != nil || !ignored {
		t.Errorf("SandboxIgnored() for an external sandbox = %v, %v; want true", ignored, err)
	}
	if err := m.ExcludeSandbox(); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(readExclude(t, dir), "hive") {
		t.Error("an external sandbox must not be written to info/exclude")
	}
}

func TestCreate_AutoExclude(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := testutil.SetupTestRepo(t)

	m, err := New(dir, Options{AutoExclude: true, SandboxDir: "work/teams"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Create("run", "alpha"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(readExclude(t, dir), "/work/teams/\n") {
		t.Errorf("info/exclude = %q, want the sandbox pattern", readExclude(t, dir))
	}
}

func TestExcludeSandbox_FakeBackend(t *testing.T) {
	m, fake := newFakeManager(t)

	if err := m.ExcludeSandbox(); err != nil {
		t.Fatalf("ExcludeSandbox() error = %v", err)
	}
	data, err := os.ReadFile(fake.exclude)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "/.hive-worktrees/\n" {
		t.Errorf("exclude = %q", data)
	}
	if fake.opens != 1 || fake.closes != 1 {
		t.Errorf("opens/closes = %d/%d", fake.opens, fake.closes)
	}
}
