package worktree

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/denormal/go-gitignore"

	"github.com/Iron-Ham/swarmtree/internal/errors"
)

// SandboxIgnored reports whether the repository already keeps the sandbox
// out of version control, through .gitignore files or info/exclude. A
// sandbox outside the repository counts as ignored.
func (m *Manager) SandboxIgnored() (bool, error) {
	repo, err := m.open()
	if err != nil {
		return false, err
	}
	defer m.closeRepo(repo)

	return m.sandboxIgnored(repo)
}

// ExcludeSandbox appends the sandbox to info/exclude unless it is already
// ignored. It is idempotent.
func (m *Manager) ExcludeSandbox() error {
	repo, err := m.open()
	if err != nil {
		return err
	}
	defer m.closeRepo(repo)

	return m.excludeSandbox(repo)
}

func (m *Manager) sandboxRel() (string, bool) {
	rel, err := filepath.Rel(m.repoPath, m.sandboxRoot)
	if err != nil || !within(m.repoPath, m.sandboxRoot) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (m *Manager) sandboxIgnored(repo Repository) (bool, error) {
	rel, inside := m.sandboxRel()
	if !inside {
		return true, nil
	}

	if _, err := os.Stat(filepath.Join(m.repoPath, ".gitignore")); err == nil {
		ignore, err := gitignore.NewRepositoryWithFile(m.repoPath, ".gitignore")
		if err != nil {
			return false, errors.NewGitError("failed to read .gitignore", errors.Join(errors.ErrBackendIO, err)).
				WithRepository(m.repoPath)
		}
		if match := ignore.Relative(rel, true); match != nil && match.Ignore() {
			return true, nil
		}
	}

	excludeFile, err := repo.ExcludeFile()
	if err != nil {
		return false, err
	}
	f, err := os.Open(excludeFile)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.NewGitError("failed to read info/exclude", errors.Join(errors.ErrBackendIO, err)).
			WithRepository(m.repoPath)
	}
	defer func() { _ = f.Close() }()

	exclude := gitignore.New(f, m.repoPath, nil)
	match := exclude.Relative(rel, true)
	return match != nil && match.Ignore(), nil
}

func (m *Manager) excludeSandbox(repo Repository) error {
	ignored, err := m.sandboxIgnored(repo)
	if err != nil || ignored {
		return err
	}
	rel, _ := m.sandboxRel()

	excludeFile, err := repo.ExcludeFile()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(excludeFile), 0755); err != nil {
		return errors.NewGitError("failed to create info directory", errors.Join(errors.ErrBackendIO, err)).
			WithRepository(m.repoPath)
	}

	needsNewline, err := missingTrailingNewline(excludeFile)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(excludeFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return errors.NewGitError("failed to open info/exclude", errors.Join(errors.ErrBackendIO, err)).
			WithRepository(m.repoPath)
	}
	w := bufio.NewWriter(f)
	if needsNewline {
		_ = w.WriteByte('\n')
	}
	_, _ = w.WriteString("/" + strings.TrimSuffix(rel, "/") + "/\n")
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return errors.NewGitError("failed to write info/exclude", errors.Join(errors.ErrBackendIO, err)).
			WithRepository(m.repoPath)
	}
	if err := f.Close(); err != nil {
		return errors.NewGitError("failed to close info/exclude", errors.Join(errors.ErrBackendIO, err)).
			WithRepository(m.repoPath)
	}

	m.logger.Info("sandbox added to info/exclude", "pattern", "/"+rel+"/", "file", excludeFile)
	return nil
}

func missingTrailingNewline(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.NewGitError("failed to read info/exclude", errors.Join(errors.ErrBackendIO, err))
	}
	return len(data) > 0 && data[len(data)-1] != '\n', nil
}
