package worktree

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Iron-Ham/swarmtree/internal/config"
	"github.com/Iron-Ham/swarmtree/internal/errors"
	"github.com/Iron-Ham/swarmtree/internal/logging"
)

// Manager creates, lists, merges and destroys team worktrees of one
// repository.
//
// A Manager holds only paths and settings. Every operation opens its own
// backend handle and releases it before returning. Manager does no locking:
// callers must serialize Create, Merge, Cleanup and CleanupSwarm against the
// same repository (see package repolock). List may run concurrently with
// other List calls.
type Manager struct {
	repoPath      string
	sandboxRoot   string
	prefix        string
	messagePrefix string
	autoExclude   bool
	guard         BranchGuard
	backend       Backend
	logger        *logging.Logger
}

// Options configures a Manager. Zero values select the defaults.
type Options struct {
	// SandboxDir is the worktree root; relative paths resolve against the
	// repository root. Defaults to .hive-worktrees.
	SandboxDir string
	// BranchPrefix defaults to "swarm".
	BranchPrefix string
	// Protected defaults to DefaultProtectedBranches.
	Protected []string
	// MessagePrefix starts merge commit messages. Defaults to "hive".
	MessagePrefix string
	// AutoExclude adds the sandbox to info/exclude on Create when the
	// repository does not already ignore it.
	AutoExclude bool
	// Backend defaults to a GitBackend with DefaultIdentity.
	Backend Backend
	// Logger defaults to a discarding logger.
	Logger *logging.Logger
}

// FindGitRoot finds the root of the git repository by traversing up from startDir.
// It returns the directory containing .git (either a directory or a file for worktrees).
func FindGitRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			if info.IsDir() || info.Mode().IsRegular() {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not a git repository (or any parent up to mount point)")
		}
		dir = parent
	}
}

// New creates a Manager for the repository containing repoDir.
func New(repoDir string, opts Options) (*Manager, error) {
	root, err := FindGitRoot(repoDir)
	if err != nil {
		return nil, errors.NewGitError("not a git repository", errors.Join(errors.ErrRepoOpen, err)).
			WithRepository(repoDir)
	}

	wtCfg := config.WorktreeConfig{Dir: opts.SandboxDir}
	m := &Manager{
		repoPath:      root,
		sandboxRoot:   filepath.Clean(wtCfg.ResolveDir(root)),
		prefix:        opts.BranchPrefix,
		messagePrefix: opts.MessagePrefix,
		autoExclude:   opts.AutoExclude,
		guard:         NewBranchGuard(opts.Protected),
		backend:       opts.Backend,
		logger:        opts.Logger,
	}
	if m.prefix == "" {
		m.prefix = "swarm"
	}
	if m.messagePrefix == "" {
		m.messagePrefix = "hive"
	}
	if m.backend == nil {
		m.backend = NewGitBackend(DefaultIdentity)
	}
	if m.logger == nil {
		m.logger = logging.NopLogger()
	}
	return m, nil
}

// NewFromConfig creates a Manager configured from cfg.
func NewFromConfig(repoDir string, cfg *config.Config, logger *logging.Logger) (*Manager, error) {
	backend := NewGitBackend(Identity{Name: cfg.Merge.AuthorName, Email: cfg.Merge.AuthorEmail})
	m, err := New(repoDir, Options{
		SandboxDir:    cfg.Worktree.Dir,
		BranchPrefix:  cfg.Branch.Prefix,
		Protected:     cfg.Branch.Protected,
		MessagePrefix: cfg.Merge.MessagePrefix,
		AutoExclude:   cfg.Worktree.AutoExclude,
		Backend:       backend,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	// An explicitly empty prefix in the config means no prefix
	if cfg.Merge.MessagePrefix == "" {
		m.messagePrefix = ""
	}
	return m, nil
}

// RepoPath returns the repository root.
func (m *Manager) RepoPath() string { return m.repoPath }

// SandboxRoot returns the directory that holds team worktrees.
func (m *Manager) SandboxRoot() string { return m.sandboxRoot }

// BranchPrefix returns the team branch namespace.
func (m *Manager) BranchPrefix() string { return m.prefix }

// Guard returns the branch guard in use.
func (m *Manager) Guard() BranchGuard { return m.guard }

// open acquires a backend handle. Errors the backend did not classify are
// reported as repository open failures.
func (m *Manager) open() (Repository, error) {
	repo, err := m.backend.Open(m.repoPath)
	if err != nil {
		return nil, classify(err, errors.ErrRepoOpen, "failed to open repository", m.repoPath)
	}
	return repo, nil
}

func (m *Manager) closeRepo(repo Repository) {
	if err := repo.Close(); err != nil {
		m.logger.Warn("failed to close repository handle", "repo", m.repoPath, "error", err)
	}
}

// classify attaches sentinel to err unless err already belongs to the
// taxonomy, in which case it is returned unchanged.
func classify(err, sentinel error, message, repoPath string) error {
	if errors.KindOf(err) != errors.KindUnknown {
		return err
	}
	return errors.NewGitError(message, errors.Join(sentinel, err)).WithRepository(repoPath)
}
