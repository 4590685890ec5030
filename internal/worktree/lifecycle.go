package worktree

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Iron-Ham/swarmtree/internal/errors"
	"github.com/Iron-Ham/swarmtree/internal/logging"
)

// Create gives a team its own branch and worktree.
//
// The branch <prefix>/<run>/<team> is created at HEAD and then checked out
// in a new worktree at <sandbox>/<team>. A leftover directory at that path
// is removed first. Creating a branch that already exists fails with
// ErrDuplicateBranch. If attaching the worktree fails, the branch is left in
// place; Cleanup with deleteBranch removes it.
func (m *Manager) Create(runID, teamID string) (*TeamWorktree, error) {
	run, err := sanitizeID("run_id", runID)
	if err != nil {
		return nil, err
	}
	team, err := sanitizeID("team_id", teamID)
	if err != nil {
		return nil, err
	}

	branch := BranchName(m.prefix, run, team)
	logger := m.logger.WithRun(run).WithTeam(team)

	path, err := ValidatePath(filepath.Join(m.sandboxRoot, team), m.sandboxRoot)
	if err != nil {
		return nil, err
	}

	repo, err := m.open()
	if err != nil {
		return nil, err
	}
	defer m.closeRepo(repo)

	head, err := repo.HeadCommit()
	if err != nil {
		return nil, classify(err, errors.ErrRefNotFound, "failed to resolve HEAD", m.repoPath)
	}
	if err := repo.CreateBranch(branch, head); err != nil {
		return nil, classify(err, errors.ErrBackendIO, "failed to create branch "+branch, m.repoPath)
	}
	logger.Debug("branch created", "branch", branch, "commit", head)

	if m.autoExclude {
		if err := m.excludeSandbox(repo); err != nil {
			logger.Warn("failed to exclude sandbox from version control", "sandbox", m.sandboxRoot, "error", err)
		}
	}

	if _, err := os.Lstat(path); err == nil {
		logger.Warn("removing stale worktree directory", "path", path)
		if err := os.RemoveAll(path); err != nil {
			return nil, errors.NewGitError("failed to remove stale worktree directory", errors.Join(errors.ErrBackendIO, err)).
				WithBranch(branch).
				WithWorktree(path)
		}
		// git refuses to attach over a registered worktree, even a missing one
		m.forgetWorktree(repo, path, logger)
	}

	if err := repo.AddWorktree(path, branch); err != nil {
		logger.Error("failed to attach worktree, branch left in place", "branch", branch, "path", path, "error", err)
		return nil, classify(err, errors.ErrBackendIO, "failed to attach worktree", m.repoPath)
	}

	logger.Info("worktree created", "branch", branch, "path", path)
	return &TeamWorktree{
		TeamID:       team,
		BranchName:   branch,
		WorktreePath: path,
	}, nil
}

// List returns the team worktrees found in the sandbox, sorted by team id.
//
// Each sandbox subdirectory is paired with the first branch, in sorted
// order, that starts with "<prefix>/" and ends with "/<dir>". The match is a
// suffix match, so a branch for team "x-alpha" is never mistaken for "alpha",
// but a branch ".../alpha" from any run is. Directories without a matching
// branch are omitted.
func (m *Manager) List() ([]TeamWorktree, error) {
	entries, err := os.ReadDir(m.sandboxRoot)
	if os.IsNotExist(err) {
		return []TeamWorktree{}, nil
	}
	if err != nil {
		return nil, errors.NewGitError("failed to read sandbox", errors.Join(errors.ErrBackendIO, err)).
			WithWorktree(m.sandboxRoot)
	}

	repo, err := m.open()
	if err != nil {
		return nil, err
	}
	defer m.closeRepo(repo)

	branches, err := repo.ListBranches()
	if err != nil {
		return nil, classify(err, errors.ErrBackendIO, "failed to list branches", m.repoPath)
	}

	result := []TeamWorktree{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		branch, ok := m.findTeamBranch(branches, name)
		if !ok {
			continue
		}
		path, err := ValidatePath(filepath.Join(m.sandboxRoot, name), m.sandboxRoot)
		if err != nil {
			m.logger.Warn("skipping worktree outside sandbox", "dir", name, "error", err)
			continue
		}
		result = append(result, TeamWorktree{
			TeamID:       name,
			BranchName:   branch,
			WorktreePath: path,
		})
	}

	sort.Slice(result, func(i, j int) bool { return result[i].TeamID < result[j].TeamID })
	return result, nil
}

// findTeamBranch returns the first branch under the prefix that ends in
// "/<team>".
func (m *Manager) findTeamBranch(branches []string, team string) (string, bool) {
	for _, b := range branches {
		if m.isTeamBranch(b, team) {
			return b, true
		}
	}
	return "", false
}

func (m *Manager) isTeamBranch(branch, team string) bool {
	return strings.HasPrefix(branch, m.prefix+"/") && strings.HasSuffix(branch, "/"+team)
}

// Cleanup removes a team's worktree and, when deleteBranch is set, every
// non-protected branch "<prefix>/*/<team>".
//
// The directory is removed before the repository is opened, so disk space
// is reclaimed even when the repository cannot be opened. Only failing to
// remove the worktree directory, or to open the repository afterwards, is
// fatal. Unlocking and pruning worktree metadata and deleting branches are
// best effort: failures are logged and skipped so Cleanup can be repeated
// on partially cleaned state.
func (m *Manager) Cleanup(teamID string, deleteBranch bool) error {
	team, err := sanitizeID("team_id", teamID)
	if err != nil {
		return err
	}
	logger := m.logger.WithTeam(team)

	if err := m.removeWorktreeDir(team); err != nil {
		return err
	}

	repo, err := m.open()
	if err != nil {
		return err
	}
	defer m.closeRepo(repo)

	m.forgetWorktree(repo, m.registeredPath(team), logger)

	if !deleteBranch {
		logger.Info("worktree cleaned up")
		return nil
	}

	branches, err := repo.ListBranches()
	if err != nil {
		logger.Warn("failed to list branches, skipping branch deletion", "error", err)
		return nil
	}
	for _, b := range branches {
		if !m.isTeamBranch(b, team) {
			continue
		}
		if m.guard.IsProtected(b) {
			logger.Warn("refusing to delete protected branch", "branch", b)
			continue
		}
		if err := repo.DeleteBranch(b); err != nil {
			logger.Warn("failed to delete branch", "branch", b, "error", err)
			continue
		}
		logger.Debug("branch deleted", "branch", b)
	}

	logger.Info("worktree and branches cleaned up")
	return nil
}

// removeWorktreeDir removes <sandbox>/<team> if present, after checking it
// still resolves inside the sandbox.
func (m *Manager) removeWorktreeDir(team string) error {
	path := filepath.Join(m.sandboxRoot, team)
	if _, err := os.Lstat(path); err != nil {
		return nil
	}

	canon, err := ValidatePath(path, m.sandboxRoot)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(canon); err != nil {
		return errors.NewGitError("failed to remove worktree directory", errors.Join(errors.ErrBackendIO, err)).
			WithWorktree(canon)
	}
	m.logger.WithTeam(team).Debug("worktree directory removed", "path", canon)
	return nil
}

// registeredPath is the path Create registered for team's worktree: the
// canonical sandbox root joined with the team id.
func (m *Manager) registeredPath(team string) string {
	root := m.sandboxRoot
	if canon, err := filepath.EvalSymlinks(root); err == nil {
		root = canon
	}
	return filepath.Join(root, team)
}

// forgetWorktree drops git's metadata for the worktree registered at path
// once its directory is gone. A lock would make prune keep the entry, so
// the worktree is unlocked first; an unlock failure usually just means it
// was never locked.
func (m *Manager) forgetWorktree(repo Repository, path string, logger *logging.Logger) {
	if err := repo.UnlockWorktree(path); err != nil {
		logger.Debug("worktree not unlocked", "path", path, "error", err)
	}
	if err := repo.PruneWorktrees(); err != nil {
		logger.Warn("failed to prune worktree metadata", "error", err)
	}
}

// CleanupSwarm removes the worktree and branch of every team in a run and
// returns how many "<prefix>/<run>/" branches were found. Each step is best
// effort; failures are logged and the remaining teams are still processed.
// The sandbox root is removed when it ends up empty.
func (m *Manager) CleanupSwarm(runID string) (int, error) {
	run, err := sanitizeID("run_id", runID)
	if err != nil {
		return 0, err
	}
	logger := m.logger.WithRun(run)
	prefix := RunPrefix(m.prefix, run)

	repo, err := m.open()
	if err != nil {
		return 0, err
	}
	defer m.closeRepo(repo)

	branches, err := repo.ListBranches()
	if err != nil {
		return 0, classify(err, errors.ErrBackendIO, "failed to list branches", m.repoPath)
	}

	count := 0
	for _, b := range branches {
		if !strings.HasPrefix(b, prefix) {
			continue
		}
		count++
		team := strings.TrimPrefix(b, prefix)
		teamLogger := logger.WithTeam(team)

		if err := m.removeWorktreeDir(team); err != nil {
			teamLogger.Warn("failed to remove worktree directory", "error", err)
		}
		m.forgetWorktree(repo, m.registeredPath(team), teamLogger)
		if m.guard.IsProtected(b) {
			teamLogger.Warn("refusing to delete protected branch", "branch", b)
			continue
		}
		if err := repo.DeleteBranch(b); err != nil {
			teamLogger.Warn("failed to delete branch", "branch", b, "error", err)
			continue
		}
		teamLogger.Debug("branch deleted", "branch", b)
	}

	if entries, err := os.ReadDir(m.sandboxRoot); err == nil && len(entries) == 0 {
		if err := os.Remove(m.sandboxRoot); err != nil {
			logger.Warn("failed to remove empty sandbox", "path", m.sandboxRoot, "error", err)
		}
	}

	logger.Info("swarm cleaned up", "branches", count)
	return count, nil
}
