package worktree

import (
	"fmt"

	"github.com/Iron-Ham/swarmtree/internal/errors"
)

// Merge merges teamBranch into targetBranch.
//
// The target is left alone when it already contains the team tip, and
// fast-forwarded when its tip is an ancestor of the team tip. Otherwise the
// trees are merged three ways against the merge base: a clean merge is
// committed on the target with parents [target, team], and a conflicting
// merge is reported in the result without touching the repository.
//
// Protected branches are refused as a merge source. Reference moves are
// compare-and-swap against the tips read at the start, so a concurrent
// update of the target fails the merge instead of being overwritten.
func (m *Manager) Merge(teamBranch, targetBranch string) (*MergeResult, error) {
	if m.guard.IsProtected(teamBranch) {
		return nil, errors.NewGitError("refusing to merge protected branch", errors.ErrForbiddenMergeSource).
			WithBranch(teamBranch).
			WithSeverity(errors.SeverityWarning)
	}

	logger := m.logger.With("source", teamBranch, "target", targetBranch)

	repo, err := m.open()
	if err != nil {
		return nil, err
	}
	defer m.closeRepo(repo)

	source, err := m.resolveBranch(repo, teamBranch)
	if err != nil {
		return nil, err
	}
	target, err := m.resolveBranch(repo, targetBranch)
	if err != nil {
		return nil, err
	}

	upToDate := source == target
	if !upToDate {
		upToDate, err = repo.IsAncestor(source, target)
		if err != nil {
			return nil, mergeBackendError("failed to analyze merge", teamBranch, err)
		}
	}
	if upToDate {
		logger.Info("target already up to date", "commit", target)
		return mergedResult(MergeUpToDate, target), nil
	}

	fastForward, err := repo.IsAncestor(target, source)
	if err != nil {
		return nil, mergeBackendError("failed to analyze merge", teamBranch, err)
	}
	if fastForward {
		if err := repo.UpdateBranch(targetBranch, source, target); err != nil {
			return nil, mergeBackendError("failed to fast-forward", targetBranch, err)
		}
		logger.Info(m.message("fast-forward merge", teamBranch, targetBranch), "from", target, "to", source)
		return mergedResult(MergeFastForward, source), nil
	}

	base, err := repo.MergeBase(source, target)
	if err != nil {
		return nil, mergeBackendError("failed to compute merge base", teamBranch, err)
	}
	merged, err := repo.MergeTrees(base, target, source)
	if err != nil {
		return nil, mergeBackendError("failed to merge trees", teamBranch, err)
	}

	if len(merged.Conflicts) > 0 {
		paths := conflictPaths(merged.Conflicts)
		logger.Warn("merge has conflicts", "base", base, "conflicts", paths)
		return conflictResult(paths), nil
	}

	commit, err := repo.CreateCommit(merged.Tree, []string{target, source}, m.message("merge", teamBranch, targetBranch))
	if err != nil {
		return nil, mergeBackendError("failed to create merge commit", targetBranch, err)
	}
	if err := repo.UpdateBranch(targetBranch, commit, target); err != nil {
		return nil, mergeBackendError("failed to update target branch", targetBranch, err)
	}

	logger.Info("merge commit created", "base", base, "commit", commit)
	return mergedResult(MergeCommit, commit), nil
}

func (m *Manager) resolveBranch(repo Repository, name string) (string, error) {
	commit, err := repo.BranchCommit(name)
	if err != nil {
		if errors.Is(err, errors.ErrRefNotFound) {
			return "", err
		}
		return "", mergeBackendError("failed to resolve branch", name, err)
	}
	if commit == "" {
		return "", errors.NewNotFoundError("branch", name)
	}
	return commit, nil
}

// message builds "<prefix>: <action> <source> into <target>".
func (m *Manager) message(action, source, target string) string {
	msg := fmt.Sprintf("%s %s into %s", action, source, target)
	if m.messagePrefix == "" {
		return msg
	}
	return m.messagePrefix + ": " + msg
}

// mergeBackendError classifies a backend failure during a merge as
// ErrMergeBackend, keeping the original error in the chain.
func mergeBackendError(message, branch string, err error) error {
	if errors.Is(err, errors.ErrMergeBackend) {
		return errors.Wrap(err, message)
	}
	return errors.NewGitError(message, errors.Join(errors.ErrMergeBackend, err)).WithBranch(branch)
}
