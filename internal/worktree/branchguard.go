package worktree

import "slices"

// DefaultProtectedBranches are the primary branches of a repository.
var DefaultProtectedBranches = []string{"main", "master"}

// BranchGuard decides which branches are protected. A protected branch is
// never deleted by cleanup and never accepted as a merge source; it may
// still be a merge target. The zero value protects nothing.
type BranchGuard struct {
	protected []string
}

// NewBranchGuard returns a guard for the given branch names.
// A nil slice falls back to DefaultProtectedBranches.
func NewBranchGuard(protected []string) BranchGuard {
	if protected == nil {
		protected = DefaultProtectedBranches
	}
	return BranchGuard{protected: slices.Clone(protected)}
}

// IsProtected reports whether name is in the protected set. The comparison
// is exact; "swarm/run/main" is not protected.
func (g BranchGuard) IsProtected(name string) bool {
	return slices.Contains(g.protected, name)
}

// Protected returns a copy of the protected set.
func (g BranchGuard) Protected() []string {
	return slices.Clone(g.protected)
}
