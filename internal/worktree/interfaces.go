package worktree

// Backend opens short-lived handles on a repository. Every Manager
// operation opens one handle and closes it before returning.
type Backend interface {
	Open(repoPath string) (Repository, error)
}

// Repository is the set of version-control primitives the lifecycle and
// merge engine need. Commits are identified by their full hex object id
// and branches by their short name (e.g. "swarm/run-1/alpha").
//
// Implementations classify failures with the sentinels in internal/errors:
// a missing HEAD or branch matches ErrRefNotFound, an existing branch on
// create matches ErrDuplicateBranch, worktree and filesystem failures match
// ErrBackendIO, and analysis, tree merge or commit failures match
// ErrMergeBackend.
type Repository interface {
	// HeadCommit resolves HEAD to a commit.
	HeadCommit() (string, error)

	// CreateBranch creates a branch at commit. It fails if the branch exists.
	CreateBranch(name, commit string) error

	// BranchCommit resolves a local branch to its tip commit.
	BranchCommit(name string) (string, error)

	// ListBranches returns all local branch names in sorted order.
	ListBranches() ([]string, error)

	// DeleteBranch removes a local branch.
	DeleteBranch(name string) error

	// AddWorktree attaches a new linked worktree at path checked out on an
	// existing branch. The path must not exist.
	AddWorktree(path, branch string) error

	// UnlockWorktree clears the lock on the worktree registered at path,
	// whether or not its directory still exists. It fails when the
	// worktree is unknown or not locked.
	UnlockWorktree(path string) error

	// PruneWorktrees removes metadata of unlocked worktrees whose
	// directory is gone.
	PruneWorktrees() error

	// IsAncestor reports whether ancestor is reachable from descendant.
	// A commit is its own ancestor.
	IsAncestor(ancestor, descendant string) (bool, error)

	// MergeBase returns the nearest common ancestor of two commits.
	MergeBase(a, b string) (string, error)

	// MergeTrees performs a three-way merge of the trees of base, ours and
	// theirs. A clean merge writes the merged tree to the object database.
	MergeTrees(base, ours, theirs string) (*TreeMerge, error)

	// CreateCommit writes a commit object and returns its id. It does not
	// move any reference.
	CreateCommit(tree string, parents []string, message string) (string, error)

	// UpdateBranch moves a branch from oldCommit to newCommit. It fails
	// without writing if the branch no longer points at oldCommit.
	UpdateBranch(name, newCommit, oldCommit string) error

	// ExcludeFile returns the absolute path of the repository's
	// info/exclude file, shared by all of its worktrees.
	ExcludeFile() (string, error)

	// Close releases the handle.
	Close() error
}

// TreeMerge is the result of a three-way tree merge. Tree is set only when
// Conflicts is empty.
type TreeMerge struct {
	Tree      string
	Conflicts []ConflictEntry
}

// ConflictEntry is one conflicted index entry. Each side holds the path the
// entry has on that side, or "" when the side has no entry (for example
// the ancestor of an add/add conflict).
type ConflictEntry struct {
	Ancestor string
	Ours     string
	Theirs   string
}

// Path returns the path that identifies the conflict, preferring ours,
// then theirs, then the ancestor.
func (c ConflictEntry) Path() string {
	switch {
	case c.Ours != "":
		return c.Ours
	case c.Theirs != "":
		return c.Theirs
	default:
		return c.Ancestor
	}
}

// Ensure the git implementation satisfies the interfaces at compile time.
var (
	_ Backend    = (*GitBackend)(nil)
	_ Repository = (*gitRepository)(nil)
)
