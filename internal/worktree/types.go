package worktree

// TeamWorktree describes one team's isolated working copy.
type TeamWorktree struct {
	TeamID       string `json:"team_id" yaml:"team_id"`
	BranchName   string `json:"branch_name" yaml:"branch_name"`
	WorktreePath string `json:"worktree_path" yaml:"worktree_path"`
}

// MergeKind records which path a merge took.
type MergeKind string

const (
	MergeUpToDate    MergeKind = "up_to_date"
	MergeFastForward MergeKind = "fast_forward"
	MergeCommit      MergeKind = "merge_commit"
	MergeConflict    MergeKind = "conflict"
)

// MergeResult is the outcome of merging a team branch into a target.
//
// Success is true exactly when Conflicts is empty, and CommitHash is set
// exactly when Success is true. A conflicting merge is not an error.
type MergeResult struct {
	Success    bool      `json:"success" yaml:"success"`
	Conflicts  []string  `json:"conflicts" yaml:"conflicts"`
	CommitHash string    `json:"commit_hash,omitempty" yaml:"commit_hash,omitempty"`
	Kind       MergeKind `json:"kind" yaml:"kind"`
}

func mergedResult(kind MergeKind, commit string) *MergeResult {
	return &MergeResult{
		Success:    true,
		Conflicts:  []string{},
		CommitHash: commit,
		Kind:       kind,
	}
}

func conflictResult(paths []string) *MergeResult {
	return &MergeResult{
		Success:   false,
		Conflicts: paths,
		Kind:      MergeConflict,
	}
}
