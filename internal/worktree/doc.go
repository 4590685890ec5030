// Package worktree isolates concurrent teams working on one repository and
// merges their work back.
//
// Each team of a swarm run gets a private branch swarm/<run>/<team> and a
// linked worktree at <repo>/.hive-worktrees/<team>:
//
//	m, err := worktree.New(repoDir, worktree.Options{})
//	wt, err := m.Create("run-1", "alpha")
//	// ... the team commits inside wt.WorktreePath ...
//	res, err := m.Merge(wt.BranchName, "main")
//	if !res.Success {
//	    fmt.Println("conflicts:", res.Conflicts)
//	}
//	n, err := m.CleanupSwarm("run-1")
//
// Identifiers are sanitized to [A-Za-z0-9_-] and every worktree path is
// checked against the sandbox root before it is created or removed.
// Protected branches (main and master by default) are never deleted and
// never merged from.
//
// # Concurrency
//
// Worktrees may be used by different processes at the same time, but the
// repository's references are shared. Manager does not lock; callers must
// serialize Create, Merge, Cleanup and CleanupSwarm per repository, for
// example with package repolock.
package worktree
