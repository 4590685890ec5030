// Package logging provides structured logging for swarmtree.
//
// It wraps Go's log/slog with a JSON handler and adds persistent context
// attributes so every line emitted while working on a swarm run or a single
// team can be filtered afterwards.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/path/to/logs", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.WithRun("run-1").WithTeam("alpha").Info("worktree created", "path", path)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"worktree created","run_id":"run-1","team_id":"alpha","path":"..."}
//
// An empty directory writes to stderr. Tests use [NopLogger].
//
// # Rotation
//
// [NewRotatingLogger] moves swarmtree.log aside once it passes
// Rotation.MaxSizeMB, keeping Rotation.MaxBackups older files named
// swarmtree.log.1 (newest) through swarmtree.log.N.
//
// # Thread Safety
//
// A Logger and all of its children are safe for concurrent use. Children
// share the parent's handler and file.
package logging
