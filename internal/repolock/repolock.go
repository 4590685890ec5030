// Package repolock serializes operations that mutate the same repository.
//
// The worktree engine does no locking of its own. Callers that may run
// Create, Merge, Cleanup or CleanupSwarm concurrently against one repository
// take the lock for that repository first:
//
//	unlock, err := repolock.Lock(ctx, repoPath)
//	if err != nil {
//		return err
//	}
//	defer unlock()
//
// Locks are keyed by the canonical repository path, so a path through a
// symlink and the real path share one lock. Locks only serialize callers in
// the same process.
package repolock

import (
	"context"
	"path/filepath"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Locker hands out one exclusive lock per repository.
type Locker struct {
	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
}

// New creates an empty Locker.
func New() *Locker {
	return &Locker{sems: make(map[string]*semaphore.Weighted)}
}

var defaultLocker = New()

// Lock acquires the process-wide lock for repoPath.
func Lock(ctx context.Context, repoPath string) (func(), error) {
	return defaultLocker.Lock(ctx, repoPath)
}

// Lock blocks until the lock for repoPath is free or ctx is done. The
// returned function releases the lock and may be called more than once.
func (l *Locker) Lock(ctx context.Context, repoPath string) (func(), error) {
	sem := l.semaphore(Key(repoPath))
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return releaser(sem), nil
}

// TryLock acquires the lock for repoPath without blocking.
func (l *Locker) TryLock(repoPath string) (func(), bool) {
	sem := l.semaphore(Key(repoPath))
	if !sem.TryAcquire(1) {
		return nil, false
	}
	return releaser(sem), true
}

func (l *Locker) semaphore(key string) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()

	sem, ok := l.sems[key]
	if !ok {
		sem = semaphore.NewWeighted(1)
		l.sems[key] = sem
	}
	return sem
}

func releaser(sem *semaphore.Weighted) func() {
	var once sync.Once
	return func() { once.Do(func() { sem.Release(1) }) }
}

// Key returns the canonical form of repoPath used to key locks. Paths that
// cannot be resolved fall back to their cleaned absolute form.
func Key(repoPath string) string {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return filepath.Clean(repoPath)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
