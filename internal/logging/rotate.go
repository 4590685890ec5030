package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Rotation controls size-based rotation of the log file. The zero value
// never rotates.
type Rotation struct {
	// MaxSizeMB is the size at which swarmtree.log is rotated. 0 disables rotation.
	MaxSizeMB int
	// MaxBackups is how many rotated files (swarmtree.log.1, .2, ...) are kept.
	MaxBackups int
}

// rotatingFile is an append-only file that moves itself aside once it
// grows past maxBytes. Backups shift up by one on every rotation and the
// oldest one falls off the end.
type rotatingFile struct {
	mu         sync.Mutex
	path       string
	maxBytes   int64
	maxBackups int

	f    *os.File
	size int64
}

func openRotatingFile(path string, rot Rotation) (*rotatingFile, error) {
	rf := &rotatingFile{
		path:       path,
		maxBytes:   int64(rot.MaxSizeMB) << 20,
		maxBackups: rot.MaxBackups,
	}
	if err := rf.open(); err != nil {
		return nil, err
	}
	return rf, nil
}

func (rf *rotatingFile) open() error {
	if err := os.MkdirAll(filepath.Dir(rf.path), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(rf.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	rf.f, rf.size = f, info.Size()
	return nil
}

// Write appends p, rotating first when p would push the file past its
// limit. A single entry larger than the limit is still written whole.
func (rf *rotatingFile) Write(p []byte) (int, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.f == nil {
		return 0, os.ErrClosed
	}
	if rf.maxBytes > 0 && rf.size > 0 && rf.size+int64(len(p)) > rf.maxBytes {
		if err := rf.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := rf.f.Write(p)
	rf.size += int64(n)
	return n, err
}

func (rf *rotatingFile) rotate() error {
	if err := rf.f.Close(); err != nil {
		return fmt.Errorf("failed to close log file for rotation: %w", err)
	}
	rf.f = nil

	if rf.maxBackups <= 0 {
		if err := os.Remove(rf.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to truncate log file: %w", err)
		}
		return rf.open()
	}

	_ = os.Remove(backupName(rf.path, rf.maxBackups))
	for i := rf.maxBackups - 1; i >= 1; i-- {
		if err := os.Rename(backupName(rf.path, i), backupName(rf.path, i+1)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to shift log backup: %w", err)
		}
	}
	if err := os.Rename(rf.path, backupName(rf.path, 1)); err != nil {
		return fmt.Errorf("failed to rotate log file: %w", err)
	}
	return rf.open()
}

// Close syncs and closes the file. Later calls are no-ops.
func (rf *rotatingFile) Close() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.f == nil {
		return nil
	}
	f := rf.f
	rf.f = nil
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to sync log file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	return nil
}

func backupName(path string, n int) string {
	return fmt.Sprintf("%s.%d", path, n)
}
