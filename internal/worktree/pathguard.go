package worktree

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/Iron-Ham/swarmtree/internal/errors"
)

// ValidatePath canonicalizes candidate and verifies that it lies strictly
// inside root, returning the canonical path.
//
// The root is created when missing. Canonicalization resolves symlinks and
// is only defined for existing paths, so a candidate that does not exist yet
// is validated through its parent directory (created if needed) with the
// final component re-appended. A candidate whose cleaned form already lies
// outside root is rejected before any directory is created for it.
func ValidatePath(candidate, root string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", ioError("failed to resolve sandbox root", root, err)
	}
	if err := os.MkdirAll(absRoot, 0755); err != nil {
		return "", ioError("failed to create sandbox root", absRoot, err)
	}
	canonRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", ioError("failed to canonicalize sandbox root", absRoot, err)
	}

	absCandidate, err := filepath.Abs(candidate)
	if err != nil {
		return "", ioError("failed to resolve path", candidate, err)
	}
	if !within(absRoot, absCandidate) && !within(canonRoot, absCandidate) {
		return "", errors.NewPathTraversalError(absCandidate, canonRoot)
	}

	var canon string
	if _, err := os.Lstat(absCandidate); err == nil {
		canon, err = filepath.EvalSymlinks(absCandidate)
		if err != nil {
			return "", ioError("failed to canonicalize path", absCandidate, err)
		}
	} else {
		parent := filepath.Dir(absCandidate)
		if err := os.MkdirAll(parent, 0755); err != nil {
			return "", ioError("failed to create parent directory", parent, err)
		}
		canonParent, err := filepath.EvalSymlinks(parent)
		if err != nil {
			return "", ioError("failed to canonicalize parent directory", parent, err)
		}
		canon = filepath.Join(canonParent, filepath.Base(absCandidate))
	}

	if !within(canonRoot, canon) {
		return "", errors.NewPathTraversalError(canon, canonRoot)
	}
	return canon, nil
}

// within reports whether path is a strict descendant of root, comparing
// whole path components. Both paths must be absolute and clean.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func ioError(message, path string, err error) error {
	return errors.NewGitError(message, errors.Join(errors.ErrBackendIO, err)).WithWorktree(path)
}
