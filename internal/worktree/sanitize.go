package worktree

import (
	"strings"

	"github.com/Iron-Ham/swarmtree/internal/errors"
)

// Sanitize strips every character that is not an ASCII letter, digit,
// hyphen or underscore. It never fails; callers decide whether an empty
// result is acceptable. Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return -1
		}
	}, s)
}

// sanitizeID sanitizes an identifier and rejects it when nothing survives.
func sanitizeID(field, value string) (string, error) {
	clean := Sanitize(value)
	if clean == "" {
		return "", errors.NewValidationError(field + " must contain at least one letter, digit, '-' or '_'").
			WithField(field).
			WithValue(value)
	}
	return clean, nil
}

// BranchName returns the team branch name <prefix>/<runID>/<teamID>.
// The identifiers are expected to be sanitized already.
func BranchName(prefix, runID, teamID string) string {
	return prefix + "/" + runID + "/" + teamID
}

// RunPrefix returns the branch prefix shared by every team of a run.
func RunPrefix(prefix, runID string) string {
	return prefix + "/" + runID + "/"
}
