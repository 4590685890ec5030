// Package errors provides the error taxonomy for swarmtree. It defines the
// sentinel errors every operation classifies into, typed errors that carry
// git context (branch, worktree, repository, captured git output), and
// classification helpers.
//
// # Taxonomy
//
// Every failure returned by the worktree engine matches exactly one sentinel
// via errors.Is:
//
//   - ErrInvalidInput: an identifier sanitizes to the empty string
//   - ErrPathTraversal: a candidate path escapes the sandbox root
//   - ErrRepoOpen: the repository could not be opened
//   - ErrRefNotFound: HEAD or a named branch does not resolve to a commit
//   - ErrDuplicateBranch: a team branch already exists
//   - ErrForbiddenMergeSource: a protected branch was used as merge source
//   - ErrMergeBackend: merge analysis, tree merge or commit creation failed
//   - ErrBackendIO: filesystem or worktree attach failure
//
// # Usage
//
//	err := errors.NewGitError("failed to attach worktree", errors.Join(errors.ErrBackendIO, cause)).
//		WithBranch("swarm/run-1/alpha").
//		WithWorktree(path)
//
//	if errors.Is(err, errors.ErrBackendIO) { ... }
//	fmt.Println(errors.KindOf(err)) // "backend_io"
//
// Merge conflicts are not errors. A divergent merge that cannot be applied
// cleanly is a successful call that reports its conflicting paths.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions so callers only import this package.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
	SeverityCritical
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

var (
	// ErrInvalidInput indicates an identifier that sanitized to nothing.
	ErrInvalidInput = New("invalid input")
	// ErrPathTraversal indicates a path that resolves outside the sandbox root.
	ErrPathTraversal = New("path traversal")
	// ErrRepoOpen indicates the repository could not be opened.
	ErrRepoOpen = New("repository open failure")
	// ErrRefNotFound indicates a missing HEAD or branch.
	ErrRefNotFound = New("reference not found")
	// ErrDuplicateBranch indicates the team branch already exists.
	ErrDuplicateBranch = New("duplicate branch")
	// ErrForbiddenMergeSource indicates a protected branch used as merge source.
	ErrForbiddenMergeSource = New("forbidden merge source")
	// ErrMergeBackend indicates a failure during merge analysis, tree merge or commit.
	ErrMergeBackend = New("merge backend failure")
	// ErrBackendIO indicates a filesystem or worktree attach failure.
	ErrBackendIO = New("backend io failure")
)

// Kind names a taxonomy class. It is stable and safe to use in logs and
// machine-readable output.
type Kind string

const (
	KindNone                 Kind = ""
	KindInvalidInput         Kind = "invalid_input"
	KindPathTraversal        Kind = "path_traversal"
	KindRepoOpen             Kind = "repo_open"
	KindRefNotFound          Kind = "ref_not_found"
	KindDuplicateBranch      Kind = "duplicate_branch"
	KindForbiddenMergeSource Kind = "forbidden_merge_source"
	KindMergeBackend         Kind = "merge_backend"
	KindBackendIO            Kind = "backend_io"
	KindUnknown              Kind = "unknown"
)

var kinds = []struct {
	sentinel error
	kind     Kind
}{
	{ErrInvalidInput, KindInvalidInput},
	{ErrPathTraversal, KindPathTraversal},
	{ErrRepoOpen, KindRepoOpen},
	{ErrRefNotFound, KindRefNotFound},
	{ErrDuplicateBranch, KindDuplicateBranch},
	{ErrForbiddenMergeSource, KindForbiddenMergeSource},
	{ErrMergeBackend, KindMergeBackend},
	{ErrBackendIO, KindBackendIO},
}

// KindOf returns the taxonomy class of err. Nil maps to KindNone and errors
// outside the taxonomy map to KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if Is(err, k.sentinel) {
			return k.kind
		}
	}
	return KindUnknown
}

// -----------------------------------------------------------------------------
// Base Error
// -----------------------------------------------------------------------------

// SwarmError is implemented by every typed error in this package.
type SwarmError interface {
	error
	Unwrap() error
	Is(target error) bool
	Severity() Severity
}

type baseError struct {
	message  string
	cause    error
	severity Severity
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error {
	return e.cause
}

func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

func (e *baseError) Severity() Severity {
	return e.severity
}

// -----------------------------------------------------------------------------
// GitError
// -----------------------------------------------------------------------------

// GitError represents a failed git operation. The cause should wrap one of
// the taxonomy sentinels so callers can classify it; the original diagnostic
// text is kept in the cause chain and in GitOutput.
//
// Example:
//
//	err := errors.NewGitError("failed to create branch", errors.ErrDuplicateBranch).
//		WithBranch("swarm/run-1/alpha")
type GitError struct {
	baseError
	Branch     string
	Worktree   string
	Repository string
	GitOutput  string
}

// NewGitError creates a new GitError.
func NewGitError(message string, cause error) *GitError {
	return &GitError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityError,
		},
	}
}

// WithBranch adds a branch name to the error context.
func (e *GitError) WithBranch(branch string) *GitError {
	e.Branch = branch
	return e
}

// WithWorktree adds a worktree path to the error context.
func (e *GitError) WithWorktree(path string) *GitError {
	e.Worktree = path
	return e
}

// WithRepository adds a repository path to the error context.
func (e *GitError) WithRepository(path string) *GitError {
	e.Repository = path
	return e
}

// WithGitOutput adds captured git command output to the error context.
func (e *GitError) WithGitOutput(output string) *GitError {
	e.GitOutput = strings.TrimSpace(output)
	return e
}

// WithSeverity sets the error severity.
func (e *GitError) WithSeverity(s Severity) *GitError {
	e.severity = s
	return e
}

func (e *GitError) Error() string {
	var parts []string
	if e.Branch != "" {
		parts = append(parts, fmt.Sprintf("branch=%s", e.Branch))
	}
	if e.Worktree != "" {
		parts = append(parts, fmt.Sprintf("worktree=%s", e.Worktree))
	}
	if e.Repository != "" {
		parts = append(parts, fmt.Sprintf("repo=%s", e.Repository))
	}

	prefix := "git error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("git error [%s]", strings.Join(parts, ", "))
	}

	msg := e.message
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	if e.GitOutput != "" {
		msg = fmt.Sprintf("%s\ngit output: %s", msg, e.GitOutput)
	}

	return fmt.Sprintf("%s: %s", prefix, msg)
}

func (e *GitError) Is(target error) bool {
	if _, ok := target.(*GitError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents an invalid caller-supplied value. It always
// matches ErrInvalidInput.
//
// Example:
//
//	err := errors.NewValidationError("team_id must contain valid characters").
//		WithField("team_id").WithValue("!@#")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:  message,
			severity: SeverityWarning,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%q", fmt.Sprint(e.Value)))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	return target == ErrInvalidInput || e.baseError.Is(target)
}

// PathTraversalError reports a candidate path that resolves outside the
// sandbox root. It always matches ErrPathTraversal.
type PathTraversalError struct {
	baseError
	Path string
	Root string
}

// NewPathTraversalError creates a new PathTraversalError.
func NewPathTraversalError(path, root string) *PathTraversalError {
	return &PathTraversalError{
		baseError: baseError{
			message:  "path escapes sandbox root",
			severity: SeverityCritical,
		},
		Path: path,
		Root: root,
	}
}

func (e *PathTraversalError) Error() string {
	return fmt.Sprintf("path traversal: %s is not under %s", e.Path, e.Root)
}

func (e *PathTraversalError) Is(target error) bool {
	if _, ok := target.(*PathTraversalError); ok {
		return true
	}
	return target == ErrPathTraversal
}

// NotFoundError represents a reference that could not be resolved. It always
// matches ErrRefNotFound.
//
// Example:
//
//	err := errors.NewNotFoundError("branch", "swarm/run-1/alpha")
//	fmt.Println(err) // "branch 'swarm/run-1/alpha' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:  fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity: SeverityWarning,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return target == ErrRefNotFound || e.baseError.Is(target)
}

// AlreadyExistsError represents a branch that already exists. It always
// matches ErrDuplicateBranch.
type AlreadyExistsError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(resourceType, resourceID string) *AlreadyExistsError {
	return &AlreadyExistsError{
		baseError: baseError{
			message:  fmt.Sprintf("%s '%s' already exists", resourceType, resourceID),
			severity: SeverityWarning,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

func (e *AlreadyExistsError) Is(target error) bool {
	if _, ok := target.(*AlreadyExistsError); ok {
		return true
	}
	return target == ErrDuplicateBranch || e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Classification
// -----------------------------------------------------------------------------

// GetSeverity returns the severity level of the error. Errors outside this
// package default to SeverityError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}
	var swarmErr SwarmError
	if As(err, &swarmErr) {
		return swarmErr.Severity()
	}
	return SeverityError
}

// Wrap wraps an error with a context message, preserving the chain.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
