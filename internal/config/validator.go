package config

import (
	"fmt"
	"net/mail"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "branch.prefix")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// branchComponentRegex matches a single ref path component that git accepts
// and that survives identifier sanitization unchanged.
var branchComponentRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateWorktree()...)
	errors = append(errors, c.validateBranch()...)
	errors = append(errors, c.validateMerge()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateWatch()...)

	return errors
}

func (c *Config) validateWorktree() []ValidationError {
	var errors []ValidationError
	dir := c.Worktree.Dir

	if strings.ContainsRune(dir, '\x00') {
		errors = append(errors, ValidationError{
			Field:   "worktree.dir",
			Value:   dir,
			Message: "path contains invalid null character",
		})
	}

	// The sandbox can never be the repository root itself
	if dir != "" && !filepath.IsAbs(dir) {
		if clean := filepath.Clean(dir); clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
			errors = append(errors, ValidationError{
				Field:   "worktree.dir",
				Value:   dir,
				Message: "must name a directory inside the repository",
			})
		}
	}

	const maxPathLength = 4096
	if len(dir) > maxPathLength {
		errors = append(errors, ValidationError{
			Field:   "worktree.dir",
			Value:   dir,
			Message: fmt.Sprintf("path exceeds maximum length of %d characters", maxPathLength),
		})
	}

	return errors
}

func (c *Config) validateBranch() []ValidationError {
	var errors []ValidationError

	if !branchComponentRegex.MatchString(c.Branch.Prefix) {
		errors = append(errors, ValidationError{
			Field:   "branch.prefix",
			Value:   c.Branch.Prefix,
			Message: "must start with a letter and contain only letters, digits, hyphens and underscores",
		})
	}

	for i, name := range c.Branch.Protected {
		if strings.TrimSpace(name) == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("branch.protected[%d]", i),
				Value:   name,
				Message: "must not be empty",
			})
		}
	}

	return errors
}

func (c *Config) validateMerge() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Merge.AuthorName) == "" {
		errors = append(errors, ValidationError{
			Field:   "merge.author_name",
			Value:   c.Merge.AuthorName,
			Message: "must not be empty",
		})
	}

	if _, err := mail.ParseAddress(c.Merge.AuthorEmail); err != nil && !isLocalAddress(c.Merge.AuthorEmail) {
		errors = append(errors, ValidationError{
			Field:   "merge.author_email",
			Value:   c.Merge.AuthorEmail,
			Message: "must be an email address",
		})
	}

	if strings.ContainsAny(c.Merge.MessagePrefix, "\n\r") {
		errors = append(errors, ValidationError{
			Field:   "merge.message_prefix",
			Value:   c.Merge.MessagePrefix,
			Message: "must be a single line",
		})
	}

	return errors
}

// isLocalAddress accepts user@host forms without a dot, such as hive@localhost.
func isLocalAddress(addr string) bool {
	user, host, ok := strings.Cut(addr, "@")
	return ok && user != "" && host != "" && !strings.ContainsAny(addr, " <>")
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}
	if c.Logging.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be non-negative (0 disables rotation)",
		})
	}
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateWatch() []ValidationError {
	var errors []ValidationError

	for i, pattern := range c.Watch.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("watch.ignore[%d]", i),
				Value:   pattern,
				Message: "invalid glob pattern",
			})
		}
	}

	if c.Watch.DebounceMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "watch.debounce_ms",
			Value:   c.Watch.DebounceMs,
			Message: "must be non-negative",
		})
	}

	const maxDebounceMs = 10000
	if c.Watch.DebounceMs > maxDebounceMs {
		errors = append(errors, ValidationError{
			Field:   "watch.debounce_ms",
			Value:   c.Watch.DebounceMs,
			Message: fmt.Sprintf("exceeds maximum of %dms", maxDebounceMs),
		})
	}

	return errors
}
