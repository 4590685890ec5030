package config

import (
	"strings"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "test.field",
		Value:   123,
		Message: "must be greater than zero",
	}

	expected := "test.field: must be greater than zero (got: 123)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Run("empty errors", func(t *testing.T) {
		var errs ValidationErrors
		if errs.Error() != "" {
			t.Errorf("Error() for empty = %q, want empty string", errs.Error())
		}
	})

	t.Run("single error", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "test.field", Value: 123, Message: "is invalid"},
		}
		expected := "test.field: is invalid (got: 123)"
		if errs.Error() != expected {
			t.Errorf("Error() = %q, want %q", errs.Error(), expected)
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "field1", Value: "bad", Message: "is invalid"},
			{Field: "field2", Value: -1, Message: "must be positive"},
		}
		result := errs.Error()
		if !strings.Contains(result, "2 validation errors") {
			t.Errorf("Error() should mention 2 errors: %s", result)
		}
		if !strings.Contains(result, "field1") || !strings.Contains(result, "field2") {
			t.Errorf("Error() should mention both fields: %s", result)
		}
	})
}

func TestConfig_Validate_DefaultConfig(t *testing.T) {
	if errs := Default().Validate(); len(errs) != 0 {
		t.Errorf("Default config should be valid, got: %v", ValidationErrors(errs))
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"null byte in dir", func(c *Config) { c.Worktree.Dir = "wt\x00" }, "worktree.dir"},
		{"dir is repo root", func(c *Config) { c.Worktree.Dir = "." }, "worktree.dir"},
		{"dir escapes repo", func(c *Config) { c.Worktree.Dir = "../outside" }, "worktree.dir"},
		{"dir too long", func(c *Config) { c.Worktree.Dir = strings.Repeat("a", 5000) }, "worktree.dir"},
		{"empty prefix", func(c *Config) { c.Branch.Prefix = "" }, "branch.prefix"},
		{"prefix with slash", func(c *Config) { c.Branch.Prefix = "swarm/x" }, "branch.prefix"},
		{"prefix starts with digit", func(c *Config) { c.Branch.Prefix = "1swarm" }, "branch.prefix"},
		{"blank protected", func(c *Config) { c.Branch.Protected = []string{"main", " "} }, "branch.protected[1]"},
		{"empty author", func(c *Config) { c.Merge.AuthorName = "" }, "merge.author_name"},
		{"bad email", func(c *Config) { c.Merge.AuthorEmail = "not an email" }, "merge.author_email"},
		{"multiline prefix", func(c *Config) { c.Merge.MessagePrefix = "a\nb" }, "merge.message_prefix"},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"negative log size", func(c *Config) { c.Logging.MaxSizeMB = -1 }, "logging.max_size_mb"},
		{"negative log backups", func(c *Config) { c.Logging.MaxBackups = -2 }, "logging.max_backups"},
		{"bad glob", func(c *Config) { c.Watch.Ignore = []string{"[unclosed"} }, "watch.ignore[0]"},
		{"negative debounce", func(c *Config) { c.Watch.DebounceMs = -1 }, "watch.debounce_ms"},
		{"huge debounce", func(c *Config) { c.Watch.DebounceMs = 60000 }, "watch.debounce_ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			errs := cfg.Validate()
			if len(errs) == 0 {
				t.Fatal("expected validation errors, got none")
			}
			found := false
			for _, e := range errs {
				if e.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error for field %q, got %v", tt.wantField, ValidationErrors(errs))
			}
		})
	}
}

func TestConfig_Validate_Accepts(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"absolute dir", func(c *Config) { c.Worktree.Dir = "/tmp/wt" }},
		{"nested dir", func(c *Config) { c.Worktree.Dir = "build/worktrees" }},
		{"uppercase level", func(c *Config) { c.Logging.Level = "DEBUG" }},
		{"localhost email", func(c *Config) { c.Merge.AuthorEmail = "bot@localhost" }},
		{"empty protected set", func(c *Config) { c.Branch.Protected = nil }},
		{"empty message prefix", func(c *Config) { c.Merge.MessagePrefix = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if errs := cfg.Validate(); len(errs) != 0 {
				t.Errorf("unexpected errors: %v", ValidationErrors(errs))
			}
		})
	}
}
