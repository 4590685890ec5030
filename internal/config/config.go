package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete swarmtree configuration
type Config struct {
	Worktree WorktreeConfig `mapstructure:"worktree" json:"worktree" yaml:"worktree"`
	Branch   BranchConfig   `mapstructure:"branch" json:"branch" yaml:"branch"`
	Merge    MergeConfig    `mapstructure:"merge" json:"merge" yaml:"merge"`
	Logging  LoggingConfig  `mapstructure:"logging" json:"logging" yaml:"logging"`
	Watch    WatchConfig    `mapstructure:"watch" json:"watch" yaml:"watch"`
}

// WorktreeConfig controls where team worktrees are placed
type WorktreeConfig struct {
	// Dir is the sandbox root. Relative paths resolve against the repository root.
	Dir string `mapstructure:"dir" json:"dir" yaml:"dir"`
	// AutoExclude adds the sandbox to .git/info/exclude on create when
	// the repository does not already ignore it.
	AutoExclude bool `mapstructure:"auto_exclude" json:"auto_exclude" yaml:"auto_exclude"`
}

// BranchConfig controls team branch naming and protection
type BranchConfig struct {
	// Prefix is the namespace of team branches: <prefix>/<run>/<team>
	Prefix string `mapstructure:"prefix" json:"prefix" yaml:"prefix"`
	// Protected branches are never deleted and never used as a merge source
	Protected []string `mapstructure:"protected" json:"protected" yaml:"protected"`
}

// MergeConfig controls merge commits written by the engine
type MergeConfig struct {
	// AuthorName and AuthorEmail are used when the repository has no user identity
	AuthorName  string `mapstructure:"author_name" json:"author_name" yaml:"author_name"`
	AuthorEmail string `mapstructure:"author_email" json:"author_email" yaml:"author_email"`
	// MessagePrefix starts every merge commit message, e.g. "hive: merge a into b"
	MessagePrefix string `mapstructure:"message_prefix" json:"message_prefix" yaml:"message_prefix"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Level is the minimum level to log: "debug", "info", "warn", "error"
	Level string `mapstructure:"level" json:"level" yaml:"level"`
	// Dir is where swarmtree.log is written. Empty logs to stderr.
	Dir string `mapstructure:"dir" json:"dir" yaml:"dir"`
	// MaxSizeMB rotates swarmtree.log once it grows past this size (0 = never)
	MaxSizeMB int `mapstructure:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is how many rotated log files are kept
	MaxBackups int `mapstructure:"max_backups" json:"max_backups" yaml:"max_backups"`
}

// WatchConfig controls the cross-team overlap watcher
type WatchConfig struct {
	// Ignore holds doublestar globs, relative to each worktree, that are not tracked
	Ignore []string `mapstructure:"ignore" json:"ignore" yaml:"ignore"`
	// DebounceMs coalesces bursts of writes to the same file
	DebounceMs int `mapstructure:"debounce_ms" json:"debounce_ms" yaml:"debounce_ms"`
}

// Debounce returns the watcher debounce window as a time.Duration
func (w *WatchConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMs) * time.Millisecond
}

// ResolveDir returns the sandbox root for a repository.
// A leading ~ expands to the user's home directory and relative paths
// are resolved against repoRoot.
func (w *WorktreeConfig) ResolveDir(repoRoot string) string {
	path := w.Dir
	if path == "" {
		path = DefaultWorktreeDir
	}

	if strings.HasPrefix(path, "~/") || path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(repoRoot, path)
	}
	return path
}

// DefaultWorktreeDir is the conventional sandbox directory name.
const DefaultWorktreeDir = ".hive-worktrees"

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Worktree: WorktreeConfig{
			Dir:         DefaultWorktreeDir,
			AutoExclude: true,
		},
		Branch: BranchConfig{
			Prefix:    "swarm",
			Protected: []string{"main", "master"},
		},
		Merge: MergeConfig{
			AuthorName:    "Hive Swarm",
			AuthorEmail:   "hive@localhost",
			MessagePrefix: "hive",
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Watch: WatchConfig{
			Ignore:     []string{".git", "node_modules/**", "**/.DS_Store"},
			DebounceMs: 50,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("worktree.dir", defaults.Worktree.Dir)
	viper.SetDefault("worktree.auto_exclude", defaults.Worktree.AutoExclude)

	viper.SetDefault("branch.prefix", defaults.Branch.Prefix)
	viper.SetDefault("branch.protected", defaults.Branch.Protected)

	viper.SetDefault("merge.author_name", defaults.Merge.AuthorName)
	viper.SetDefault("merge.author_email", defaults.Merge.AuthorEmail)
	viper.SetDefault("merge.message_prefix", defaults.Merge.MessagePrefix)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)

	viper.SetDefault("watch.ignore", defaults.Watch.Ignore)
	viper.SetDefault("watch.debounce_ms", defaults.Watch.DebounceMs)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults when
// the loaded values do not validate.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "swarmtree")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".swarmtree"
	}
	return filepath.Join(home, ".config", "swarmtree")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
