// Package cmd implements the swarmtree command line.
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/swarmtree/internal/config"
	"github.com/Iron-Ham/swarmtree/internal/errors"
	"github.com/Iron-Ham/swarmtree/internal/logging"
	"github.com/Iron-Ham/swarmtree/internal/worktree"
)

// app carries the state shared by every subcommand of one invocation.
type app struct {
	configFile string
	repo       string
	output     string

	cfg    *config.Config
	logger *logging.Logger
}

// NewRootCmd builds the swarmtree command tree.
func NewRootCmd() *cobra.Command {
	root, _ := newRootCmd()
	return root
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}

	root := &cobra.Command{
		Use:   "swarmtree",
		Short: "Isolated git worktrees for swarm teams",
		Long: `swarmtree gives every team of a swarm run its own branch and git
worktree inside the repository sandbox, merges finished team branches
back into a target branch, and removes worktrees and branches when a
team or a whole run is done.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) { a.teardown() },
	}

	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "config file (default is $XDG_CONFIG_HOME/swarmtree/config.yaml)")
	root.PersistentFlags().StringVarP(&a.repo, "repo", "C", ".", "path inside the repository to operate on")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", FormatText, "output format: text, json or yaml")

	root.AddCommand(
		a.newCreateCmd(),
		a.newListCmd(),
		a.newMergeCmd(),
		a.newCleanupCmd(),
		a.newCleanupSwarmCmd(),
		a.newWatchCmd(),
		a.newCheckCmd(),
		a.newConfigCmd(),
	)
	return root, a
}

// Execute runs the command line and reports a failure on stderr.
func Execute() error {
	root, a := newRootCmd()
	// PersistentPostRun is skipped when a command fails
	defer a.teardown()

	err := root.Execute()
	if err != nil {
		reportError(root.ErrOrStderr(), err)
	}
	return err
}

func reportError(w io.Writer, err error) {
	s := newStyles(isTerminal(w))
	kind := errors.KindOf(err)
	label := "error"
	if errors.GetSeverity(err) <= errors.SeverityWarning {
		label = "refused"
	}
	if kind == errors.KindUnknown {
		_, _ = fmt.Fprintf(w, "%s: %v\n", s.err.Render(label), err)
		return
	}
	_, _ = fmt.Fprintf(w, "%s [%s]: %v\n", s.err.Render(label), kind, err)
}

// setup loads configuration and opens the logger before any subcommand.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	initConfig(a.configFile)

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	a.cfg = cfg

	if cfg.Logging.Dir != "" {
		a.logger, err = logging.NewRotatingLogger(cfg.Logging.Dir, cfg.Logging.Level, logging.Rotation{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
		})
		if err != nil {
			return err
		}
	} else {
		a.logger = logging.NewWithWriter(cmd.ErrOrStderr(), cfg.Logging.Level)
	}
	a.logger = a.logger.With("command", cmd.Name())
	return nil
}

func (a *app) teardown() {
	if a.logger != nil {
		_ = a.logger.Close()
	}
}

// initConfig points viper at the config file and the environment.
func initConfig(cfgFile string) {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/swarmtree")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("SWARMTREE")
	// e.g. SWARMTREE_MERGE_MESSAGE_PREFIX for merge.message_prefix
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// manager builds a worktree manager for the repository given by --repo.
func (a *app) manager() (*worktree.Manager, error) {
	dir := a.repo
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		dir = wd
	}
	return worktree.NewFromConfig(dir, a.cfg, a.logger)
}

func (a *app) printer(cmd *cobra.Command) (*printer, error) {
	return newPrinter(cmd.OutOrStdout(), a.output)
}
