package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/swarmtree/internal/repolock"
)

// cleanupResult is the structured output of cleanup and cleanup-swarm.
type cleanupResult struct {
	Team          string `json:"team,omitempty" yaml:"team,omitempty"`
	Run           string `json:"run,omitempty" yaml:"run,omitempty"`
	BranchDeleted bool   `json:"branch_deleted,omitempty" yaml:"branch_deleted,omitempty"`
	Branches      int    `json:"branches,omitempty" yaml:"branches,omitempty"`
}

func (a *app) newCleanupCmd() *cobra.Command {
	var deleteBranch bool

	cmd := &cobra.Command{
		Use:   "cleanup <team>",
		Short: "Remove a team's worktree",
		Long: `Cleanup removes <sandbox>/<team> and prunes git's worktree metadata.

With --delete-branch every <prefix>/*/<team> branch is deleted as well,
whatever run created it. Protected branches are never deleted. Only a
failure to remove the worktree directory is an error; the other steps are
best effort.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.printer(cmd)
			if err != nil {
				return err
			}
			m, err := a.manager()
			if err != nil {
				return err
			}

			unlock, err := repolock.Lock(cmd.Context(), m.RepoPath())
			if err != nil {
				return err
			}
			defer unlock()

			if err := m.Cleanup(args[0], deleteBranch); err != nil {
				return err
			}
			return p.message(cleanupResult{Team: args[0], BranchDeleted: deleteBranch},
				"%s %s", p.s.success.Render("cleaned up"), args[0])
		},
	}

	cmd.Flags().BoolVarP(&deleteBranch, "delete-branch", "D", false, "also delete the team's branches")
	return cmd
}

func (a *app) newCleanupSwarmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup-swarm <run>",
		Short: "Remove every worktree and branch of a run",
		Long: `Cleanup-swarm removes the worktree and branch of every team whose branch
starts with <prefix>/<run>/, then removes the sandbox directory if it is
left empty. It reports how many branches belonged to the run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.printer(cmd)
			if err != nil {
				return err
			}
			m, err := a.manager()
			if err != nil {
				return err
			}

			unlock, err := repolock.Lock(cmd.Context(), m.RepoPath())
			if err != nil {
				return err
			}
			defer unlock()

			n, err := m.CleanupSwarm(args[0])
			if err != nil {
				return err
			}
			return p.message(cleanupResult{Run: args[0], Branches: n},
				"%s run %s (%d branches)", p.s.success.Render("cleaned up"), args[0], n)
		},
	}
}
