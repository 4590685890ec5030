package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/swarmtree/internal/repolock"
	"github.com/Iron-Ham/swarmtree/internal/worktree"
)

func (a *app) newCreateCmd() *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "create <team>...",
		Short: "Create a branch and worktree for each team",
		Long: `Create gives every named team its own branch <prefix>/<run>/<team>,
starting at HEAD, checked out in <sandbox>/<team>.

Without --run a fresh run id is generated and printed.`,
		Example: `  swarmtree create alpha beta --run sprint-12
  swarmtree create alpha -o json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.printer(cmd)
			if err != nil {
				return err
			}
			m, err := a.manager()
			if err != nil {
				return err
			}

			if runID == "" {
				runID = newRunID()
				if p.format == FormatText {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "run %s\n", p.s.title.Render(runID))
				}
			}

			unlock, err := repolock.Lock(cmd.Context(), m.RepoPath())
			if err != nil {
				return err
			}
			defer unlock()

			created := make([]worktree.TeamWorktree, 0, len(args))
			for _, team := range args {
				wt, err := m.Create(runID, team)
				if err != nil {
					return fmt.Errorf("team %s: %w", team, err)
				}
				if p.format == FormatText {
					if err := p.created(wt); err != nil {
						return err
					}
				}
				created = append(created, *wt)
			}
			if p.format != FormatText {
				_, err = p.structured(created)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&runID, "run", "r", "", "run id shared by the teams (default: generated)")
	return cmd
}

// newRunID returns a short random run id.
func newRunID() string {
	return uuid.NewString()[:8]
}
