package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/swarmtree/internal/errors"
	"github.com/Iron-Ham/swarmtree/internal/repolock"
)

// ErrMergeConflicts is returned by the merge command when the merge stopped
// on conflicts, so the process exits non-zero.
var ErrMergeConflicts = errors.New("merge has conflicts")

func (a *app) newMergeCmd() *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "merge <team-branch>",
		Short: "Merge a team branch into a target branch",
		Long: `Merge brings a team branch into the target branch without touching any
working tree.

The target is left alone when it already contains the team branch and
fast-forwarded when possible. Otherwise a merge commit with parents
[target, team] is written. When the branches conflict, the conflicting
paths are reported and nothing is changed.`,
		Example: `  swarmtree merge swarm/sprint-12/alpha --into main`,
		Args:    cobra.ExactArgs(1),
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

			res, err := m.Merge(args[0], target)
			if err != nil {
				return err
			}
			if err := p.merge(args[0], target, res); err != nil {
				return err
			}
			if !res.Success {
				return ErrMergeConflicts
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "into", "main", "branch to merge into")
	return cmd
}
