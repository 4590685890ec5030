package cmd

import "github.com/spf13/cobra"

func (a *app) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List team worktrees in the sandbox",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.printer(cmd)
			if err != nil {
				return err
			}
			m, err := a.manager()
			if err != nil {
				return err
			}
			wts, err := m.List()
			if err != nil {
				return err
			}
			return p.worktrees(wts)
		},
	}
}
