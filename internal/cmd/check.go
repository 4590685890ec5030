package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/swarmtree/internal/repolock"
)

type checkResult struct {
	Sandbox  string `json:"sandbox" yaml:"sandbox"`
	Ignored  bool   `json:"ignored" yaml:"ignored"`
	Excluded bool   `json:"excluded,omitempty" yaml:"excluded,omitempty"`
}

func (a *app) newCheckCmd() *cobra.Command {
	var fix bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check that git ignores the worktree sandbox",
		Long: `Check reports whether the sandbox directory is kept out of version
control by a .gitignore file or .git/info/exclude. With --fix the sandbox
is added to .git/info/exclude when it is not ignored yet.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.printer(cmd)
			if err != nil {
				return err
			}
			m, err := a.manager()
			if err != nil {
				return err
			}

			ignored, err := m.SandboxIgnored()
			if err != nil {
				return err
			}
			res := checkResult{Sandbox: m.SandboxRoot(), Ignored: ignored}

			if !ignored && fix {
				unlock, err := repolock.Lock(cmd.Context(), m.RepoPath())
				if err != nil {
					return err
				}
				defer unlock()

				if err := m.ExcludeSandbox(); err != nil {
					return err
				}
				res.Ignored, res.Excluded = true, true
			}

			switch {
			case res.Excluded:
				return p.message(res, "%s %s added to .git/info/exclude", p.s.success.Render("fixed"), res.Sandbox)
			case res.Ignored:
				return p.message(res, "%s %s is ignored", p.s.success.Render("ok"), res.Sandbox)
			default:
				return p.message(res, "%s %s is not ignored (run with --fix)", p.s.warning.Render("warning"), res.Sandbox)
			}
		},
	}

	cmd.Flags().BoolVar(&fix, "fix", false, "add the sandbox to .git/info/exclude")
	return cmd
}
