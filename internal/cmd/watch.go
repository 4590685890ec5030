package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/swarmtree/internal/conflict"
	"github.com/Iron-Ham/swarmtree/internal/errors"
	"github.com/Iron-Ham/swarmtree/internal/worktree"
)

func (a *app) newWatchCmd() *cobra.Command {
	var (
		runID   string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Report files written by more than one team",
		Long: `Watch follows the worktrees in the sandbox and prints every file that two
or more teams have written, as soon as it happens. Those files are likely
to conflict at merge time.

With --run only the teams of that run are watched. Watch runs until
interrupted, or until --timeout elapses.`,
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

			wts, err := m.List()
			if err != nil {
				return err
			}
			wts = filterRun(wts, m.BranchPrefix(), runID)
			if len(wts) == 0 {
				return errors.NewNotFoundError("team worktrees for run", runID)
			}

			d, err := conflict.NewFromConfig(a.cfg.Watch, a.logger)
			if err != nil {
				return err
			}
			defer d.Stop()

			reports := make(chan []conflict.Overlap, 1)
			d.OnOverlap(func(o []conflict.Overlap) {
				// keep only the latest report when the printer falls behind
				select {
				case <-reports:
				default:
				}
				reports <- o
			})
			d.Start()

			for _, wt := range wts {
				if err := d.AddTeam(wt.TeamID, wt.WorktreePath); err != nil {
					return err
				}
			}
			a.logger.Info("watching teams", "teams", len(wts), "run", runID)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			seen := make(map[string]int)
			for {
				select {
				case <-ctx.Done():
					return nil
				case overlaps := <-reports:
					if fresh := newOverlaps(seen, overlaps); len(fresh) > 0 {
						if err := p.overlaps(fresh); err != nil {
							return err
						}
					}
				}
			}
		},
	}

	cmd.Flags().StringVarP(&runID, "run", "r", "", "only watch teams of this run")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "stop watching after this long (0 = until interrupted)")
	return cmd
}

// filterRun keeps the worktrees whose branch belongs to runID. An empty
// runID keeps everything.
func filterRun(wts []worktree.TeamWorktree, prefix, runID string) []worktree.TeamWorktree {
	if runID == "" {
		return wts
	}
	runPrefix := worktree.RunPrefix(prefix, worktree.Sanitize(runID))
	kept := wts[:0:0]
	for _, wt := range wts {
		if strings.HasPrefix(wt.BranchName, runPrefix) {
			kept = append(kept, wt)
		}
	}
	return kept
}

// newOverlaps returns the overlaps that gained a team since they were last
// reported, and records them in seen.
func newOverlaps(seen map[string]int, overlaps []conflict.Overlap) []conflict.Overlap {
	var fresh []conflict.Overlap
	for _, o := range overlaps {
		if seen[o.Path] >= len(o.Teams) {
			continue
		}
		seen[o.Path] = len(o.Teams)
		fresh = append(fresh, o)
	}
	return fresh
}
