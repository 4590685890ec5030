// Command swarmtree manages per-team git worktrees for swarm runs.
package main

import (
	"os"

	"github.com/Iron-Ham/swarmtree/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
