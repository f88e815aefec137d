package tick

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version   = "nightly"
	builddate = "unknown"
	commit    = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Shows the current version of Tick CLI",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tick %s (commit %s, built %s)\n", version, commit, builddate)
	},
}
