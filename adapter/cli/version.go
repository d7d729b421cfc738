package cli

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Build information, set with -ldflags "-X".
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// buildVersion falls back to the module version recorded by `go install`.
func buildVersion() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "portal %s (commit %s, built %s)\n", buildVersion(), Commit, BuildDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
