package cmd

import (
	"fmt"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
)

var versionExtended bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s %s\n", BinaryName, versionInfo.Version)
		if !versionExtended {
			return
		}
		fmt.Fprintf(out, "Commit:     %s\n", versionInfo.Commit)
		fmt.Fprintf(out, "Built:      %s\n", versionInfo.BuildDate)
		fmt.Fprintf(out, "Go:         %s\n", runtime.Version())
		fmt.Fprintf(out, "Platform:   %s/%s\n", runtime.GOOS, runtime.GOARCH)
		v := crucible.GetVersion()
		fmt.Fprintf(out, "Gofulmen:   %s\n", v.Gofulmen)
		fmt.Fprintf(out, "Crucible:   %s\n", v.Crucible)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionExtended, "extended", false, "Include build and dependency details")
}
