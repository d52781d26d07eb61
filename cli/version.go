package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forgeci/forgecfg/pkg/version"
)

func VersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Get()
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "forgecfg %s (commit %s, built %s)\n",
				info.Version, info.CommitHash, info.BuildDate)
			return err
		},
	}
}
