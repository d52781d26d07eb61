package cli

import (
	"github.com/spf13/cobra"

	"github.com/forgeci/forgecfg/engine/fetch"
)

func FetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch a project configuration at an exact revision",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cfg, err := setupContext(cmd)
			if err != nil {
				return err
			}
			url, err := cmd.Flags().GetString("url")
			if err != nil {
				return err
			}
			revision, err := cmd.Flags().GetString("revision")
			if err != nil {
				return err
			}
			dest, err := cmd.Flags().GetString("dest")
			if err != nil {
				return err
			}
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}
			client := fetch.NewClient(
				fetch.WithTimeout(cfg.Fetch.Timeout),
				fetch.WithAttempts(cfg.Fetch.Attempts),
				fetch.WithBaseDelay(cfg.Fetch.BaseDelay),
			)
			return client.Fetch(ctx, fetch.Options{
				URL:      url,
				Revision: revision,
				Dest:     dest,
				Force:    force,
			})
		},
	}
	cmd.Flags().String("url", "", "Config service endpoint")
	cmd.Flags().String("revision", "", "Exact config revision to fetch")
	cmd.Flags().String("dest", "", "Destination directory")
	cmd.Flags().Bool("force", false, "Write into a non-empty destination")
	//nolint:errcheck // the flags are defined right above
	cmd.MarkFlagRequired("url")
	//nolint:errcheck
	cmd.MarkFlagRequired("revision")
	//nolint:errcheck
	cmd.MarkFlagRequired("dest")
	return cmd
}
