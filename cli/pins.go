package cli

import (
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/forgeci/forgecfg/engine/manifest"
)

const defaultManifestFile = "pins.yaml"

func ResolvePinsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve-pins [manifest]",
		Short: "Resolve a pinned package manifest for one target platform",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := setupContext(cmd); err != nil {
				return err
			}
			path := defaultManifestFile
			if len(args) > 0 {
				path = args[0]
			}
			platform, err := cmd.Flags().GetString("platform")
			if err != nil {
				return err
			}
			m, err := manifest.Load(path)
			if err != nil {
				return err
			}
			pins, err := m.Resolve(platform)
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(&manifest.Manifest{Packages: pins})
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().String("platform", "", "Target platform, e.g. linux-amd64")
	//nolint:errcheck // the flag is defined right above
	cmd.MarkFlagRequired("platform")
	return cmd
}
