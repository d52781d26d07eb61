package cli

import (
	"github.com/spf13/cobra"

	"github.com/forgeci/forgecfg/engine/bundle"
	"github.com/forgeci/forgecfg/engine/manifest"
)

func BundleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundle [dir]",
		Short: "Compile a project and write a hermetic bundle",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cfg, err := setupContext(cmd)
			if err != nil {
				return err
			}
			dir, err := resolveDir(cmd, args)
			if err != nil {
				return err
			}
			snapshot, err := compileProject(ctx, cfg, cmd, dir)
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
			excludes, err := cmd.Flags().GetStringSlice("exclude")
			if err != nil {
				return err
			}
			pins, err := bundlePins(cmd)
			if err != nil {
				return err
			}
			return bundle.Write(ctx, bundle.Options{
				Snapshot:  snapshot,
				Pins:      pins,
				SourceDir: dir,
				Dest:      dest,
				Excludes:  excludes,
				Force:     force,
			})
		},
	}
	cmd.Flags().String("dest", "", "Bundle output directory")
	cmd.Flags().String("manifest", "", "Pin manifest to resolve into the bundle")
	cmd.Flags().String("platform", "", "Target platform for pin resolution")
	cmd.Flags().Bool("force", false, "Write into a non-empty destination")
	addLoadFlags(cmd.Flags())
	//nolint:errcheck // the flag is defined right above
	cmd.MarkFlagRequired("dest")
	cmd.MarkFlagsRequiredTogether("manifest", "platform")
	return cmd
}

func bundlePins(cmd *cobra.Command) ([]manifest.Pin, error) {
	manifestPath, err := cmd.Flags().GetString("manifest")
	if err != nil {
		return nil, err
	}
	if manifestPath == "" {
		return nil, nil
	}
	platform, err := cmd.Flags().GetString("platform")
	if err != nil {
		return nil, err
	}
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, err
	}
	return m.Resolve(platform)
}
