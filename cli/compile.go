package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/forgeci/forgecfg/engine/compiler"
	"github.com/forgeci/forgecfg/engine/project"
	"github.com/forgeci/forgecfg/pkg/config"
)

func CompileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile [dir]",
		Short: "Compile a project configuration into a resolved snapshot",
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
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return err
			}
			data, err := snapshot.MarshalFormat(format)
			if err != nil {
				return err
			}
			output, err := cmd.Flags().GetString("output")
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("failed to write snapshot to %s: %w", output, err)
			}
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "Write the snapshot to a file instead of stdout")
	cmd.Flags().String("format", "yaml", "Snapshot format (yaml or json)")
	addLoadFlags(cmd.Flags())
	return cmd
}

func addLoadFlags(flags *pflag.FlagSet) {
	flags.StringSlice("include", nil, "Config file glob patterns, relative to the directory")
	flags.StringSlice("exclude", nil, "Glob patterns to skip during discovery")
	flags.Int("concurrency", 0, "Parallel validation limit (default from config)")
}

// compileProject runs the full load + compile pass for a directory using the
// flag and config settings shared by compile, validate and bundle.
func compileProject(
	ctx context.Context,
	cfg *config.Config,
	cmd *cobra.Command,
	dir string,
) (*compiler.Snapshot, error) {
	includes, err := cmd.Flags().GetStringSlice("include")
	if err != nil {
		return nil, err
	}
	if len(includes) == 0 {
		includes = cfg.Compile.Includes
	}
	excludes, err := cmd.Flags().GetStringSlice("exclude")
	if err != nil {
		return nil, err
	}
	if len(excludes) == 0 {
		excludes = cfg.Compile.Excludes
	}
	concurrency, err := cmd.Flags().GetInt("concurrency")
	if err != nil {
		return nil, err
	}
	if concurrency <= 0 {
		concurrency = cfg.Compile.Concurrency
	}
	loader := project.NewLoader(dir, project.WithIncludes(includes), project.WithExcludes(excludes))
	proj, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	return compiler.New(compiler.WithConcurrency(concurrency)).Compile(ctx, proj)
}
