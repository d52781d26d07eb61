package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/forgeci/forgecfg/pkg/config"
	"github.com/forgeci/forgecfg/pkg/logger"
	"github.com/forgeci/forgecfg/pkg/version"
)

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "forgecfg",
		Short: "Compile, validate and bundle CI project configurations",
		Long: "forgecfg loads a project's bucket and builder configuration, flattens " +
			"builder mixins, validates the resolved records and emits a deterministic " +
			"compiled snapshot.",
		SilenceUsage: true,
		Version:      version.GetVersion(),
	}

	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().Bool("log-json", false, "Emit logs as JSON")
	root.PersistentFlags().String("cwd", "", "Working directory for relative paths")
	root.PersistentFlags().String("env-file", "", "Env file to load before reading configuration")

	root.AddCommand(
		CompileCmd(),
		ValidateCmd(),
		ResolvePinsCmd(),
		FetchCmd(),
		BundleCmd(),
		VersionCmd(),
	)

	return root
}

// setupContext loads the app config, initializes the logger from flags (flags
// win over config) and returns a context carrying the logger.
func setupContext(cmd *cobra.Command) (context.Context, *config.Config, error) {
	if err := loadEnvFile(cmd); err != nil {
		return nil, nil, err
	}
	cfg, err := config.NewService().Load(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	logLevel, logJSON, err := logger.GetLoggerConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if logLevel == "" {
		logLevel = cfg.Log.Level
	}
	logger.SetupLogger(logLevel, logJSON || cfg.Log.JSON)
	ctx := logger.ContextWithLogger(cmd.Context(), logger.GetDefault())
	return ctx, cfg, nil
}

// loadEnvFile loads the --env-file into the process environment so the config
// service sees its values. A missing file is only an error when the flag was
// set explicitly.
func loadEnvFile(cmd *cobra.Command) error {
	envFile, err := cmd.Flags().GetString("env-file")
	if err != nil || envFile == "" {
		return err
	}
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}
	return nil
}

// resolveDir turns the optional positional directory argument into an
// absolute working directory, honoring --cwd.
func resolveDir(cmd *cobra.Command, args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	if cwd, err := cmd.Flags().GetString("cwd"); err == nil && cwd != "" {
		if err := os.Chdir(cwd); err != nil {
			return "", fmt.Errorf("failed to change directory to %s: %w", cwd, err)
		}
	}
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("config directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("config path %s is not a directory", dir)
	}
	return dir, nil
}
