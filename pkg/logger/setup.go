package logger

import (
	"fmt"

	"github.com/spf13/cobra"
)

func SetupLogger(logLevel string, logJSON bool) {
	var level LogLevel
	switch logLevel {
	case "debug":
		level = DebugLevel
	case "info":
		level = InfoLevel
	case "warn":
		level = WarnLevel
	case "error":
		level = ErrorLevel
	default:
		level = InfoLevel
	}
	//nolint:errcheck // Init only fails on a nil writer, which Config avoids
	Init(&Config{
		Level:      level,
		JSON:       logJSON,
		TimeFormat: "15:04:05",
	})
}

func GetLoggerConfig(cmd *cobra.Command) (string, bool, error) {
	logLevel, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return "", false, fmt.Errorf("failed to get log-level flag: %w", err)
	}
	logJSON, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		return "", false, fmt.Errorf("failed to get log-json flag: %w", err)
	}
	return logLevel, logJSON, nil
}
