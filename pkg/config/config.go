package config

import (
	"time"
)

// Config is the application-level configuration for the forgecfg tool. It is
// distinct from the project configuration being compiled: these knobs control
// how the tool itself runs.
type Config struct {
	Log     LogConfig     `koanf:"log"`
	Compile CompileConfig `koanf:"compile" validate:"required"`
	Fetch   FetchConfig   `koanf:"fetch"   validate:"required"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level string `koanf:"level" validate:"omitempty,oneof=debug info warn error" env:"LOG_LEVEL"`
	JSON  bool   `koanf:"json"  env:"LOG_JSON"`
}

// CompileConfig controls the compilation pass.
type CompileConfig struct {
	Concurrency int      `koanf:"concurrency" validate:"min=1,max=128" env:"COMPILE_CONCURRENCY"`
	Includes    []string `koanf:"includes"    env:"COMPILE_INCLUDES"`
	Excludes    []string `koanf:"excludes"    env:"COMPILE_EXCLUDES"`
}

// FetchConfig controls the remote config fetcher.
type FetchConfig struct {
	Timeout   time.Duration `koanf:"timeout"    validate:"min=1s"       env:"FETCH_TIMEOUT"`
	Attempts  int           `koanf:"attempts"   validate:"min=1,max=10" env:"FETCH_ATTEMPTS"`
	BaseDelay time.Duration `koanf:"base_delay" validate:"min=1ms"      env:"FETCH_BASE_DELAY"`
}

// Default returns the built-in defaults applied before any other source.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Compile: CompileConfig{
			Concurrency: 8,
		},
		Fetch: FetchConfig{
			Timeout:   30 * time.Second,
			Attempts:  5,
			BaseDelay: 2 * time.Second,
		},
	}
}
