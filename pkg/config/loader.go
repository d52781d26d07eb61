package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces the environment variables the loader reads.
const EnvPrefix = "FORGECFG_"

// Service loads and validates the application configuration.
type Service interface {
	Load(ctx context.Context) (*Config, error)
}

type loader struct {
	koanf     *koanf.Koanf
	validator *validator.Validate
}

// NewService creates a configuration service with validation support.
func NewService() Service {
	return &loader{
		koanf:     koanf.New("."),
		validator: validator.New(),
	}
}

// Load applies sources in precedence order: built-in defaults, then
// environment variables.
func (l *loader) Load(_ context.Context) (*Config, error) {
	if err := l.loadDefaults(); err != nil {
		return nil, err
	}
	if err := l.loadEnvironment(); err != nil {
		return nil, err
	}
	return l.unmarshalAndValidate()
}

func (l *loader) loadDefaults() error {
	// The structs provider turns the default config into a key map, so the
	// defaults never drift from the Config struct itself.
	if err := l.koanf.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return fmt.Errorf("failed to load defaults: %w", err)
	}
	return nil
}

// transformEnvKey converts environment variable names to koanf paths.
// For example: FORGECFG_COMPILE_CONCURRENCY -> compile.concurrency and
// FORGECFG_FETCH_BASE_DELAY -> fetch.base_delay.
func transformEnvKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_'
	})
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + "." + strings.Join(parts[1:], "_")
}

func (l *loader) loadEnvironment() error {
	if err := l.koanf.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return transformEnvKey(key), value
		},
	}), nil); err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	return nil
}

func (l *loader) unmarshalAndValidate() (*Config, error) {
	var config Config
	if err := l.koanf.UnmarshalWithConf("", &config, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &config,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := l.validator.Struct(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &config, nil
}
