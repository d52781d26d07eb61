package builder

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/forgeci/forgecfg/engine/core"
)

var (
	nameRE         = regexp.MustCompile(`^[a-zA-Z0-9\-_.() ]+$`)
	dimensionKeyRE = regexp.MustCompile(`^[a-zA-Z_\-]+$`)
	cacheNameRE    = regexp.MustCompile(`^[a-z0-9_]+$`)
	pkgNameRE      = regexp.MustCompile(`^[a-z0-9/._\-]+(\$\{platform\})?[a-z0-9/._\-]*$`)
)

var structValidate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	//nolint:errcheck // registration only fails on an empty tag name
	v.RegisterValidation("pkgname", func(fl validator.FieldLevel) bool {
		return pkgNameRE.MatchString(fl.Field().String())
	})
	return v
}

func invalid(name, reason string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	details["builder"] = name
	details["reason"] = reason
	return core.NewError(nil, "BUILDER_INVALID", details)
}

// ValidateName checks a builder or mixin name against the allowed character
// set.
func ValidateName(name string) error {
	if name == "" {
		return core.NewError(nil, "BUILDER_INVALID", map[string]any{"reason": "name is required"})
	}
	if !nameRE.MatchString(name) {
		return invalid(name, "name has invalid characters", nil)
	}
	return nil
}

// Validate checks the structural invariants that hold for any record,
// resolved or partial: field ranges, dimension syntax, cache declarations.
func (c *Config) Validate() error {
	if err := structValidate.Struct(c); err != nil {
		return core.NewError(err, "BUILDER_INVALID", map[string]any{"builder": c.Name})
	}
	if err := c.validateDimensions(false); err != nil {
		return err
	}
	if err := c.validateCaches(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	return c.validateExperiments()
}

// ValidateResolved checks the invariants of a fully flattened builder: on top
// of Validate, the record must be runnable (executable present, at least one
// dimension, no unresolved mixin references, no duplicate dimension keys).
func (c *Config) ValidateResolved() error {
	if err := ValidateName(c.Name); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}
	if len(c.Mixins) > 0 {
		return invalid(c.Name, "resolved builder still references mixins", map[string]any{"mixins": c.Mixins})
	}
	if c.Executable == nil || c.Executable.Package == "" {
		return invalid(c.Name, "resolved builder has no executable", nil)
	}
	if len(c.Dimensions.Normalize()) == 0 {
		return invalid(c.Name, "resolved builder has no dimensions", nil)
	}
	return c.validateDimensions(true)
}

func (c *Config) validateDimensions(resolved bool) error {
	seen := make(map[string]bool, len(c.Dimensions))
	for _, entry := range c.Dimensions {
		key, _, ok := strings.Cut(entry, ":")
		if !ok {
			return invalid(c.Name, "dimension is not key:value", map[string]any{"dimension": entry})
		}
		if !dimensionKeyRE.MatchString(key) {
			return invalid(c.Name, "dimension key has invalid characters", map[string]any{"dimension": entry})
		}
		if resolved && seen[key] {
			return invalid(c.Name, "duplicate dimension key", map[string]any{"key": key})
		}
		seen[key] = true
	}
	return nil
}

func (c *Config) validateCaches() error {
	names := make(map[string]bool, len(c.Caches))
	paths := make(map[string]bool, len(c.Caches))
	for _, cache := range c.Caches {
		if !cacheNameRE.MatchString(cache.Name) {
			return invalid(c.Name, "cache name has invalid characters", map[string]any{"cache": cache.Name})
		}
		clean := path.Clean(cache.Path)
		if path.IsAbs(cache.Path) || clean == ".." || strings.HasPrefix(clean, "../") {
			return invalid(c.Name, "cache path must be relative and stay inside the workdir", map[string]any{
				"cache": cache.Name,
				"path":  cache.Path,
			})
		}
		if names[cache.Name] {
			return invalid(c.Name, "duplicate cache name", map[string]any{"cache": cache.Name})
		}
		if paths[clean] {
			return invalid(c.Name, "duplicate cache path", map[string]any{"path": cache.Path})
		}
		names[cache.Name] = true
		paths[clean] = true
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	if c.ExecutionTimeout < 0 {
		return invalid(c.Name, "execution timeout must be positive", map[string]any{"timeout": c.ExecutionTimeout.String()})
	}
	if c.ExpirationTimeout < 0 {
		return invalid(c.Name, "expiration timeout must be positive", map[string]any{"timeout": c.ExpirationTimeout.String()})
	}
	if rem := c.ExpirationTimeout.Std() % time.Minute; rem != 0 {
		return invalid(c.Name, "expiration timeout must be a multiple of 60 seconds", map[string]any{
			"timeout": c.ExpirationTimeout.String(),
		})
	}
	return nil
}

func (c *Config) validateExperiments() error {
	for name, pct := range c.Experiments {
		if pct < 0 || pct > 100 {
			return invalid(c.Name, "experiment percentage out of range", map[string]any{
				"experiment": name,
				"percentage": fmt.Sprintf("%d", pct),
			})
		}
	}
	return nil
}
