package manifest

import (
	"os"
	"regexp"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/forgeci/forgecfg/engine/core"
)

const platformVar = "${platform}"

var (
	pkgNameRE  = regexp.MustCompile(`^[a-z0-9/._\-]+(\$\{platform\})?[a-z0-9/._\-]*$`)
	platformRE = regexp.MustCompile(`^[a-z0-9]+-[a-z0-9_]+$`)
)

// Pin is one exactly-pinned package: no version ranges, optionally scoped to
// a single target platform.
type Pin struct {
	Package  string `json:"package"            yaml:"package"`
	Version  string `json:"version"            yaml:"version"`
	Platform string `json:"platform,omitempty" yaml:"platform,omitempty"`
}

// Manifest is the declarative pin list consumed by an isolated-environment
// materializer.
type Manifest struct {
	Packages []Pin `json:"packages" yaml:"packages"`
}

func invalid(reason string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	details["reason"] = reason
	return core.NewError(nil, "MANIFEST_INVALID", details)
}

// Load reads and validates a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.NewError(err, "MANIFEST_LOAD_FAILED", map[string]any{"file": path})
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, core.NewError(err, "MANIFEST_LOAD_FAILED", map[string]any{"file": path})
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks that every entry is an exact pin: well-formed package name,
// no version-range syntax, no duplicate (package, platform) pairs.
func (m *Manifest) Validate() error {
	seen := make(map[[2]string]bool, len(m.Packages))
	for _, pin := range m.Packages {
		if pin.Package == "" {
			return invalid("package name is required", nil)
		}
		if !pkgNameRE.MatchString(pin.Package) {
			return invalid("package name has invalid characters", map[string]any{"package": pin.Package})
		}
		if err := validateVersion(pin); err != nil {
			return err
		}
		if pin.Platform != "" && !platformRE.MatchString(pin.Platform) {
			return invalid("platform qualifier is malformed", map[string]any{
				"package":  pin.Package,
				"platform": pin.Platform,
			})
		}
		key := [2]string{pin.Package, pin.Platform}
		if seen[key] {
			return invalid("duplicate pin", map[string]any{
				"package":  pin.Package,
				"platform": pin.Platform,
			})
		}
		seen[key] = true
	}
	return nil
}

func validateVersion(pin Pin) error {
	if pin.Version == "" {
		return invalid("version is required", map[string]any{"package": pin.Package})
	}
	if strings.ContainsAny(pin.Version, "<>~^* ") || strings.HasPrefix(pin.Version, "=") {
		return invalid("version must be an exact pin", map[string]any{
			"package": pin.Package,
			"version": pin.Version,
		})
	}
	return nil
}

// Resolve materializes the deterministic pin set for one target platform.
// Platform-qualified entries win over unqualified ones for the same package;
// ${platform} templates expand to the target. Two applicable pins of equal
// specificity with different versions are a conflict.
func (m *Manifest) Resolve(platform string) ([]Pin, error) {
	if !platformRE.MatchString(platform) {
		return nil, invalid("platform qualifier is malformed", map[string]any{"platform": platform})
	}
	type candidate struct {
		pin      Pin
		specific bool
	}
	chosen := make(map[string]candidate)
	var order []string
	for _, pin := range m.Packages {
		if pin.Platform != "" && pin.Platform != platform {
			continue
		}
		resolved := pin
		resolved.Package = strings.ReplaceAll(pin.Package, platformVar, platform)
		resolved.Platform = platform
		specific := pin.Platform != "" || strings.Contains(pin.Package, platformVar)
		prev, ok := chosen[resolved.Package]
		if !ok {
			chosen[resolved.Package] = candidate{pin: resolved, specific: specific}
			order = append(order, resolved.Package)
			continue
		}
		switch {
		case specific == prev.specific:
			if prev.pin.Version != resolved.Version {
				return nil, invalid("conflicting pins for package", map[string]any{
					"package":  resolved.Package,
					"versions": []string{prev.pin.Version, resolved.Version},
				})
			}
		case specific:
			chosen[resolved.Package] = candidate{pin: resolved, specific: true}
		}
	}
	out := make([]Pin, 0, len(order))
	for _, name := range order {
		out = append(out, chosen[name].pin)
	}
	return out, nil
}
