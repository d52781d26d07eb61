package builder

import (
	"strings"

	"dario.cat/mergo"

	"github.com/forgeci/forgecfg/engine/core"
)

// Dimensions is a list of "key:value" strings matched against bot attributes.
// Merging is keyed: a later entry with the same key replaces the earlier one,
// distinct keys accumulate, and first-seen key order is preserved. An entry
// with an empty value ("key:") removes the inherited dimension.
type Dimensions []string

// Tags is a plain repeated field: overlays concatenate instead of replacing.
type Tags []string

// Properties is a free-form property bag. Merging is a shallow key-wise
// overwrite: an overlay value replaces the base value for that key wholesale.
type Properties map[string]any

// Executable points at the runnable payload of a builder: a pinned package
// and the command to invoke inside it.
type Executable struct {
	Package string   `json:"package,omitempty" yaml:"package,omitempty" validate:"omitempty,pkgname"`
	Version string   `json:"version,omitempty" yaml:"version,omitempty"`
	Cmd     []string `json:"cmd,omitempty"     yaml:"cmd,omitempty"`
}

// Cache declares a named bot cache mounted at a relative path. Caches merge
// by name the same way dimensions merge by key.
type Cache struct {
	Name                 string `json:"name"                     yaml:"name"                     validate:"required"`
	Path                 string `json:"path"                     yaml:"path"                     validate:"required"`
	WaitForWarmCacheSecs int    `json:"wait_for_warm_cache_secs,omitempty" yaml:"wait_for_warm_cache_secs,omitempty" validate:"min=0"`
}

// Config is one builder definition (or, with only a subset of fields set, a
// mixin or a bucket's builder defaults). Records are merged field-wise: a
// scalar overlay value replaces the base value unless the overlay value is
// the type's zero marker.
type Config struct {
	Name                 string         `json:"name,omitempty"                   yaml:"name,omitempty"`
	Description          string         `json:"description,omitempty"            yaml:"description,omitempty"`
	Category             string         `json:"category,omitempty"               yaml:"category,omitempty"`
	Mixins               []string       `json:"mixins,omitempty"                 yaml:"mixins,omitempty"`
	Dimensions           Dimensions     `json:"dimensions,omitempty"             yaml:"dimensions,omitempty"`
	Tags                 Tags           `json:"tags,omitempty"                   yaml:"tags,omitempty"`
	Executable           *Executable    `json:"executable,omitempty"             yaml:"executable,omitempty"`
	Properties           Properties     `json:"properties,omitempty"             yaml:"properties,omitempty"`
	Priority             int            `json:"priority,omitempty"               yaml:"priority,omitempty"               validate:"min=0,max=255"`
	ExecutionTimeout     Duration       `json:"execution_timeout,omitempty"      yaml:"execution_timeout,omitempty"`
	ExpirationTimeout    Duration       `json:"expiration_timeout,omitempty"     yaml:"expiration_timeout,omitempty"`
	Caches               []Cache        `json:"caches,omitempty"                 yaml:"caches,omitempty"`
	ServiceAccount       string         `json:"service_account,omitempty"        yaml:"service_account,omitempty"`
	Experiments          map[string]int `json:"experiments,omitempty"            yaml:"experiments,omitempty"`
	Experimental         Toggle         `json:"experimental,omitempty"           yaml:"experimental,omitempty"`
	WaitForCapacity      Toggle         `json:"wait_for_capacity,omitempty"      yaml:"wait_for_capacity,omitempty"`
	AutoBuilderDimension Toggle         `json:"auto_builder_dimension,omitempty" yaml:"auto_builder_dimension,omitempty"`
}

// Clone returns a deep copy of the record.
func (c *Config) Clone() (*Config, error) {
	if c == nil {
		return &Config{}, nil
	}
	return core.DeepCopy(c)
}

// Apply merges overlay into c following the record merge semantics. The
// overlay's mixin list is never merged; callers fold mixins in explicitly
// before applying.
func (c *Config) Apply(overlay *Config) error {
	if overlay == nil {
		return nil
	}
	src, err := overlay.Clone()
	if err != nil {
		return core.NewError(err, "BUILDER_MERGE_FAILED", map[string]any{"builder": c.Name})
	}
	src.Mixins = nil
	name := c.Name
	if err := mergo.Merge(c, src, mergo.WithOverride, mergo.WithTransformers(mergeTransformer{})); err != nil {
		return core.NewError(err, "BUILDER_MERGE_FAILED", map[string]any{"builder": name})
	}
	return nil
}

// Key returns the dimension key of a "key:value" entry.
func dimensionKey(entry string) string {
	key, _, _ := strings.Cut(entry, ":")
	return key
}

// Value returns the dimension value of a "key:value" entry.
func dimensionValue(entry string) string {
	_, value, _ := strings.Cut(entry, ":")
	return value
}

// Get returns the value for a dimension key, and whether the key is present.
func (d Dimensions) Get(key string) (string, bool) {
	for _, entry := range d {
		if dimensionKey(entry) == key {
			return dimensionValue(entry), true
		}
	}
	return "", false
}

// Normalize drops removal entries ("key:") from the dimension list. Run once
// after all merge steps have been applied.
func (d Dimensions) Normalize() Dimensions {
	out := make(Dimensions, 0, len(d))
	for _, entry := range d {
		if dimensionValue(entry) == "" {
			continue
		}
		out = append(out, entry)
	}
	return out
}
