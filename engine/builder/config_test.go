package builder

import (
	"testing"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Apply(t *testing.T) {
	t.Run("Should replace scalar fields with non-zero overlay values", func(t *testing.T) {
		base := &Config{Name: "linux-rel", ServiceAccount: "default@example.iam", Priority: 30}
		overlay := &Config{ServiceAccount: "ci@example.iam"}
		require.NoError(t, base.Apply(overlay))
		assert.Equal(t, "ci@example.iam", base.ServiceAccount)
		assert.Equal(t, 30, base.Priority)
		assert.Equal(t, "linux-rel", base.Name)
	})

	t.Run("Should not clear scalars with zero overlay values", func(t *testing.T) {
		base := &Config{Name: "linux-rel", Priority: 40}
		require.NoError(t, base.Apply(&Config{}))
		assert.Equal(t, 40, base.Priority)
	})

	t.Run("Should merge dimensions by key with later value winning", func(t *testing.T) {
		base := &Config{Dimensions: Dimensions{"os:Linux", "cpu:x86"}}
		overlay := &Config{Dimensions: Dimensions{"cpu:x86-64", "cores:8"}}
		require.NoError(t, base.Apply(overlay))
		assert.Equal(t, Dimensions{"os:Linux", "cpu:x86-64", "cores:8"}, base.Dimensions)
	})

	t.Run("Should preserve first-seen dimension key order", func(t *testing.T) {
		base := &Config{Dimensions: Dimensions{"pool:ci", "os:Linux"}}
		require.NoError(t, base.Apply(&Config{Dimensions: Dimensions{"os:Mac", "gpu:none"}}))
		assert.Equal(t, Dimensions{"pool:ci", "os:Mac", "gpu:none"}, base.Dimensions)
	})

	t.Run("Should concatenate tags", func(t *testing.T) {
		base := &Config{Tags: Tags{"team:infra"}}
		require.NoError(t, base.Apply(&Config{Tags: Tags{"tree:closable"}}))
		assert.Equal(t, Tags{"team:infra", "tree:closable"}, base.Tags)
	})

	t.Run("Should merge caches by name", func(t *testing.T) {
		base := &Config{Caches: []Cache{
			{Name: "git", Path: "git"},
			{Name: "goma", Path: "goma", WaitForWarmCacheSecs: 60},
		}}
		overlay := &Config{Caches: []Cache{
			{Name: "goma", Path: "goma_v2"},
			{Name: "vpython", Path: "vpython"},
		}}
		require.NoError(t, base.Apply(overlay))
		require.Len(t, base.Caches, 3)
		assert.Equal(t, Cache{Name: "goma", Path: "goma_v2"}, base.Caches[1])
		assert.Equal(t, "vpython", base.Caches[2].Name)
	})

	t.Run("Should overwrite properties shallowly by key", func(t *testing.T) {
		base := &Config{Properties: Properties{
			"mastername": "ci",
			"config":     map[string]any{"debug": true, "arch": "x86"},
		}}
		overlay := &Config{Properties: Properties{
			"config": map[string]any{"debug": false},
		}}
		require.NoError(t, base.Apply(overlay))
		assert.Equal(t, "ci", base.Properties["mastername"])
		// the overlay value replaces the whole nested map
		assert.Equal(t, map[string]any{"debug": false}, base.Properties["config"])
	})

	t.Run("Should not let an unset toggle clear an established value", func(t *testing.T) {
		base := &Config{Experimental: ToggleYes}
		require.NoError(t, base.Apply(&Config{Experimental: ToggleUnset}))
		assert.Equal(t, ToggleYes, base.Experimental)
	})

	t.Run("Should let a set toggle override an earlier value", func(t *testing.T) {
		base := &Config{Experimental: ToggleYes}
		require.NoError(t, base.Apply(&Config{Experimental: ToggleNo}))
		assert.Equal(t, ToggleNo, base.Experimental)
	})

	t.Run("Should merge executable field-wise", func(t *testing.T) {
		base := &Config{Executable: &Executable{Package: "infra/recipes", Version: "v1", Cmd: []string{"luciexe"}}}
		require.NoError(t, base.Apply(&Config{Executable: &Executable{Version: "v2"}}))
		assert.Equal(t, "infra/recipes", base.Executable.Package)
		assert.Equal(t, "v2", base.Executable.Version)
		assert.Equal(t, []string{"luciexe"}, base.Executable.Cmd)
	})

	t.Run("Should merge experiments key-wise", func(t *testing.T) {
		base := &Config{Experiments: map[string]int{"luci.realms": 50, "luci.canary": 10}}
		require.NoError(t, base.Apply(&Config{Experiments: map[string]int{"luci.canary": 100}}))
		assert.Equal(t, 100, base.Experiments["luci.canary"])
		assert.Equal(t, 50, base.Experiments["luci.realms"])
	})

	t.Run("Should never merge the overlay mixin list", func(t *testing.T) {
		base := &Config{Mixins: nil}
		require.NoError(t, base.Apply(&Config{Mixins: []string{"linux"}}))
		assert.Empty(t, base.Mixins)
	})

	t.Run("Should not alias overlay state into the merged record", func(t *testing.T) {
		overlay := &Config{Properties: Properties{"env": map[string]any{"GOOS": "linux"}}}
		base := &Config{}
		require.NoError(t, base.Apply(overlay))
		base.Properties["env"].(map[string]any)["GOOS"] = "darwin"
		assert.Equal(t, "linux", overlay.Properties["env"].(map[string]any)["GOOS"])
	})
}

func TestDimensions(t *testing.T) {
	t.Run("Should remove cleared entries on normalize", func(t *testing.T) {
		dims := Dimensions{"os:Linux", "gpu:", "cores:8"}
		assert.Equal(t, Dimensions{"os:Linux", "cores:8"}, dims.Normalize())
	})

	t.Run("Should look up values by key", func(t *testing.T) {
		dims := Dimensions{"os:Ubuntu-22.04"}
		value, ok := dims.Get("os")
		require.True(t, ok)
		assert.Equal(t, "Ubuntu-22.04", value)
		_, ok = dims.Get("gpu")
		assert.False(t, ok)
	})
}

func TestToggle(t *testing.T) {
	t.Run("Should adopt overlay only when set", func(t *testing.T) {
		assert.Equal(t, ToggleYes, ToggleUnset.Apply(ToggleYes))
		assert.Equal(t, ToggleYes, ToggleYes.Apply(ToggleUnset))
		assert.Equal(t, ToggleNo, ToggleYes.Apply(ToggleNo))
		assert.Equal(t, ToggleUnset, ToggleUnset.Apply(ToggleUnset))
	})

	t.Run("Should substitute the default for unset", func(t *testing.T) {
		assert.True(t, ToggleUnset.Bool(true))
		assert.False(t, ToggleUnset.Bool(false))
		assert.True(t, ToggleYes.Bool(false))
		assert.False(t, ToggleNo.Bool(true))
	})

	t.Run("Should unmarshal YAML spellings", func(t *testing.T) {
		var cfg Config
		data := []byte("experimental: yes\nwait_for_capacity: \"false\"\n")
		require.NoError(t, yaml.Unmarshal(data, &cfg))
		assert.Equal(t, ToggleYes, cfg.Experimental)
		assert.Equal(t, ToggleNo, cfg.WaitForCapacity)
		assert.Equal(t, ToggleUnset, cfg.AutoBuilderDimension)
	})

	t.Run("Should reject unknown spellings", func(t *testing.T) {
		var cfg Config
		err := yaml.Unmarshal([]byte("experimental: maybe\n"), &cfg)
		assert.Error(t, err)
	})
}

func TestDuration(t *testing.T) {
	t.Run("Should parse human-readable durations", func(t *testing.T) {
		var cfg Config
		require.NoError(t, yaml.Unmarshal([]byte("execution_timeout: 1h30m\n"), &cfg))
		assert.Equal(t, 90*time.Minute, cfg.ExecutionTimeout.Std())
	})

	t.Run("Should parse bare seconds", func(t *testing.T) {
		var cfg Config
		require.NoError(t, yaml.Unmarshal([]byte("expiration_timeout: 120\n"), &cfg))
		assert.Equal(t, 2*time.Minute, cfg.ExpirationTimeout.Std())
	})

	t.Run("Should reject garbage", func(t *testing.T) {
		var cfg Config
		assert.Error(t, yaml.Unmarshal([]byte("execution_timeout: soon\n"), &cfg))
	})
}
