package mixin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeci/forgecfg/engine/builder"
)

func TestResolver_ResolveBuilder(t *testing.T) {
	t.Run("Should merge defaults then mixins then own fields", func(t *testing.T) {
		mixins := Set{
			"a": {Dimensions: builder.Dimensions{"cpu:x86"}},
			"b": {Dimensions: builder.Dimensions{"cpu:x86-64", "cores:8"}},
		}
		defaults := &builder.Config{Dimensions: builder.Dimensions{"os:Linux"}}
		b := &builder.Config{Name: "linux-rel", Mixins: []string{"a", "b"}}

		resolved, err := NewResolver(mixins).ResolveBuilder(b, defaults)
		require.NoError(t, err)
		assert.Equal(t, builder.Dimensions{"os:Linux", "cpu:x86-64", "cores:8"}, resolved.Dimensions)
		assert.Equal(t, "linux-rel", resolved.Name)
		assert.Empty(t, resolved.Mixins)
	})

	t.Run("Should let the builder override a mixin dimension key", func(t *testing.T) {
		mixins := Set{"linux": {Dimensions: builder.Dimensions{"os:Ubuntu-20.04"}}}
		b := &builder.Config{
			Name:       "linux-rel",
			Mixins:     []string{"linux"},
			Dimensions: builder.Dimensions{"os:Ubuntu-22.04"},
		}
		resolved, err := NewResolver(mixins).ResolveBuilder(b, nil)
		require.NoError(t, err)
		value, ok := resolved.Dimensions.Get("os")
		require.True(t, ok)
		assert.Equal(t, "Ubuntu-22.04", value)
	})

	t.Run("Should resolve the documented diamond with last-applied mixin winning", func(t *testing.T) {
		// C mixes in A; D mixes in B (itself mixing in A) then C.
		mixins := Set{
			"a": {ServiceAccount: "a@example.iam"},
			"b": {Mixins: []string{"a"}, ServiceAccount: "b@example.iam"},
			"c": {Mixins: []string{"a"}, ServiceAccount: "c@example.iam"},
		}
		d := &builder.Config{Name: "d", Mixins: []string{"b", "c"}}
		resolved, err := NewResolver(mixins).ResolveBuilder(d, nil)
		require.NoError(t, err)
		assert.Equal(t, "c@example.iam", resolved.ServiceAccount)
	})

	t.Run("Should not let an unset mixin toggle clear an earlier value", func(t *testing.T) {
		mixins := Set{
			"experimental": {Experimental: builder.ToggleYes},
			"plain":        {Dimensions: builder.Dimensions{"pool:ci"}},
		}
		b := &builder.Config{Name: "x", Mixins: []string{"experimental", "plain"}}
		resolved, err := NewResolver(mixins).ResolveBuilder(b, nil)
		require.NoError(t, err)
		assert.Equal(t, builder.ToggleYes, resolved.Experimental)
	})

	t.Run("Should drop dimensions cleared by the builder", func(t *testing.T) {
		mixins := Set{"gpu": {Dimensions: builder.Dimensions{"gpu:nvidia-tesla"}}}
		b := &builder.Config{
			Name:       "nogpu",
			Mixins:     []string{"gpu"},
			Dimensions: builder.Dimensions{"gpu:", "os:Linux"},
		}
		resolved, err := NewResolver(mixins).ResolveBuilder(b, nil)
		require.NoError(t, err)
		assert.Equal(t, builder.Dimensions{"os:Linux"}, resolved.Dimensions)
	})

	t.Run("Should never let defaults rename the builder", func(t *testing.T) {
		defaults := &builder.Config{Name: "defaults-record"}
		b := &builder.Config{Name: "real-name"}
		resolved, err := NewResolver(nil).ResolveBuilder(b, defaults)
		require.NoError(t, err)
		assert.Equal(t, "real-name", resolved.Name)
	})

	t.Run("Should fold mixins listed by bucket defaults", func(t *testing.T) {
		mixins := Set{"base": {Dimensions: builder.Dimensions{"pool:ci", "os:Ubuntu"}}}
		defaults := &builder.Config{
			Mixins:     []string{"base"},
			Dimensions: builder.Dimensions{"os:Linux"},
		}
		b := &builder.Config{Name: "linux-rel"}
		resolved, err := NewResolver(mixins).ResolveBuilder(b, defaults)
		require.NoError(t, err)
		pool, ok := resolved.Dimensions.Get("pool")
		require.True(t, ok)
		assert.Equal(t, "ci", pool)
		os, ok := resolved.Dimensions.Get("os")
		require.True(t, ok)
		assert.Equal(t, "Linux", os, "defaults' direct fields apply after their mixins")
	})

	t.Run("Should reject unknown mixins listed by bucket defaults", func(t *testing.T) {
		defaults := &builder.Config{Mixins: []string{"ghost"}}
		b := &builder.Config{Name: "linux-rel"}
		_, err := NewResolver(Set{}).ResolveBuilder(b, defaults)
		var unknown *UnknownMixinError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "ghost", unknown.Name)
		assert.Equal(t, "linux-rel", unknown.Referrer)
	})

	t.Run("Should report the builder as referrer for an unknown mixin", func(t *testing.T) {
		b := &builder.Config{Name: "linux-rel", Mixins: []string{"nope"}}
		_, err := NewResolver(Set{}).ResolveBuilder(b, nil)
		var unknown *UnknownMixinError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "nope", unknown.Name)
		assert.Equal(t, "linux-rel", unknown.Referrer)
	})
}

func TestResolver_Flatten(t *testing.T) {
	t.Run("Should flatten nested mixins in listed order", func(t *testing.T) {
		mixins := Set{
			"base":  {Dimensions: builder.Dimensions{"pool:ci"}, Priority: 30},
			"linux": {Mixins: []string{"base"}, Dimensions: builder.Dimensions{"os:Linux"}},
		}
		flat, err := NewResolver(mixins).Flatten("linux")
		require.NoError(t, err)
		assert.Equal(t, builder.Dimensions{"pool:ci", "os:Linux"}, flat.Dimensions)
		assert.Equal(t, 30, flat.Priority)
		assert.Empty(t, flat.Mixins)
	})

	t.Run("Should be idempotent", func(t *testing.T) {
		mixins := Set{
			"base":  {Dimensions: builder.Dimensions{"pool:ci"}, Tags: builder.Tags{"team:infra"}},
			"linux": {Mixins: []string{"base"}, Dimensions: builder.Dimensions{"os:Linux"}},
		}
		r := NewResolver(mixins)
		first, err := r.Flatten("linux")
		require.NoError(t, err)

		// re-flattening an already-flattened record must be a fixed point
		again := Set{"linux": first}
		second, err := NewResolver(again).Flatten("linux")
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("Should memoize without aliasing flattened records", func(t *testing.T) {
		mixins := Set{"base": {Dimensions: builder.Dimensions{"pool:ci"}}}
		r := NewResolver(mixins)
		first, err := r.Flatten("base")
		require.NoError(t, err)
		first.Dimensions[0] = "pool:try"
		second, err := r.Flatten("base")
		require.NoError(t, err)
		assert.Equal(t, builder.Dimensions{"pool:ci"}, second.Dimensions)
	})

	t.Run("Should detect a two-node cycle with its path", func(t *testing.T) {
		mixins := Set{
			"x": {Mixins: []string{"y"}},
			"y": {Mixins: []string{"x"}},
		}
		_, err := NewResolver(mixins).Flatten("x")
		var cyclic *CyclicMixinError
		require.ErrorAs(t, err, &cyclic)
		assert.Equal(t, []string{"x", "y", "x"}, cyclic.Path)
	})

	t.Run("Should detect a self-referencing mixin", func(t *testing.T) {
		mixins := Set{"selfish": {Mixins: []string{"selfish"}}}
		_, err := NewResolver(mixins).Flatten("selfish")
		var cyclic *CyclicMixinError
		require.ErrorAs(t, err, &cyclic)
		assert.Equal(t, []string{"selfish", "selfish"}, cyclic.Path)
	})

	t.Run("Should name the referring mixin for an unknown reference", func(t *testing.T) {
		mixins := Set{"linux": {Mixins: []string{"ghost"}}}
		_, err := NewResolver(mixins).Flatten("linux")
		var unknown *UnknownMixinError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "ghost", unknown.Name)
		assert.Equal(t, "linux", unknown.Referrer)
	})

	t.Run("Should report the same error on repeated attempts", func(t *testing.T) {
		r := NewResolver(Set{"a": {Mixins: []string{"ghost"}}})
		var unknown *UnknownMixinError

		_, err := r.Flatten("a")
		require.ErrorAs(t, err, &unknown)

		_, err = r.Flatten("a")
		require.ErrorAs(t, err, &unknown, "a failed visit must not be mistaken for a cycle")
		assert.Equal(t, "ghost", unknown.Name)
	})

	t.Run("Should fail FlattenAll on any cycle before producing output", func(t *testing.T) {
		mixins := Set{
			"ok": {Dimensions: builder.Dimensions{"pool:ci"}},
			"x":  {Mixins: []string{"y"}},
			"y":  {Mixins: []string{"x"}},
		}
		err := NewResolver(mixins).FlattenAll()
		var cyclic *CyclicMixinError
		require.ErrorAs(t, err, &cyclic)
	})
}
