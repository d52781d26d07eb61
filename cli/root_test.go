package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeci/forgecfg/pkg/version"
)

func writeProjectFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	content := `
name: chromium
builder_mixins:
  linux:
    dimensions:
      - "os:Linux"
    executable:
      package: infra/recipes
      version: refs/heads/main
buckets:
  - name: ci
    swarming:
      hostname: swarming.example.com
      builder_defaults:
        dimensions:
          - "pool:ci"
      builders:
        - name: linux-rel
          mixins: [linux]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "project.yaml"), []byte(content), 0o644))
	return dir
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := RootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCompileCmd(t *testing.T) {
	t.Run("Should compile a fixture project to stdout", func(t *testing.T) {
		dir := writeProjectFixture(t)
		out, err := runCommand(t, "compile", dir)
		require.NoError(t, err)
		assert.Contains(t, out, "linux-rel")
		assert.Contains(t, out, "pool:ci")
	})

	t.Run("Should write the snapshot to a file", func(t *testing.T) {
		dir := writeProjectFixture(t)
		output := filepath.Join(t.TempDir(), "snapshot.yaml")
		_, err := runCommand(t, "compile", dir, "-o", output)
		require.NoError(t, err)
		data, err := os.ReadFile(output)
		require.NoError(t, err)
		assert.Contains(t, string(data), "linux-rel")
	})

	t.Run("Should emit JSON when requested", func(t *testing.T) {
		dir := writeProjectFixture(t)
		out, err := runCommand(t, "compile", dir, "--format", "json")
		require.NoError(t, err)
		assert.Contains(t, out, "\"linux-rel\"")
	})

	t.Run("Should fail on a broken configuration", func(t *testing.T) {
		dir := t.TempDir()
		broken := "buckets:\n  - name: ci\n    swarming:\n      builders:\n        - name: broken\n          mixins: [ghost]\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "project.yaml"), []byte(broken), 0o644))
		_, err := runCommand(t, "compile", dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ghost")
	})
}

func TestValidateCmd(t *testing.T) {
	t.Run("Should validate a fixture project", func(t *testing.T) {
		dir := writeProjectFixture(t)
		_, err := runCommand(t, "validate", dir)
		assert.NoError(t, err)
	})

	t.Run("Should fail for a missing directory", func(t *testing.T) {
		_, err := runCommand(t, "validate", filepath.Join(t.TempDir(), "absent"))
		assert.Error(t, err)
	})
}

func TestResolvePinsCmd(t *testing.T) {
	t.Run("Should resolve pins for a platform", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pins.yaml")
		content := `
packages:
  - package: tools/git
    version: "2.39.0"
  - package: infra/tools/luci/${platform}
    version: git_revision:deadbeef
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		out, err := runCommand(t, "resolve-pins", path, "--platform", "linux-amd64")
		require.NoError(t, err)
		assert.Contains(t, out, "infra/tools/luci/linux-amd64")
	})

	t.Run("Should require the platform flag", func(t *testing.T) {
		_, err := runCommand(t, "resolve-pins", "pins.yaml")
		assert.Error(t, err)
	})
}

func TestBundleCmd(t *testing.T) {
	t.Run("Should compile and write a bundle", func(t *testing.T) {
		dir := writeProjectFixture(t)
		dest := filepath.Join(t.TempDir(), "bundle")
		_, err := runCommand(t, "bundle", dir, "--dest", dest)
		require.NoError(t, err)
		data, err := os.ReadFile(filepath.Join(dest, "snapshot.yaml"))
		require.NoError(t, err)
		assert.Contains(t, string(data), "linux-rel")
		_, err = os.Stat(filepath.Join(dest, "sources", "project.yaml"))
		assert.NoError(t, err)
	})
}

func TestVersionCmd(t *testing.T) {
	t.Run("Should print build information", func(t *testing.T) {
		out, err := runCommand(t, "version")
		require.NoError(t, err)
		assert.Contains(t, out, "forgecfg")
	})

	t.Run("Should answer the root --version flag", func(t *testing.T) {
		out, err := runCommand(t, "--version")
		require.NoError(t, err)
		assert.Contains(t, out, version.GetVersion())
	})
}
