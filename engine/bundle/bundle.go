package bundle

import (
	"context"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/goccy/go-yaml"
	cp "github.com/otiai10/copy"

	"github.com/forgeci/forgecfg/engine/compiler"
	"github.com/forgeci/forgecfg/engine/core"
	"github.com/forgeci/forgecfg/engine/manifest"
	"github.com/forgeci/forgecfg/pkg/logger"
)

const (
	snapshotFile = "snapshot.yaml"
	pinsFile     = "pins.yaml"
	sourcesDir   = "sources"
)

// Options describes one bundle run: the compiled snapshot, the config source
// tree to embed, and the destination directory.
type Options struct {
	Snapshot  *compiler.Snapshot
	Pins      []manifest.Pin
	SourceDir string
	Dest      string
	Excludes  []string
	// Force allows writing into a non-empty destination.
	Force bool
}

// Write produces a hermetic, runnable bundle: the compiled snapshot, the
// resolved pin set and a copy of the config sources, in a deterministic
// layout.
func Write(ctx context.Context, opts Options) error {
	log := logger.FromContext(ctx)
	if opts.Snapshot == nil {
		return core.NewError(nil, "BUNDLE_BAD_REQUEST", map[string]any{"reason": "snapshot is required"})
	}
	if opts.Dest == "" {
		return core.NewError(nil, "BUNDLE_BAD_REQUEST", map[string]any{"reason": "destination is required"})
	}
	if err := checkDest(opts.Dest, opts.Force); err != nil {
		return err
	}
	if err := os.MkdirAll(opts.Dest, 0o755); err != nil {
		return core.NewError(err, "BUNDLE_WRITE_FAILED", map[string]any{"dest": opts.Dest})
	}

	data, err := opts.Snapshot.MarshalFormat("yaml")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(opts.Dest, snapshotFile), data, 0o644); err != nil {
		return core.NewError(err, "BUNDLE_WRITE_FAILED", map[string]any{"file": snapshotFile})
	}

	if len(opts.Pins) > 0 {
		pinData, err := yaml.Marshal(&manifest.Manifest{Packages: opts.Pins})
		if err != nil {
			return core.NewError(err, "BUNDLE_WRITE_FAILED", map[string]any{"file": pinsFile})
		}
		if err := os.WriteFile(filepath.Join(opts.Dest, pinsFile), pinData, 0o644); err != nil {
			return core.NewError(err, "BUNDLE_WRITE_FAILED", map[string]any{"file": pinsFile})
		}
	}

	if opts.SourceDir != "" {
		if err := copySources(opts); err != nil {
			return err
		}
	}
	log.Info("wrote bundle", "dest", opts.Dest, "builders", countBuilders(opts.Snapshot))
	return nil
}

func copySources(opts Options) error {
	dest := filepath.Join(opts.Dest, sourcesDir)
	err := cp.Copy(opts.SourceDir, dest, cp.Options{
		Skip: func(_ os.FileInfo, src, _ string) (bool, error) {
			rel, err := filepath.Rel(opts.SourceDir, src)
			if err != nil {
				return false, err
			}
			return isExcluded(filepath.ToSlash(rel), opts.Excludes)
		},
	})
	if err != nil {
		return core.NewError(err, "BUNDLE_WRITE_FAILED", map[string]any{"source": opts.SourceDir})
	}
	return nil
}

func isExcluded(rel string, excludes []string) (bool, error) {
	for _, pattern := range excludes {
		matched, err := doublestar.Match(pattern, rel)
		if err != nil {
			return false, core.NewError(err, "BUNDLE_BAD_REQUEST", map[string]any{"pattern": pattern})
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}

func checkDest(dest string, force bool) error {
	entries, err := os.ReadDir(dest)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return core.NewError(err, "BUNDLE_WRITE_FAILED", map[string]any{"dest": dest})
	}
	if len(entries) > 0 && !force {
		return core.NewError(nil, "BUNDLE_DEST_NOT_EMPTY", map[string]any{"dest": dest})
	}
	return nil
}

func countBuilders(s *compiler.Snapshot) int {
	n := 0
	for i := range s.Buckets {
		n += len(s.Buckets[i].Builders)
	}
	return n
}
