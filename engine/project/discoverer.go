package project

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"

	"github.com/forgeci/forgecfg/engine/core"
)

// FileDiscoverer finds configuration files under a root directory.
type FileDiscoverer interface {
	Discover(includes, excludes []string) ([]string, error)
}

type fsDiscoverer struct {
	root string
}

func NewFileDiscoverer(root string) FileDiscoverer {
	return &fsDiscoverer{root: root}
}

// Discover returns the files matching the include patterns minus those
// matching the exclude patterns, sorted for deterministic load order.
func (d *fsDiscoverer) Discover(includes, excludes []string) ([]string, error) {
	if len(includes) == 0 {
		return []string{}, nil
	}
	discovered := make(map[string]bool)
	for _, pattern := range includes {
		if err := d.validatePattern(pattern); err != nil {
			return nil, err
		}
		matches, err := doublestar.FilepathGlob(filepath.Join(d.root, pattern))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid glob pattern %q", pattern)
		}
		for _, match := range matches {
			rel, err := filepath.Rel(d.root, match)
			if err != nil || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
				return nil, core.NewError(nil, "PATH_ESCAPE_ATTEMPT", map[string]any{
					"file": match,
					"root": d.root,
				})
			}
			discovered[match] = true
		}
	}
	files := make([]string, 0, len(discovered))
	for file := range discovered {
		excluded, err := d.isExcluded(file, excludes)
		if err != nil {
			return nil, err
		}
		if !excluded {
			files = append(files, file)
		}
	}
	sort.Strings(files)
	return files, nil
}

func (d *fsDiscoverer) validatePattern(pattern string) error {
	if filepath.IsAbs(pattern) || strings.Contains(pattern, "..") {
		return core.NewError(nil, "INVALID_GLOB_PATTERN", map[string]any{"pattern": pattern})
	}
	return nil
}

func (d *fsDiscoverer) isExcluded(file string, excludes []string) (bool, error) {
	rel, err := filepath.Rel(d.root, file)
	if err != nil {
		return false, err
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range excludes {
		matched, err := doublestar.Match(pattern, rel)
		if err != nil {
			return false, errors.Wrapf(err, "invalid exclude pattern %q", pattern)
		}
		if matched {
			return true, nil
		}
		matched, err = doublestar.Match(pattern, filepath.Base(file))
		if err != nil {
			return false, err
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}
