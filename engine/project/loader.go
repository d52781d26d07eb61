package project

import (
	"context"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/forgeci/forgecfg/engine/core"
	"github.com/forgeci/forgecfg/pkg/logger"
)

// DefaultIncludes is the glob set used when the caller configures none.
var DefaultIncludes = []string{"*.yaml", "*.yml", "buckets/**/*.yaml"}

// Loader discovers and assembles a project configuration from YAML files
// under a root directory.
type Loader struct {
	root       string
	includes   []string
	excludes   []string
	discoverer FileDiscoverer
}

type LoaderOption func(*Loader)

func WithIncludes(includes []string) LoaderOption {
	return func(l *Loader) {
		if len(includes) > 0 {
			l.includes = includes
		}
	}
}

func WithExcludes(excludes []string) LoaderOption {
	return func(l *Loader) {
		l.excludes = excludes
	}
}

func NewLoader(root string, opts ...LoaderOption) *Loader {
	l := &Loader{
		root:       root,
		includes:   DefaultIncludes,
		discoverer: NewFileDiscoverer(root),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load discovers, parses and merges every matching file, then validates the
// assembled project. Discovery order is sorted, so assembly is deterministic.
func (l *Loader) Load(ctx context.Context) (*Config, error) {
	log := logger.FromContext(ctx)
	files, err := l.discoverer.Discover(l.includes, l.excludes)
	if err != nil {
		return nil, core.NewError(err, "PROJECT_DISCOVERY_FAILED", map[string]any{"root": l.root})
	}
	if len(files) == 0 {
		return nil, core.NewError(nil, "PROJECT_NO_CONFIG_FILES", map[string]any{
			"root":     l.root,
			"includes": l.includes,
		})
	}
	project := &Config{}
	for _, file := range files {
		partial, err := l.loadFile(file)
		if err != nil {
			return nil, err
		}
		if err := project.Merge(partial); err != nil {
			return nil, core.NewError(err, "PROJECT_MERGE_FAILED", map[string]any{"file": file})
		}
		log.Debug("loaded config file", "file", file)
	}
	if err := project.Validate(); err != nil {
		return nil, err
	}
	log.Info("project configuration loaded",
		"files", len(files),
		"buckets", len(project.Buckets),
		"mixins", len(project.BuilderMixins))
	return project, nil
}

func (l *Loader) loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.NewError(err, "PROJECT_FILE_FAILED", map[string]any{"file": path})
	}
	var partial Config
	if err := yaml.Unmarshal(data, &partial); err != nil {
		return nil, core.NewError(err, "PROJECT_FILE_FAILED", map[string]any{"file": path})
	}
	return &partial, nil
}
