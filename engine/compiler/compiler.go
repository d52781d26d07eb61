package compiler

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/forgeci/forgecfg/engine/builder"
	"github.com/forgeci/forgecfg/engine/mixin"
	"github.com/forgeci/forgecfg/engine/project"
	"github.com/forgeci/forgecfg/pkg/logger"
)

const defaultConcurrency = 8

// Compiler turns a loaded project configuration into a Snapshot. Any error
// aborts the whole pass; there is no partial output.
type Compiler struct {
	concurrency int
}

type Option func(*Compiler)

// WithConcurrency bounds the number of resolved builders validated in
// parallel.
func WithConcurrency(n int) Option {
	return func(c *Compiler) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

func New(opts ...Option) *Compiler {
	c := &Compiler{concurrency: defaultConcurrency}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile flattens every mixin, resolves every builder in every bucket and
// validates the resolved records.
func (c *Compiler) Compile(ctx context.Context, cfg *project.Config) (*Snapshot, error) {
	log := logger.FromContext(ctx)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	resolver := mixin.NewResolver(mixin.Set(cfg.BuilderMixins))
	if err := resolver.FlattenAll(); err != nil {
		return nil, err
	}

	snapshot := &Snapshot{Project: cfg.Name}
	var resolved []*builder.Config
	for _, bkt := range cfg.Buckets {
		compiled := CompiledBucket{
			Name: bkt.Name,
			ACLs: cfg.ExpandACLs(bkt),
		}
		if bkt.Swarming != nil {
			compiled.Hostname = bkt.Swarming.Hostname
		}
		for _, b := range bkt.Builders() {
			r, err := resolver.ResolveBuilder(b, bkt.Defaults())
			if err != nil {
				return nil, err
			}
			compiled.Builders = append(compiled.Builders, r)
			resolved = append(resolved, r)
		}
		sort.Slice(compiled.Builders, func(i, j int) bool {
			return compiled.Builders[i].Name < compiled.Builders[j].Name
		})
		snapshot.Buckets = append(snapshot.Buckets, compiled)
	}
	sort.Slice(snapshot.Buckets, func(i, j int) bool {
		return snapshot.Buckets[i].Name < snapshot.Buckets[j].Name
	})

	if err := c.validateResolved(ctx, resolved); err != nil {
		return nil, err
	}
	log.Info("compiled project configuration",
		"project", cfg.Name,
		"buckets", len(snapshot.Buckets),
		"builders", len(resolved))
	return snapshot, nil
}

func (c *Compiler) validateResolved(ctx context.Context, resolved []*builder.Config) error {
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, r := range resolved {
		g.Go(func() error {
			return r.ValidateResolved()
		})
	}
	return g.Wait()
}
