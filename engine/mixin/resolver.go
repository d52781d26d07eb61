package mixin

import (
	"slices"
	"sort"

	"github.com/forgeci/forgecfg/engine/builder"
)

// Set maps mixin name to its partial builder record.
type Set map[string]*builder.Config

type visitState int

const (
	stateUnvisited visitState = iota
	stateInProgress
	stateDone
)

// Resolver flattens mixins by memoized topological evaluation and resolves
// builders against bucket defaults and their listed mixins. A Resolver is for
// a single compilation pass and is not safe for concurrent use.
type Resolver struct {
	mixins    Set
	flattened map[string]*builder.Config
	state     map[string]visitState
	stack     []string
}

func NewResolver(mixins Set) *Resolver {
	return &Resolver{
		mixins:    mixins,
		flattened: make(map[string]*builder.Config, len(mixins)),
		state:     make(map[string]visitState, len(mixins)),
	}
}

// Flatten returns the fully flattened form of the named mixin: its own mixin
// references folded in listed order, its direct fields applied last. Results
// are memoized; revisiting a name while it is still in progress is a cycle.
func (r *Resolver) Flatten(name string) (*builder.Config, error) {
	flat, err := r.flatten(name, "")
	if err != nil {
		return nil, err
	}
	return flat.Clone()
}

// FlattenAll eagerly flattens every mixin in the set, visiting names in
// sorted order so that error reporting is deterministic.
func (r *Resolver) FlattenAll() error {
	names := make([]string, 0, len(r.mixins))
	for name := range r.mixins {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := r.flatten(name, ""); err != nil {
			return err
		}
	}
	return nil
}

// ResolveBuilder produces the fully merged record for one builder: empty
// record, then bucket defaults (their listed mixins folded first, direct
// fields after), then each of the builder's mixins' flattened forms in
// order, then the builder's own direct fields last.
func (r *Resolver) ResolveBuilder(b *builder.Config, defaults *builder.Config) (*builder.Config, error) {
	out := &builder.Config{}
	if defaults != nil {
		for _, name := range defaults.Mixins {
			flat, err := r.flatten(name, b.Name)
			if err != nil {
				return nil, err
			}
			if err := out.Apply(flat); err != nil {
				return nil, err
			}
		}
		seed, err := defaults.Clone()
		if err != nil {
			return nil, err
		}
		// defaults never name the builder
		seed.Name = ""
		seed.Mixins = nil
		if err := out.Apply(seed); err != nil {
			return nil, err
		}
	}
	for _, name := range b.Mixins {
		flat, err := r.flatten(name, b.Name)
		if err != nil {
			return nil, err
		}
		if err := out.Apply(flat); err != nil {
			return nil, err
		}
	}
	if err := out.Apply(b); err != nil {
		return nil, err
	}
	out.Name = b.Name
	out.Mixins = nil
	out.Dimensions = out.Dimensions.Normalize()
	return out, nil
}

func (r *Resolver) flatten(name, referrer string) (*builder.Config, error) {
	switch r.state[name] {
	case stateDone:
		return r.flattened[name], nil
	case stateInProgress:
		return nil, &CyclicMixinError{Path: r.cyclePath(name)}
	}
	m, ok := r.mixins[name]
	if !ok {
		if referrer == "" && len(r.stack) > 0 {
			referrer = r.stack[len(r.stack)-1]
		}
		return nil, &UnknownMixinError{Name: name, Referrer: referrer}
	}
	r.state[name] = stateInProgress
	r.stack = append(r.stack, name)
	defer func() {
		r.stack = r.stack[:len(r.stack)-1]
		// a failed visit must not linger as in-progress, or a later call
		// would misreport the same failure as a cycle
		if r.state[name] == stateInProgress {
			r.state[name] = stateUnvisited
		}
	}()

	flat := &builder.Config{}
	for _, dep := range m.Mixins {
		depFlat, err := r.flatten(dep, name)
		if err != nil {
			return nil, err
		}
		if err := flat.Apply(depFlat); err != nil {
			return nil, err
		}
	}
	if err := flat.Apply(m); err != nil {
		return nil, err
	}
	flat.Name = ""
	flat.Mixins = nil
	r.flattened[name] = flat
	r.state[name] = stateDone
	return flat, nil
}

func (r *Resolver) cyclePath(name string) []string {
	idx := slices.Index(r.stack, name)
	if idx < 0 {
		return []string{name, name}
	}
	path := slices.Clone(r.stack[idx:])
	return append(path, name)
}
