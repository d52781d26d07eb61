package project

import (
	"github.com/forgeci/forgecfg/engine/bucket"
	"github.com/forgeci/forgecfg/engine/builder"
	"github.com/forgeci/forgecfg/engine/core"
)

// Config is the root of a project configuration: named ACL sets, named
// builder mixins and the bucket list. It may be assembled from several
// discovered files; see Loader.
type Config struct {
	Name          string                     `json:"name,omitempty"           yaml:"name,omitempty"`
	ACLSets       map[string][]bucket.ACL    `json:"acl_sets,omitempty"       yaml:"acl_sets,omitempty"`
	BuilderMixins map[string]*builder.Config `json:"builder_mixins,omitempty" yaml:"builder_mixins,omitempty"`
	Buckets       []*bucket.Config           `json:"buckets,omitempty"        yaml:"buckets,omitempty"`
}

func invalid(reason string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	details["reason"] = reason
	return core.NewError(nil, "PROJECT_INVALID", details)
}

// Validate checks project-level invariants: unique bucket names, well-formed
// buckets, mixin name syntax, resolvable ACL-set references and well-formed
// ACL-set entries. Mixin reference resolution happens in the compiler.
func (c *Config) Validate() error {
	for name, acls := range c.ACLSets {
		if name == "" {
			return invalid("ACL set name is required", nil)
		}
		for _, acl := range acls {
			if err := bucket.ValidateACL("acl_set:"+name, acl); err != nil {
				return err
			}
		}
	}
	for name, m := range c.BuilderMixins {
		if err := builder.ValidateName(name); err != nil {
			return err
		}
		if m == nil {
			return invalid("mixin has no body", map[string]any{"mixin": name})
		}
		if m.Name != "" && m.Name != name {
			return invalid("mixin body must not carry a different name", map[string]any{
				"mixin": name,
				"name":  m.Name,
			})
		}
	}
	seen := make(map[string]bool, len(c.Buckets))
	for _, b := range c.Buckets {
		if err := b.Validate(); err != nil {
			return err
		}
		if seen[b.Name] {
			return invalid("duplicate bucket name", map[string]any{"bucket": b.Name})
		}
		seen[b.Name] = true
		for _, ref := range b.ACLSets {
			if _, ok := c.ACLSets[ref]; !ok {
				return invalid("bucket references unknown ACL set", map[string]any{
					"bucket":  b.Name,
					"acl_set": ref,
				})
			}
		}
	}
	return nil
}

// ExpandACLs returns a bucket's effective ACL list: the referenced ACL sets
// expanded in listed order, then the bucket's own entries, duplicates
// dropped.
func (c *Config) ExpandACLs(b *bucket.Config) []bucket.ACL {
	var out []bucket.ACL
	seen := make(map[bucket.ACL]bool)
	push := func(acls []bucket.ACL) {
		for _, acl := range acls {
			if seen[acl] {
				continue
			}
			seen[acl] = true
			out = append(out, acl)
		}
	}
	for _, ref := range b.ACLSets {
		push(c.ACLSets[ref])
	}
	push(b.ACLs)
	return out
}

// Merge folds another partial project config (typically from a second
// discovered file) into c. Buckets append; named maps union, with duplicate
// names rejected.
func (c *Config) Merge(other *Config) error {
	if other == nil {
		return nil
	}
	if other.Name != "" {
		if c.Name != "" && c.Name != other.Name {
			return invalid("conflicting project names", map[string]any{
				"name":  c.Name,
				"other": other.Name,
			})
		}
		c.Name = other.Name
	}
	for name, acls := range other.ACLSets {
		if _, ok := c.ACLSets[name]; ok {
			return invalid("ACL set defined twice", map[string]any{"acl_set": name})
		}
		if c.ACLSets == nil {
			c.ACLSets = make(map[string][]bucket.ACL)
		}
		c.ACLSets[name] = acls
	}
	for name, m := range other.BuilderMixins {
		if _, ok := c.BuilderMixins[name]; ok {
			return invalid("mixin defined twice", map[string]any{"mixin": name})
		}
		if c.BuilderMixins == nil {
			c.BuilderMixins = make(map[string]*builder.Config)
		}
		c.BuilderMixins[name] = m
	}
	for _, b := range other.Buckets {
		for _, existing := range c.Buckets {
			if existing.Name == b.Name {
				return invalid("bucket defined twice", map[string]any{"bucket": b.Name})
			}
		}
		c.Buckets = append(c.Buckets, b)
	}
	return nil
}
