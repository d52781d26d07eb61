package bucket

import (
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/forgeci/forgecfg/engine/builder"
	"github.com/forgeci/forgecfg/engine/core"
)

var bucketNameRE = regexp.MustCompile(`^[a-z0-9\-_.]+$`)

// Role is the access level an ACL entry grants on a bucket.
type Role string

const (
	RoleReader    Role = "reader"
	RoleScheduler Role = "scheduler"
	RoleWriter    Role = "writer"
)

// ACL grants a role to exactly one principal: a concrete identity or a
// group.
type ACL struct {
	Role     Role   `json:"role"               yaml:"role"               validate:"required,oneof=reader scheduler writer"`
	Identity string `json:"identity,omitempty" yaml:"identity,omitempty"`
	Group    string `json:"group,omitempty"    yaml:"group,omitempty"`
}

// Swarming holds the execution backend section of a bucket: the backend
// hostname, defaults seeding every builder, and the builder list itself.
type Swarming struct {
	Hostname        string            `json:"hostname,omitempty"         yaml:"hostname,omitempty"`
	BuilderDefaults *builder.Config   `json:"builder_defaults,omitempty" yaml:"builder_defaults,omitempty"`
	Builders        []*builder.Config `json:"builders,omitempty"         yaml:"builders,omitempty"`
}

// Config is one bucket declaration.
type Config struct {
	Name     string    `json:"name"                yaml:"name"                validate:"required"`
	ACLs     []ACL     `json:"acls,omitempty"      yaml:"acls,omitempty"`
	ACLSets  []string  `json:"acl_sets,omitempty"  yaml:"acl_sets,omitempty"`
	Swarming *Swarming `json:"swarming,omitempty"  yaml:"swarming,omitempty"`
}

var structValidate = validator.New()

func invalid(name, reason string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	details["bucket"] = name
	details["reason"] = reason
	return core.NewError(nil, "BUCKET_INVALID", details)
}

// ValidateACL checks one ACL entry: a known role and exactly one principal.
func ValidateACL(bucketName string, acl ACL) error {
	switch acl.Role {
	case RoleReader, RoleScheduler, RoleWriter:
	default:
		return invalid(bucketName, "unknown ACL role", map[string]any{"role": string(acl.Role)})
	}
	if (acl.Identity == "") == (acl.Group == "") {
		return invalid(bucketName, "ACL must set exactly one of identity or group", map[string]any{
			"role": string(acl.Role),
		})
	}
	return nil
}

// Validate checks the bucket's own invariants. Mixin references and ACL-set
// references are resolved at the project level.
func (c *Config) Validate() error {
	if err := structValidate.Struct(c); err != nil {
		return core.NewError(err, "BUCKET_INVALID", map[string]any{"bucket": c.Name})
	}
	if !bucketNameRE.MatchString(c.Name) {
		return invalid(c.Name, "bucket name has invalid characters", nil)
	}
	for _, acl := range c.ACLs {
		if err := ValidateACL(c.Name, acl); err != nil {
			return err
		}
	}
	return c.validateBuilders()
}

func (c *Config) validateBuilders() error {
	if c.Swarming == nil {
		return nil
	}
	seen := make(map[string]bool, len(c.Swarming.Builders))
	for _, b := range c.Swarming.Builders {
		if err := builder.ValidateName(b.Name); err != nil {
			return err
		}
		if seen[b.Name] {
			return invalid(c.Name, "duplicate builder name", map[string]any{"builder": b.Name})
		}
		seen[b.Name] = true
	}
	if d := c.Swarming.BuilderDefaults; d != nil && d.Name != "" {
		return invalid(c.Name, "builder defaults must not be named", map[string]any{"name": d.Name})
	}
	return nil
}

// Defaults returns the bucket's builder defaults, or nil when the bucket has
// no swarming section.
func (c *Config) Defaults() *builder.Config {
	if c.Swarming == nil {
		return nil
	}
	return c.Swarming.BuilderDefaults
}

// Builders returns the bucket's builder list, or nil when the bucket has no
// swarming section.
func (c *Config) Builders() []*builder.Config {
	if c.Swarming == nil {
		return nil
	}
	return c.Swarming.Builders
}
