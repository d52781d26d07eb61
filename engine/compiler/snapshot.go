package compiler

import (
	"encoding/json"

	"github.com/goccy/go-yaml"

	"github.com/forgeci/forgecfg/engine/bucket"
	"github.com/forgeci/forgecfg/engine/builder"
	"github.com/forgeci/forgecfg/engine/core"
)

// CompiledBucket is one bucket with every builder fully resolved and its
// effective ACL list expanded.
type CompiledBucket struct {
	Name     string            `json:"name"               yaml:"name"`
	Hostname string            `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	ACLs     []bucket.ACL      `json:"acls,omitempty"     yaml:"acls,omitempty"`
	Builders []*builder.Config `json:"builders,omitempty" yaml:"builders,omitempty"`
}

// Snapshot is the deterministic output of one compilation pass: buckets and
// builders sorted by name, no mixin references remaining.
type Snapshot struct {
	Project string           `json:"project,omitempty" yaml:"project,omitempty"`
	Buckets []CompiledBucket `json:"buckets"           yaml:"buckets"`
}

// Builder looks up a resolved builder by bucket and name.
func (s *Snapshot) Builder(bucketName, builderName string) (*builder.Config, bool) {
	for i := range s.Buckets {
		if s.Buckets[i].Name != bucketName {
			continue
		}
		for _, b := range s.Buckets[i].Builders {
			if b.Name == builderName {
				return b, true
			}
		}
	}
	return nil, false
}

// MarshalFormat renders the snapshot as "yaml" or "json".
func (s *Snapshot) MarshalFormat(format string) ([]byte, error) {
	switch format {
	case "", "yaml":
		data, err := yaml.Marshal(s)
		if err != nil {
			return nil, core.NewError(err, "SNAPSHOT_ENCODE_FAILED", map[string]any{"format": "yaml"})
		}
		return data, nil
	case "json":
		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return nil, core.NewError(err, "SNAPSHOT_ENCODE_FAILED", map[string]any{"format": "json"})
		}
		return append(data, '\n'), nil
	default:
		return nil, core.NewError(nil, "SNAPSHOT_ENCODE_FAILED", map[string]any{
			"format": format,
			"reason": "unsupported format",
		})
	}
}
