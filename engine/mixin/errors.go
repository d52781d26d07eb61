package mixin

import (
	"fmt"
	"strings"
)

// UnknownMixinError reports a reference to a mixin name that is not defined
// anywhere in the project.
type UnknownMixinError struct {
	Name     string
	Referrer string
}

func (e *UnknownMixinError) Error() string {
	if e.Referrer == "" {
		return fmt.Sprintf("unknown mixin %q", e.Name)
	}
	return fmt.Sprintf("unknown mixin %q referenced by %q", e.Name, e.Referrer)
}

// CyclicMixinError reports a mixin that transitively references itself. Path
// holds the offending reference chain, starting and ending at the same name.
type CyclicMixinError struct {
	Path []string
}

func (e *CyclicMixinError) Error() string {
	return fmt.Sprintf("mixin cycle: %s", strings.Join(e.Path, " -> "))
}
