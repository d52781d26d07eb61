package builder

import (
	"fmt"
	"strconv"
	"strings"
)

// Toggle is a three-valued boolean-like field. The zero value is Unset, which
// is transparent under merge: an Unset overlay never clears a Yes/No already
// established by an earlier-applied source.
type Toggle int

const (
	ToggleUnset Toggle = iota
	ToggleYes
	ToggleNo
)

func (t Toggle) String() string {
	switch t {
	case ToggleYes:
		return "yes"
	case ToggleNo:
		return "no"
	default:
		return "unset"
	}
}

// Bool reports the toggle value with def substituted for Unset.
func (t Toggle) Bool(def bool) bool {
	switch t {
	case ToggleYes:
		return true
	case ToggleNo:
		return false
	default:
		return def
	}
}

// Apply returns the merged value of t under overlay o: o wins unless it is
// Unset.
func (t Toggle) Apply(o Toggle) Toggle {
	if o == ToggleUnset {
		return t
	}
	return o
}

func (t Toggle) MarshalYAML() ([]byte, error) {
	if t == ToggleUnset {
		return []byte("null"), nil
	}
	return []byte(t.String()), nil
}

func (t Toggle) MarshalJSON() ([]byte, error) {
	if t == ToggleUnset {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(t.String())), nil
}

func (t *Toggle) UnmarshalYAML(data []byte) error {
	switch strings.ToLower(strings.Trim(string(data), `"'`)) {
	case "", "null", "~", "unset":
		*t = ToggleUnset
	case "yes", "true", "on":
		*t = ToggleYes
	case "no", "false", "off":
		*t = ToggleNo
	default:
		return fmt.Errorf("invalid toggle value %q (want yes, no or unset)", string(data))
	}
	return nil
}
