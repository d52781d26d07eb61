package builder

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	str2duration "github.com/xhit/go-str2duration/v2"
)

// Duration is a time.Duration that unmarshals from human-readable YAML values
// such as "45m", "1h30m" or a bare number of seconds.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalYAML() ([]byte, error) {
	if d == 0 {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(time.Duration(d).String())), nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(time.Duration(d).String())), nil
}

func (d *Duration) UnmarshalYAML(data []byte) error {
	raw := strings.Trim(string(data), `"'`)
	if raw == "" || raw == "null" || raw == "~" {
		*d = 0
		return nil
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	parsed, err := str2duration.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}
