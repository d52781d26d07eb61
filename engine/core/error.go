package core

import (
	"fmt"
	"sort"
	"strings"
)

// Error is the canonical error envelope for configuration compilation:
// a stable uppercase code, an optional wrapped cause, and a details map
// for structured context.
type Error struct {
	Code    string
	Details map[string]any
	err     error
}

// NewError wraps err with a stable code and structured details.
func NewError(err error, code string, details map[string]any) *Error {
	return &Error{Code: code, Details: details, err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Code)
	if e.err != nil {
		b.WriteString(": ")
		b.WriteString(e.err.Error())
	}
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, e.Details[k]))
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString(")")
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.err
}

// GetCode returns the stable error code.
func (e *Error) GetCode() string {
	return e.Code
}
