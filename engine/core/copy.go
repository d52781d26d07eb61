package core

import (
	"fmt"

	"github.com/mohae/deepcopy"
)

// DeepCopy returns a deep copy of v. Configuration records are cloned before
// every merge step so that a flattened mixin can never alias state owned by
// another builder.
func DeepCopy[T any](v T) (T, error) {
	var zero T
	copied, ok := deepcopy.Copy(v).(T)
	if !ok {
		return zero, fmt.Errorf("failed to deep copy value of type %T", v)
	}
	return copied, nil
}

// DeepCopyMap returns a deep copy of the provided map[string]any.
func DeepCopyMap(m map[string]any) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}
	return DeepCopy(m)
}
