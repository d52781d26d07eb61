package builder

import (
	"reflect"
	"slices"
)

// mergeTransformer teaches mergo the record merge semantics that differ from
// plain field-wise override: keyed repeated fields, concatenating tags,
// shallow property overwrite and the three-valued toggle rule.
type mergeTransformer struct{}

func (mergeTransformer) Transformer(t reflect.Type) func(dst, src reflect.Value) error {
	switch t {
	case reflect.TypeOf(Dimensions(nil)):
		return func(dst, src reflect.Value) error {
			merged := mergeDimensions(dst.Interface().(Dimensions), src.Interface().(Dimensions))
			dst.Set(reflect.ValueOf(merged))
			return nil
		}
	case reflect.TypeOf(Tags(nil)):
		return func(dst, src reflect.Value) error {
			overlay := src.Interface().(Tags)
			if len(overlay) == 0 {
				return nil
			}
			merged := append(slices.Clone(dst.Interface().(Tags)), overlay...)
			dst.Set(reflect.ValueOf(merged))
			return nil
		}
	case reflect.TypeOf([]Cache(nil)):
		return func(dst, src reflect.Value) error {
			merged := mergeCaches(dst.Interface().([]Cache), src.Interface().([]Cache))
			dst.Set(reflect.ValueOf(merged))
			return nil
		}
	case reflect.TypeOf(Properties(nil)):
		return func(dst, src reflect.Value) error {
			merged := mergeProperties(dst.Interface().(Properties), src.Interface().(Properties))
			dst.Set(reflect.ValueOf(merged))
			return nil
		}
	case reflect.TypeOf(ToggleUnset):
		return func(dst, src reflect.Value) error {
			merged := dst.Interface().(Toggle).Apply(src.Interface().(Toggle))
			dst.Set(reflect.ValueOf(merged))
			return nil
		}
	}
	return nil
}

func mergeDimensions(base, overlay Dimensions) Dimensions {
	out := slices.Clone(base)
	for _, entry := range overlay {
		key := dimensionKey(entry)
		idx := slices.IndexFunc(out, func(existing string) bool {
			return dimensionKey(existing) == key
		})
		if idx >= 0 {
			out[idx] = entry
		} else {
			out = append(out, entry)
		}
	}
	return out
}

func mergeCaches(base, overlay []Cache) []Cache {
	out := slices.Clone(base)
	for _, cache := range overlay {
		idx := slices.IndexFunc(out, func(existing Cache) bool {
			return existing.Name == cache.Name
		})
		if idx >= 0 {
			out[idx] = cache
		} else {
			out = append(out, cache)
		}
	}
	return out
}

func mergeProperties(base, overlay Properties) Properties {
	if len(overlay) == 0 {
		return base
	}
	out := make(Properties, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}
