package pipeline

import (
	"fmt"
	"reflect"

	"github.com/ukaji3/gridmap-go/pkg/gridmap/codec"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/models"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/pointer"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/schema"
)

// zero returns the default value of the node at p: the scalar zero value, a
// nil sub-object, a zero-filled slice for fixed ranks and an empty slice for
// free ranks.
func zero(c codec.Codec, p pointer.Pointer) (any, error) {
	if p.Leaf() {
		if p.Field.Kind == schema.Value {
			return c.Zero(p.Field.Scalar)
		}
		return nil, nil
	}
	if p.Free() {
		return []any{}, nil
	}
	n := p.MaxCount()
	vals := make([]any, n)
	for i := 0; i < n; i++ {
		v, err := zero(c, p.Child(i))
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

// elements returns the items of a collection value. []any is used as is;
// other slice and array types are converted.
func elements(v any) ([]any, error) {
	if items, ok := v.([]any); ok {
		return items, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("expected a collection, got %T", v)
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, nil
}

func asObject(v any) (models.Object, error) {
	switch o := v.(type) {
	case models.Object:
		return o, nil
	case map[string]any:
		return models.Object(o), nil
	}
	return nil, fmt.Errorf("expected an object, got %T", v)
}
