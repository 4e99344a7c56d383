package models

// Object is the in-memory form of a mapped type. Keys are field names;
// values are scalars (int32, float32, float64, bool, string, time.Time),
// []any for collections, and Object (or nil) for sub-objects and sub-sheets.
type Object map[string]any

// Object returns the named sub-object, or nil.
func (o Object) Object(name string) Object {
	switch v := o[name].(type) {
	case Object:
		return v
	case map[string]any:
		return Object(v)
	}
	return nil
}

// List returns the named collection, or nil.
func (o Object) List(name string) []any {
	v, _ := o[name].([]any)
	return v
}
