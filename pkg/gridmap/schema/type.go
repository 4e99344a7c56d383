package schema

// Type describes the layout of a mappable type. Types are built by the
// Registry and must not be modified.
type Type struct {
	// Name is the registered type name.
	Name string
	// SheetName is the default sheet of a whole-sheet type. It is empty for
	// compact types, which embed into their owner's block.
	SheetName string
	// Regions are the fields packed into the type's own block, in
	// placement order.
	Regions []*Field
	// Sheets are the fields stored on sheets of their own.
	Sheets []*Field
	// Size is the footprint of the type's block.
	Size Size

	fields      []*Field
	fingerprint string
}

// Compact reports whether the type embeds into its owner's block.
func (t *Type) Compact() bool {
	return t.SheetName == ""
}

// Fields returns every field in declared order.
func (t *Type) Fields() []*Field {
	return t.fields
}

// Field returns the named field, or nil.
func (t *Type) Field(name string) *Field {
	for _, f := range t.fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Fingerprint is a digest of the computed layout, including LayoutVersion.
// Two types with equal fingerprints place every value in the same cell.
func (t *Type) Fingerprint() string {
	return t.fingerprint
}

// TypeDef is a type declaration awaiting registration.
type TypeDef struct {
	name   string
	sheet  string
	fields []fieldDef
}

// NewType starts the declaration of a compact type.
func NewType(name string) *TypeDef {
	return &TypeDef{name: name}
}

// Name returns the declared type name.
func (d *TypeDef) Name() string {
	return d.name
}

// Sheet turns the type into a whole-sheet type stored on the named sheet.
func (d *TypeDef) Sheet(name string) *TypeDef {
	d.sheet = name
	return d
}

// Field declares a field whose leaf element is elem: a scalar name
// ("int32", "float32", "float64", "bool", "string", "datetime") or the
// name of another registered type.
func (d *TypeDef) Field(name, elem string, opts ...FieldOption) *TypeDef {
	fd := fieldDef{name: name, elem: elem}
	for _, opt := range opts {
		opt(&fd)
	}
	d.fields = append(d.fields, fd)
	return d
}
