// Package schema holds the explicit type registry and the layout engine that
// computes where every field of a type lives on the grid.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ukaji3/gridmap-go/pkg/gridmap/address"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/codec"
)

// DefaultMaxElements bounds free-size collections.
const DefaultMaxElements = 100

// Schema errors. They are wrapped in *Error.
var (
	ErrNoFields        = errors.New("type declares no mappable fields")
	ErrSheetOrder      = errors.New("sheet-sized field cannot take a placement order")
	ErrUnknownType     = errors.New("unknown type")
	ErrDuplicateType   = errors.New("type already registered")
	ErrDuplicateField  = errors.New("duplicate field name")
	ErrDuplicateSheet  = errors.New("duplicate sheet name")
	ErrRecursive       = errors.New("recursive type reference")
	ErrBadRank         = errors.New("invalid rank or counts")
	ErrCompactSheets   = errors.New("compact type cannot own sheet fields")
	ErrMissingTypeName = errors.New("type name must not be empty")
	ErrLayoutTooLarge  = errors.New("layout exceeds worksheet bounds")
)

// Error reports malformed metadata. It is raised when a type is first
// described, before any I/O.
type Error struct {
	Type  string
	Field string
	Err   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("schema error in %s.%s: %v", e.Type, e.Field, e.Err)
	}
	return fmt.Sprintf("schema error in %s: %v", e.Type, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Registry stores type declarations and lazily computes their descriptors.
// Descriptors are computed once and shared; a Registry is safe for
// concurrent use.
type Registry struct {
	mu          sync.Mutex
	defs        map[string]*TypeDef
	types       map[string]*Type
	maxElements int
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithMaxElements sets the cap applied to free-size ranks.
func WithMaxElements(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.maxElements = n
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		defs:        make(map[string]*TypeDef),
		types:       make(map[string]*Type),
		maxElements: DefaultMaxElements,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MaxElements returns the free-size cap.
func (r *Registry) MaxElements() int {
	return r.maxElements
}

// Register adds type declarations. Validation happens on Describe.
func (r *Registry) Register(defs ...*TypeDef) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range defs {
		if d.name == "" {
			return &Error{Err: ErrMissingTypeName}
		}
		if _, ok := r.defs[d.name]; ok {
			return &Error{Type: d.name, Err: ErrDuplicateType}
		}
		r.defs[d.name] = d
	}
	return nil
}

// Names returns the registered type names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns the descriptor of the named type, computing and caching
// it (and every type it references) on first use.
func (r *Registry) Describe(name string) (*Type, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.describe(name, make(map[string]bool))
}

// Fingerprint returns the layout digest of the named type.
func (r *Registry) Fingerprint(name string) (string, error) {
	t, err := r.Describe(name)
	if err != nil {
		return "", err
	}
	return t.fingerprint, nil
}

func (r *Registry) describe(name string, visiting map[string]bool) (*Type, error) {
	if t, ok := r.types[name]; ok {
		return t, nil
	}
	def, ok := r.defs[name]
	if !ok {
		return nil, &Error{Type: name, Err: ErrUnknownType}
	}
	if visiting[name] {
		return nil, &Error{Type: name, Err: ErrRecursive}
	}
	visiting[name] = true
	defer delete(visiting, name)

	if len(def.fields) == 0 {
		return nil, &Error{Type: name, Err: ErrNoFields}
	}

	t := &Type{Name: name, SheetName: def.sheet}
	seen := make(map[string]bool)
	sheetNames := make(map[string]bool)

	for i, fd := range def.fields {
		if seen[fd.name] {
			return nil, &Error{Type: name, Field: fd.name, Err: ErrDuplicateField}
		}
		seen[fd.name] = true

		f, err := r.buildField(t, i, fd, visiting)
		if err != nil {
			return nil, err
		}

		if f.Kind == Sheet {
			if t.Compact() {
				return nil, &Error{Type: name, Field: f.Name, Err: ErrCompactSheets}
			}
			base := f.sheetBase()
			if sheetNames[base] {
				return nil, &Error{Type: name, Field: f.Name, Err: fmt.Errorf("%w %q", ErrDuplicateSheet, base)}
			}
			sheetNames[base] = true
			t.Sheets = append(t.Sheets, f)
		} else {
			t.Regions = append(t.Regions, f)
		}
		t.fields = append(t.fields, f)
	}

	sort.SliceStable(t.fields, func(i, j int) bool {
		return t.fields[i].Ordinal < t.fields[j].Ordinal
	})
	pack(t)
	if end := address.Anchor.Add(t.Size.W, t.Size.H); end.Col > address.MaxCols || end.Row > address.MaxRows {
		return nil, &Error{Type: name, Err: fmt.Errorf("%w: %s from %s", ErrLayoutTooLarge, t.Size, address.Anchor)}
	}
	t.fingerprint = fingerprint(t)

	r.types[name] = t
	return t, nil
}

func (r *Registry) buildField(owner *Type, index int, fd fieldDef, visiting map[string]bool) (*Field, error) {
	f := &Field{
		Owner:     owner.Name,
		Name:      fd.name,
		Ordinal:   index,
		Elem:      fd.elem,
		Rank:      fd.rank,
		Counts:    fd.counts,
		Optional:  fd.optional,
		SheetName: fd.sheetName,
		limit:     r.maxElements,
	}
	if fd.ordinal != nil {
		f.Ordinal = *fd.ordinal
	}
	fail := func(err error) (*Field, error) {
		return nil, &Error{Type: owner.Name, Field: fd.name, Err: err}
	}

	if f.Rank < 0 || len(f.Counts) > f.Rank {
		return fail(fmt.Errorf("%w: rank %d with %d counts", ErrBadRank, f.Rank, len(f.Counts)))
	}
	for _, c := range f.Counts {
		if c < 0 {
			return fail(fmt.Errorf("%w: negative count %d", ErrBadRank, c))
		}
	}

	if s, ok := codec.Lookup(fd.elem); ok {
		f.Kind = Value
		f.Scalar = s
	} else {
		target, err := r.describe(fd.elem, visiting)
		if err != nil {
			var se *Error
			if errors.As(err, &se) && se.Type == fd.elem && se.Field == "" &&
				(errors.Is(err, ErrUnknownType) || errors.Is(err, ErrRecursive)) {
				return fail(fmt.Errorf("%w %q", se.Err, fd.elem))
			}
			return nil, err
		}
		f.Target = target
		f.Kind = Object
		if !target.Compact() {
			f.Kind = Sheet
		}
	}

	if fd.order != nil {
		if f.Kind == Sheet {
			return fail(ErrSheetOrder)
		}
		f.SortOrder = *fd.order
		f.ExplicitOrder = true
	} else {
		f.SortOrder = defaultOrder(f)
	}

	f.Chain = chain(f.Elem, f.Rank)
	f.Sizes = sizes(f)
	return f, nil
}

func (f *Field) sheetBase() string {
	if f.SheetName != "" {
		return f.SheetName
	}
	return f.Target.SheetName
}

// BaseSheetName returns the sheet name of a Sheet leaf before array indices
// are appended: the field override, else the target's SheetName.
func (f *Field) BaseSheetName() string {
	if f.Kind != Sheet {
		return ""
	}
	return f.sheetBase()
}
