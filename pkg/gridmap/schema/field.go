package schema

import (
	"fmt"

	"github.com/ukaji3/gridmap-go/pkg/gridmap/codec"
)

// Kind classifies the leaf element of a field.
type Kind int

const (
	// Value leaves occupy a single cell.
	Value Kind = iota
	// Object leaves are compact types embedded in the owner's block.
	Object
	// Sheet leaves own a whole sheet and take no room in the owner's block.
	Sheet
)

func (k Kind) String() string {
	switch k {
	case Value:
		return "value"
	case Object:
		return "object"
	case Sheet:
		return "sheet"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Size is a cell footprint.
type Size struct {
	// W is the number of columns.
	W int `json:"w"`
	// H is the number of rows.
	H int `json:"h"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.W, s.H)
}

// Default sort orders. Inline fields (scalars and fully bounded arrays) pack
// first; fields with free-size ranks pack after them, deeper ranks last.
const (
	InlineOrder   = 0
	FreeOrderBase = 1000
)

// Field describes one mappable field of a Type. Fields are built by the
// Registry and must not be modified.
type Field struct {
	// Owner is the name of the declaring type.
	Owner string
	// Name is the key of the field in models.Object.
	Name string
	// Ordinal is the declared position of the field.
	Ordinal int
	// Elem is the leaf element type: a scalar name or a registered type name.
	Elem string
	// Chain lists the element type after unwrapping i collection levels;
	// Chain[0] is the declared type and Chain[Rank] the leaf.
	Chain []string
	// Rank is the collection nesting depth.
	Rank int
	// Counts holds the fixed cardinality per rank. A zero entry, or a missing
	// trailing entry, marks a free-size rank.
	Counts []int
	// Kind is the leaf classification.
	Kind Kind
	// Scalar is the leaf value type when Kind is Value.
	Scalar codec.Scalar
	// Target is the leaf type when Kind is Object or Sheet.
	Target *Type
	// Sizes holds the footprint per rank; Sizes[Rank] is the leaf footprint
	// and Sizes[0] the footprint of the whole field.
	Sizes []Size
	// Offset is the position of the field inside its owner's block.
	Offset Size
	// Optional fields tolerate missing data.
	Optional bool
	// SortOrder positions the field among the owner's regions.
	SortOrder int
	// ExplicitOrder is set when SortOrder was declared rather than computed.
	ExplicitOrder bool
	// SheetName overrides the target type's sheet name for Sheet leaves.
	SheetName string

	limit int
}

// Free reports whether rank has no declared cardinality.
func (f *Field) Free(rank int) bool {
	return rank >= len(f.Counts) || f.Counts[rank] == 0
}

// MaxCount returns the number of elements to visit at rank: the declared
// count, or the registry's free-size cap.
func (f *Field) MaxCount(rank int) int {
	if f.Free(rank) {
		return f.limit
	}
	return f.Counts[rank]
}

// Bounded reports whether every rank has a fixed cardinality.
func (f *Field) Bounded() bool {
	for r := 0; r < f.Rank; r++ {
		if f.Free(r) {
			return false
		}
	}
	return true
}

// Horizontal reports whether elements at rank are laid out along columns.
// Odd ranks grow horizontally, even ranks vertically.
func Horizontal(rank int) bool {
	return rank%2 == 1
}

// Step returns the offset between consecutive children of a rank-level node.
func (f *Field) Step(rank int) Size {
	inner := f.Sizes[rank+1]
	if Horizontal(rank) {
		return Size{W: inner.W}
	}
	return Size{H: inner.H}
}

// FieldOption configures a field declaration.
type FieldOption func(*fieldDef)

// Rank sets the collection nesting depth.
func Rank(n int) FieldOption {
	return func(d *fieldDef) { d.rank = n }
}

// Fixed declares per-rank cardinalities, outermost first. A zero count keeps
// that rank free-size. When no rank was set, the rank becomes len(counts).
func Fixed(counts ...int) FieldOption {
	return func(d *fieldDef) {
		d.counts = append([]int(nil), counts...)
		if d.rank == 0 {
			d.rank = len(counts)
		}
	}
}

// Optional marks a field whose absence is tolerated.
func Optional() FieldOption {
	return func(d *fieldDef) { d.optional = true }
}

// Order overrides the computed placement order.
func Order(n int) FieldOption {
	return func(d *fieldDef) { d.order = &n }
}

// Ordinal overrides the declared position.
func Ordinal(n int) FieldOption {
	return func(d *fieldDef) { d.ordinal = &n }
}

// SheetName overrides the sheet name of a Sheet leaf.
func SheetName(name string) FieldOption {
	return func(d *fieldDef) { d.sheetName = name }
}

type fieldDef struct {
	name      string
	elem      string
	rank      int
	counts    []int
	optional  bool
	order     *int
	ordinal   *int
	sheetName string
}
