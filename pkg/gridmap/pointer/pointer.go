// Package pointer walks the nested layout of a type. A Pointer names one node
// of the tree (an array level, a cell, a sub-object or a sub-sheet) and can
// produce its children without looking at any other pointer. The read and
// write pipelines share this walk.
package pointer

import (
	"strconv"
	"strings"

	"github.com/ukaji3/gridmap-go/pkg/gridmap/address"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/schema"
)

// Pointer is an immutable cursor into the layout of one field.
type Pointer struct {
	// Field is the field being walked.
	Field *schema.Field
	// Rank is the depth of the node; Rank == Field.Rank is a leaf.
	Rank int
	// Index is the position of the node among its siblings.
	Index int
	// Pos is the absolute top-left cell of the node on its sheet.
	Pos address.Cell
	// Name is the sheet the node lives on.
	Name string
	// Path holds the array indices walked since the owning sheet.
	Path []int
}

// Root returns the pointer to field f of a block whose top-left cell is
// origin on sheet.
func Root(f *schema.Field, origin address.Cell, sheet string, path []int) Pointer {
	return Pointer{
		Field: f,
		Pos:   origin.Add(f.Offset.W, f.Offset.H),
		Name:  sheet,
		Path:  path,
	}
}

// Block returns the region pointers of t laid out at the anchor of sheet.
func Block(t *schema.Type, sheet string) []Pointer {
	return regions(t, address.Anchor, sheet, nil)
}

// SheetFields returns the sheet-field pointers of t stored on sheet.
func SheetFields(t *schema.Type, sheet string) []Pointer {
	ptrs := make([]Pointer, 0, len(t.Sheets))
	for _, f := range t.Sheets {
		ptrs = append(ptrs, Root(f, address.Cell{}, sheet, nil))
	}
	return ptrs
}

func regions(t *schema.Type, origin address.Cell, sheet string, path []int) []Pointer {
	ptrs := make([]Pointer, 0, len(t.Regions))
	for _, f := range t.Regions {
		ptrs = append(ptrs, Root(f, origin, sheet, path))
	}
	return ptrs
}

// Leaf reports whether p addresses a cell, sub-object or sub-sheet rather
// than an array level.
func (p Pointer) Leaf() bool {
	return p.Rank == p.Field.Rank
}

// Free reports whether the array level at p has no declared cardinality.
func (p Pointer) Free() bool {
	return !p.Leaf() && p.Field.Free(p.Rank)
}

// MaxCount returns the number of children of an array-level pointer.
func (p Pointer) MaxCount() int {
	if p.Leaf() {
		return 0
	}
	return p.Field.MaxCount(p.Rank)
}

// Child returns the i-th element of the array level at p. Children are
// offset by the footprint of one element, along columns for odd ranks
// and along rows for even ranks.
func (p Pointer) Child(i int) Pointer {
	step := p.Field.Step(p.Rank)
	path := make([]int, len(p.Path), len(p.Path)+1)
	copy(path, p.Path)
	return Pointer{
		Field: p.Field,
		Rank:  p.Rank + 1,
		Index: i,
		Pos:   p.Pos.Add(step.W*i, step.H*i),
		Name:  p.Name,
		Path:  append(path, i),
	}
}

// Children returns every child of the array level at p.
func (p Pointer) Children() []Pointer {
	n := p.MaxCount()
	children := make([]Pointer, 0, n)
	for i := 0; i < n; i++ {
		children = append(children, p.Child(i))
	}
	return children
}

// SheetName returns the sheet a Sheet leaf is stored on: the field's base
// sheet name followed by one " <index>" per enclosing array level.
func (p Pointer) SheetName() string {
	if p.Field.Kind != schema.Sheet {
		return p.Name
	}
	var b strings.Builder
	b.WriteString(p.Field.BaseSheetName())
	for _, i := range p.Path {
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(i))
	}
	return b.String()
}

// Fields returns the region pointers of the type at an Object or Sheet leaf.
// Object regions sit inside the current block at p.Pos; Sheet regions start
// at the anchor of the sub-sheet.
func (p Pointer) Fields() []Pointer {
	if !p.Leaf() || p.Field.Target == nil {
		return nil
	}
	if p.Field.Kind == schema.Sheet {
		return Block(p.Field.Target, p.SheetName())
	}
	return regions(p.Field.Target, p.Pos, p.Name, p.Path)
}

// Sheets returns the sheet-field pointers of the type at a Sheet leaf.
func (p Pointer) Sheets() []Pointer {
	if !p.Leaf() || p.Field.Kind != schema.Sheet {
		return nil
	}
	return SheetFields(p.Field.Target, p.SheetName())
}

// String renders p as Owner.field[i][j]@cell for diagnostics.
func (p Pointer) String() string {
	var b strings.Builder
	b.WriteString(p.Field.Owner)
	b.WriteByte('.')
	b.WriteString(p.Field.Name)
	start := len(p.Path) - p.Rank
	if start < 0 {
		start = 0
	}
	for _, i := range p.Path[start:] {
		b.WriteByte('[')
		b.WriteString(strconv.Itoa(i))
		b.WriteByte(']')
	}
	if p.Field.Kind == schema.Sheet {
		b.WriteString("@'")
		b.WriteString(p.SheetName())
		b.WriteByte('\'')
	} else {
		b.WriteByte('@')
		b.WriteString(p.Pos.String())
	}
	return b.String()
}
