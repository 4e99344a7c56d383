// Package pipeline assembles objects from fetched grids and serializes
// objects into grids, walking the layout with package pointer.
package pipeline

import (
	"errors"

	"github.com/ukaji3/gridmap-go/pkg/gridmap/address"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/codec"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/models"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/pointer"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/schema"
)

// Assemble builds the object of a planned read once its grids are delivered.
type Assemble func() (models.Object, error)

// Reader plans and resolves one top-level read. Plan registers the ranges to
// fetch, Deliver hands over the fetched grids and the returned Assemble
// builds the object. A Reader is not safe for concurrent use.
type Reader struct {
	codec  codec.Codec
	sheets map[string]bool
	batch  *batch
	issues []*ValueFormatError
}

// NewReader creates a reader for a document holding the given sheets.
func NewReader(c codec.Codec, sheets []string) *Reader {
	listing := make(map[string]bool, len(sheets))
	for _, s := range sheets {
		listing[s] = true
	}
	return &Reader{codec: c, sheets: listing, batch: newBatch()}
}

// Ranges returns the ranges registered so far, in registration order.
func (r *Reader) Ranges() []address.Range {
	return r.batch.ranges()
}

// Pending returns the registered pending ranges.
func (r *Reader) Pending() []*PendingRange {
	return r.batch.order
}

// Deliver hands fetched grids to the pending ranges.
func (r *Reader) Deliver(grids []*models.Grid) error {
	return r.batch.deliver(grids)
}

// Issues returns the value format failures met while assembling. Each
// affected field holds its default value.
func (r *Reader) Issues() []*ValueFormatError {
	return r.issues
}

// Plan prepares the read of type t stored on sheet. Sheet fields are planned
// first; the type's own block is registered only when its sheet exists. A
// missing sheet whose block has required fields fails with
// *MissingDataError.
func (r *Reader) Plan(t *schema.Type, sheet string) (Assemble, error) {
	var parts []func(models.Object) error
	for _, p := range pointer.SheetFields(t, sheet) {
		part, err := r.planSheetField(p)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}

	var grid *models.Grid
	if len(t.Regions) > 0 {
		if r.sheets[sheet] {
			rng := address.NewRange(sheet, address.Anchor, t.Size.W, t.Size.H)
			r.batch.register(rng, func(g *models.Grid) { grid = g })
		} else if !allOptional(t.Regions) {
			return nil, &MissingDataError{Type: t.Name, Sheet: sheet}
		}
	}

	return func() (models.Object, error) {
		block := pointer.Block(t, sheet)
		obj, found, err := r.readObject(grid, block)
		if err != nil {
			return nil, err
		}
		if !found {
			obj = models.Object{}
			for _, p := range block {
				v, err := r.absent(p)
				if err != nil {
					return nil, err
				}
				obj[p.Field.Name] = v
			}
		}
		for _, part := range parts {
			if err := part(obj); err != nil {
				return nil, err
			}
		}
		return obj, nil
	}, nil
}

func allOptional(fields []*schema.Field) bool {
	for _, f := range fields {
		if !f.Optional {
			return false
		}
	}
	return true
}

// sheetNode yields the value of a planned sub-sheet or sub-sheet array.
type sheetNode func() (any, error)

func (r *Reader) planSheetField(p pointer.Pointer) (func(models.Object) error, error) {
	name := p.Field.Name
	node, err := r.planSheet(p)
	if err != nil {
		if isMissing(err) && p.Field.Optional {
			node = nil
		} else {
			return nil, err
		}
	}
	if node == nil {
		v, err := r.absent(p)
		if err != nil {
			return nil, err
		}
		return func(obj models.Object) error {
			obj[name] = v
			return nil
		}, nil
	}
	return func(obj models.Object) error {
		v, err := node()
		if err != nil {
			if !isMissing(err) || !p.Field.Optional {
				return err
			}
			if v, err = zero(r.codec, p); err != nil {
				return err
			}
		}
		obj[name] = v
		return nil
	}, nil
}

// planSheet plans the node at p. A nil node means nothing is stored there.
func (r *Reader) planSheet(p pointer.Pointer) (sheetNode, error) {
	if p.Leaf() {
		name := p.SheetName()
		if len(p.Field.Target.Regions) > 0 && !r.sheets[name] {
			return nil, nil
		}
		asm, err := r.Plan(p.Field.Target, name)
		if err != nil {
			return nil, err
		}
		return func() (any, error) { return asm() }, nil
	}

	var children []sheetNode
	var childPtrs []pointer.Pointer
	present := 0
	for i := 0; i < p.MaxCount(); i++ {
		child := p.Child(i)
		node, err := r.planSheet(child)
		if err != nil {
			if p.Free() && isMissing(err) {
				break
			}
			return nil, err
		}
		if node == nil {
			if p.Free() {
				break
			}
			if !p.Field.Optional {
				return nil, r.missingSheet(child)
			}
		} else {
			present++
		}
		children = append(children, node)
		childPtrs = append(childPtrs, child)
	}
	if present == 0 {
		return nil, nil
	}

	free := p.Free()
	return func() (any, error) {
		vals := make([]any, 0, len(children))
		for i, node := range children {
			if node == nil {
				v, err := zero(r.codec, childPtrs[i])
				if err != nil {
					return nil, err
				}
				vals = append(vals, v)
				continue
			}
			v, err := node()
			if err != nil {
				if free && isMissing(err) {
					break
				}
				return nil, err
			}
			vals = append(vals, v)
		}
		return vals, nil
	}, nil
}

func (r *Reader) missingSheet(p pointer.Pointer) error {
	for !p.Leaf() {
		p = p.Child(0)
	}
	return &MissingDataError{Type: p.Field.Target.Name, Sheet: p.SheetName()}
}

// absent resolves a field with nothing stored: optional fields and free-size
// collections take their default value, anything else is missing data.
func (r *Reader) absent(p pointer.Pointer) (any, error) {
	if p.Field.Optional || p.Free() {
		return zero(r.codec, p)
	}
	if p.Field.Kind == schema.Sheet {
		return nil, r.missingSheet(p)
	}
	return nil, &MissingDataError{
		Type:  p.Field.Owner,
		Field: p.Field.Owner + "." + p.Field.Name,
		Sheet: p.Name,
		Cell:  p.Pos.String(),
	}
}

// readObject reads the region fields of one object. found is false when
// none of the fields holds any data.
func (r *Reader) readObject(g *models.Grid, fields []pointer.Pointer) (models.Object, bool, error) {
	obj := make(models.Object, len(fields))
	found := false
	var missing error

	for _, fp := range fields {
		v, ok, err := r.readNode(g, fp)
		if err != nil {
			if !isMissing(err) || !fp.Field.Optional {
				return nil, false, err
			}
			ok, found = false, true
		}
		if ok {
			found = true
			obj[fp.Field.Name] = v
			continue
		}
		v, err = r.absent(fp)
		if err != nil {
			if missing == nil {
				missing = err
			}
			continue
		}
		obj[fp.Field.Name] = v
	}

	if !found {
		return nil, false, nil
	}
	if missing != nil {
		return nil, false, missing
	}
	return obj, true, nil
}

// readNode reads the node at p from g. ok is false when nothing is stored
// there. Within a free-size rank the walk stops at the first child that
// holds nothing or fails with missing data.
func (r *Reader) readNode(g *models.Grid, p pointer.Pointer) (any, bool, error) {
	if p.Leaf() {
		switch p.Field.Kind {
		case schema.Value:
			return r.readValue(g, p)
		case schema.Object:
			obj, ok, err := r.readObject(g, p.Fields())
			if err != nil || !ok {
				return nil, false, err
			}
			return obj, true, nil
		}
		return nil, false, nil
	}

	if p.Free() {
		var vals []any
		for i := 0; i < p.MaxCount(); i++ {
			v, ok, err := r.readNode(g, p.Child(i))
			if err != nil {
				if isMissing(err) {
					break
				}
				return nil, false, err
			}
			if !ok {
				break
			}
			vals = append(vals, v)
		}
		if len(vals) == 0 {
			return nil, false, nil
		}
		return vals, true, nil
	}

	n := p.MaxCount()
	vals := make([]any, n)
	found := false
	var missing pointer.Pointer
	hasMissing := false
	for i := 0; i < n; i++ {
		child := p.Child(i)
		v, ok, err := r.readNode(g, child)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			if !hasMissing {
				missing, hasMissing = child, true
			}
			if v, err = zero(r.codec, child); err != nil {
				return nil, false, err
			}
		} else {
			found = true
		}
		vals[i] = v
	}
	if !found {
		return nil, false, nil
	}
	if hasMissing && !p.Field.Optional {
		return nil, false, &MissingDataError{
			Type:  p.Field.Owner,
			Field: p.Field.Owner + "." + p.Field.Name,
			Sheet: missing.Name,
			Cell:  missing.Pos.String(),
		}
	}
	return vals, true, nil
}

func (r *Reader) readValue(g *models.Grid, p pointer.Pointer) (any, bool, error) {
	text, ok := g.Get(p.Pos)
	if !ok {
		return nil, false, nil
	}
	v, err := r.codec.Decode(p.Field.Scalar, text)
	if err == nil {
		return v, true, nil
	}
	var fe *codec.FormatError
	if !errors.As(err, &fe) {
		return nil, false, err
	}
	r.issues = append(r.issues, &ValueFormatError{
		Field: p.Field.Owner + "." + p.Field.Name,
		Sheet: p.Name,
		Cell:  p.Pos.String(),
		Err:   err,
	})
	v, err = r.codec.Zero(p.Field.Scalar)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}
