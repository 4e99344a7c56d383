package pipeline

import (
	"errors"
	"fmt"

	"github.com/ukaji3/gridmap-go/pkg/gridmap/address"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/codec"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/models"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/pointer"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/schema"
)

// Writer serializes objects into grids. A Writer is not safe for concurrent
// use.
type Writer struct {
	codec codec.Codec
	grids []*models.Grid
}

// NewWriter creates a writer using c for scalar values.
func NewWriter(c codec.Codec) *Writer {
	return &Writer{codec: c}
}

// Grids returns the grids produced so far: each type's own block followed by
// the grids of its sub-sheets.
func (w *Writer) Grids() []*models.Grid {
	return w.grids
}

// Write serializes obj as type t stored on sheet. The block grid spans the
// type's footprint from the anchor cell; cells of that range not written here
// are expected to be cleared by the backend.
func (w *Writer) Write(t *schema.Type, sheet string, obj models.Object) error {
	if len(t.Regions) > 0 {
		g := models.NewGrid(address.NewRange(sheet, address.Anchor, t.Size.W, t.Size.H))
		w.grids = append(w.grids, g)
		for _, p := range pointer.Block(t, sheet) {
			if err := w.writeField(g, p, obj[p.Field.Name]); err != nil {
				return err
			}
		}
	}
	for _, p := range pointer.SheetFields(t, sheet) {
		if err := w.writeField(nil, p, obj[p.Field.Name]); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeField(g *models.Grid, p pointer.Pointer, v any) error {
	if v == nil {
		if p.Field.Optional || p.Free() {
			return nil
		}
		return &MissingDataError{
			Type:  p.Field.Owner,
			Field: p.Field.Owner + "." + p.Field.Name,
			Sheet: p.SheetName(),
			Cell:  p.Pos.String(),
		}
	}
	return w.writeNode(g, p, v)
}

func (w *Writer) writeNode(g *models.Grid, p pointer.Pointer, v any) error {
	if v == nil {
		return nil
	}

	if !p.Leaf() {
		items, err := elements(v)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		if len(items) > p.MaxCount() {
			return fmt.Errorf("%s: %w: %d > %d", p, ErrTooManyElements, len(items), p.MaxCount())
		}
		for i, item := range items {
			if err := w.writeNode(g, p.Child(i), item); err != nil {
				return err
			}
		}
		return nil
	}

	switch p.Field.Kind {
	case schema.Value:
		text, err := w.codec.Encode(p.Field.Scalar, v)
		if err != nil {
			var fe *codec.FormatError
			if errors.As(err, &fe) {
				return &ValueFormatError{
					Field: p.Field.Owner + "." + p.Field.Name,
					Sheet: p.Name,
					Cell:  p.Pos.String(),
					Err:   err,
				}
			}
			return err
		}
		return g.Set(p.Pos, text)

	case schema.Object:
		obj, err := asObject(v)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		for _, fp := range p.Fields() {
			if err := w.writeField(g, fp, obj[fp.Field.Name]); err != nil {
				return err
			}
		}
		return nil

	case schema.Sheet:
		obj, err := asObject(v)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		return w.Write(p.Field.Target, p.SheetName(), obj)
	}
	return nil
}
