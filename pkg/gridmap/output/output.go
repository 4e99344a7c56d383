// Package output renders objects, layouts and grids as JSON.
package output

import (
	"github.com/goccy/go-json"

	"github.com/ukaji3/gridmap-go/pkg/gridmap/address"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/models"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/schema"
)

// ToJSON serializes v to JSON.
func ToJSON(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

// FromJSON decodes a JSON object into a models.Object. Numbers decode as
// float64 and are converted by the codec on write.
func FromJSON(data []byte) (models.Object, error) {
	var obj models.Object
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	return normalize(obj).(models.Object), nil
}

// normalize turns decoded nested maps into models.Object.
func normalize(v any) any {
	switch t := v.(type) {
	case models.Object:
		for k, e := range t {
			t[k] = normalize(e)
		}
		return t
	case map[string]any:
		return normalize(models.Object(t))
	case []any:
		for i, e := range t {
			t[i] = normalize(e)
		}
		return t
	}
	return v
}

// Layout is the JSON view of a described type.
type Layout struct {
	Type        string        `json:"type"`
	SheetName   string        `json:"sheet_name,omitempty"`
	Size        schema.Size   `json:"size"`
	Fingerprint string        `json:"fingerprint"`
	Regions     []FieldLayout `json:"regions,omitempty"`
	Sheets      []FieldLayout `json:"sheets,omitempty"`
}

// FieldLayout is the JSON view of one field.
type FieldLayout struct {
	Name      string      `json:"name"`
	Elem      string      `json:"elem"`
	Kind      string      `json:"kind"`
	Rank      int         `json:"rank,omitempty"`
	Counts    []int       `json:"counts,omitempty"`
	Optional  bool        `json:"optional,omitempty"`
	SortOrder int         `json:"sort_order"`
	Offset    schema.Size `json:"offset"`
	Size      schema.Size `json:"size"`
	// Cells is the block range covered by a region, e.g. "C2:C101".
	Cells string `json:"cells,omitempty"`
	// Sheet is the base sheet name of a sheet field.
	Sheet string `json:"sheet,omitempty"`
}

// LayoutOf builds the layout view of t.
func LayoutOf(t *schema.Type) *Layout {
	l := &Layout{
		Type:        t.Name,
		SheetName:   t.SheetName,
		Size:        t.Size,
		Fingerprint: t.Fingerprint(),
	}
	for _, f := range t.Regions {
		fl := fieldLayout(f)
		r := address.NewRange("", address.Anchor.Add(f.Offset.W, f.Offset.H), f.Sizes[0].W, f.Sizes[0].H)
		fl.Cells = r.Cells()
		l.Regions = append(l.Regions, fl)
	}
	for _, f := range t.Sheets {
		fl := fieldLayout(f)
		fl.Sheet = f.BaseSheetName()
		l.Sheets = append(l.Sheets, fl)
	}
	return l
}

func fieldLayout(f *schema.Field) FieldLayout {
	return FieldLayout{
		Name:      f.Name,
		Elem:      f.Elem,
		Kind:      f.Kind.String(),
		Rank:      f.Rank,
		Counts:    f.Counts,
		Optional:  f.Optional,
		SortOrder: f.SortOrder,
		Offset:    f.Offset,
		Size:      f.Sizes[0],
	}
}

// GridView is the JSON view of a fetched or written grid.
type GridView struct {
	Range string           `json:"range"`
	Rows  []models.CellRow `json:"rows"`
}

// GridsOf builds grid views keyed by sheet name. Grids on the same sheet are
// listed in order.
func GridsOf(grids []*models.Grid) map[string][]GridView {
	views := make(map[string][]GridView)
	for _, g := range grids {
		views[g.Sheet()] = append(views[g.Sheet()], GridView{
			Range: g.Range.String(),
			Rows:  g.Rows(),
		})
	}
	return views
}
