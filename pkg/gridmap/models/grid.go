// Package models defines the data exchanged between the pipelines and the
// backend.
package models

import (
	"errors"
	"fmt"

	"github.com/ukaji3/gridmap-go/pkg/gridmap/address"
)

// ErrOutOfRange indicates a cell write outside a grid's range.
var ErrOutOfRange = errors.New("cell outside grid range")

// Grid is a sparse block of cell text bound to one sheet range. Values are
// stored row-major relative to Range.Start; rows may be ragged and an empty
// string is an empty cell.
type Grid struct {
	// Range is the sheet and bounds the grid covers.
	Range address.Range `json:"range"`
	// Values holds the cell text, Values[row][col].
	Values [][]string `json:"values"`
}

// NewGrid returns an empty grid covering r.
func NewGrid(r address.Range) *Grid {
	return &Grid{Range: r}
}

// Sheet returns the sheet the grid belongs to.
func (g *Grid) Sheet() string {
	return g.Range.Sheet
}

// Get returns the text of the absolute cell c. The second result is false
// when the cell is empty or outside the grid.
func (g *Grid) Get(c address.Cell) (string, bool) {
	if g == nil || !g.Range.Contains(c) {
		return "", false
	}
	row, col := c.Row-g.Range.Start.Row, c.Col-g.Range.Start.Col
	if row >= len(g.Values) || col >= len(g.Values[row]) {
		return "", false
	}
	v := g.Values[row][col]
	return v, v != ""
}

// Set stores text at the absolute cell c, growing the grid as needed.
func (g *Grid) Set(c address.Cell, v string) error {
	if !g.Range.Contains(c) {
		return fmt.Errorf("%w: %s not in %s", ErrOutOfRange, c, g.Range)
	}
	row, col := c.Row-g.Range.Start.Row, c.Col-g.Range.Start.Col
	for len(g.Values) <= row {
		g.Values = append(g.Values, nil)
	}
	for len(g.Values[row]) <= col {
		g.Values[row] = append(g.Values[row], "")
	}
	g.Values[row][col] = v
	return nil
}

// Extent returns the written width and height.
func (g *Grid) Extent() (w, h int) {
	for _, row := range g.Values {
		if len(row) > w {
			w = len(row)
		}
	}
	return w, len(g.Values)
}

// Count returns the number of non-empty cells.
func (g *Grid) Count() int {
	n := 0
	for _, row := range g.Values {
		for _, v := range row {
			if v != "" {
				n++
			}
		}
	}
	return n
}

// Rows returns the non-empty rows of the grid with absolute 1-based row and
// column numbers, in the form used for JSON dumps.
func (g *Grid) Rows() []CellRow {
	var result []CellRow
	for rowIdx, row := range g.Values {
		cellMap := make(map[string]string)
		for colIdx, v := range row {
			if v == "" {
				continue
			}
			name, err := address.ColumnName(g.Range.Start.Col + colIdx)
			if err != nil {
				continue
			}
			cellMap[name] = v
		}
		if len(cellMap) > 0 {
			result = append(result, CellRow{R: g.Range.Start.Row + rowIdx + 1, C: cellMap})
		}
	}
	return result
}
