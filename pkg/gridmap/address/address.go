// Package address converts between zero-based grid coordinates and A1-style
// cell-range notation.
package address

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Open is the sentinel index used for an omitted (open-ended) range boundary
// in parsed references. It does not bound constructed ranges.
const Open = 999

// MaxCols and MaxRows bound the addressable cells of a worksheet.
const (
	MaxCols = excelize.MaxColumns
	MaxRows = excelize.TotalRows
)

// Anchor is the default origin of a block: B2, leaving row 1 and column A free
// for headers.
var Anchor = Cell{Col: 1, Row: 1}

// ErrInvalidAddress indicates a malformed cell or range string.
var ErrInvalidAddress = errors.New("invalid address")

// Cell is a zero-based grid coordinate.
type Cell struct {
	// Col is the column index (0 = "A").
	Col int
	// Row is the row index (0 = row "1").
	Row int
}

// Add returns c shifted by the given column and row deltas.
func (c Cell) Add(cols, rows int) Cell {
	return Cell{Col: c.Col + cols, Row: c.Row + rows}
}

// String renders c in A1 notation, e.g. Cell{1, 1} is "B2".
func (c Cell) String() string {
	name, err := CellName(c)
	if err != nil {
		return fmt.Sprintf("R%dC%d", c.Row+1, c.Col+1)
	}
	return name
}

// CellName renders c in A1 notation.
func CellName(c Cell) (string, error) {
	if c.Col < 0 || c.Row < 0 {
		return "", fmt.Errorf("%w: negative coordinate (%d,%d)", ErrInvalidAddress, c.Col, c.Row)
	}
	return excelize.CoordinatesToCellName(c.Col+1, c.Row+1)
}

// ColumnName encodes a zero-based column index as bijective base-26 letters.
// Index 0 is "A", 25 is "Z" and 26 is "AA".
func ColumnName(col int) (string, error) {
	return excelize.ColumnNumberToName(col + 1)
}

// ColumnIndex decodes column letters into a zero-based column index.
func ColumnIndex(letters string) (int, error) {
	n, err := excelize.ColumnNameToNumber(letters)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return n - 1, nil
}

// ParseCell decodes an A1-style cell such as "B2" into zero-based
// coordinates. Absolute markers ("$B$2") are ignored. A missing letter or
// digit component decodes as Open.
func ParseCell(s string) (Cell, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "$", "")

	split := 0
	for split < len(s) && isLetter(s[split]) {
		split++
	}
	letters, digits := s[:split], s[split:]

	c := Cell{Col: Open, Row: Open}
	if letters != "" {
		col, err := ColumnIndex(letters)
		if err != nil {
			return Cell{}, err
		}
		c.Col = col
	}
	if digits != "" {
		row, err := strconv.Atoi(digits)
		if err != nil || row < 1 {
			return Cell{}, fmt.Errorf("%w: bad row %q in %q", ErrInvalidAddress, digits, s)
		}
		c.Row = row - 1
	}
	return c, nil
}

func isLetter(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}
