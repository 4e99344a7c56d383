package address

import (
	"fmt"
	"strings"
)

// Range is a rectangular block of cells on one sheet. Start and End are
// inclusive.
type Range struct {
	Sheet string
	Start Cell
	End   Cell
}

// NewRange returns the range of w columns by h rows starting at start on
// sheet. Non-positive extents count as one cell.
func NewRange(sheet string, start Cell, w, h int) Range {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return Range{Sheet: sheet, Start: start, End: start.Add(w-1, h-1)}
}

// Width returns the number of columns covered by r.
func (r Range) Width() int { return r.End.Col - r.Start.Col + 1 }

// Height returns the number of rows covered by r.
func (r Range) Height() int { return r.End.Row - r.Start.Row + 1 }

// Contains reports whether c lies inside r.
func (r Range) Contains(c Cell) bool {
	return c.Col >= r.Start.Col && c.Col <= r.End.Col &&
		c.Row >= r.Start.Row && c.Row <= r.End.Row
}

// Cells returns the "B2:C10" part of r without the sheet.
func (r Range) Cells() string {
	return r.Start.String() + ":" + r.End.String()
}

// String renders r as 'Sheet'!B2:C10. Quotes inside the sheet name are
// doubled.
func (r Range) String() string {
	if r.Sheet == "" {
		return r.Cells()
	}
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(r.Sheet, "'", "''"), r.Cells())
}

// ParseRange parses a reference such as 'Sheet'!$B$2:$D$10, Sheet!B2 or
// B2:D. The sheet part is optional. A single cell yields a one-cell range.
func ParseRange(ref string) (Range, error) {
	ref = strings.TrimSpace(ref)
	var r Range

	if idx := strings.LastIndex(ref, "!"); idx >= 0 {
		sheet := ref[:idx]
		if len(sheet) >= 2 && strings.HasPrefix(sheet, "'") && strings.HasSuffix(sheet, "'") {
			sheet = strings.ReplaceAll(sheet[1:len(sheet)-1], "''", "'")
		}
		r.Sheet = sheet
		ref = ref[idx+1:]
	}
	if ref == "" {
		return Range{}, fmt.Errorf("%w: empty range", ErrInvalidAddress)
	}

	parts := strings.Split(ref, ":")
	if len(parts) > 2 {
		return Range{}, fmt.Errorf("%w: %q", ErrInvalidAddress, ref)
	}

	start, err := ParseCell(parts[0])
	if err != nil {
		return Range{}, err
	}
	r.Start, r.End = start, start

	if len(parts) == 2 {
		end, err := ParseCell(parts[1])
		if err != nil {
			return Range{}, err
		}
		r.End = end
	}
	if r.End.Col < r.Start.Col || r.End.Row < r.Start.Row {
		return Range{}, fmt.Errorf("%w: inverted range %q", ErrInvalidAddress, ref)
	}
	return r, nil
}
