package pipeline

import (
	"errors"
	"fmt"
)

// ErrMissingData is matched by every *MissingDataError.
var ErrMissingData = errors.New("missing data")

// ErrTooManyElements indicates a collection longer than its rank allows.
var ErrTooManyElements = errors.New("too many elements")

// MissingDataError reports an absent required sheet or cell.
type MissingDataError struct {
	// Type is the type being read.
	Type string
	// Field is the owner-qualified field name, empty for a missing sheet.
	Field string
	// Sheet is the sheet that was looked at.
	Sheet string
	// Cell is the first cell of the missing node, empty for a missing sheet.
	Cell string
}

func (e *MissingDataError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("missing data: sheet %q required by %s is absent", e.Sheet, e.Type)
	}
	return fmt.Sprintf("missing data: %s at '%s'!%s", e.Field, e.Sheet, e.Cell)
}

func (e *MissingDataError) Unwrap() error {
	return ErrMissingData
}

// ValueFormatError reports a cell whose text does not parse as the field's
// scalar type. On read the field is set to its default value and the error
// is collected rather than returned.
type ValueFormatError struct {
	// Field is the owner-qualified field name.
	Field string
	// Sheet and Cell locate the offending value.
	Sheet string
	Cell  string
	// Err is the codec failure.
	Err error
}

func (e *ValueFormatError) Error() string {
	return fmt.Sprintf("bad value for %s at '%s'!%s: %v", e.Field, e.Sheet, e.Cell, e.Err)
}

func (e *ValueFormatError) Unwrap() error {
	return e.Err
}

func isMissing(err error) bool {
	return errors.Is(err, ErrMissingData)
}
