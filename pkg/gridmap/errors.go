package gridmap

import (
	"errors"
	"fmt"

	"github.com/ukaji3/gridmap-go/pkg/gridmap/backend"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/pipeline"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/schema"
)

// ErrNoSheet indicates a top-level call on a compact type without a sheet
// name.
var ErrNoSheet = errors.New("no sheet given for compact type")

// Errors surfaced by the mapper, re-exported for callers matching with
// errors.As and errors.Is.
type (
	SchemaError      = schema.Error
	MissingDataError = pipeline.MissingDataError
	ValueFormatError = pipeline.ValueFormatError
	BackendError     = backend.Error
)

var (
	ErrMissingData      = pipeline.ErrMissingData
	ErrTooManyElements  = pipeline.ErrTooManyElements
	ErrUnknownType      = schema.ErrUnknownType
	ErrLayoutTooLarge   = schema.ErrLayoutTooLarge
	ErrTransient        = backend.ErrTransient
	ErrRetriesExhausted = backend.ErrRetriesExhausted
)

// MappingError represents a failed top-level read or write.
type MappingError struct {
	Op    string // "read", "write"
	Type  string
	Sheet string
	Err   error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("%s error for %s on sheet %q: %v", e.Op, e.Type, e.Sheet, e.Err)
}

func (e *MappingError) Unwrap() error {
	return e.Err
}

// NewMappingError creates a new MappingError.
func NewMappingError(op, typeName, sheet string, err error) *MappingError {
	return &MappingError{
		Op:    op,
		Type:  typeName,
		Sheet: sheet,
		Err:   err,
	}
}
