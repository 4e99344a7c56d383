// Package backend defines the document service the mapper talks to, plus
// wrappers that retry transient failures and serialize requests.
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/ukaji3/gridmap-go/pkg/gridmap/address"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/models"
)

// ErrTransient marks failures worth retrying.
var ErrTransient = errors.New("transient backend failure")

// ErrClosed is returned for requests made to, or still queued on, a closed
// Queue.
var ErrClosed = errors.New("backend queue closed")

// ErrAborted is returned for queued requests dropped after an earlier request
// failed.
var ErrAborted = errors.New("aborted after earlier failure")

// ErrRetriesExhausted wraps the last transient failure of a call that used
// up its retry budget. Such a failure is not transient any more.
var ErrRetriesExhausted = errors.New("retries exhausted")

// ErrSheetNotFound indicates a range or grid naming a sheet the document
// does not hold.
var ErrSheetNotFound = errors.New("sheet not found")

// Gateway is a spreadsheet document service.
type Gateway interface {
	// ListSheets returns the sheet names of doc. A document that does not
	// exist has no sheets.
	ListSheets(ctx context.Context, doc string) ([]string, error)
	// BatchGet fetches one grid per range, in request order.
	BatchGet(ctx context.Context, doc string, ranges []address.Range) ([]*models.Grid, error)
	// CreateSheets adds the named sheets. Existing sheets are left alone.
	CreateSheets(ctx context.Context, doc string, sheets []string) error
	// BatchUpdate stores every grid, clearing the cells of each grid's range
	// that the grid leaves empty. It returns the number of cells written.
	BatchUpdate(ctx context.Context, doc string, grids []*models.Grid) (int, error)
}

// Error represents a failed backend operation.
type Error struct {
	Op        string // "ListSheets", "BatchGet", "CreateSheets", "BatchUpdate"
	Doc       string
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend error in %s(%q): %v", e.Op, e.Doc, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error.
func NewError(op, doc string, err error) *Error {
	return &Error{
		Op:        op,
		Doc:       doc,
		Transient: IsTransient(err),
		Err:       err,
	}
}

// IsTransient reports whether err is worth retrying. Errors carrying
// ErrRetriesExhausted never are.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrRetriesExhausted) {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	var be *Error
	return errors.As(err, &be) && be.Transient
}

// Operation names used in errors and logs.
const (
	OpListSheets   = "ListSheets"
	OpBatchGet     = "BatchGet"
	OpCreateSheets = "CreateSheets"
	OpBatchUpdate  = "BatchUpdate"
)
