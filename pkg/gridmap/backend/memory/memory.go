// Package memory provides an in-process Gateway holding documents in maps.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/ukaji3/gridmap-go/pkg/gridmap/address"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/backend"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/models"
)

// FailFunc decides whether a call fails. It receives the operation name, the
// document and the 1-based number of the call to that operation.
type FailFunc func(op, doc string, call int) error

type sheet struct {
	cells map[address.Cell]string
}

type document struct {
	order  []string
	sheets map[string]*sheet
}

// Store is a Gateway over in-memory documents. It is safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	docs  map[string]*document
	calls map[string]int
	fail  FailFunc
}

var _ backend.Gateway = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		docs:  make(map[string]*document),
		calls: make(map[string]int),
	}
}

// FailWith installs fn as the failure hook. A nil fn removes it.
func (s *Store) FailWith(fn FailFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fn
}

// Calls returns how many times op was invoked, failed calls included.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Put stores v at cell c of the named sheet, creating document and sheet as
// needed. An empty v clears the cell.
func (s *Store) Put(doc, name string, c address.Cell, v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh := s.document(doc).sheet(name)
	if v == "" {
		delete(sh.cells, c)
		return
	}
	sh.cells[c] = v
}

// Cell returns the text at cell c of the named sheet.
func (s *Store) Cell(doc, name string, c address.Cell) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[doc]
	if !ok {
		return ""
	}
	sh, ok := d.sheets[name]
	if !ok {
		return ""
	}
	return sh.cells[c]
}

// DeleteSheet removes a sheet and its cells.
func (s *Store) DeleteSheet(doc, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[doc]
	if !ok {
		return
	}
	delete(d.sheets, name)
	for i, n := range d.order {
		if n == name {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

func (s *Store) document(doc string) *document {
	d, ok := s.docs[doc]
	if !ok {
		d = &document{sheets: make(map[string]*sheet)}
		s.docs[doc] = d
	}
	return d
}

func (d *document) sheet(name string) *sheet {
	sh, ok := d.sheets[name]
	if !ok {
		sh = &sheet{cells: make(map[address.Cell]string)}
		d.sheets[name] = sh
		d.order = append(d.order, name)
	}
	return sh
}

// call counts the invocation and consults the failure hook. The caller holds
// the lock.
func (s *Store) call(op, doc string) error {
	s.calls[op]++
	if s.fail == nil {
		return nil
	}
	if err := s.fail(op, doc, s.calls[op]); err != nil {
		return backend.NewError(op, doc, err)
	}
	return nil
}

// ListSheets implements backend.Gateway.
func (s *Store) ListSheets(ctx context.Context, doc string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call(backend.OpListSheets, doc); err != nil {
		return nil, err
	}
	d, ok := s.docs[doc]
	if !ok {
		return nil, nil
	}
	return append([]string(nil), d.order...), nil
}

// BatchGet implements backend.Gateway.
func (s *Store) BatchGet(ctx context.Context, doc string, ranges []address.Range) ([]*models.Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call(backend.OpBatchGet, doc); err != nil {
		return nil, err
	}

	grids := make([]*models.Grid, 0, len(ranges))
	for _, r := range ranges {
		sh, err := s.lookup(backend.OpBatchGet, doc, r.Sheet)
		if err != nil {
			return nil, err
		}
		g := models.NewGrid(r)
		for c, v := range sh.cells {
			if r.Contains(c) {
				if err := g.Set(c, v); err != nil {
					return nil, err
				}
			}
		}
		grids = append(grids, g)
	}
	return grids, nil
}

// CreateSheets implements backend.Gateway.
func (s *Store) CreateSheets(ctx context.Context, doc string, sheets []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call(backend.OpCreateSheets, doc); err != nil {
		return err
	}
	d := s.document(doc)
	for _, name := range sheets {
		d.sheet(name)
	}
	return nil
}

// BatchUpdate implements backend.Gateway.
func (s *Store) BatchUpdate(ctx context.Context, doc string, grids []*models.Grid) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call(backend.OpBatchUpdate, doc); err != nil {
		return 0, err
	}

	written := 0
	for _, g := range grids {
		sh, err := s.lookup(backend.OpBatchUpdate, doc, g.Sheet())
		if err != nil {
			return written, err
		}
		for c := range sh.cells {
			if g.Range.Contains(c) {
				delete(sh.cells, c)
			}
		}
		for r, row := range g.Values {
			for col, v := range row {
				if v == "" {
					continue
				}
				sh.cells[g.Range.Start.Add(col, r)] = v
				written++
			}
		}
	}
	return written, nil
}

func (s *Store) lookup(op, doc, name string) (*sheet, error) {
	if d, ok := s.docs[doc]; ok {
		if sh, ok := d.sheets[name]; ok {
			return sh, nil
		}
	}
	return nil, backend.NewError(op, doc, fmt.Errorf("%w: %q", backend.ErrSheetNotFound, name))
}
