// Package xlsx provides a Gateway storing each document as an .xlsx workbook
// file in a directory.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/ukaji3/gridmap-go/pkg/gridmap/address"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/backend"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/models"
)

// Extension is appended to document names that carry none.
const Extension = ".xlsx"

// Gateway maps documents to workbook files under a directory. Workbooks are
// opened per call; the gateway serializes its own calls.
type Gateway struct {
	dir string
	log logrus.FieldLogger
	mu  sync.Mutex
}

var _ backend.Gateway = (*Gateway)(nil)

// New returns a gateway over dir.
func New(dir string, log logrus.FieldLogger) *Gateway {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Gateway{dir: dir, log: log}
}

// Path returns the workbook file backing doc.
func (g *Gateway) Path(doc string) string {
	if filepath.Ext(doc) == "" {
		doc += Extension
	}
	if filepath.IsAbs(doc) {
		return doc
	}
	return filepath.Join(g.dir, doc)
}

// open returns the workbook of doc, or nil when the file does not exist.
func (g *Gateway) open(op, doc string) (*excelize.File, error) {
	f, err := excelize.OpenFile(g.Path(doc))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, backend.NewError(op, doc, err)
	}
	return f, nil
}

// ListSheets implements backend.Gateway.
func (g *Gateway) ListSheets(ctx context.Context, doc string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	f, err := g.open(backend.OpListSheets, doc)
	if err != nil || f == nil {
		return nil, err
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

// BatchGet implements backend.Gateway. Cell text is read unformatted.
func (g *Gateway) BatchGet(ctx context.Context, doc string, ranges []address.Range) ([]*models.Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	f, err := g.open(backend.OpBatchGet, doc)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, backend.NewError(backend.OpBatchGet, doc, fs.ErrNotExist)
	}
	defer f.Close()

	rows := make(map[string][][]string)
	grids := make([]*models.Grid, 0, len(ranges))
	for _, r := range ranges {
		sheetRows, ok := rows[r.Sheet]
		if !ok {
			sheetRows, err = readRows(f, r.Sheet)
			if err != nil {
				return nil, backend.NewError(backend.OpBatchGet, doc, err)
			}
			rows[r.Sheet] = sheetRows
		}
		grid, err := cut(sheetRows, r)
		if err != nil {
			return nil, backend.NewError(backend.OpBatchGet, doc, err)
		}
		grids = append(grids, grid)
	}

	g.log.WithFields(logrus.Fields{
		"doc":    doc,
		"ranges": len(ranges),
	}).Debug("batch get")
	return grids, nil
}

// readRows returns the raw cell text of a sheet, rows and columns zero-based.
func readRows(f *excelize.File, sheet string) ([][]string, error) {
	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return nil, err
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", backend.ErrSheetNotFound, sheet)
	}
	return f.GetRows(sheet, excelize.Options{RawCellValue: true})
}

// cut copies the cells of r out of rows.
func cut(rows [][]string, r address.Range) (*models.Grid, error) {
	grid := models.NewGrid(r)
	for row := r.Start.Row; row <= r.End.Row && row < len(rows); row++ {
		cols := rows[row]
		for col := r.Start.Col; col <= r.End.Col && col < len(cols); col++ {
			if cols[col] == "" {
				continue
			}
			if err := grid.Set(address.Cell{Col: col, Row: row}, cols[col]); err != nil {
				return nil, err
			}
		}
	}
	return grid, nil
}

// CreateSheets implements backend.Gateway. The workbook file is created on
// first use; its initial default sheet is renamed to the first new sheet.
func (g *Gateway) CreateSheets(ctx context.Context, doc string, sheets []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	f, err := g.open(backend.OpCreateSheets, doc)
	if err != nil {
		return err
	}
	fresh := f == nil
	if fresh {
		f = excelize.NewFile()
	}
	defer f.Close()

	existing := make(map[string]bool)
	for _, name := range f.GetSheetList() {
		existing[name] = true
	}
	for _, name := range sheets {
		if existing[name] {
			continue
		}
		if fresh {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				return backend.NewError(backend.OpCreateSheets, doc, err)
			}
			fresh = false
		} else if _, err := f.NewSheet(name); err != nil {
			return backend.NewError(backend.OpCreateSheets, doc, err)
		}
		existing[name] = true
	}

	if err := g.save(f, doc); err != nil {
		return backend.NewError(backend.OpCreateSheets, doc, err)
	}
	g.log.WithFields(logrus.Fields{"doc": doc, "sheets": len(sheets)}).Debug("create sheets")
	return nil
}

// BatchUpdate implements backend.Gateway. Cells are stored as text.
func (g *Gateway) BatchUpdate(ctx context.Context, doc string, grids []*models.Grid) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	f, err := g.open(backend.OpBatchUpdate, doc)
	if err != nil {
		return 0, err
	}
	if f == nil {
		return 0, backend.NewError(backend.OpBatchUpdate, doc, fs.ErrNotExist)
	}
	defer f.Close()

	written := 0
	for _, grid := range grids {
		n, err := update(f, grid)
		if err != nil {
			return written, backend.NewError(backend.OpBatchUpdate, doc, err)
		}
		written += n
	}
	if err := g.save(f, doc); err != nil {
		return written, backend.NewError(backend.OpBatchUpdate, doc, err)
	}

	g.log.WithFields(logrus.Fields{
		"doc":   doc,
		"grids": len(grids),
		"cells": written,
	}).Debug("batch update")
	return written, nil
}

// update clears the stale cells of the grid's range, then stores its values.
func update(f *excelize.File, grid *models.Grid) (int, error) {
	rows, err := readRows(f, grid.Sheet())
	if err != nil {
		return 0, err
	}
	r := grid.Range
	for row := r.Start.Row; row <= r.End.Row && row < len(rows); row++ {
		for col := r.Start.Col; col <= r.End.Col && col < len(rows[row]); col++ {
			c := address.Cell{Col: col, Row: row}
			if rows[row][col] == "" {
				continue
			}
			if v, _ := grid.Get(c); v != "" {
				continue
			}
			name, err := address.CellName(c)
			if err != nil {
				return 0, err
			}
			if err := f.SetCellValue(grid.Sheet(), name, nil); err != nil {
				return 0, err
			}
		}
	}

	written := 0
	for row, cols := range grid.Values {
		for col, v := range cols {
			if v == "" {
				continue
			}
			name, err := address.CellName(r.Start.Add(col, row))
			if err != nil {
				return written, err
			}
			if err := f.SetCellStr(grid.Sheet(), name, v); err != nil {
				return written, err
			}
			written++
		}
	}
	return written, nil
}

func (g *Gateway) save(f *excelize.File, doc string) error {
	path := g.Path(doc)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return f.SaveAs(path)
}
