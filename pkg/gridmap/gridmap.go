package gridmap

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ukaji3/gridmap-go/pkg/gridmap/backend"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/codec"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/models"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/pipeline"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/schema"
)

// ReadResult is the outcome of a top-level read.
type ReadResult struct {
	// Object is the assembled object.
	Object models.Object
	// Issues lists cells whose text did not parse; the affected fields hold
	// their default values.
	Issues []*ValueFormatError
	// Grids are the fetched grids, in request order.
	Grids []*models.Grid
}

// WriteResult is the outcome of a top-level write.
type WriteResult struct {
	// Grids are the grids sent to the backend.
	Grids []*models.Grid
	// Created lists the sheets added to the document.
	Created []string
	// Cells is the number of non-empty cells written.
	Cells int
}

// ReadRequest names one top-level read of ReadAll.
type ReadRequest struct {
	Type  string
	Sheet string
}

// Mapper reads and writes objects of registered types. A Mapper is safe for
// concurrent use when its gateway is.
type Mapper struct {
	gw    backend.Gateway
	queue *backend.Queue
	reg   *schema.Registry
	opts  Options
	log   logrus.FieldLogger
	codec codec.Codec
}

// New creates a mapper over gw. Reads are retried per opts; with
// opts.Serialize every call goes through a single-worker queue, released by
// Close.
func New(gw backend.Gateway, reg *schema.Registry, opts Options) *Mapper {
	m := &Mapper{
		reg:   reg,
		opts:  opts,
		log:   opts.Log(),
		codec: opts.ValueCodec(),
	}
	if n := opts.Retries(); n > 0 {
		gw = backend.NewRetrying(gw, n, backend.WithLogger(m.log))
	}
	if opts.Serialize {
		m.queue = backend.NewQueue(gw, m.log)
		gw = m.queue
	}
	m.gw = gw
	return m
}

// Close releases the request queue, if any.
func (m *Mapper) Close() error {
	if m.queue != nil {
		return m.queue.Close()
	}
	return nil
}

// Registry returns the registry the mapper describes types with.
func (m *Mapper) Registry() *schema.Registry {
	return m.reg
}

func (m *Mapper) describe(typeName, sheet string) (*schema.Type, string, error) {
	t, err := m.reg.Describe(typeName)
	if err != nil {
		return nil, sheet, err
	}
	if sheet == "" {
		sheet = t.SheetName
	}
	if sheet == "" {
		return nil, sheet, &SchemaError{Type: typeName, Err: ErrNoSheet}
	}
	return t, sheet, nil
}

// Read reads the object of type typeName stored on sheet. An empty sheet
// uses the type's own sheet name. Reads cost one listing and at most one
// batched get.
func (m *Mapper) Read(ctx context.Context, typeName, sheet string) (*ReadResult, error) {
	t, sheet, err := m.describe(typeName, sheet)
	if err != nil {
		return nil, NewMappingError("read", typeName, sheet, err)
	}
	entry := m.log.WithFields(logrus.Fields{
		"doc":   m.opts.Document,
		"type":  typeName,
		"sheet": sheet,
	})

	sheets, err := m.gw.ListSheets(ctx, m.opts.Document)
	if err != nil {
		return nil, NewMappingError("read", typeName, sheet, err)
	}

	r := pipeline.NewReader(m.codec, sheets)
	assemble, err := r.Plan(t, sheet)
	if err != nil {
		return nil, NewMappingError("read", typeName, sheet, err)
	}

	var grids []*models.Grid
	if ranges := r.Ranges(); len(ranges) > 0 {
		grids, err = m.gw.BatchGet(ctx, m.opts.Document, ranges)
		if err != nil {
			return nil, NewMappingError("read", typeName, sheet, err)
		}
		if err := r.Deliver(grids); err != nil {
			return nil, NewMappingError("read", typeName, sheet, err)
		}
	}

	obj, err := assemble()
	if err != nil {
		return nil, NewMappingError("read", typeName, sheet, err)
	}
	for _, issue := range r.Issues() {
		entry.WithError(issue).Warn("value defaulted")
	}
	entry.WithField("ranges", len(grids)).Debug("read")
	return &ReadResult{Object: obj, Issues: r.Issues(), Grids: grids}, nil
}

// Write stores obj as type typeName on sheet, creating missing sheets first.
// An empty sheet uses the type's own sheet name.
func (m *Mapper) Write(ctx context.Context, typeName, sheet string, obj models.Object) (*WriteResult, error) {
	t, sheet, err := m.describe(typeName, sheet)
	if err != nil {
		return nil, NewMappingError("write", typeName, sheet, err)
	}

	w := pipeline.NewWriter(m.codec)
	if err := w.Write(t, sheet, obj); err != nil {
		return nil, NewMappingError("write", typeName, sheet, err)
	}
	grids := w.Grids()
	res := &WriteResult{Grids: grids}
	if len(grids) == 0 {
		return res, nil
	}

	sheets, err := m.gw.ListSheets(ctx, m.opts.Document)
	if err != nil {
		return nil, NewMappingError("write", typeName, sheet, err)
	}
	res.Created = missingSheets(sheets, grids)
	if len(res.Created) > 0 {
		if err := m.gw.CreateSheets(ctx, m.opts.Document, res.Created); err != nil {
			return nil, NewMappingError("write", typeName, sheet, err)
		}
	}

	res.Cells, err = m.gw.BatchUpdate(ctx, m.opts.Document, grids)
	if err != nil {
		return res, NewMappingError("write", typeName, sheet, err)
	}

	m.log.WithFields(logrus.Fields{
		"doc":   m.opts.Document,
		"type":  typeName,
		"sheet": sheet,
		"grids": len(grids),
		"cells": res.Cells,
	}).Debug("write")
	return res, nil
}

func missingSheets(listing []string, grids []*models.Grid) []string {
	seen := make(map[string]bool, len(listing))
	for _, s := range listing {
		seen[s] = true
	}
	var missing []string
	for _, g := range grids {
		if !seen[g.Sheet()] {
			seen[g.Sheet()] = true
			missing = append(missing, g.Sheet())
		}
	}
	return missing
}

// ReadAll runs independent reads concurrently, at most opts.Workers() at a
// time. Results are in request order. The first failure cancels the reads
// still running and is returned.
func (m *Mapper) ReadAll(ctx context.Context, reqs []ReadRequest) ([]*ReadResult, error) {
	results := make([]*ReadResult, len(reqs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Workers())
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			res, err := m.Read(ctx, req.Type, req.Sheet)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
