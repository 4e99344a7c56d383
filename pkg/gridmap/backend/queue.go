package backend

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ukaji3/gridmap-go/pkg/gridmap/address"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/models"
)

func discard() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type request struct {
	id   string
	op   string
	doc  string
	ctx  context.Context
	run  func(ctx context.Context) error
	done chan error
}

// Queue funnels every request to a gateway through a single worker, one
// request in flight at a time, in submission order. When a request fails
// with a non-transient error the requests queued behind it fail with
// ErrAborted.
type Queue struct {
	gw  Gateway
	log logrus.FieldLogger

	mu      sync.Mutex
	cond    *sync.Cond
	pending []*request
	closed  bool
	stopped chan struct{}
}

// NewQueue starts the worker for gw. Callers must Close the queue.
func NewQueue(gw Gateway, log logrus.FieldLogger) *Queue {
	if log == nil {
		log = discard()
	}
	q := &Queue{gw: gw, log: log, stopped: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

// Close stops the worker once the request in flight completes. Requests
// still queued fail with ErrClosed.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.stopped
		return nil
	}
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
	<-q.stopped
	return nil
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of requests waiting behind the one in flight.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func newRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

func (q *Queue) submit(ctx context.Context, op, doc string, run func(ctx context.Context) error) error {
	req := &request{
		id:   newRequestID(),
		op:   op,
		doc:  doc,
		ctx:  ctx,
		run:  run,
		done: make(chan error, 1),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return NewError(op, doc, ErrClosed)
	}
	q.pending = append(q.pending, req)
	q.cond.Signal()
	q.mu.Unlock()

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) run() {
	defer close(q.stopped)
	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if q.closed {
			rest := q.pending
			q.pending = nil
			q.mu.Unlock()
			for _, req := range rest {
				req.done <- NewError(req.op, req.doc, ErrClosed)
			}
			return
		}
		req := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		entry := q.log.WithFields(logrus.Fields{
			"request_id": req.id,
			"op":         req.op,
			"doc":        req.doc,
		})
		if err := req.ctx.Err(); err != nil {
			req.done <- err
			continue
		}

		err := req.run(req.ctx)
		req.done <- err
		if err == nil {
			entry.Debug("request done")
			continue
		}
		entry.WithError(err).Warn("request failed")
		if IsTransient(err) || req.ctx.Err() != nil {
			continue
		}

		q.mu.Lock()
		behind := q.pending
		q.pending = nil
		q.mu.Unlock()
		for _, b := range behind {
			b.done <- NewError(b.op, b.doc, fmt.Errorf("%w: request %s: %v", ErrAborted, req.id, err))
		}
	}
}

// ListSheets implements Gateway.
func (q *Queue) ListSheets(ctx context.Context, doc string) ([]string, error) {
	var sheets []string
	err := q.submit(ctx, OpListSheets, doc, func(ctx context.Context) error {
		var err error
		sheets, err = q.gw.ListSheets(ctx, doc)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sheets, nil
}

// BatchGet implements Gateway.
func (q *Queue) BatchGet(ctx context.Context, doc string, ranges []address.Range) ([]*models.Grid, error) {
	var grids []*models.Grid
	err := q.submit(ctx, OpBatchGet, doc, func(ctx context.Context) error {
		var err error
		grids, err = q.gw.BatchGet(ctx, doc, ranges)
		return err
	})
	if err != nil {
		return nil, err
	}
	return grids, nil
}

// CreateSheets implements Gateway.
func (q *Queue) CreateSheets(ctx context.Context, doc string, sheets []string) error {
	return q.submit(ctx, OpCreateSheets, doc, func(ctx context.Context) error {
		return q.gw.CreateSheets(ctx, doc, sheets)
	})
}

// BatchUpdate implements Gateway.
func (q *Queue) BatchUpdate(ctx context.Context, doc string, grids []*models.Grid) (int, error) {
	var n int
	err := q.submit(ctx, OpBatchUpdate, doc, func(ctx context.Context) error {
		var err error
		n, err = q.gw.BatchUpdate(ctx, doc, grids)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
