package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/ukaji3/gridmap-go/pkg/gridmap/address"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/models"
)

// DefaultRetries is the retry budget of a Retrying gateway.
const DefaultRetries = 5

// Retrying retries the read operations of a gateway on transient failures
// with exponential backoff. A read that runs out of retries fails with
// ErrRetriesExhausted and is no longer transient. Mutations are passed
// through once; there is no rollback of partially applied updates.
type Retrying struct {
	gw      Gateway
	retries int
	log     logrus.FieldLogger
	backOff func() backoff.BackOff
}

// RetryOption configures a Retrying gateway.
type RetryOption func(*Retrying)

// WithBackOff replaces the exponential schedule, e.g. with
// backoff.ZeroBackOff in tests.
func WithBackOff(newBackOff func() backoff.BackOff) RetryOption {
	return func(r *Retrying) { r.backOff = newBackOff }
}

// WithLogger sets the logger receiving one entry per failed attempt.
func WithLogger(log logrus.FieldLogger) RetryOption {
	return func(r *Retrying) { r.log = log }
}

// NewRetrying wraps gw. A negative retries uses DefaultRetries.
func NewRetrying(gw Gateway, retries int, opts ...RetryOption) *Retrying {
	if retries < 0 {
		retries = DefaultRetries
	}
	r := &Retrying{
		gw:      gw,
		retries: retries,
		log:     discard(),
		backOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Retrying) policy(ctx context.Context) backoff.BackOff {
	return backoff.WithContext(backoff.WithMaxRetries(r.backOff(), uint64(r.retries)), ctx)
}

func (r *Retrying) retry(ctx context.Context, op, doc string, fn func() error) error {
	attempt := 0
	doit := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return backoff.Permanent(err)
		}
		r.log.WithFields(logrus.Fields{
			"doc":     doc,
			"op":      op,
			"attempt": attempt,
		}).WithError(err).Warn("transient backend failure")
		return err
	}

	err := backoff.Retry(doit, r.policy(ctx))
	if err == nil {
		return nil
	}
	if IsTransient(err) && ctx.Err() == nil {
		cause := err
		var be *Error
		if errors.As(err, &be) {
			cause = be.Err
		}
		return &Error{
			Op:  op,
			Doc: doc,
			Err: fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, cause),
		}
	}
	return wrap(op, doc, err)
}

// ListSheets implements Gateway.
func (r *Retrying) ListSheets(ctx context.Context, doc string) ([]string, error) {
	var sheets []string
	err := r.retry(ctx, OpListSheets, doc, func() error {
		var err error
		sheets, err = r.gw.ListSheets(ctx, doc)
		return err
	})
	return sheets, err
}

// BatchGet implements Gateway.
func (r *Retrying) BatchGet(ctx context.Context, doc string, ranges []address.Range) ([]*models.Grid, error) {
	var grids []*models.Grid
	err := r.retry(ctx, OpBatchGet, doc, func() error {
		var err error
		grids, err = r.gw.BatchGet(ctx, doc, ranges)
		return err
	})
	return grids, err
}

// CreateSheets implements Gateway without retrying.
func (r *Retrying) CreateSheets(ctx context.Context, doc string, sheets []string) error {
	if err := r.gw.CreateSheets(ctx, doc, sheets); err != nil {
		return wrap(OpCreateSheets, doc, err)
	}
	return nil
}

// BatchUpdate implements Gateway without retrying.
func (r *Retrying) BatchUpdate(ctx context.Context, doc string, grids []*models.Grid) (int, error) {
	n, err := r.gw.BatchUpdate(ctx, doc, grids)
	if err != nil {
		return n, wrap(OpBatchUpdate, doc, err)
	}
	return n, nil
}

func wrap(op, doc string, err error) error {
	var be *Error
	if errors.As(err, &be) {
		return err
	}
	return NewError(op, doc, err)
}
