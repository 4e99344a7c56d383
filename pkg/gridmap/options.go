// Package gridmap maps typed objects onto spreadsheet documents. Types are
// declared in a schema.Registry; their layout is derived from the schema
// alone, and objects are read and written through a backend.Gateway in
// batched calls.
package gridmap

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/ukaji3/gridmap-go/pkg/gridmap/backend"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/codec"
)

// DefaultParallelism bounds the concurrent reads of ReadAll.
const DefaultParallelism = 4

// Options configures a Mapper.
type Options struct {
	// Document names the document every call targets.
	Document string
	// MaxRetries is the retry budget for transient read failures.
	// If nil, backend.DefaultRetries is used; zero disables retrying.
	MaxRetries *int
	// Parallelism bounds the concurrent reads of ReadAll.
	// Values below 1 use DefaultParallelism.
	Parallelism int
	// Serialize funnels every backend call through a single-worker queue.
	Serialize bool
	// Logger receives call summaries. If nil, nothing is logged.
	Logger logrus.FieldLogger
	// Codec converts scalar values. If nil, codec.NewDefault() is used.
	Codec codec.Codec
}

// DefaultOptions returns default mapper options.
func DefaultOptions() Options {
	return Options{
		Parallelism: DefaultParallelism,
	}
}

// Retries returns the retry budget for transient read failures.
func (o Options) Retries() int {
	if o.MaxRetries != nil {
		return *o.MaxRetries
	}
	return backend.DefaultRetries
}

// Workers returns the bound on concurrent reads.
func (o Options) Workers() int {
	if o.Parallelism < 1 {
		return DefaultParallelism
	}
	return o.Parallelism
}

// Log returns the logger to use.
func (o Options) Log() logrus.FieldLogger {
	if o.Logger != nil {
		return o.Logger
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// ValueCodec returns the scalar codec to use.
func (o Options) ValueCodec() codec.Codec {
	if o.Codec != nil {
		return o.Codec
	}
	return codec.NewDefault()
}
