package core

import (
	"context"
)

// Column describes one field of a scan unit as the backend declares it.
// Type is the backend's raw declared type (VARCHAR2, jsonb, STRING); the
// engine classifies it, adapters only report it.
type Column struct {
	Name string
	Type string
}

// Sample is a single located string value from a sampled backend. Path and
// Column identify where the value came from in the backend's own terms: a
// document store sets Column to the field path within the document, a
// key-value store sets Path to the key name, object storage sets Path to
// the object key. Either may be empty; the engine reports whichever parts
// are present.
type Sample struct {
	Path   string
	Column string
	Value  string
}

// Adapter is the contract every backend implements. Connect is retried by
// the engine's retry policy; Disconnect is idempotent and safe to call on a
// never-connected adapter. ListUnits enumerates the scannable units of the
// backend (tables, collections, topics, key patterns, objects, files) as
// opaque identifiers.
type Adapter interface {
	// Name returns the adapter's registry name, which is also the URL
	// scheme it serves.
	Name() string

	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	ListUnits(ctx context.Context) ([]string, error)
}

// Streamer is the batched relational path. Columns reports the unit's
// declared columns so the engine can drop low-value ones before any data
// moves; OpenCursor starts a server-side read over exactly the selected
// columns. Memory stays bounded to one batch.
type Streamer interface {
	Adapter

	Columns(ctx context.Context, unit string) ([]Column, error)
	OpenCursor(ctx context.Context, unit string, columns []Column) (Cursor, error)
}

// Sampler is the simple path for backends without column structure. It
// returns up to limit located values drawn from the unit in whatever order
// the backend yields them.
type Sampler interface {
	Adapter

	FetchSamples(ctx context.Context, unit string, limit int) ([]Sample, error)
}

// Cursor iterates the rows of an open streaming read. Next returns at most
// n rows, each aligned with the columns the cursor was opened with; a nil
// error with an empty batch means the cursor is exhausted. Close releases
// the underlying backend resources and is safe to call more than once.
type Cursor interface {
	Next(ctx context.Context, n int) ([][]string, error)
	Close() error
}
