package flatsql

import (
	"errors"

	"github.com/flatsql/flatsql/flattable"
)

// ErrMalformedFrame is returned when a framed-record ingest call is given a
// size prefix inconsistent with the bytes supplied.
var ErrMalformedFrame = errors.New("flatsql: malformed frame")

// ErrTableNotFound is returned by direct-access APIs naming an unknown table.
var ErrTableNotFound = errors.New("flatsql: table not found")

// ErrColumnNotIndexed is returned by index-access APIs naming a column that
// was not declared indexed. It is the same value the table stores wrap
// (flattable.ErrColumnNotIndexed), so errors.Is matches it.
var ErrColumnNotIndexed = flattable.ErrColumnNotIndexed

// ErrUnknownFileID is never returned from Ingest/IngestOne (unrouted records
// are silently absorbed, per the streaming ingest policy); it is exported
// for callers that want to recognize it if it surfaces from a narrower API.
var ErrUnknownFileID = errors.New("flatsql: unknown file id")

// ErrQuery wraps any error returned verbatim by the host SQL engine.
var ErrQuery = errors.New("flatsql: query error")

// ErrInternal marks invariant violations: a bug, not a caller mistake. The
// Database remains usable for queries but may have inconsistent index state.
var ErrInternal = errors.New("flatsql: internal error")
