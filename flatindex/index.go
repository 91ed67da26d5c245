// Package flatindex implements the per-(table,column) ordered multimap from
// flatvalue.Value to record identity, with two interchangeable back-ends: an
// in-memory B-tree and a host-SQL-backed index table.
package flatindex

import (
	"errors"

	"github.com/flatsql/flatsql/flatvalue"
)

// ErrInvalidBackend is returned when a back-end fails to construct.
var ErrInvalidBackend = errors.New("flatindex: invalid backend")

// ErrCorrupted indicates an invariant violation inside a back-end (a node
// lookup by id failed); it signals a bug rather than a legitimate empty
// result.
var ErrCorrupted = errors.New("flatindex: corrupted")

// Entry is one (key, record-identity) pair held by an Index, ordered by
// (Key, Sequence) so duplicate keys are admitted in insertion order.
type Entry struct {
	Key        flatvalue.Value
	DataOffset uint64
	DataLength uint32
	Sequence   uint64
}

// Index is the per-(table,column) ordered multimap. Implementations must
// satisfy identical behavior on this contract regardless of back-end.
type Index interface {
	Insert(key flatvalue.Value, offset uint64, length uint32, sequence uint64)
	SearchAll(key flatvalue.Value) []Entry
	SearchFirst(key flatvalue.Value) (Entry, bool)
	SearchFirstString(key string) (Entry, bool)
	SearchFirstInt64(key int64) (Entry, bool)
	RangeSearch(min, max flatvalue.Value) []Entry
	// RangeFrom and RangeTo back the half-open range queries the
	// virtual-table bridge's best-index choice names (a single >= or <=
	// constraint on an indexed column, with no matching bound on the
	// other side).
	RangeFrom(min flatvalue.Value) []Entry
	RangeTo(max flatvalue.Value) []Entry
	ScanAll() []Entry
	Clear()
	EntryCount() uint64
}
