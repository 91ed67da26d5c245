package flatindex

import (
	"github.com/google/btree"

	"github.com/flatsql/flatsql/flatvalue"
)

const defaultOrder = 32

// BTreeIndex wraps a google/btree.BTreeG[Entry] ordered on (Key, Sequence),
// generalizing a multi-field row comparator down to a single flatvalue.Value
// key.
type BTreeIndex struct {
	tree  *btree.BTreeG[Entry]
	order int
}

func entryLess(a, b Entry) bool {
	if c := flatvalue.Compare(a.Key, b.Key); c != 0 {
		return c < 0
	}
	return a.Sequence < b.Sequence
}

// NewBTreeIndex creates an empty B-tree backed index. order is passed to
// btree.NewG as its degree: each node holds at most 2*order-1 entries and
// 2*order children. order <= 0 uses the default of 32.
func NewBTreeIndex(order int) *BTreeIndex {
	if order <= 0 {
		order = defaultOrder
	}
	return &BTreeIndex{
		tree:  btree.NewG(order, entryLess),
		order: order,
	}
}

func (idx *BTreeIndex) Insert(key flatvalue.Value, offset uint64, length uint32, sequence uint64) {
	idx.tree.ReplaceOrInsert(Entry{
		Key:        key,
		DataOffset: offset,
		DataLength: length,
		Sequence:   sequence,
	})
}

// SearchAll collects every entry matching key, sequence-ordered. It pivots
// on the lowest possible sequence for key and walks forward while the key
// still matches, mirroring the source's gather-duplicates-then-stop search.
func (idx *BTreeIndex) SearchAll(key flatvalue.Value) []Entry {
	var out []Entry
	pivot := Entry{Key: key, Sequence: 0}
	idx.tree.AscendGreaterOrEqual(pivot, func(e Entry) bool {
		if flatvalue.Compare(e.Key, key) != 0 {
			return false
		}
		out = append(out, e)
		return true
	})
	return out
}

// SearchFirst returns the first matching entry only, the fast path for
// unique keys.
func (idx *BTreeIndex) SearchFirst(key flatvalue.Value) (Entry, bool) {
	var found Entry
	ok := false
	pivot := Entry{Key: key, Sequence: 0}
	idx.tree.AscendGreaterOrEqual(pivot, func(e Entry) bool {
		if flatvalue.Compare(e.Key, key) != 0 {
			return false
		}
		found = e
		ok = true
		return false
	})
	return found, ok
}

// SearchFirstString is a typed fast path avoiding flatvalue.Value
// construction on the caller's side.
func (idx *BTreeIndex) SearchFirstString(key string) (Entry, bool) {
	return idx.SearchFirst(flatvalue.NewString(key))
}

// SearchFirstInt64 is the int64-typed entry point for point lookups on
// id-like columns. It wraps key in a flatvalue.Value and delegates to
// SearchFirst, so the search uses the same Compare-based ordering.
func (idx *BTreeIndex) SearchFirstInt64(key int64) (Entry, bool) {
	return idx.SearchFirst(flatvalue.NewInt64(key))
}

// RangeSearch returns entries with min <= key <= max, key-ordered.
func (idx *BTreeIndex) RangeSearch(min, max flatvalue.Value) []Entry {
	var out []Entry
	pivot := Entry{Key: min, Sequence: 0}
	idx.tree.AscendGreaterOrEqual(pivot, func(e Entry) bool {
		if flatvalue.Compare(e.Key, max) > 0 {
			return false
		}
		out = append(out, e)
		return true
	})
	return out
}

// RangeFrom returns entries with key >= min, key-ordered, no upper bound.
func (idx *BTreeIndex) RangeFrom(min flatvalue.Value) []Entry {
	var out []Entry
	pivot := Entry{Key: min, Sequence: 0}
	idx.tree.AscendGreaterOrEqual(pivot, func(e Entry) bool {
		out = append(out, e)
		return true
	})
	return out
}

// RangeTo returns entries with key <= max, key-ordered, no lower bound.
func (idx *BTreeIndex) RangeTo(max flatvalue.Value) []Entry {
	var out []Entry
	idx.tree.Ascend(func(e Entry) bool {
		if flatvalue.Compare(e.Key, max) > 0 {
			return false
		}
		out = append(out, e)
		return true
	})
	return out
}

// ScanAll returns every entry in key order.
func (idx *BTreeIndex) ScanAll() []Entry {
	var out []Entry
	idx.tree.Ascend(func(e Entry) bool {
		out = append(out, e)
		return true
	})
	return out
}

func (idx *BTreeIndex) Clear() {
	idx.tree.Clear(false)
}

func (idx *BTreeIndex) EntryCount() uint64 {
	return uint64(idx.tree.Len())
}
