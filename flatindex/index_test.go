package flatindex

import (
	"testing"

	. "github.com/fulldump/biff"

	"github.com/flatsql/flatsql/flatvalue"
)

// backends lists every Index implementation under test so the contract in
// index.go is exercised identically by both.
func backends(t *testing.T) map[string]Index {
	sqlIdx, err := NewSQLIndex("contract_test", "key", flatvalue.KindInt64)
	AssertNil(err)
	t.Cleanup(func() { sqlIdx.Close() })

	return map[string]Index{
		"btree": NewBTreeIndex(0),
		"sql":   sqlIdx,
	}
}

func TestIndex_NonUniqueKeyOrdering(t *testing.T) {
	for _, idx := range backends(t) {
		idx.Insert(flatvalue.NewInt64(3), 0, 10, 1)
		idx.Insert(flatvalue.NewInt64(3), 10, 10, 2)
		idx.Insert(flatvalue.NewInt64(3), 20, 10, 3)
		idx.Insert(flatvalue.NewInt64(1), 30, 10, 4)

		all := idx.SearchAll(flatvalue.NewInt64(3))
		AssertEqual(len(all), 3)
		AssertEqual(all[0].Sequence, uint64(1))
		AssertEqual(all[1].Sequence, uint64(2))
		AssertEqual(all[2].Sequence, uint64(3))

		AssertEqual(idx.EntryCount(), uint64(4))
	}
}

func TestIndex_SearchFirst(t *testing.T) {
	for _, idx := range backends(t) {
		_, ok := idx.SearchFirst(flatvalue.NewInt64(42))
		AssertFalse(ok)

		idx.Insert(flatvalue.NewInt64(42), 100, 5, 7)
		entry, ok := idx.SearchFirst(flatvalue.NewInt64(42))
		AssertTrue(ok)
		AssertEqual(entry.DataOffset, uint64(100))
		AssertEqual(entry.Sequence, uint64(7))
	}
}

func TestIndex_RangeSearch(t *testing.T) {
	for _, idx := range backends(t) {
		for i := int64(0); i < 100; i++ {
			idx.Insert(flatvalue.NewInt64(i), uint64(i), 1, uint64(i)+1)
		}

		entries := idx.RangeSearch(flatvalue.NewInt64(45), flatvalue.NewInt64(55))
		AssertEqual(len(entries), 11)
		for i, e := range entries {
			AssertEqual(e.Key.Int, int64(45+i))
		}
	}
}

func TestIndex_HalfOpenRange(t *testing.T) {
	for _, idx := range backends(t) {
		for i := int64(0); i < 10; i++ {
			idx.Insert(flatvalue.NewInt64(i), uint64(i), 1, uint64(i)+1)
		}

		from := idx.RangeFrom(flatvalue.NewInt64(7))
		AssertEqual(len(from), 3)
		AssertEqual(from[0].Key.Int, int64(7))

		to := idx.RangeTo(flatvalue.NewInt64(2))
		AssertEqual(len(to), 3)
		AssertEqual(to[len(to)-1].Key.Int, int64(2))
	}
}

func TestIndex_ScanAllIsKeyOrdered(t *testing.T) {
	for _, idx := range backends(t) {
		idx.Insert(flatvalue.NewInt64(5), 0, 1, 1)
		idx.Insert(flatvalue.NewInt64(1), 0, 1, 2)
		idx.Insert(flatvalue.NewInt64(3), 0, 1, 3)

		all := idx.ScanAll()
		AssertEqual(len(all), 3)
		AssertEqual(all[0].Key.Int, int64(1))
		AssertEqual(all[1].Key.Int, int64(3))
		AssertEqual(all[2].Key.Int, int64(5))
	}
}

func TestIndex_Clear(t *testing.T) {
	for _, idx := range backends(t) {
		idx.Insert(flatvalue.NewInt64(1), 0, 1, 1)
		idx.Clear()
		AssertEqual(idx.EntryCount(), uint64(0))
		AssertEqual(len(idx.ScanAll()), 0)
	}
}

func TestBTreeIndex_SearchFirstInt64FastPath(t *testing.T) {
	idx := NewBTreeIndex(0)
	idx.Insert(flatvalue.NewInt64(9000), 1, 1, 1)

	entry, ok := idx.SearchFirstInt64(9000)
	AssertTrue(ok)
	AssertEqual(entry.Sequence, uint64(1))

	_, ok = idx.SearchFirstInt64(9001)
	AssertFalse(ok)
}
