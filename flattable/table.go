// Package flattable implements per-table ownership of the log slice, the
// set of indexes, and the field extractor: it answers row-by-sequence,
// row-by-index, full-scan, and column-value queries.
package flattable

import (
	"errors"
	"fmt"

	"github.com/flatsql/flatsql/flatextract"
	"github.com/flatsql/flatsql/flatindex"
	"github.com/flatsql/flatsql/flatlog"
	"github.com/flatsql/flatsql/flatvalue"
)

// ErrColumnNotIndexed is returned when an index-access API names a column
// that was not declared indexed.
var ErrColumnNotIndexed = errors.New("flattable: column not indexed")

// IndexFactory constructs the backing Index for one declared column. Given
// a table name, column name and key kind, it returns a ready-to-use Index.
type IndexFactory func(tableName, columnName string, keyKind flatvalue.Kind) (flatindex.Index, error)

// BTreeIndexFactory is the default IndexFactory: an in-memory B-tree of
// degree 32 (up to 64 children per node).
func BTreeIndexFactory(tableName, columnName string, keyKind flatvalue.Kind) (flatindex.Index, error) {
	return flatindex.NewBTreeIndex(0), nil
}

// SQLIndexFactory builds the host-SQL-backed alternative, each column
// getting its own dedicated SQLite connection (flatindex.NewSQLIndex).
func SQLIndexFactory(tableName, columnName string, keyKind flatvalue.Kind) (flatindex.Index, error) {
	return flatindex.NewSQLIndex(tableName, columnName, keyKind)
}

// TableStore owns one table's slice of the shared Log, its declared
// indexes, and the extractor that turns raw record bytes into column
// values.
type TableStore struct {
	tableName string
	fileID    [4]byte
	hasFileID bool

	log *flatlog.Log

	extractor    flatextract.Extractor
	indexFactory IndexFactory

	indexedColumns map[string]flatvalue.Kind
	indexes        map[string]flatindex.Index
}

// Stats summarizes a TableStore's current extent, per the public contract's
// stats() operation.
type Stats struct {
	RecordCount int
	Indexes     []string
}

// New creates an empty TableStore bound to log. The table has no file-id
// routing until RegisterFileID is called, matching a table declared in a
// schema but not yet wired to an incoming stream.
func New(tableName string, log *flatlog.Log, indexFactory IndexFactory) *TableStore {
	if indexFactory == nil {
		indexFactory = BTreeIndexFactory
	}
	return &TableStore{
		tableName:      tableName,
		log:            log,
		indexFactory:   indexFactory,
		indexedColumns: map[string]flatvalue.Kind{},
		indexes:        map[string]flatindex.Index{},
	}
}

// RegisterFileID binds this table to the 4-byte file identifier that routes
// records to it.
func (t *TableStore) RegisterFileID(fileID [4]byte) {
	t.fileID = fileID
	t.hasFileID = true
}

func (t *TableStore) FileID() ([4]byte, bool) {
	return t.fileID, t.hasFileID
}

// SetExtractor registers the per-record field extractor. It may be called
// after records have already been ingested, but it is not retroactive:
// OnIngest skips records that arrive while no extractor is set, so they get
// no index entries, and DeclareIndex replaces an index with a new empty one
// rather than back-filling it. MaterializeColumn uses whichever extractor is
// set at the time it runs.
func (t *TableStore) SetExtractor(extractor flatextract.Extractor) {
	t.extractor = extractor
}

// DeclareIndex creates the empty index for columnName, keyed by keyType.
func (t *TableStore) DeclareIndex(columnName string, keyType flatvalue.Kind) error {
	idx, err := t.indexFactory(t.tableName, columnName, keyType)
	if err != nil {
		return fmt.Errorf("flattable: declare index %s.%s: %w", t.tableName, columnName, err)
	}
	t.indexedColumns[columnName] = keyType
	t.indexes[columnName] = idx
	return nil
}

// OnIngest is invoked once per record routed to this table. For each
// declared index it invokes the extractor and inserts the resulting value,
// Null included (dense indexing is the reference policy: see spec §3.5).
func (t *TableStore) OnIngest(payload []byte, sequence, offset uint64) {
	if t.extractor == nil || len(t.indexedColumns) == 0 {
		return
	}
	length := uint32(len(payload))
	for column, idx := range t.indexes {
		value := t.extractor.Extract(payload, column)
		idx.Insert(value, offset, length, sequence)
	}
}

// MaterializeColumn invokes the extractor against a zero-copy record slice
// to produce one column's value, the lazy path the virtual-table bridge uses
// for every real (non-hidden) column it projects or filters on.
func (t *TableStore) MaterializeColumn(offset uint64, length uint32, columnName string) flatvalue.Value {
	if t.extractor == nil {
		return flatvalue.Null
	}
	payload := t.log.ReadAtOffset(offset, length)
	return t.extractor.Extract(payload, columnName)
}

func (t *TableStore) index(columnName string) (flatindex.Index, error) {
	idx, ok := t.indexes[columnName]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrColumnNotIndexed, t.tableName, columnName)
	}
	return idx, nil
}

func (t *TableStore) entryToRecord(entry flatindex.Entry) flatlog.StoredRecord {
	rec, _ := t.log.ReadBySequence(entry.Sequence)
	return rec
}

// FindByIndex materializes every record whose columnName value equals key.
func (t *TableStore) FindByIndex(columnName string, key flatvalue.Value) ([]flatlog.StoredRecord, error) {
	idx, err := t.index(columnName)
	if err != nil {
		return nil, err
	}
	entries := idx.SearchAll(key)
	out := make([]flatlog.StoredRecord, 0, len(entries))
	for _, e := range entries {
		out = append(out, t.entryToRecord(e))
	}
	return out, nil
}

// FindOneByIndex materializes the first matching record only.
func (t *TableStore) FindOneByIndex(columnName string, key flatvalue.Value) (flatlog.StoredRecord, bool, error) {
	idx, err := t.index(columnName)
	if err != nil {
		return flatlog.StoredRecord{}, false, err
	}
	entry, ok := idx.SearchFirst(key)
	if !ok {
		return flatlog.StoredRecord{}, false, nil
	}
	return t.entryToRecord(entry), true, nil
}

// FindRawByIndex is the zero-copy variant: it returns the raw log entries
// without materializing a StoredRecord copy for each.
func (t *TableStore) FindRawByIndex(columnName string, key flatvalue.Value) ([]flatindex.Entry, error) {
	idx, err := t.index(columnName)
	if err != nil {
		return nil, err
	}
	return idx.SearchAll(key), nil
}

// RangeByIndex returns every record with min <= key <= max on columnName.
func (t *TableStore) RangeByIndex(columnName string, min, max flatvalue.Value) ([]flatindex.Entry, error) {
	idx, err := t.index(columnName)
	if err != nil {
		return nil, err
	}
	return idx.RangeSearch(min, max), nil
}

// RangeFromByIndex returns every record with key >= min on columnName.
func (t *TableStore) RangeFromByIndex(columnName string, min flatvalue.Value) ([]flatindex.Entry, error) {
	idx, err := t.index(columnName)
	if err != nil {
		return nil, err
	}
	return idx.RangeFrom(min), nil
}

// RangeToByIndex returns every record with key <= max on columnName.
func (t *TableStore) RangeToByIndex(columnName string, max flatvalue.Value) ([]flatindex.Entry, error) {
	idx, err := t.index(columnName)
	if err != nil {
		return nil, err
	}
	return idx.RangeTo(max), nil
}

// ReadAtOffset returns a zero-copy pointer into the shared log's internal
// buffer, for callers (the virtual-table bridge) materializing hidden
// columns or extractor input directly from an index entry.
func (t *TableStore) ReadAtOffset(offset uint64, length uint32) []byte {
	return t.log.ReadAtOffset(offset, length)
}

// ScanRefs returns every ref in this table's file-id bucket in insertion
// order, without resolving payloads, the zero-copy scan fallback the
// virtual-table bridge uses when no index is chosen.
func (t *TableStore) ScanRefs() []flatlog.Ref {
	if !t.hasFileID {
		return nil
	}
	var out []flatlog.Ref
	t.log.IterateAllRefs(t.fileID, func(ref flatlog.Ref) bool {
		out = append(out, ref)
		return true
	})
	return out
}

// ClearIndexes empties every declared index without touching the log,
// the reset step LoadAndRebuild performs before replaying records.
func (t *TableStore) ClearIndexes() {
	for _, idx := range t.indexes {
		idx.Clear()
	}
}

// IterateAll walks the log via this table's file-id bucket in insertion
// order. callback may halt iteration by returning false.
func (t *TableStore) IterateAll(callback func(rec flatlog.StoredRecord) bool) {
	if !t.hasFileID {
		return
	}
	t.log.IterateByFileID(t.fileID, func(ref flatlog.Ref, payload []byte) bool {
		data := make([]byte, len(payload))
		copy(data, payload)
		return callback(flatlog.StoredRecord{
			FileID:   t.fileID,
			Sequence: ref.Sequence,
			Offset:   ref.Offset,
			Data:     data,
		})
	})
}

// GetStats reports the table's current extent.
func (t *TableStore) GetStats() Stats {
	count := 0
	if t.hasFileID {
		count = t.log.RecordCountByFileID(t.fileID)
	}
	names := make([]string, 0, len(t.indexedColumns))
	for col := range t.indexedColumns {
		names = append(names, col)
	}
	return Stats{RecordCount: count, Indexes: names}
}

// IndexKind reports whether columnName is declared indexed and, if so, its
// key kind.
func (t *TableStore) IndexKind(columnName string) (flatvalue.Kind, bool) {
	kind, ok := t.indexedColumns[columnName]
	return kind, ok
}

// Name returns the table's name.
func (t *TableStore) Name() string {
	return t.tableName
}
