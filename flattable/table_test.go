package flattable

import (
	"encoding/binary"
	"testing"

	. "github.com/fulldump/biff"

	"github.com/flatsql/flatsql/flatextract"
	"github.com/flatsql/flatsql/flatlog"
	"github.com/flatsql/flatsql/flatvalue"
)

// testRecord builds a fake payload: bytes [4:8) carry the file-id, bytes
// [8:16) carry an int64 "id" column, big enough to exercise the extractor
// without needing a real FlatBuffer.
func testRecord(fileID string, id int64) []byte {
	payload := make([]byte, 16)
	copy(payload[4:8], fileID)
	binary.LittleEndian.PutUint64(payload[8:16], uint64(id))
	return payload
}

var idExtractor = flatextract.ExtractorFunc(func(data []byte, columnName string) flatvalue.Value {
	if columnName != "id" {
		return flatvalue.Null
	}
	if len(data) < 16 {
		return flatvalue.Null
	}
	return flatvalue.NewInt64(int64(binary.LittleEndian.Uint64(data[8:16])))
})

func newTestTable(t *testing.T) (*flatlog.Log, *TableStore) {
	var fileID [4]byte
	copy(fileID[:], "USER")

	var store *TableStore
	log := flatlog.New(0, func(fid [4]byte, payload []byte, sequence, offset uint64) {
		if fid == fileID {
			store.OnIngest(payload, sequence, offset)
		}
	})

	store = New("User", log, nil)
	store.RegisterFileID(fileID)
	store.SetExtractor(idExtractor)
	err := store.DeclareIndex("id", flatvalue.KindInt64)
	AssertNil(err)

	return log, store
}

func TestTableStore_OnIngest_PopulatesIndex(t *testing.T) {
	_, store := newTestTable(t)
	log := store.log

	for i := int64(0); i < 10; i++ {
		log.IngestRaw(testRecord("USER", i))
	}

	rec, ok, err := store.FindOneByIndex("id", flatvalue.NewInt64(5))
	AssertNil(err)
	AssertTrue(ok)
	AssertEqual(rec.Sequence, uint64(6))
}

func TestTableStore_FindByIndex_NoMatch(t *testing.T) {
	_, store := newTestTable(t)
	log := store.log
	log.IngestRaw(testRecord("USER", 1))

	recs, err := store.FindByIndex("id", flatvalue.NewInt64(99999))
	AssertNil(err)
	AssertEqual(len(recs), 0)
}

func TestTableStore_FindByIndex_ColumnNotIndexed(t *testing.T) {
	_, store := newTestTable(t)
	_, err := store.FindByIndex("nonexistent", flatvalue.NewInt64(1))
	AssertNotNil(err)
}

func TestTableStore_IterateAll_InsertionOrder(t *testing.T) {
	_, store := newTestTable(t)
	log := store.log
	for i := int64(0); i < 5; i++ {
		log.IngestRaw(testRecord("USER", i))
	}

	var sequences []uint64
	store.IterateAll(func(rec flatlog.StoredRecord) bool {
		sequences = append(sequences, rec.Sequence)
		return true
	})

	AssertEqual(len(sequences), 5)
	for i, seq := range sequences {
		AssertEqual(seq, uint64(i+1))
	}
}

func TestTableStore_Stats(t *testing.T) {
	_, store := newTestTable(t)
	log := store.log
	log.IngestRaw(testRecord("USER", 1))
	log.IngestRaw(testRecord("USER", 2))

	stats := store.GetStats()
	AssertEqual(stats.RecordCount, 2)
	AssertEqual(len(stats.Indexes), 1)
}

func TestTableStore_MaterializeColumn(t *testing.T) {
	_, store := newTestTable(t)
	log := store.log
	log.IngestRaw(testRecord("USER", 77))

	entry, ok, err := store.FindOneByIndex("id", flatvalue.NewInt64(77))
	AssertNil(err)
	AssertTrue(ok)

	value := store.MaterializeColumn(entry.Offset, uint32(len(entry.Data)), "id")
	AssertEqual(value.Int, int64(77))
}
