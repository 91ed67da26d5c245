package flatsql

import (
	"encoding/binary"
	"testing"

	. "github.com/fulldump/biff"

	"github.com/flatsql/flatsql/flatextract"
	"github.com/flatsql/flatsql/flatvalue"
)

const testSchema = `
TABLE User FILEID=USER
  id INT64 INDEX
  age INT64 INDEX
END
TABLE Post FILEID=POST
  id INT64
  user_id INT64 INDEX
END
`

// buildRecord constructs a synthetic payload: fileID at [4:8), a primary
// int64 "id" column at [8:16), and one more int64 column (age or user_id,
// depending on the table) at [16:24).
func buildRecord(fileID string, id, second int64) []byte {
	payload := make([]byte, 24)
	copy(payload[4:8], fileID)
	binary.LittleEndian.PutUint64(payload[8:16], uint64(id))
	binary.LittleEndian.PutUint64(payload[16:24], uint64(second))
	return payload
}

func frameRecord(payload []byte) []byte {
	framed := make([]byte, 4+len(payload))
	binary.LittleEndian.PutUint32(framed, uint32(len(payload)))
	copy(framed[4:], payload)
	return framed
}

var testExtractor = flatextract.ExtractorFunc(func(data []byte, columnName string) flatvalue.Value {
	if len(data) < 24 {
		return flatvalue.Null
	}
	switch columnName {
	case "id":
		return flatvalue.NewInt64(int64(binary.LittleEndian.Uint64(data[8:16])))
	case "age", "user_id":
		return flatvalue.NewInt64(int64(binary.LittleEndian.Uint64(data[16:24])))
	}
	return flatvalue.Null
})

func newTestDatabase(t *testing.T) *Database {
	db, err := FromSchema(testSchema, "test")
	AssertNil(err)
	AssertNil(db.SetFieldExtractor("User", testExtractor))
	AssertNil(db.SetFieldExtractor("Post", testExtractor))
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDatabase_FramingRoundTrip(t *testing.T) {
	db := newTestDatabase(t)

	var batch []byte
	for i := int64(1); i <= 3; i++ {
		batch = append(batch, frameRecord(buildRecord("USER", i, i*10))...)
	}

	consumed, processed := db.Ingest(batch)
	AssertEqual(consumed, len(batch))
	AssertEqual(processed, 3)

	result, err := db.Query("SELECT COUNT(*) FROM User")
	AssertNil(err)
	AssertEqual(len(result.Rows), 1)
	AssertEqual(result.Rows[0][0], int64(3))
}

func TestDatabase_PartialFrame(t *testing.T) {
	db := newTestDatabase(t)

	full := frameRecord(buildRecord("USER", 1, 20))

	consumed, processed := db.Ingest(full[:3])
	AssertEqual(consumed, 0)
	AssertEqual(processed, 0)

	consumed, processed = db.Ingest(full[:4])
	AssertEqual(consumed, 0)
	AssertEqual(processed, 0)

	consumed, processed = db.Ingest(full)
	AssertEqual(consumed, len(full))
	AssertEqual(processed, 1)
}

func TestDatabase_PointQueryFastPath(t *testing.T) {
	db := newTestDatabase(t)

	var batch []byte
	for i := int64(0); i < 10000; i++ {
		batch = append(batch, frameRecord(buildRecord("USER", i, i%100))...)
	}
	consumed, processed := db.Ingest(batch)
	AssertEqual(consumed, len(batch))
	AssertEqual(processed, 10000)

	result, err := db.Query("SELECT id FROM User WHERE id = ?", int64(5000))
	AssertNil(err)
	AssertEqual(len(result.Rows), 1)
	AssertEqual(result.Rows[0][0], int64(5000))

	result, err = db.Query("SELECT id FROM User WHERE id = ?", int64(99999))
	AssertNil(err)
	AssertEqual(len(result.Rows), 0)
}

func TestDatabase_RangeQueryOnIndexedColumn(t *testing.T) {
	db := newTestDatabase(t)

	var batch []byte
	for i := int64(0); i < 100; i++ {
		batch = append(batch, frameRecord(buildRecord("USER", i, i))...)
	}
	db.Ingest(batch)

	result, err := db.Query("SELECT COUNT(*) FROM User WHERE age BETWEEN ? AND ?", int64(45), int64(55))
	AssertNil(err)
	AssertEqual(result.Rows[0][0], int64(11))
}

func TestDatabase_NonUniqueIndex(t *testing.T) {
	db := newTestDatabase(t)

	var batch []byte
	for u := int64(0); u < 10; u++ {
		for k := int64(0); k < 5; k++ {
			id := u*5 + k
			batch = append(batch, frameRecord(buildRecord("POST", id, u))...)
		}
	}
	db.Ingest(batch)

	result, err := db.Query("SELECT id FROM Post WHERE user_id = ? ORDER BY id", int64(3))
	AssertNil(err)
	AssertEqual(len(result.Rows), 5)
	expected := []int64{15, 16, 17, 18, 19}
	for i, row := range result.Rows {
		AssertEqual(row[0], expected[i])
	}
}

func TestDatabase_ExportAndLoadAndRebuild(t *testing.T) {
	db := newTestDatabase(t)

	var batch []byte
	for i := int64(0); i < 50; i++ {
		batch = append(batch, frameRecord(buildRecord("USER", i, i*2))...)
	}
	db.Ingest(batch)

	exported := db.ExportData()

	fresh := newTestDatabase(t)
	err := fresh.LoadAndRebuild(exported)
	AssertNil(err)

	before, err := db.Query("SELECT id FROM User WHERE id = ?", int64(25))
	AssertNil(err)
	after, err := fresh.Query("SELECT id FROM User WHERE id = ?", int64(25))
	AssertNil(err)
	AssertEqual(len(before.Rows), len(after.Rows))
	AssertEqual(before.Rows[0][0], after.Rows[0][0])
}

func TestDatabase_HiddenColumns(t *testing.T) {
	db := newTestDatabase(t)
	db.Ingest(frameRecord(buildRecord("USER", 1, 99)))

	result, err := db.Query("SELECT _rowid, _source FROM User WHERE id = ?", int64(1))
	AssertNil(err)
	AssertEqual(len(result.Rows), 1)
	AssertEqual(result.Rows[0][0], int64(1))
	AssertEqual(result.Rows[0][1], "User")
}

func TestDatabase_TableNotFound(t *testing.T) {
	db := newTestDatabase(t)
	_, err := db.FindByIndex("Nonexistent", "id", flatvalue.NewInt64(1))
	AssertNotNil(err)
}

func TestDatabase_ListTablesAndStats(t *testing.T) {
	db := newTestDatabase(t)
	db.Ingest(frameRecord(buildRecord("USER", 1, 10)))

	tables := db.ListTables()
	AssertEqual(len(tables), 2)

	stats := db.GetStats()
	AssertEqual(stats["User"].RecordCount, 1)
}
