// Package flatsql is an embeddable, append-only query engine: it executes
// SQL over a stream of self-describing binary records, storing them
// verbatim and querying them in place with zero deserialization. SQL
// parsing, planning, and execution are delegated to a host SQL engine
// (modernc.org/sqlite) driven through its virtual-table extension point;
// this package owns the log, the per-table indexes, and the bridge between
// the two.
package flatsql

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
	"modernc.org/sqlite/vtab"

	"github.com/flatsql/flatsql/flatextract"
	"github.com/flatsql/flatsql/flatindex"
	"github.com/flatsql/flatsql/flatlog"
	"github.com/flatsql/flatsql/flattable"
	"github.com/flatsql/flatsql/flatvalue"
	"github.com/flatsql/flatsql/flatvtab"
)

// Stats mirrors flattable.Stats for the top-level getStats() surface.
type Stats = flattable.Stats

// QueryResult is the {columns, rows} shape query() returns.
type QueryResult struct {
	Columns []string
	Rows    [][]interface{}
}

// Database owns the host SQL connection, every declared TableStore, the
// shared Log they're all slices of, and the fileID -> table routing table.
// A Database is not safe for concurrent use (spec §5): callers serialize
// their own access.
type Database struct {
	name      string
	sqlDB     *sql.DB
	module    *flatvtab.Module
	moduleTag string

	log           *flatlog.Log
	tables        map[string]*flattable.TableStore
	order         []string
	fileIDToTable map[[4]byte]string
}

// FromSchema parses schemaText (see parseSchema) and builds a Database
// bound to name: one TableStore per declared table, one declared index per
// column marked INDEX, and the shared log wired so that onCommit routes
// every record to its table by file-id.
func FromSchema(schemaText string, name string) (*Database, error) {
	tableDefs, err := parseSchema(schemaText)
	if err != nil {
		return nil, err
	}

	db := &Database{
		name:          name,
		tables:        map[string]*flattable.TableStore{},
		fileIDToTable: map[[4]byte]string{},
	}

	db.log = flatlog.New(0, db.onCommit)

	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("%w: open host engine: %v", ErrInternal, err)
	}
	db.sqlDB = sqlDB

	// Each Database gets a uniquely-named vtab module: modernc.org/sqlite's
	// registration is process-global by name, and two Databases in the same
	// process must not collide.
	db.moduleTag = "flatsql_" + uuid.New().String()
	db.module = flatvtab.NewModule()
	if err := vtab.RegisterModule(db.sqlDB, db.moduleTag, db.module); err != nil {
		return nil, fmt.Errorf("%w: register virtual table module: %v", ErrInternal, err)
	}

	for _, td := range tableDefs {
		store := flattable.New(td.name, db.log, flattable.BTreeIndexFactory)
		store.RegisterFileID(td.fileID)

		columns := make([]string, 0, len(td.columns))
		for _, c := range td.columns {
			columns = append(columns, c.name)
			if c.indexed {
				if err := store.DeclareIndex(c.name, c.kind); err != nil {
					return nil, fmt.Errorf("%w: %v", ErrInternal, err)
				}
			}
		}

		db.tables[td.name] = store
		db.order = append(db.order, td.name)
		db.fileIDToTable[td.fileID] = td.name
		db.module.Declare(td.name, store, columns)

		stmt := fmt.Sprintf(`CREATE VIRTUAL TABLE %q USING %q()`, td.name, db.moduleTag)
		if _, err := db.sqlDB.Exec(stmt); err != nil {
			return nil, fmt.Errorf("%w: declare virtual table %s: %v", ErrInternal, td.name, err)
		}
	}

	return db, nil
}

// onCommit is the Log callback: it routes a committed record to its
// TableStore by file-id, silently dropping records whose file-id has no
// mapping (spec §7's UnknownFileId absorption policy).
func (db *Database) onCommit(fileID [4]byte, payload []byte, sequence, offset uint64) {
	tableName, ok := db.fileIDToTable[fileID]
	if !ok {
		return
	}
	store := db.tables[tableName]
	store.OnIngest(payload, sequence, offset)
}

// RegisterFileID adds (or replaces) the routing entry mapping fileID to an
// already-declared table.
func (db *Database) RegisterFileID(fileID [4]byte, tableName string) error {
	if _, ok := db.tables[tableName]; !ok {
		return fmt.Errorf("%w: %s", ErrTableNotFound, tableName)
	}
	db.fileIDToTable[fileID] = tableName
	db.tables[tableName].RegisterFileID(fileID)
	return nil
}

// SetFieldExtractor registers the per-record field extractor for tableName.
// Per the lazy-extractor policy (DESIGN.md Open Question 3) this may be
// called after records have already been ingested.
func (db *Database) SetFieldExtractor(tableName string, extractor flatextract.Extractor) error {
	store, ok := db.tables[tableName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTableNotFound, tableName)
	}
	store.SetExtractor(extractor)
	return nil
}

// Ingest consumes zero or more complete frames from the front of data,
// routing each committed record to its table via the shared log's commit
// callback. See flatlog.Log.IngestBatch for the partial-frame contract.
func (db *Database) Ingest(data []byte) (bytesConsumed int, recordsProcessed int) {
	return db.log.IngestBatch(data)
}

// IngestOne consumes exactly one framed record.
func (db *Database) IngestOne(data []byte) (uint64, error) {
	seq, err := db.log.IngestOneFramed(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return seq, nil
}

// Query passes sqlText through to the host SQL engine, which drives the
// virtual-table bridge for every declared table referenced.
func (db *Database) Query(sqlText string, bindings ...interface{}) (*QueryResult, error) {
	rows, err := db.sqlDB.Query(sqlText, bindings...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: columns: %v", ErrQuery, err)
	}

	result := &QueryResult{Columns: columns}
	for rows.Next() {
		cells := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrQuery, err)
		}
		result.Rows = append(result.Rows, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	return result, nil
}

func (db *Database) store(tableName string) (*flattable.TableStore, error) {
	store, ok := db.tables[tableName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, tableName)
	}
	return store, nil
}

// FindByIndex materializes every record of tableName whose columnName value
// equals key.
func (db *Database) FindByIndex(tableName, columnName string, key flatvalue.Value) ([]flatlog.StoredRecord, error) {
	store, err := db.store(tableName)
	if err != nil {
		return nil, err
	}
	return store.FindByIndex(columnName, key)
}

// FindOneByIndex materializes the first matching record only.
func (db *Database) FindOneByIndex(tableName, columnName string, key flatvalue.Value) (flatlog.StoredRecord, bool, error) {
	store, err := db.store(tableName)
	if err != nil {
		return flatlog.StoredRecord{}, false, err
	}
	return store.FindOneByIndex(columnName, key)
}

// FindRawByIndex is the zero-copy variant.
func (db *Database) FindRawByIndex(tableName, columnName string, key flatvalue.Value) ([]flatindex.Entry, error) {
	store, err := db.store(tableName)
	if err != nil {
		return nil, err
	}
	return store.FindRawByIndex(columnName, key)
}

// IterateAll walks tableName's log slice via its file-id bucket in
// insertion order. callback may halt iteration by returning false.
func (db *Database) IterateAll(tableName string, callback func(flatlog.StoredRecord) bool) error {
	store, err := db.store(tableName)
	if err != nil {
		return err
	}
	store.IterateAll(callback)
	return nil
}

// ExportData returns the log's live prefix as an opaque blob.
func (db *Database) ExportData() []byte {
	return db.log.ExportData()
}

// LoadAndRebuild clears every table's indexes, resets the log, and replays
// blob through the same ingest pipeline so indexes reconstruct themselves.
func (db *Database) LoadAndRebuild(blob []byte) error {
	for _, store := range db.tables {
		store.ClearIndexes()
	}
	if _, err := db.log.LoadAndRebuild(blob); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return nil
}

// ListTables returns every declared table name in schema declaration order.
func (db *Database) ListTables() []string {
	out := make([]string, len(db.order))
	copy(out, db.order)
	return out
}

// GetStats reports every table's current extent, keyed by table name.
func (db *Database) GetStats() map[string]Stats {
	out := make(map[string]Stats, len(db.tables))
	for name, store := range db.tables {
		out[name] = store.GetStats()
	}
	return out
}

// Close releases the host SQL connection. The log buffer, index nodes, and
// every TableStore are released as a unit when the Database is dropped.
func (db *Database) Close() error {
	return db.sqlDB.Close()
}
