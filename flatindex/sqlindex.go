package flatindex

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/flatsql/flatsql/flatvalue"
)

// SQLIndex backs an index with a real host SQL table, one
// _idx_{table}_{column} table per indexed column, mirroring the reference
// sqlite_index implementation almost line for line. It owns a dedicated
// *sql.DB connection distinct from whatever connection drives the virtual
// table bridge, because modernc.org/sqlite/vtab forbids issuing SQL on the
// same connection from inside a vtab callback, and a Filter that probed a
// SQLIndex sharing that connection would do exactly that.
type SQLIndex struct {
	db        *sql.DB
	tableName string
	keyKind   flatvalue.Kind

	insertStmt      *sql.Stmt
	searchStmt      *sql.Stmt
	searchFirstStmt *sql.Stmt
	rangeStmt       *sql.Stmt
	rangeFromStmt   *sql.Stmt
	rangeToStmt     *sql.Stmt
	allStmt         *sql.Stmt
	countStmt       *sql.Stmt
	clearStmt       *sql.Stmt
}

func sqliteAffinity(k flatvalue.Kind) string {
	switch k {
	case flatvalue.KindInt8, flatvalue.KindInt16, flatvalue.KindInt32, flatvalue.KindInt64,
		flatvalue.KindUint8, flatvalue.KindUint16, flatvalue.KindUint32, flatvalue.KindUint64,
		flatvalue.KindBool:
		return "INTEGER"
	case flatvalue.KindFloat32, flatvalue.KindFloat64:
		return "REAL"
	case flatvalue.KindString:
		return "TEXT"
	case flatvalue.KindBytes:
		return "BLOB"
	default:
		return "BLOB"
	}
}

// NewSQLIndex opens a new in-memory SQLite database dedicated to this index and prepares its statements. table and column name the
// owning TableStore column; keyKind picks the column's SQLite affinity.
func NewSQLIndex(table, column string, keyKind flatvalue.Kind) (*SQLIndex, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("%w: opening dedicated connection: %v", ErrInvalidBackend, err)
	}
	db.SetMaxOpenConns(1)

	indexTable := fmt.Sprintf("_idx_%s_%s", table, column)
	sqlType := sqliteAffinity(keyKind)

	createSQL := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS "%s" (
			key %s NOT NULL,
			data_offset INTEGER NOT NULL,
			data_length INTEGER NOT NULL,
			sequence INTEGER NOT NULL,
			PRIMARY KEY (key, sequence)
		) WITHOUT ROWID`, indexTable, sqlType)
	if _, err := db.Exec(createSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: creating %s: %v", ErrInvalidBackend, indexTable, err)
	}

	idx := &SQLIndex{db: db, tableName: indexTable, keyKind: keyKind}

	stmts := []struct {
		dst **sql.Stmt
		sql string
	}{
		{&idx.insertStmt, fmt.Sprintf(`INSERT INTO "%s" (key, data_offset, data_length, sequence) VALUES (?, ?, ?, ?)`, indexTable)},
		{&idx.searchStmt, fmt.Sprintf(`SELECT key, data_offset, data_length, sequence FROM "%s" WHERE key = ? ORDER BY sequence`, indexTable)},
		{&idx.searchFirstStmt, fmt.Sprintf(`SELECT key, data_offset, data_length, sequence FROM "%s" WHERE key = ? ORDER BY sequence LIMIT 1`, indexTable)},
		{&idx.rangeStmt, fmt.Sprintf(`SELECT key, data_offset, data_length, sequence FROM "%s" WHERE key >= ? AND key <= ? ORDER BY key, sequence`, indexTable)},
		{&idx.rangeFromStmt, fmt.Sprintf(`SELECT key, data_offset, data_length, sequence FROM "%s" WHERE key >= ? ORDER BY key, sequence`, indexTable)},
		{&idx.rangeToStmt, fmt.Sprintf(`SELECT key, data_offset, data_length, sequence FROM "%s" WHERE key <= ? ORDER BY key, sequence`, indexTable)},
		{&idx.allStmt, fmt.Sprintf(`SELECT key, data_offset, data_length, sequence FROM "%s" ORDER BY key, sequence`, indexTable)},
		{&idx.countStmt, fmt.Sprintf(`SELECT COUNT(*) FROM "%s"`, indexTable)},
		{&idx.clearStmt, fmt.Sprintf(`DELETE FROM "%s"`, indexTable)},
	}
	for _, s := range stmts {
		prepared, err := db.Prepare(s.sql)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: preparing %q: %v", ErrInvalidBackend, s.sql, err)
		}
		*s.dst = prepared
	}

	return idx, nil
}

// Close releases the dedicated connection and its prepared statements.
func (idx *SQLIndex) Close() error {
	return idx.db.Close()
}

func keyToSQLArg(key flatvalue.Value) interface{} {
	return flatvalue.ToDriverValue(key)
}

func (idx *SQLIndex) keyFromColumn(raw interface{}) flatvalue.Value {
	if raw == nil {
		return flatvalue.Null
	}
	switch idx.keyKind {
	case flatvalue.KindInt8, flatvalue.KindInt16, flatvalue.KindInt32, flatvalue.KindInt64:
		return flatvalue.NewInt64(raw.(int64))
	case flatvalue.KindUint8, flatvalue.KindUint16, flatvalue.KindUint32, flatvalue.KindUint64:
		return flatvalue.NewUint64(uint64(raw.(int64)))
	case flatvalue.KindBool:
		return flatvalue.NewBool(raw.(int64) != 0)
	case flatvalue.KindFloat32, flatvalue.KindFloat64:
		return flatvalue.NewFloat64(raw.(float64))
	case flatvalue.KindString:
		return flatvalue.NewString(raw.(string))
	case flatvalue.KindBytes:
		return flatvalue.NewBytes(raw.([]byte))
	default:
		return flatvalue.Null
	}
}

func (idx *SQLIndex) Insert(key flatvalue.Value, offset uint64, length uint32, sequence uint64) {
	_, err := idx.insertStmt.Exec(keyToSQLArg(key), int64(offset), int64(length), int64(sequence))
	if err != nil {
		panic(fmt.Errorf("%w: inserting into %s: %v", ErrCorrupted, idx.tableName, err))
	}
}

func (idx *SQLIndex) scanRows(rows *sql.Rows) []Entry {
	var out []Entry
	for rows.Next() {
		var key interface{}
		var offset, length, sequence int64
		if err := rows.Scan(&key, &offset, &length, &sequence); err != nil {
			panic(fmt.Errorf("%w: scanning row in %s: %v", ErrCorrupted, idx.tableName, err))
		}
		out = append(out, Entry{
			Key:        idx.keyFromColumn(key),
			DataOffset: uint64(offset),
			DataLength: uint32(length),
			Sequence:   uint64(sequence),
		})
	}
	return out
}

func (idx *SQLIndex) SearchAll(key flatvalue.Value) []Entry {
	rows, err := idx.searchStmt.Query(keyToSQLArg(key))
	if err != nil {
		panic(fmt.Errorf("%w: querying %s: %v", ErrCorrupted, idx.tableName, err))
	}
	defer rows.Close()
	return idx.scanRows(rows)
}

func (idx *SQLIndex) SearchFirst(key flatvalue.Value) (Entry, bool) {
	var rawKey interface{}
	var offset, length, sequence int64
	err := idx.searchFirstStmt.QueryRow(keyToSQLArg(key)).Scan(&rawKey, &offset, &length, &sequence)
	if err == sql.ErrNoRows {
		return Entry{}, false
	}
	if err != nil {
		panic(fmt.Errorf("%w: querying %s: %v", ErrCorrupted, idx.tableName, err))
	}
	return Entry{
		Key:        idx.keyFromColumn(rawKey),
		DataOffset: uint64(offset),
		DataLength: uint32(length),
		Sequence:   uint64(sequence),
	}, true
}

func (idx *SQLIndex) SearchFirstString(key string) (Entry, bool) {
	return idx.SearchFirst(flatvalue.NewString(key))
}

func (idx *SQLIndex) SearchFirstInt64(key int64) (Entry, bool) {
	return idx.SearchFirst(flatvalue.NewInt64(key))
}

func (idx *SQLIndex) RangeSearch(min, max flatvalue.Value) []Entry {
	rows, err := idx.rangeStmt.Query(keyToSQLArg(min), keyToSQLArg(max))
	if err != nil {
		panic(fmt.Errorf("%w: querying %s: %v", ErrCorrupted, idx.tableName, err))
	}
	defer rows.Close()
	return idx.scanRows(rows)
}

func (idx *SQLIndex) RangeFrom(min flatvalue.Value) []Entry {
	rows, err := idx.rangeFromStmt.Query(keyToSQLArg(min))
	if err != nil {
		panic(fmt.Errorf("%w: querying %s: %v", ErrCorrupted, idx.tableName, err))
	}
	defer rows.Close()
	return idx.scanRows(rows)
}

func (idx *SQLIndex) RangeTo(max flatvalue.Value) []Entry {
	rows, err := idx.rangeToStmt.Query(keyToSQLArg(max))
	if err != nil {
		panic(fmt.Errorf("%w: querying %s: %v", ErrCorrupted, idx.tableName, err))
	}
	defer rows.Close()
	return idx.scanRows(rows)
}

func (idx *SQLIndex) ScanAll() []Entry {
	rows, err := idx.allStmt.Query()
	if err != nil {
		panic(fmt.Errorf("%w: querying %s: %v", ErrCorrupted, idx.tableName, err))
	}
	defer rows.Close()
	return idx.scanRows(rows)
}

func (idx *SQLIndex) Clear() {
	if _, err := idx.clearStmt.Exec(); err != nil {
		panic(fmt.Errorf("%w: clearing %s: %v", ErrCorrupted, idx.tableName, err))
	}
}

func (idx *SQLIndex) EntryCount() uint64 {
	var count int64
	if err := idx.countStmt.QueryRow().Scan(&count); err != nil {
		panic(fmt.Errorf("%w: counting %s: %v", ErrCorrupted, idx.tableName, err))
	}
	return uint64(count)
}
