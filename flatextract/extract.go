// Package flatextract defines the host-supplied field extractor contract:
// given a raw record pointer/length and a column name, produce that
// column's cell value.
package flatextract

import (
	"database/sql/driver"

	"github.com/flatsql/flatsql/flatvalue"
)

// Extractor resolves one column's value from a raw record slice. It MUST be
// pure with respect to its inputs (no side effects) and MUST NOT retain data
// beyond the call, since the slice is a zero-copy borrow into the log's
// internal buffer.
type Extractor interface {
	Extract(data []byte, columnName string) flatvalue.Value
}

// ExtractorFunc adapts a plain function to an Extractor.
type ExtractorFunc func(data []byte, columnName string) flatvalue.Value

func (f ExtractorFunc) Extract(data []byte, columnName string) flatvalue.Value {
	return f(data, columnName)
}

// BatchExtractor fills every declared column in a single dispatch, the
// performance-sensitive path for wide rows where per-column extraction would
// repeat the same FlatBuffer table lookup.
type BatchExtractor interface {
	ExtractAll(data []byte, output map[string]flatvalue.Value)
}

// TypedExtractor writes a column's value directly into the shape
// database/sql/driver.Value accepts, skipping the flatvalue.Value boxing
// step. Nothing in this module calls it: flatvtab.Cursor.Column always
// materializes columns through Extractor.Extract.
type TypedExtractor interface {
	ExtractTyped(data []byte, columnName string) driver.Value
}
