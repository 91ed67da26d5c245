// Package flatvalue implements the tagged cell value used throughout FlatSQL:
// the thing an extractor returns, an index key is built from, and a row
// column resolves to.
package flatvalue

import "bytes"

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindString
	KindBytes
)

// Value is a tagged union of the scalar/string/bytes cell values FlatSQL
// extractors produce. Only the field matching Kind is meaningful.
type Value struct {
	Kind  Kind
	Bool  bool
	Int   int64   // holds Int8/Int16/Int32/Int64
	Uint  uint64  // holds Uint8/Uint16/Uint32/Uint64
	Float float64 // holds Float32/Float64
	Str   string
	Bytes []byte
}

// Null is the canonical null Value.
var Null = Value{Kind: KindNull}

func NewBool(b bool) Value   { return Value{Kind: KindBool, Bool: b} }
func NewInt8(v int8) Value   { return Value{Kind: KindInt8, Int: int64(v)} }
func NewInt16(v int16) Value { return Value{Kind: KindInt16, Int: int64(v)} }
func NewInt32(v int32) Value { return Value{Kind: KindInt32, Int: int64(v)} }
func NewInt64(v int64) Value { return Value{Kind: KindInt64, Int: v} }

func NewUint8(v uint8) Value   { return Value{Kind: KindUint8, Uint: uint64(v)} }
func NewUint16(v uint16) Value { return Value{Kind: KindUint16, Uint: uint64(v)} }
func NewUint32(v uint32) Value { return Value{Kind: KindUint32, Uint: uint64(v)} }
func NewUint64(v uint64) Value { return Value{Kind: KindUint64, Uint: v} }

func NewFloat32(v float32) Value { return Value{Kind: KindFloat32, Float: float64(v)} }
func NewFloat64(v float64) Value { return Value{Kind: KindFloat64, Float: v} }

func NewString(s string) Value { return Value{Kind: KindString, Str: s} }
func NewBytes(b []byte) Value  { return Value{Kind: KindBytes, Bytes: b} }

func (v Value) IsNull() bool { return v.Kind == KindNull }

func isIntKind(k Kind) bool {
	switch k {
	case KindInt8, KindInt16, KindInt32, KindInt64, KindUint8, KindUint16, KindUint32, KindUint64:
		return true
	}
	return false
}

func isNumericKind(k Kind) bool {
	return isIntKind(k) || k == KindFloat32 || k == KindFloat64
}

// asInt64 returns the value as a signed 64-bit integer. Unsigned values
// above the signed range wrap, matching the accepted limitation in the
// comparison contract.
func (v Value) asInt64() int64 {
	if v.Kind == KindUint8 || v.Kind == KindUint16 || v.Kind == KindUint32 || v.Kind == KindUint64 {
		return int64(v.Uint)
	}
	return v.Int
}

func (v Value) asFloat64() float64 {
	switch v.Kind {
	case KindFloat32, KindFloat64:
		return v.Float
	case KindUint8, KindUint16, KindUint32, KindUint64:
		return float64(v.Uint)
	default:
		return float64(v.Int)
	}
}

// Compare implements the ordering contract from §3.1:
//  1. Null < every non-null; two nulls are equal.
//  2. Two integer variants compare as signed 64-bit.
//  3. Else, two numeric variants (mixed int/float) compare as double.
//  4. Else, two strings compare lexicographically over bytes.
//  5. Else, two byte sequences compare lexicographically, then by length.
//  6. Else, two bools: false < true.
//  7. Else, order by tag index, to keep the index total order consistent.
func Compare(a, b Value) int {
	if a.Kind == KindNull || b.Kind == KindNull {
		switch {
		case a.Kind == KindNull && b.Kind == KindNull:
			return 0
		case a.Kind == KindNull:
			return -1
		default:
			return 1
		}
	}

	if isIntKind(a.Kind) && isIntKind(b.Kind) {
		ai, bi := a.asInt64(), b.asInt64()
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			return 0
		}
	}

	if isNumericKind(a.Kind) && isNumericKind(b.Kind) {
		af, bf := a.asFloat64(), b.asFloat64()
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}

	if a.Kind == KindString && b.Kind == KindString {
		return bytes.Compare([]byte(a.Str), []byte(b.Str))
	}

	if a.Kind == KindBytes && b.Kind == KindBytes {
		minLen := len(a.Bytes)
		if len(b.Bytes) < minLen {
			minLen = len(b.Bytes)
		}
		if c := bytes.Compare(a.Bytes[:minLen], b.Bytes[:minLen]); c != 0 {
			return c
		}
		switch {
		case len(a.Bytes) < len(b.Bytes):
			return -1
		case len(a.Bytes) > len(b.Bytes):
			return 1
		default:
			return 0
		}
	}

	if a.Kind == KindBool && b.Kind == KindBool {
		switch {
		case a.Bool == b.Bool:
			return 0
		case !a.Bool:
			return -1
		default:
			return 1
		}
	}

	if a.Kind < b.Kind {
		return -1
	}
	return 1
}

// Equal reports whether a and b compare equal under Compare.
func Equal(a, b Value) bool { return Compare(a, b) == 0 }

// Less reports a < b under Compare, the shape google/btree's less functions want.
func Less(a, b Value) bool { return Compare(a, b) < 0 }
