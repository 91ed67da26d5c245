package flatvalue

import "database/sql/driver"

// FromDriverValue converts a driver.Value bound argument (as SQLite hands
// constraint arguments to xFilter) back into a Value, using kind as a hint
// for which variant to reconstruct since driver.Value itself only carries
// int64/float64/bool/[]byte/string/nil.
func FromDriverValue(raw driver.Value, kind Kind) Value {
	if raw == nil {
		return Null
	}
	switch kind {
	case KindBool:
		switch v := raw.(type) {
		case bool:
			return NewBool(v)
		case int64:
			return NewBool(v != 0)
		}
	case KindInt8, KindInt16, KindInt32, KindInt64:
		if v, ok := raw.(int64); ok {
			return Value{Kind: kind, Int: v}
		}
	case KindUint8, KindUint16, KindUint32, KindUint64:
		if v, ok := raw.(int64); ok {
			return Value{Kind: kind, Uint: uint64(v)}
		}
	case KindFloat32, KindFloat64:
		if v, ok := raw.(float64); ok {
			return Value{Kind: kind, Float: v}
		}
	case KindString:
		if v, ok := raw.(string); ok {
			return NewString(v)
		}
	case KindBytes:
		if v, ok := raw.([]byte); ok {
			return NewBytes(v)
		}
	}
	// Fall back to whatever concrete type driver.Value actually carries.
	switch v := raw.(type) {
	case int64:
		return NewInt64(v)
	case float64:
		return NewFloat64(v)
	case bool:
		return NewBool(v)
	case string:
		return NewString(v)
	case []byte:
		return NewBytes(v)
	default:
		return Null
	}
}

// ToDriverValue converts a Value to one of the types database/sql/driver.Value
// accepts (int64, float64, bool, []byte, string, time.Time, nil). This is
// what flatvtab.Cursor.Column hands back to SQLite.
func ToDriverValue(v Value) driver.Value {
	switch v.Kind {
	case KindNull:
		return nil
	case KindBool:
		return v.Bool
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return v.Int
	case KindUint8, KindUint16, KindUint32, KindUint64:
		return int64(v.Uint)
	case KindFloat32, KindFloat64:
		return v.Float
	case KindString:
		return v.Str
	case KindBytes:
		return v.Bytes
	default:
		return nil
	}
}
