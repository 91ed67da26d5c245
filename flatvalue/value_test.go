package flatvalue

import (
	"testing"

	. "github.com/fulldump/biff"
)

func TestCompare_NullOrdering(t *testing.T) {
	AssertEqual(Compare(Null, Null), 0)
	AssertEqual(Compare(Null, NewInt32(0)), -1)
	AssertEqual(Compare(NewInt32(0), Null), 1)
}

func TestCompare_IntegerCrossWidth(t *testing.T) {
	AssertEqual(Compare(NewInt32(5), NewInt64(5)), 0)
	AssertEqual(Compare(NewInt8(-1), NewUint32(1)), -1)
	AssertEqual(Compare(NewInt64(100), NewInt32(99)), 1)
}

func TestCompare_MixedNumeric(t *testing.T) {
	AssertEqual(Compare(NewInt32(2), NewFloat64(2.5)), -1)
	AssertEqual(Compare(NewFloat32(3), NewInt64(3)), 0)
}

func TestCompare_String(t *testing.T) {
	AssertEqual(Compare(NewString("abc"), NewString("abd")), -1)
	AssertEqual(Compare(NewString("abc"), NewString("abc")), 0)
}

func TestCompare_Bytes(t *testing.T) {
	AssertEqual(Compare(NewBytes([]byte{1, 2}), NewBytes([]byte{1, 2, 3})), -1)
	AssertEqual(Compare(NewBytes([]byte{1, 3}), NewBytes([]byte{1, 2, 9})), 1)
}

func TestCompare_Bool(t *testing.T) {
	AssertEqual(Compare(NewBool(false), NewBool(true)), -1)
	AssertEqual(Compare(NewBool(true), NewBool(true)), 0)
}

func TestCompare_UnrelatedTags(t *testing.T) {
	c := Compare(NewBool(true), NewString("true"))
	AssertTrue(c != 0)
	// Total order: comparing the same pair twice must agree.
	AssertEqual(Compare(NewBool(true), NewString("true")), c)
}

func TestLess_MatchesCompare(t *testing.T) {
	AssertTrue(Less(NewInt32(1), NewInt32(2)))
	AssertFalse(Less(NewInt32(2), NewInt32(1)))
}

func TestToDriverValue(t *testing.T) {
	AssertEqual(ToDriverValue(Null), nil)
	AssertEqual(ToDriverValue(NewInt32(7)), int64(7))
	AssertEqual(ToDriverValue(NewUint64(9)), int64(9))
	AssertEqual(ToDriverValue(NewFloat64(1.5)), float64(1.5))
	AssertEqual(ToDriverValue(NewString("x")), "x")
	AssertEqual(ToDriverValue(NewBool(true)), true)
}
