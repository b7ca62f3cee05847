package column

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the concrete type stored in a Value.
type Kind uint8

const (
	// KindInvalid represents an invalid kind.
	KindInvalid Kind = iota
	// KindNull represents a null/blank cell.
	KindNull
	// KindString represents a string cell.
	KindString
	// KindNumber represents a numeric cell.
	KindNumber
	// KindDateTime represents a date/time cell.
	KindDateTime
	// KindBool represents a boolean cell.
	KindBool
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindString:
		return "String"
	case KindNumber:
		return "Number"
	case KindDateTime:
		return "DateTime"
	case KindBool:
		return "Bool"
	default:
		return "Invalid"
	}
}

// Value is a small typed cell value used for predicates and the value cache.
//
// The representation is designed to make filtering fast and predictable:
// no reflection and no fmt-based stringification. The type of a cell is
// decided once per column by inference, not per value.
type Value struct {
	Kind Kind
	F64  float64
	s    string
	T    time.Time
	B    bool
}

// Null returns a null Value.
func Null() Value { return Value{Kind: KindNull} }

// String returns a string Value.
func String(v string) Value { return Value{Kind: KindString, s: v} }

// Number returns a numeric Value.
func Number(v float64) Value { return Value{Kind: KindNumber, F64: v} }

// DateTime returns a date/time Value. The time is normalized to UTC so that
// equal instants compare and key identically regardless of source location.
func DateTime(v time.Time) Value { return Value{Kind: KindDateTime, T: v.UTC()} }

// Bool returns a boolean Value.
func Bool(v bool) Value { return Value{Kind: KindBool, B: v} }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// IsEmpty reports whether the value is null or an empty string.
func (v Value) IsEmpty() bool {
	return v.Kind == KindNull || (v.Kind == KindString && v.s == "")
}

// StringValue returns the string value if Kind is KindString, otherwise
// an empty string.
func (v Value) StringValue() string {
	if v.Kind == KindString {
		return v.s
	}
	return ""
}

// AsString returns the string value if Kind is KindString.
func (v Value) AsString() (string, bool) {
	if v.Kind != KindString {
		return "", false
	}
	return v.s, true
}

// AsNumber returns the numeric value if Kind is KindNumber.
func (v Value) AsNumber() (float64, bool) {
	if v.Kind != KindNumber {
		return 0, false
	}
	return v.F64, true
}

// AsTime returns the time value if Kind is KindDateTime.
func (v Value) AsTime() (time.Time, bool) {
	if v.Kind != KindDateTime {
		return time.Time{}, false
	}
	return v.T, true
}

// AsBool returns the boolean value if Kind is KindBool.
func (v Value) AsBool() (bool, bool) {
	if v.Kind != KindBool {
		return false, false
	}
	return v.B, true
}

// Key returns a stable string representation for use in maps.
//
// It is intended for internal indexing (distinct-value counts, selection
// sets) and must stay stable across versions.
func (v Value) Key() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindString:
		return "s:" + v.s
	case KindNumber:
		return "n:" + strconv.FormatUint(math.Float64bits(v.F64), 16)
	case KindDateTime:
		return "d:" + strconv.FormatInt(v.T.UnixNano(), 10)
	case KindBool:
		if v.B {
			return "b:1"
		}
		return "b:0"
	default:
		return "invalid"
	}
}

// Display returns a human-readable rendering of the value, used for
// optimizer reasons and filter summaries.
func (v Value) Display() string {
	switch v.Kind {
	case KindNull:
		return "(blank)"
	case KindString:
		return v.s
	case KindNumber:
		return strconv.FormatFloat(v.F64, 'g', -1, 64)
	case KindDateTime:
		return v.T.Format(time.RFC3339)
	case KindBool:
		return strconv.FormatBool(v.B)
	default:
		return "(invalid)"
	}
}

// Equal reports whether two values are equal. Nulls equal only nulls.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNull:
		return true
	case KindString:
		return a.s == b.s
	case KindNumber:
		return a.F64 == b.F64
	case KindDateTime:
		return a.T.Equal(b.T)
	case KindBool:
		return a.B == b.B
	default:
		return false
	}
}

// Compare returns a total order over values: -1 if a < b, 0 if equal,
// +1 if a > b. Within a kind the natural order applies (numbers by value,
// strings lexicographic, datetimes chronological, false < true). Across
// kinds the kind tag orders, which keeps mixed columns sortable; null sorts
// first.
func Compare(a, b Value) int {
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	switch a.Kind {
	case KindString:
		return strings.Compare(a.s, b.s)
	case KindNumber:
		switch {
		case a.F64 < b.F64:
			return -1
		case a.F64 > b.F64:
			return 1
		default:
			return 0
		}
	case KindDateTime:
		return a.T.Compare(b.T)
	case KindBool:
		switch {
		case !a.B && b.B:
			return -1
		case a.B && !b.B:
			return 1
		default:
			return 0
		}
	default:
		return 0
	}
}
