// Package rule provides the filter rule model: typed conditions grouped by
// AND/OR, and a compiler turning a rule tree into a predicate over a single
// cell value.
package rule

import "github.com/hupe1980/gridfilter/column"

// SearchType identifies the comparison operator of a condition.
type SearchType string

const (
	Contains           SearchType = "contains"
	DoesNotContain     SearchType = "doesNotContain"
	StartsWith         SearchType = "startsWith"
	EndsWith           SearchType = "endsWith"
	Equals             SearchType = "equals"
	DoesNotEqual       SearchType = "doesNotEqual"
	GreaterThan        SearchType = "greaterThan"
	GreaterThanOrEqual SearchType = "greaterThanOrEqual"
	LessThan           SearchType = "lessThan"
	LessThanOrEqual    SearchType = "lessThanOrEqual"
	Between            SearchType = "between"
	NotBetween         SearchType = "notBetween"
	IsAnyOf            SearchType = "isAnyOf"
	IsNoneOf           SearchType = "isNoneOf"
	IsNull             SearchType = "isNull"
	IsNotNull          SearchType = "isNotNull"
	IsEmpty            SearchType = "isEmpty"
	IsNotEmpty         SearchType = "isNotEmpty"
	Today              SearchType = "today"
	Yesterday          SearchType = "yesterday"
	BetweenDates       SearchType = "betweenDates"
	IsOnAnyOfDates     SearchType = "isOnAnyOfDates"
	DateInterval       SearchType = "dateInterval"
	AboveAverage       SearchType = "aboveAverage"
	BelowAverage       SearchType = "belowAverage"
	Unique             SearchType = "unique"
	Duplicate          SearchType = "duplicate"
	TopN               SearchType = "topN"
	BottomN            SearchType = "bottomN"
)

// operandKind classifies the value slots an operator requires. The
// meaningful-condition rules key off this classification.
type operandKind uint8

const (
	operandNone     operandKind = iota // no operand
	operandPrimary                     // primary value non-empty
	operandPair                        // primary and secondary both set
	operandSet                         // value set non-empty
	operandCount                       // primary parses as a positive integer
	operandInterval                    // primary holds an interval kind
)

func (st SearchType) operand() operandKind {
	switch st {
	case Contains, DoesNotContain, StartsWith, EndsWith, Equals, DoesNotEqual,
		GreaterThan, GreaterThanOrEqual, LessThan, LessThanOrEqual:
		return operandPrimary
	case Between, NotBetween, BetweenDates:
		return operandPair
	case IsAnyOf, IsNoneOf, IsOnAnyOfDates:
		return operandSet
	case TopN, BottomN:
		return operandCount
	case DateInterval:
		return operandInterval
	default:
		return operandNone
	}
}

// ValidFor reports whether the operator applies to a column data type.
// Unknown columns accept every operator; inference has not settled yet.
func (st SearchType) ValidFor(dt column.DataType) bool {
	if dt == column.TypeUnknown {
		return true
	}
	switch st {
	case Contains, DoesNotContain, StartsWith, EndsWith:
		return dt == column.TypeString || dt == column.TypeEnum
	case Today, Yesterday, BetweenDates, IsOnAnyOfDates, DateInterval:
		return dt == column.TypeDateTime
	case AboveAverage, BelowAverage:
		return dt == column.TypeNumber
	case TopN, BottomN, Between, NotBetween:
		return dt == column.TypeNumber || dt == column.TypeDateTime
	case GreaterThan, GreaterThanOrEqual, LessThan, LessThanOrEqual:
		return dt != column.TypeBoolean
	default:
		return true
	}
}

// IntervalKind names a relative date range for the DateInterval operator.
type IntervalKind string

const (
	IntervalLastWeek   IntervalKind = "lastWeek"
	IntervalThisWeek   IntervalKind = "thisWeek"
	IntervalNextWeek   IntervalKind = "nextWeek"
	IntervalLastMonth  IntervalKind = "lastMonth"
	IntervalThisMonth  IntervalKind = "thisMonth"
	IntervalNextMonth  IntervalKind = "nextMonth"
	IntervalLastYear   IntervalKind = "lastYear"
	IntervalThisYear   IntervalKind = "thisYear"
	IntervalNextYear   IntervalKind = "nextYear"
	IntervalYearToDate IntervalKind = "yearToDate"
)

// Join combines a condition (or group) with its predecessor.
type Join string

const (
	JoinAnd Join = "and"
	JoinOr  Join = "or"
)
