package rule

import (
	"sort"
	"strings"
	"time"

	"github.com/hupe1980/gridfilter/column"
	"github.com/hupe1980/gridfilter/valuecache"
)

// CompileOptions supplies the context a compilation needs beyond the tree
// itself.
type CompileOptions struct {
	// DataType is the inferred type of the filtered column.
	DataType column.DataType

	// Stats is the column's value-cache snapshot. Aggregate operators
	// (AboveAverage, Unique, TopN, ...) read it once at compile time, never
	// per row. Operators degrade to accept-all when Stats is nil.
	Stats *valuecache.Metadata

	// Now anchors relative date operators (Today, DateInterval). Defaults
	// to time.Now at compile time.
	Now time.Time
}

// Predicate is a compiled rule tree: a function over a single cell value.
type Predicate struct {
	eval       func(column.Value) bool
	hasCustom  bool
	conditions int
}

// Evaluate applies the predicate to one cell value.
func (p *Predicate) Evaluate(v column.Value) bool { return p.eval(v) }

// HasCustomExpression reports whether the compiled tree expresses a
// non-trivial filter (at least one meaningful condition).
func (p *Predicate) HasCustomExpression() bool { return p.hasCustom }

// ConditionCount returns the number of meaningful conditions compiled in.
func (p *Predicate) ConditionCount() int { return p.conditions }

type compiledTerm struct {
	join Join
	eval func(column.Value) bool
}

// combine folds terms left-to-right using each term's own join; the first
// term's join has no predecessor and is ignored.
func combine(terms []compiledTerm) func(column.Value) bool {
	return func(v column.Value) bool {
		res := terms[0].eval(v)
		for _, t := range terms[1:] {
			if t.join == JoinOr {
				res = res || t.eval(v)
			} else {
				res = res && t.eval(v)
			}
		}
		return res
	}
}

// Compile turns a rule tree into a Predicate.
//
// Non-meaningful conditions are skipped, never compiled. A tree with no
// meaningful condition compiles to an accept-all predicate whose
// HasCustomExpression is false.
func Compile(groups []ConditionGroup, opts CompileOptions) (*Predicate, error) {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	var groupTerms []compiledTerm
	conditions := 0
	for _, g := range groups {
		var condTerms []compiledTerm
		for _, c := range g.Conditions {
			if !c.Meaningful() {
				continue
			}
			eval, err := compileCondition(c, opts)
			if err != nil {
				return nil, err
			}
			condTerms = append(condTerms, compiledTerm{join: c.Join, eval: eval})
			conditions++
		}
		if len(condTerms) == 0 {
			continue
		}
		groupTerms = append(groupTerms, compiledTerm{join: g.Join, eval: combine(condTerms)})
	}

	if len(groupTerms) == 0 {
		return &Predicate{eval: func(column.Value) bool { return true }}, nil
	}
	return &Predicate{
		eval:       combine(groupTerms),
		hasCustom:  true,
		conditions: conditions,
	}, nil
}

// CompileCondition compiles a single condition, failing with
// ErrInvalidOperand when its required value slot is missing.
func CompileCondition(c Condition, opts CompileOptions) (func(column.Value) bool, error) {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	return compileCondition(c, opts)
}

func compileCondition(c Condition, opts CompileOptions) (func(column.Value) bool, error) {
	if !c.Meaningful() {
		return nil, &ErrInvalidOperand{Operator: c.Operator, Missing: missingSlot(c)}
	}

	switch c.Operator {
	case Contains:
		return compileSubstring(c.Value, strings.Contains, false), nil
	case DoesNotContain:
		return compileSubstring(c.Value, strings.Contains, true), nil
	case StartsWith:
		return compileSubstring(c.Value, strings.HasPrefix, false), nil
	case EndsWith:
		return compileSubstring(c.Value, strings.HasSuffix, false), nil

	case Equals:
		return func(v column.Value) bool { return valueEquals(v, c.Value) }, nil
	case DoesNotEqual:
		return func(v column.Value) bool { return !valueEquals(v, c.Value) }, nil

	case GreaterThan:
		return compileOrdering(c.Value, func(cmp int) bool { return cmp > 0 }), nil
	case GreaterThanOrEqual:
		return compileOrdering(c.Value, func(cmp int) bool { return cmp >= 0 }), nil
	case LessThan:
		return compileOrdering(c.Value, func(cmp int) bool { return cmp < 0 }), nil
	case LessThanOrEqual:
		return compileOrdering(c.Value, func(cmp int) bool { return cmp <= 0 }), nil

	case Between, BetweenDates:
		return compileBetween(c.Value, c.SecondaryValue, false), nil
	case NotBetween:
		return compileBetween(c.Value, c.SecondaryValue, true), nil

	case IsAnyOf:
		return compileSet(c.Values, false), nil
	case IsNoneOf:
		return compileSet(c.Values, true), nil
	case IsOnAnyOfDates:
		return compileDateSet(c.Values), nil

	case IsNull:
		return func(v column.Value) bool { return v.IsNull() }, nil
	case IsNotNull:
		return func(v column.Value) bool { return !v.IsNull() }, nil
	case IsEmpty:
		return func(v column.Value) bool { return v.IsEmpty() }, nil
	case IsNotEmpty:
		return func(v column.Value) bool { return !v.IsEmpty() }, nil

	case Today:
		return compileDay(opts.Now), nil
	case Yesterday:
		return compileDay(opts.Now.AddDate(0, 0, -1)), nil
	case DateInterval:
		start, end := intervalRange(IntervalKind(c.Value.StringValue()), opts.Now)
		return func(v column.Value) bool {
			t, ok := v.AsTime()
			return ok && !t.Before(start) && t.Before(end)
		}, nil

	case AboveAverage:
		return compileAverage(opts.Stats, func(f, avg float64) bool { return f > avg }), nil
	case BelowAverage:
		return compileAverage(opts.Stats, func(f, avg float64) bool { return f < avg }), nil

	case Unique:
		return compileMultiplicity(opts.Stats, func(n uint64) bool { return n == 1 }), nil
	case Duplicate:
		return compileMultiplicity(opts.Stats, func(n uint64) bool { return n > 1 }), nil

	case TopN:
		n, _ := c.positiveCount()
		return compileRank(opts.Stats, n, true), nil
	case BottomN:
		n, _ := c.positiveCount()
		return compileRank(opts.Stats, n, false), nil

	default:
		return nil, &ErrInvalidOperand{Operator: c.Operator, Missing: "operator unsupported"}
	}
}

// compileSubstring builds a case-insensitive string matcher. Non-string
// cells never match.
func compileSubstring(primary column.Value, match func(s, sub string) bool, negate bool) func(column.Value) bool {
	needle := strings.ToLower(primary.Display())
	return func(v column.Value) bool {
		s, ok := v.AsString()
		if !ok {
			return false
		}
		got := match(strings.ToLower(s), needle)
		if negate {
			return !got
		}
		return got
	}
}

// valueEquals compares a cell against an operand. Strings fold case; other
// kinds use strict typed equality.
func valueEquals(v, operand column.Value) bool {
	if v.Kind == column.KindString && operand.Kind == column.KindString {
		return strings.EqualFold(v.StringValue(), operand.StringValue())
	}
	return column.Equal(v, operand)
}

// compileOrdering builds a comparison matcher. Cells of a different kind
// than the operand (nulls included) never match.
func compileOrdering(primary column.Value, accept func(cmp int) bool) func(column.Value) bool {
	return func(v column.Value) bool {
		if v.Kind != primary.Kind {
			return false
		}
		return accept(column.Compare(v, primary))
	}
}

func compileBetween(lo, hi column.Value, negate bool) func(column.Value) bool {
	return func(v column.Value) bool {
		if v.Kind != lo.Kind || v.Kind != hi.Kind {
			return false
		}
		inside := column.Compare(v, lo) >= 0 && column.Compare(v, hi) <= 0
		if negate {
			return !inside
		}
		return inside
	}
}

// compileSet matches set membership by exact value identity, so a selection
// synchronized into IsAnyOf reproduces itself on evaluation.
func compileSet(values []column.Value, negate bool) func(column.Value) bool {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v.Key()] = struct{}{}
	}
	return func(v column.Value) bool {
		_, ok := set[v.Key()]
		if negate {
			return !ok
		}
		return ok
	}
}

func compileDateSet(values []column.Value) func(column.Value) bool {
	days := make(map[int64]struct{}, len(values))
	for _, v := range values {
		if t, ok := v.AsTime(); ok {
			days[dayKey(t)] = struct{}{}
		}
	}
	return func(v column.Value) bool {
		t, ok := v.AsTime()
		if !ok {
			return false
		}
		_, hit := days[dayKey(t)]
		return hit
	}
}

func compileDay(day time.Time) func(column.Value) bool {
	want := dayKey(day)
	return func(v column.Value) bool {
		t, ok := v.AsTime()
		return ok && dayKey(t) == want
	}
}

func dayKey(t time.Time) int64 {
	y, m, d := t.UTC().Date()
	return int64(y)*10000 + int64(m)*100 + int64(d)
}

// compileAverage snapshots the column mean at compile time. Without stats
// the condition degrades to accept-all rather than blocking filtering.
func compileAverage(stats *valuecache.Metadata, accept func(f, avg float64) bool) func(column.Value) bool {
	if stats == nil {
		return acceptAll
	}
	avg, ok := stats.Average()
	if !ok {
		return acceptAll
	}
	return func(v column.Value) bool {
		f, isNum := v.AsNumber()
		return isNum && accept(f, avg)
	}
}

func compileMultiplicity(stats *valuecache.Metadata, accept func(n uint64) bool) func(column.Value) bool {
	if stats == nil {
		return acceptAll
	}
	return func(v column.Value) bool {
		n := stats.Count(v)
		return n > 0 && accept(n)
	}
}

// compileRank matches the top (or bottom) n distinct orderable values. The
// rank threshold is fixed against the compile-time snapshot.
func compileRank(stats *valuecache.Metadata, n int, top bool) func(column.Value) bool {
	if stats == nil || n <= 0 {
		return acceptAll
	}
	var ordered []column.Value
	for _, agg := range stats.Values() {
		switch agg.Value.Kind {
		case column.KindNumber, column.KindDateTime:
			ordered = append(ordered, agg.Value)
		}
	}
	if len(ordered) == 0 {
		return acceptAll
	}
	sort.Slice(ordered, func(i, j int) bool {
		return column.Compare(ordered[i], ordered[j]) < 0
	})

	var threshold column.Value
	if top {
		idx := len(ordered) - n
		if idx < 0 {
			idx = 0
		}
		threshold = ordered[idx]
		return func(v column.Value) bool {
			if v.Kind != threshold.Kind {
				return false
			}
			return column.Compare(v, threshold) >= 0
		}
	}
	idx := n - 1
	if idx >= len(ordered) {
		idx = len(ordered) - 1
	}
	threshold = ordered[idx]
	return func(v column.Value) bool {
		if v.Kind != threshold.Kind {
			return false
		}
		return column.Compare(v, threshold) <= 0
	}
}

func acceptAll(column.Value) bool { return true }

// intervalRange resolves a relative interval kind to a half-open [start,
// end) range anchored at now. Weeks start on Monday; all math is in UTC.
func intervalRange(kind IntervalKind, now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	weekStart := day.AddDate(0, 0, 1-weekday)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	yearStart := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)

	switch kind {
	case IntervalThisWeek:
		return weekStart, weekStart.AddDate(0, 0, 7)
	case IntervalLastWeek:
		return weekStart.AddDate(0, 0, -7), weekStart
	case IntervalNextWeek:
		return weekStart.AddDate(0, 0, 7), weekStart.AddDate(0, 0, 14)
	case IntervalThisMonth:
		return monthStart, monthStart.AddDate(0, 1, 0)
	case IntervalLastMonth:
		return monthStart.AddDate(0, -1, 0), monthStart
	case IntervalNextMonth:
		return monthStart.AddDate(0, 1, 0), monthStart.AddDate(0, 2, 0)
	case IntervalThisYear:
		return yearStart, yearStart.AddDate(1, 0, 0)
	case IntervalLastYear:
		return yearStart.AddDate(-1, 0, 0), yearStart
	case IntervalNextYear:
		return yearStart.AddDate(1, 0, 0), yearStart.AddDate(2, 0, 0)
	case IntervalYearToDate:
		return yearStart, day.AddDate(0, 0, 1)
	default:
		// Unknown interval kinds match nothing.
		return time.Time{}, time.Time{}
	}
}
