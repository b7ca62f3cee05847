package rule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hupe1980/gridfilter/column"
	"github.com/hupe1980/gridfilter/valuecache"
)

func compileOne(t *testing.T, c Condition, opts CompileOptions) *Predicate {
	t.Helper()
	p, err := Compile([]ConditionGroup{{Conditions: []Condition{c}}}, opts)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	return p
}

func numberStats(t *testing.T, values ...float64) *valuecache.Metadata {
	t.Helper()
	rows := make([]any, len(values))
	for i, f := range values {
		rows[i] = map[string]any{"X": f}
	}
	store := valuecache.NewStore(valuecache.StoreOptions{})
	md, err := store.Rebuild(context.Background(), "X", rows, column.MapAccessor())
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	return md
}

func TestCompileOperators(t *testing.T) {
	now := time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)
	today := column.DateTime(now.Add(2 * time.Hour))
	yesterday := column.DateTime(now.AddDate(0, 0, -1))
	lastYear := column.DateTime(now.AddDate(-1, 0, 0))

	tests := []struct {
		name string
		cond Condition
		in   column.Value
		want bool
	}{
		{"contains match", Condition{Operator: Contains, Value: column.String("app")}, column.String("Apple"), true},
		{"contains no match", Condition{Operator: Contains, Value: column.String("app")}, column.String("banana"), false},
		{"contains non-string cell", Condition{Operator: Contains, Value: column.String("1")}, column.Number(1), false},
		{"does not contain", Condition{Operator: DoesNotContain, Value: column.String("app")}, column.String("banana"), true},
		{"starts with", Condition{Operator: StartsWith, Value: column.String("ba")}, column.String("Banana"), true},
		{"ends with", Condition{Operator: EndsWith, Value: column.String("na")}, column.String("banana"), true},
		{"equals case-folded", Condition{Operator: Equals, Value: column.String("Apple")}, column.String("apple"), true},
		{"equals number", Condition{Operator: Equals, Value: column.Number(5)}, column.Number(5), true},
		{"does not equal null cell", Condition{Operator: DoesNotEqual, Value: column.String("x")}, column.Null(), true},
		{"greater than", Condition{Operator: GreaterThan, Value: column.Number(10)}, column.Number(11), true},
		{"greater than null cell", Condition{Operator: GreaterThan, Value: column.Number(10)}, column.Null(), false},
		{"greater or equal boundary", Condition{Operator: GreaterThanOrEqual, Value: column.Number(10)}, column.Number(10), true},
		{"less than", Condition{Operator: LessThan, Value: column.Number(10)}, column.Number(9), true},
		{"between inclusive", Condition{Operator: Between, Value: column.Number(1), SecondaryValue: column.Number(3)}, column.Number(3), true},
		{"between outside", Condition{Operator: Between, Value: column.Number(1), SecondaryValue: column.Number(3)}, column.Number(4), false},
		{"not between", Condition{Operator: NotBetween, Value: column.Number(1), SecondaryValue: column.Number(3)}, column.Number(4), true},
		{"not between null cell", Condition{Operator: NotBetween, Value: column.Number(1), SecondaryValue: column.Number(3)}, column.Null(), false},
		{"is any of", Condition{Operator: IsAnyOf, Values: []column.Value{column.String("a"), column.String("b")}}, column.String("b"), true},
		{"is any of miss", Condition{Operator: IsAnyOf, Values: []column.Value{column.String("a")}}, column.String("b"), false},
		{"is none of", Condition{Operator: IsNoneOf, Values: []column.Value{column.String("a")}}, column.String("b"), true},
		{"is null", Condition{Operator: IsNull}, column.Null(), true},
		{"is null on empty string", Condition{Operator: IsNull}, column.String(""), false},
		{"is empty on empty string", Condition{Operator: IsEmpty}, column.String(""), true},
		{"is empty on null", Condition{Operator: IsEmpty}, column.Null(), true},
		{"is not empty", Condition{Operator: IsNotEmpty}, column.String("x"), true},
		{"today", Condition{Operator: Today}, today, true},
		{"today vs yesterday", Condition{Operator: Today}, yesterday, false},
		{"yesterday", Condition{Operator: Yesterday}, yesterday, true},
		{"between dates", Condition{Operator: BetweenDates, Value: yesterday, SecondaryValue: today}, column.DateTime(now), true},
		{"on any of dates", Condition{Operator: IsOnAnyOfDates, Values: []column.Value{yesterday}}, column.DateTime(now.AddDate(0, 0, -1).Add(5 * time.Hour)), true},
		{"date interval this year", Condition{Operator: DateInterval, Value: column.String(string(IntervalThisYear))}, today, true},
		{"date interval excludes last year", Condition{Operator: DateInterval, Value: column.String(string(IntervalThisYear))}, lastYear, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := compileOne(t, tt.cond, CompileOptions{Now: now})
			if got := p.Evaluate(tt.in); got != tt.want {
				t.Errorf("Evaluate(%v) = %v, want %v", tt.in.Display(), got, tt.want)
			}
			if !p.HasCustomExpression() {
				t.Error("HasCustomExpression() must be true for a meaningful condition")
			}
		})
	}
}

func TestCompileAggregates(t *testing.T) {
	stats := numberStats(t, 10, 20, 30, 30)

	tests := []struct {
		name string
		cond Condition
		in   column.Value
		want bool
	}{
		// Row-weighted average is (10+20+30+30)/4 = 22.5.
		{"above average", Condition{Operator: AboveAverage}, column.Number(30), true},
		{"above average boundary", Condition{Operator: AboveAverage}, column.Number(22.5), false},
		{"below average", Condition{Operator: BelowAverage}, column.Number(10), true},
		{"unique", Condition{Operator: Unique}, column.Number(10), true},
		{"unique on duplicated", Condition{Operator: Unique}, column.Number(30), false},
		{"duplicate", Condition{Operator: Duplicate}, column.Number(30), true},
		{"top 2", Condition{Operator: TopN, Value: column.Number(2)}, column.Number(20), true},
		{"top 2 excludes lowest", Condition{Operator: TopN, Value: column.Number(2)}, column.Number(10), false},
		{"bottom 1", Condition{Operator: BottomN, Value: column.Number(1)}, column.Number(10), true},
		{"bottom 1 excludes rest", Condition{Operator: BottomN, Value: column.Number(1)}, column.Number(20), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := compileOne(t, tt.cond, CompileOptions{Stats: stats})
			if got := p.Evaluate(tt.in); got != tt.want {
				t.Errorf("Evaluate(%v) = %v, want %v", tt.in.Display(), got, tt.want)
			}
		})
	}
}

func TestCompileAggregatesWithoutStats(t *testing.T) {
	// Aggregates degrade to accept-all when no cache snapshot exists; the
	// filter keeps working, just without the constraint.
	p := compileOne(t, Condition{Operator: AboveAverage}, CompileOptions{})
	if !p.Evaluate(column.Number(1)) {
		t.Error("AboveAverage without stats should accept all values")
	}
}

func TestCompileLeftToRight(t *testing.T) {
	// a OR b AND c evaluates strictly left-to-right: ((a OR b) AND c).
	groups := []ConditionGroup{{Conditions: []Condition{
		{Operator: Equals, Value: column.String("a")},
		{Operator: Equals, Value: column.String("b"), Join: JoinOr},
		{Operator: Contains, Value: column.String("b"), Join: JoinAnd},
	}}}
	p, err := Compile(groups, CompileOptions{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	if p.Evaluate(column.String("a")) {
		t.Error("'a' fails the trailing AND and must not match")
	}
	if !p.Evaluate(column.String("b")) {
		t.Error("'b' satisfies (a OR b) AND contains-b")
	}
}

func TestCompileGroupJoin(t *testing.T) {
	groups := []ConditionGroup{
		{Conditions: []Condition{{Operator: GreaterThan, Value: column.Number(10)}}},
		{Join: JoinOr, Conditions: []Condition{{Operator: LessThan, Value: column.Number(0)}}},
	}
	p, err := Compile(groups, CompileOptions{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	for _, tt := range []struct {
		in   float64
		want bool
	}{{11, true}, {-1, true}, {5, false}} {
		if got := p.Evaluate(column.Number(tt.in)); got != tt.want {
			t.Errorf("Evaluate(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCompileSkipsNonMeaningful(t *testing.T) {
	groups := []ConditionGroup{{Conditions: []Condition{
		{Operator: Contains}, // empty operand, skipped
		{Operator: Equals, Value: column.String("keep"), Join: JoinAnd},
	}}}
	p, err := Compile(groups, CompileOptions{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if p.ConditionCount() != 1 {
		t.Errorf("ConditionCount() = %d, want 1", p.ConditionCount())
	}
	if !p.Evaluate(column.String("keep")) {
		t.Error("meaningful condition must still apply")
	}
}

func TestCompileEmptyTree(t *testing.T) {
	p, err := Compile(nil, CompileOptions{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if p.HasCustomExpression() {
		t.Error("empty tree must not report a custom expression")
	}
	if !p.Evaluate(column.String("anything")) {
		t.Error("empty tree compiles to accept-all")
	}
}

func TestCompileConditionForcedError(t *testing.T) {
	_, err := CompileCondition(Condition{Operator: Between, Value: column.Number(1)}, CompileOptions{})
	var invalid *ErrInvalidOperand
	if !errors.As(err, &invalid) {
		t.Fatalf("CompileCondition() error = %v, want ErrInvalidOperand", err)
	}
	if invalid.Operator != Between {
		t.Errorf("Operator = %v, want Between", invalid.Operator)
	}
}
