// Package optimizer converts a discrete value selection into the most
// compact equivalent rule.
package optimizer

import (
	"fmt"
	"sort"

	"github.com/hupe1980/gridfilter/column"
	"github.com/hupe1980/gridfilter/rule"
)

// Strategy names the shape of the recommended rule.
type Strategy string

const (
	// StrategyClear recommends removing the filter entirely (selection is
	// full or empty).
	StrategyClear Strategy = "clear"
	// StrategyAnyOf recommends IsAnyOf over the selected values.
	StrategyAnyOf Strategy = "anyOf"
	// StrategyNoneOf recommends IsNoneOf over the unselected values.
	StrategyNoneOf Strategy = "noneOf"
	// StrategyBetween recommends a Between range covering a contiguous
	// selected run.
	StrategyBetween Strategy = "between"
)

// Recommendation is the optimizer output: the operator to use, its minimal
// value payload and a human-readable reason.
type Recommendation struct {
	Strategy Strategy
	Operator rule.SearchType

	// Values is the operator payload: the member set for IsAnyOf/IsNoneOf,
	// or the two inclusive bounds for Between.
	Values []column.Value

	Reason string

	// Fallback is set when no representation smaller than the raw selection
	// exists and the recommendation is IsAnyOf of the selection as-is.
	Fallback bool
}

// ToGroup renders the recommendation as a condition group for the rule view.
// A clear recommendation renders as an empty group.
func (r Recommendation) ToGroup() rule.ConditionGroup {
	switch r.Strategy {
	case StrategyBetween:
		return rule.ConditionGroup{Conditions: []rule.Condition{{
			Operator:       r.Operator,
			Value:          r.Values[0],
			SecondaryValue: r.Values[1],
		}}}
	case StrategyAnyOf, StrategyNoneOf:
		return rule.ConditionGroup{Conditions: []rule.Condition{{
			Operator: r.Operator,
			Values:   r.Values,
		}}}
	default:
		return rule.ConditionGroup{}
	}
}

// minBetweenRun is the smallest contiguous run worth a Between rewrite; a
// two-value run has the same payload size as IsAnyOf.
const minBetweenRun = 3

// Optimize picks the most compact rule equivalent to selecting exactly
// `selected` out of `candidates`. It never fails: when nothing smaller than
// the raw selection exists, it falls back to IsAnyOf of the selection and
// marks the recommendation as a fallback.
func Optimize(candidates, selected []column.Value, dataType column.DataType) Recommendation {
	selectedKeys := make(map[string]struct{}, len(selected))
	for _, v := range selected {
		selectedKeys[v.Key()] = struct{}{}
	}

	// Split candidates; track selected values that are not candidates at
	// all (stale selection), which forces the raw fallback below.
	var unselected []column.Value
	known := 0
	for _, c := range candidates {
		if _, ok := selectedKeys[c.Key()]; ok {
			known++
		} else {
			unselected = append(unselected, c)
		}
	}
	stale := known < len(selectedKeys)

	if len(selectedKeys) == 0 {
		return Recommendation{
			Strategy: StrategyClear,
			Reason:   "no value selected; clearing the filter",
		}
	}
	if !stale && len(unselected) == 0 {
		return Recommendation{
			Strategy: StrategyClear,
			Reason:   "every value selected; clearing the filter",
		}
	}

	if stale {
		return Recommendation{
			Strategy: StrategyAnyOf,
			Operator: rule.IsAnyOf,
			Values:   append([]column.Value(nil), selected...),
			Reason:   "selection contains values outside the candidate set; keeping it as-is",
			Fallback: true,
		}
	}

	if rec, ok := betweenRun(candidates, selectedKeys, dataType); ok {
		return rec
	}

	if len(selected) <= len(unselected) {
		return Recommendation{
			Strategy: StrategyAnyOf,
			Operator: rule.IsAnyOf,
			Values:   append([]column.Value(nil), selected...),
			Reason:   fmt.Sprintf("%d selected values is the smaller payload", len(selected)),
		}
	}
	return Recommendation{
		Strategy: StrategyNoneOf,
		Operator: rule.IsNoneOf,
		Values:   unselected,
		Reason:   fmt.Sprintf("%d unselected values is the smaller payload", len(unselected)),
	}
}

// betweenRun detects a contiguous selected run over the full candidate
// ordering of a numeric or date column and rewrites it as a Between range.
func betweenRun(candidates []column.Value, selectedKeys map[string]struct{}, dataType column.DataType) (Recommendation, bool) {
	if dataType != column.TypeNumber && dataType != column.TypeDateTime {
		return Recommendation{}, false
	}
	if len(selectedKeys) < minBetweenRun {
		return Recommendation{}, false
	}

	ordered := append([]column.Value(nil), candidates...)
	sort.Slice(ordered, func(i, j int) bool {
		return column.Compare(ordered[i], ordered[j]) < 0
	})

	first, last := -1, -1
	count := 0
	for i, v := range ordered {
		if _, ok := selectedKeys[v.Key()]; !ok {
			continue
		}
		if v.Kind != column.KindNumber && v.Kind != column.KindDateTime {
			// A null or mistyped member cannot sit inside a range bound.
			return Recommendation{}, false
		}
		if first < 0 {
			first = i
		}
		last = i
		count++
	}
	if count != last-first+1 {
		return Recommendation{}, false
	}

	op := rule.Between
	if dataType == column.TypeDateTime {
		op = rule.BetweenDates
	}
	return Recommendation{
		Strategy: StrategyBetween,
		Operator: op,
		Values:   []column.Value{ordered[first], ordered[last]},
		Reason: fmt.Sprintf("selected values form an unbroken run from %s to %s",
			ordered[first].Display(), ordered[last].Display()),
	}, true
}
