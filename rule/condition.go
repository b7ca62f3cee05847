package rule

import (
	"math"

	"github.com/hupe1980/gridfilter/column"
)

// Condition is a single rule atom: an operator plus its value slots and the
// join tying it to the previous condition in its group. The first condition
// of a group has no predecessor; its Join is ignored.
type Condition struct {
	Operator       SearchType
	Value          column.Value
	SecondaryValue column.Value
	Values         []column.Value
	Join           Join
}

// ConditionGroup is an ordered sequence of conditions. Join combines the
// group with the previous group when a controller owns more than one.
type ConditionGroup struct {
	Join       Join
	Conditions []Condition
}

// Meaningful reports whether the condition's required value slots are
// populated. Only meaningful conditions are compiled, and only they count
// toward HasCustomExpression.
func (c Condition) Meaningful() bool {
	switch c.Operator.operand() {
	case operandPrimary:
		return !c.Value.IsEmpty()
	case operandPair:
		return !c.Value.IsEmpty() && !c.SecondaryValue.IsEmpty()
	case operandSet:
		return len(c.Values) > 0
	case operandCount:
		_, ok := c.positiveCount()
		return ok
	case operandInterval:
		return !c.Value.IsEmpty()
	default:
		return true
	}
}

// positiveCount parses the primary value of TopN/BottomN as a positive
// integer. Numeric cells must hold a whole positive number; string cells
// must parse as one.
func (c Condition) positiveCount() (int, bool) {
	if f, ok := c.Value.AsNumber(); ok {
		if f > 0 && f == math.Trunc(f) {
			return int(f), true
		}
		return 0, false
	}
	if s, ok := c.Value.AsString(); ok {
		n := 0
		if s == "" {
			return 0, false
		}
		for _, r := range s {
			if r < '0' || r > '9' {
				return 0, false
			}
			n = n*10 + int(r-'0')
			if n > 1<<30 {
				return 0, false
			}
		}
		if n > 0 {
			return n, true
		}
	}
	return 0, false
}

// HasCustomExpression reports whether at least one condition across all
// groups is meaningful. This flag, not view selection, is the authoritative
// signal that a rule filter exists.
func HasCustomExpression(groups []ConditionGroup) bool {
	for _, g := range groups {
		for _, c := range g.Conditions {
			if c.Meaningful() {
				return true
			}
		}
	}
	return false
}
