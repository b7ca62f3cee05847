package rule

import "fmt"

// ErrInvalidOperand indicates a condition whose required value slot is
// missing when compilation is forced.
type ErrInvalidOperand struct {
	Operator SearchType
	Missing  string
}

func (e *ErrInvalidOperand) Error() string {
	return fmt.Sprintf("invalid operand for %q: %s missing", e.Operator, e.Missing)
}

func missingSlot(c Condition) string {
	switch c.Operator.operand() {
	case operandPair:
		if c.Value.IsEmpty() {
			return "primary value"
		}
		return "secondary value"
	case operandSet:
		return "value set"
	case operandCount:
		return "positive integer count"
	case operandInterval:
		return "interval kind"
	default:
		return "primary value"
	}
}
