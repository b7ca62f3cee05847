package engine

import (
	"time"

	"github.com/hupe1980/gridfilter/column"
	"github.com/hupe1980/gridfilter/rule"
)

// EditSource identifies which view produced an edit.
type EditSource uint8

const (
	// SourceRules marks an edit made in the rule (condition) view.
	SourceRules EditSource = iota
	// SourceValues marks an edit made in the value (checkbox) view.
	SourceValues
)

// String returns the string representation of the EditSource.
func (s EditSource) String() string {
	if s == SourceValues {
		return "values"
	}
	return "rules"
}

// View identifies the filter tab the user is currently working in.
type View uint8

const (
	ViewRules View = iota
	ViewValues
)

// Intensity classifies how disruptive an edit is.
type Intensity uint8

const (
	// IntensityMinor covers simple operand tweaks.
	IntensityMinor Intensity = iota
	// IntensityMajor covers structural changes (operator, join, group shape).
	IntensityMajor
	// IntensityComplete marks a bulk burst (e.g. select-all).
	IntensityComplete
)

// String returns the string representation of the Intensity.
func (i Intensity) String() string {
	switch i {
	case IntensityMajor:
		return "major"
	case IntensityComplete:
		return "complete"
	default:
		return "minor"
	}
}

// ChangeContext describes one edit during a synchronization pass. It is
// transient: built per edit, never persisted.
type ChangeContext struct {
	Source    EditSource
	Intensity Intensity
	At        time.Time
	Bulk      bool
}

// Edit is either a RulesEdit or a ValuesEdit.
type Edit interface {
	source() EditSource
	structural() bool
}

// RulesEdit carries the rule tree state after an edit in the rule view.
// Property names the edited condition property; the coordinator treats
// operator/join/group changes as structural.
type RulesEdit struct {
	Groups   []rule.ConditionGroup
	Property string
}

func (RulesEdit) source() EditSource { return SourceRules }

func (e RulesEdit) structural() bool {
	switch e.Property {
	case "operator", "join", "group", "groups":
		return true
	default:
		return false
	}
}

// ValuesEdit carries the full selected value set after an edit in the value
// view.
type ValuesEdit struct {
	Selection []column.Value
}

func (ValuesEdit) source() EditSource { return SourceValues }
func (ValuesEdit) structural() bool   { return false }

// SyncStrategy names the synchronization pass a coordinator performed.
type SyncStrategy string

const (
	// StrategyNone: nothing to propagate.
	StrategyNone SyncStrategy = "none"
	// StrategyRulesToValues: the rule tree was projected onto the value
	// selection.
	StrategyRulesToValues SyncStrategy = "rulesToValues"
	// StrategyValuesToRules: the value selection was optimized into rules.
	StrategyValuesToRules SyncStrategy = "valuesToRules"
	// StrategyDeferred: the pass was buffered until the bulk burst quiets.
	StrategyDeferred SyncStrategy = "deferred"
)

// SyncResult reports what a Synchronize call did. Suppression is a
// deliberate no-op reported for observability, never an error.
type SyncResult struct {
	StrategyUsed       SyncStrategy
	RulesPreserved     bool
	ValuesSynchronized bool
	Suppressed         bool
	Reason             string
}

// FilterKind names the representation a filter application used.
type FilterKind string

const (
	FilterKindNone    FilterKind = "none"
	FilterKindRules   FilterKind = "rules"
	FilterKindValues  FilterKind = "values"
	FilterKindGrouped FilterKind = "grouped"
)

// ApplicationResult reports a filter application. The collaborator updates
// its "active filter" indicator from HasCustomExpression without re-deriving
// it.
type ApplicationResult struct {
	Success             bool
	Kind                FilterKind
	HasCustomExpression bool
	ErrorMessage        string

	// ColumnKey is the column the cell predicate reads.
	ColumnKey string

	// CellPredicate is the compiled predicate over a single cell value.
	// Always non-nil on success; accept-all for FilterKindNone.
	CellPredicate func(column.Value) bool
}

// GroupedPair is one allowed (group-by value, target value) combination for
// grouped filtering.
type GroupedPair struct {
	GroupValue  column.Value
	TargetValue column.Value
}

// GroupedSelection keys filtering on (group-by column, target column) value
// pairs instead of the target column alone.
type GroupedSelection struct {
	GroupColumnKey string
	Pairs          []GroupedPair
}
