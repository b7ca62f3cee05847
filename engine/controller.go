package engine

import (
	"github.com/hupe1980/gridfilter/column"
	"github.com/hupe1980/gridfilter/rule"
	"github.com/hupe1980/gridfilter/valuecache"
)

// Controller owns the filter state of one column session: the rule tree,
// the value selection and the inferred data type.
//
// A Controller is owned exclusively by one collaborator and driven from a
// single logical thread; it carries no locking of its own. It is created
// once per filter session, reset when the user clears filters, and
// discarded when the owning collaborator unloads.
type Controller struct {
	columnKey  string
	dataType   column.DataType
	groups     []rule.ConditionGroup
	selection  *Selection
	activeView View
	snapshot   *valuecache.Metadata
}

// NewController creates a controller for one column key.
func NewController(columnKey string) *Controller {
	return &Controller{columnKey: columnKey}
}

// ColumnKey returns the column this controller filters.
func (c *Controller) ColumnKey() string { return c.columnKey }

// DataType returns the cached column data type.
func (c *Controller) DataType() column.DataType { return c.dataType }

// SetDataType caches the inferred column type.
func (c *Controller) SetDataType(dt column.DataType) { c.dataType = dt }

// ActiveView returns the filter tab the user is working in.
func (c *Controller) ActiveView() View { return c.activeView }

// SetActiveView records the filter tab the user switched to.
func (c *Controller) SetActiveView(v View) { c.activeView = v }

// Groups returns the rule tree. The slice is owned by the controller.
func (c *Controller) Groups() []rule.ConditionGroup { return c.groups }

// SetGroups replaces the rule tree.
func (c *Controller) SetGroups(groups []rule.ConditionGroup) { c.groups = groups }

// Selection returns the value-view selection, or nil before the first
// candidate load.
func (c *Controller) Selection() *Selection { return c.selection }

// SetSelection replaces the value-view selection.
func (c *Controller) SetSelection(s *Selection) { c.selection = s }

// LoadCandidates (re)builds the selection candidates from a cache snapshot,
// preserving the selected state of values that survive.
func (c *Controller) LoadCandidates(md *valuecache.Metadata) {
	prev := c.selection
	next := NewSelection(md)
	if prev != nil {
		for _, cand := range next.candidates {
			k := cand.Key()
			if sel, known := prev.selected[k]; known {
				next.selected[k] = sel
			}
		}
	}
	c.selection = next
	c.dataType = md.DataType()
	c.snapshot = md
}

// Snapshot returns the cache snapshot the current candidates were loaded
// from, or nil before the first load. Callers compare it against the
// store's latest snapshot to decide whether to reload.
func (c *Controller) Snapshot() *valuecache.Metadata { return c.snapshot }

// HasCustomExpression reports whether any rule condition is meaningful.
// This flag, not the active view, signals that a rule filter exists.
func (c *Controller) HasCustomExpression() bool {
	return rule.HasCustomExpression(c.groups)
}

// Reset clears the rule tree and re-selects every value. The controller
// itself survives; a cleared filter session keeps its cached type.
func (c *Controller) Reset() {
	c.groups = nil
	if c.selection != nil {
		for k := range c.selection.selected {
			c.selection.selected[k] = true
		}
	}
}

// Selection tracks which candidate values are checked in the value view.
type Selection struct {
	candidates []column.Value
	selected   map[string]bool
}

// NewSelection builds an all-selected state over a snapshot's
// distinct values. A fully open filter selects everything.
func NewSelection(md *valuecache.Metadata) *Selection {
	aggs := md.Values()
	s := &Selection{
		candidates: make([]column.Value, 0, len(aggs)),
		selected:   make(map[string]bool, len(aggs)),
	}
	for _, agg := range aggs {
		s.candidates = append(s.candidates, agg.Value)
		s.selected[agg.Value.Key()] = true
	}
	return s
}

// NewSelectionFromValues builds a selection over explicit candidates with
// the given subset selected.
func NewSelectionFromValues(candidates, selected []column.Value) *Selection {
	s := &Selection{
		candidates: append([]column.Value(nil), candidates...),
		selected:   make(map[string]bool, len(candidates)),
	}
	on := make(map[string]struct{}, len(selected))
	for _, v := range selected {
		on[v.Key()] = struct{}{}
	}
	for _, c := range s.candidates {
		_, ok := on[c.Key()]
		s.selected[c.Key()] = ok
	}
	return s
}

// Candidates returns the candidate values in cache order.
func (s *Selection) Candidates() []column.Value { return s.candidates }

// IsSelected reports whether a value is checked.
func (s *Selection) IsSelected(v column.Value) bool { return s.selected[v.Key()] }

// SetSelected checks or unchecks one value.
func (s *Selection) SetSelected(v column.Value, on bool) {
	if _, ok := s.selected[v.Key()]; ok {
		s.selected[v.Key()] = on
	}
}

// SelectOnly checks exactly the given values.
func (s *Selection) SelectOnly(values []column.Value) {
	on := make(map[string]struct{}, len(values))
	for _, v := range values {
		on[v.Key()] = struct{}{}
	}
	for k := range s.selected {
		_, ok := on[k]
		s.selected[k] = ok
	}
}

// SelectedValues returns the checked values in candidate order.
func (s *Selection) SelectedValues() []column.Value {
	var out []column.Value
	for _, c := range s.candidates {
		if s.selected[c.Key()] {
			out = append(out, c)
		}
	}
	return out
}

// DeselectedValues returns the unchecked values in candidate order.
func (s *Selection) DeselectedValues() []column.Value {
	var out []column.Value
	for _, c := range s.candidates {
		if !s.selected[c.Key()] {
			out = append(out, c)
		}
	}
	return out
}

// AllSelected reports whether every candidate is checked.
func (s *Selection) AllSelected() bool {
	for _, c := range s.candidates {
		if !s.selected[c.Key()] {
			return false
		}
	}
	return true
}

// NoneSelected reports whether no candidate is checked.
func (s *Selection) NoneSelected() bool {
	for _, c := range s.candidates {
		if s.selected[c.Key()] {
			return false
		}
	}
	return true
}

// PartiallySelected reports whether the selection constrains the row set:
// some but not all candidates checked.
func (s *Selection) PartiallySelected() bool {
	return !s.AllSelected() && !s.NoneSelected()
}
