package engine

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/gridfilter/column"
	"github.com/hupe1980/gridfilter/optimizer"
	"github.com/hupe1980/gridfilter/rule"
	"github.com/hupe1980/gridfilter/valuecache"
)

// Applier turns a controller's state into an executable filter.
//
// The representation is decided by content, not by which tab the user last
// touched: meaningful rules win, then a constraining value selection, then
// no filter at all. Failures degrade to an unfiltered result with an error
// message; applying a filter must never take the grid down.
type Applier struct {
	store *valuecache.Store
}

// NewApplier creates an applier backed by the given value cache.
func NewApplier(store *valuecache.Store) *Applier {
	return &Applier{store: store}
}

// Apply resolves the controller's current state into a cell predicate.
func (a *Applier) Apply(ctl *Controller) (res ApplicationResult) {
	defer func() {
		if r := recover(); r != nil {
			res = degraded(ctl.ColumnKey(), fmt.Sprintf("filter application panicked: %v", r))
		}
	}()

	sel := ctl.Selection()
	rulesMeaningful := ctl.HasCustomExpression()
	partial := sel != nil && sel.PartiallySelected()
	hasCustom := rulesMeaningful || partial

	stats, _ := a.store.Get(ctl.ColumnKey())

	if rulesMeaningful {
		pred, err := rule.Compile(ctl.Groups(), rule.CompileOptions{
			DataType: ctl.DataType(),
			Stats:    stats,
		})
		if err != nil {
			return degraded(ctl.ColumnKey(), "rule compilation failed: "+err.Error())
		}
		return ApplicationResult{
			Success:             true,
			Kind:                FilterKindRules,
			HasCustomExpression: hasCustom,
			ColumnKey:           ctl.ColumnKey(),
			CellPredicate:       pred.Evaluate,
		}
	}

	if partial {
		rec := optimizer.Optimize(sel.Candidates(), sel.SelectedValues(), ctl.DataType())
		if rec.Strategy == optimizer.StrategyClear {
			return acceptAllResult(ctl.ColumnKey(), hasCustom)
		}
		pred, err := rule.Compile([]rule.ConditionGroup{rec.ToGroup()}, rule.CompileOptions{
			DataType: ctl.DataType(),
			Stats:    stats,
		})
		if err != nil {
			return degraded(ctl.ColumnKey(), "selection compilation failed: "+err.Error())
		}
		return ApplicationResult{
			Success:             true,
			Kind:                FilterKindValues,
			HasCustomExpression: hasCustom,
			ColumnKey:           ctl.ColumnKey(),
			CellPredicate:       pred.Evaluate,
		}
	}

	return acceptAllResult(ctl.ColumnKey(), hasCustom)
}

// MatchRows evaluates an application result against a row set and returns
// the matching row indices as a bitmap.
func (a *Applier) MatchRows(rows []any, accessor column.Accessor, res ApplicationResult) *roaring.Bitmap {
	out := roaring.New()
	if res.CellPredicate == nil {
		out.AddRange(0, uint64(len(rows)))
		return out
	}
	for i, row := range rows {
		if res.CellPredicate(accessor(row, res.ColumnKey)) {
			out.Add(uint32(i))
		}
	}
	return out
}

// GroupedApplication is the grouped-mode counterpart of ApplicationResult:
// the predicate reads the group-by cell and the target cell together.
type GroupedApplication struct {
	Success             bool
	Kind                FilterKind
	HasCustomExpression bool
	ErrorMessage        string

	GroupColumnKey  string
	TargetColumnKey string

	// PairPredicate accepts a (group-by value, target value) cell pair.
	PairPredicate func(group, target column.Value) bool
}

// pairKey identifies one (group, target) value combination. The unit
// separator cannot occur inside a value key.
func pairKey(group, target column.Value) string {
	return group.Key() + "\x1f" + target.Key()
}

// ApplyGrouped resolves a grouped selection: a row passes when its
// (group-by, target) value pair is among the allowed pairs. An empty pair
// set means no grouped filter.
func (a *Applier) ApplyGrouped(gs GroupedSelection, targetColumnKey string) GroupedApplication {
	if len(gs.Pairs) == 0 {
		return GroupedApplication{
			Success:         true,
			Kind:            FilterKindNone,
			GroupColumnKey:  gs.GroupColumnKey,
			TargetColumnKey: targetColumnKey,
			PairPredicate:   func(column.Value, column.Value) bool { return true },
		}
	}

	allowed := make(map[string]struct{}, len(gs.Pairs))
	for _, p := range gs.Pairs {
		allowed[pairKey(p.GroupValue, p.TargetValue)] = struct{}{}
	}
	return GroupedApplication{
		Success:             true,
		Kind:                FilterKindGrouped,
		HasCustomExpression: true,
		GroupColumnKey:      gs.GroupColumnKey,
		TargetColumnKey:     targetColumnKey,
		PairPredicate: func(group, target column.Value) bool {
			_, ok := allowed[pairKey(group, target)]
			return ok
		},
	}
}

// MatchRowsGrouped evaluates a grouped application against a row set.
func (a *Applier) MatchRowsGrouped(rows []any, accessor column.Accessor, res GroupedApplication) *roaring.Bitmap {
	out := roaring.New()
	if res.PairPredicate == nil {
		out.AddRange(0, uint64(len(rows)))
		return out
	}
	for i, row := range rows {
		group := accessor(row, res.GroupColumnKey)
		target := accessor(row, res.TargetColumnKey)
		if res.PairPredicate(group, target) {
			out.Add(uint32(i))
		}
	}
	return out
}

func acceptAllResult(columnKey string, hasCustom bool) ApplicationResult {
	return ApplicationResult{
		Success:             true,
		Kind:                FilterKindNone,
		HasCustomExpression: hasCustom,
		ColumnKey:           columnKey,
		CellPredicate:       func(column.Value) bool { return true },
	}
}

// degraded reports a recovered failure: the grid shows all rows instead of
// crashing or silently hiding data.
func degraded(columnKey, msg string) ApplicationResult {
	return ApplicationResult{
		Success:       true,
		Kind:          FilterKindNone,
		ErrorMessage:  msg,
		ColumnKey:     columnKey,
		CellPredicate: func(column.Value) bool { return true },
	}
}
