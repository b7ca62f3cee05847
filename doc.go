// Package gridfilter provides an embeddable filter core for tabular data.
//
// It combines a column value cache with a rule engine and keeps the two
// filter authoring views — discrete value selection and condition rules —
// synchronized:
//
//   - Column value cache: distinct values with occurrence counts and an
//     inferred data type per column, rebuilt in the background and updated
//     incrementally on row deltas. Readers always see an immutable snapshot.
//   - Rule engine: condition trees over a rich operator set (substring,
//     comparison, range, set membership, relative dates, aggregates), with
//     a meaningful-condition table that ignores half-authored conditions.
//   - Optimizer: rewrites a checkbox selection into the most compact
//     equivalent rule (IsAnyOf, IsNoneOf, Between, or clearing the filter).
//   - Synchronization: edits in one view project into the other, with a
//     circular-change guard, bulk-burst coalescing and re-entrancy
//     protection.
//   - Application: content decides the executable representation —
//     meaningful rules win over a partial selection, which wins over no
//     filter. Matching rows come back as Roaring bitmaps.
//
// # Quick Start
//
//	ctx := context.Background()
//	eng, _ := gridfilter.New()
//	defer eng.Close()
//
//	rows := []any{
//	    map[string]any{"fruit": "apple"},
//	    map[string]any{"fruit": "banana"},
//	}
//	eng.BuildOrUpdateCache(ctx, "fruit", rows, column.MapAccessor())
//
//	eng.Synchronize("fruit", engine.RulesEdit{
//	    Groups: []rule.ConditionGroup{{Conditions: []rule.Condition{{
//	        Operator: rule.Contains,
//	        Value:    column.String("an"),
//	    }}}},
//	})
//
//	res, _ := eng.ApplyFilter("fruit")
//	matched := eng.MatchRows(rows, column.MapAccessor(), res)
package gridfilter
