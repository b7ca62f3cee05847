// Package valuecache provides the per-column distinct-value cache.
//
// Each column key maps to an immutable Metadata snapshot holding the distinct
// values, per-value counts and the inferred data type. Builds and deltas
// publish a new snapshot atomically; readers never observe partial state.
package valuecache

import (
	"sort"
	"time"

	"github.com/hupe1980/gridfilter/column"
)

// ValueAggregate is one distinct value and the number of source rows
// holding it. A null aggregate stands in for blank cells.
type ValueAggregate struct {
	Value column.Value
	Count uint64
}

// Metadata is an immutable snapshot of one column's distinct values.
//
// All accessors are safe for concurrent use; the snapshot never mutates
// after publication.
type Metadata struct {
	columnKey string
	dataType  column.DataType
	counts    map[string]uint64
	byKey     map[string]column.Value
	values    []ValueAggregate // sorted by column.Compare
	nullCount uint64
	rowCount  uint64
	builtAt   time.Time
	stale     bool
}

// ColumnKey returns the column key this snapshot was built for.
func (m *Metadata) ColumnKey() string { return m.columnKey }

// DataType returns the inferred column data type.
func (m *Metadata) DataType() column.DataType { return m.dataType }

// BuiltAt returns the time the snapshot was committed.
func (m *Metadata) BuiltAt() time.Time { return m.builtAt }

// Stale reports whether the underlying data source was replaced since this
// snapshot was built. Stale snapshots still serve reads; callers should
// schedule a rebuild.
func (m *Metadata) Stale() bool { return m.stale }

// RowCount returns the number of rows scanned into this snapshot.
func (m *Metadata) RowCount() uint64 { return m.rowCount }

// NullCount returns the number of null/blank cells.
func (m *Metadata) NullCount() uint64 { return m.nullCount }

// Len returns the number of distinct values, including the null aggregate
// when blank cells exist.
func (m *Metadata) Len() int { return len(m.values) }

// Values returns the distinct values with counts, sorted by value order.
// The returned slice is shared with the snapshot and must not be mutated.
func (m *Metadata) Values() []ValueAggregate { return m.values }

// Count returns the number of rows holding v, or 0 if v is not present.
func (m *Metadata) Count(v column.Value) uint64 { return m.counts[v.Key()] }

// Contains reports whether v occurs in the column.
func (m *Metadata) Contains(v column.Value) bool {
	_, ok := m.counts[v.Key()]
	return ok
}

// Average returns the row-weighted mean of a numeric column. The second
// return is false for non-numeric columns or columns without numeric cells.
func (m *Metadata) Average() (float64, bool) {
	var sum float64
	var n uint64
	for _, agg := range m.values {
		f, ok := agg.Value.AsNumber()
		if !ok {
			continue
		}
		sum += f * float64(agg.Count)
		n += agg.Count
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// markStale returns a shallow stale copy sharing the immutable internals.
func (m *Metadata) markStale() *Metadata {
	c := *m
	c.stale = true
	return &c
}

// builder accumulates counts during a scan and seals them into a Metadata.
type builder struct {
	columnKey string
	counts    map[string]uint64
	byKey     map[string]column.Value
	nullCount uint64
	rowCount  uint64
	sample    []column.Value
}

func newBuilder(columnKey string, inferOpts column.InferOptions) *builder {
	sampleSize := inferOpts.SampleSize
	if sampleSize <= 0 {
		sampleSize = column.DefaultSampleSize
	}
	return &builder{
		columnKey: columnKey,
		counts:    make(map[string]uint64),
		byKey:     make(map[string]column.Value),
		sample:    make([]column.Value, 0, sampleSize),
	}
}

func (b *builder) add(v column.Value) {
	b.rowCount++
	if v.Kind == column.KindInvalid {
		v = column.Null()
	}
	if v.IsNull() {
		b.nullCount++
	} else if len(b.sample) < cap(b.sample) {
		b.sample = append(b.sample, v)
	}
	k := v.Key()
	if _, ok := b.counts[k]; !ok {
		b.byKey[k] = v
	}
	b.counts[k]++
}

// seal infers the type from the scan-order sample, validates the Enum
// promotion against the full aggregated counts, and publishes an immutable
// snapshot.
func (b *builder) seal(inferOpts column.InferOptions, now time.Time) *Metadata {
	values := make([]ValueAggregate, 0, len(b.counts))
	for k, c := range b.counts {
		values = append(values, ValueAggregate{Value: b.byKey[k], Count: c})
	}
	sort.Slice(values, func(i, j int) bool {
		return column.Compare(values[i].Value, values[j].Value) < 0
	})

	dt := column.Infer(b.sample, inferOpts)
	if dt == column.TypeString || dt == column.TypeEnum {
		distinct, total := 0, 0
		for _, agg := range values {
			if agg.Value.Kind == column.KindString {
				distinct++
				total += int(agg.Count)
			}
		}
		if column.ShouldPromoteEnum(distinct, total, inferOpts) {
			dt = column.TypeEnum
		} else {
			dt = column.TypeString
		}
	}

	return &Metadata{
		columnKey: b.columnKey,
		dataType:  dt,
		counts:    b.counts,
		byKey:     b.byKey,
		values:    values,
		nullCount: b.nullCount,
		rowCount:  b.rowCount,
		builtAt:   now,
	}
}
