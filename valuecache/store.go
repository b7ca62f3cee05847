package valuecache

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/gridfilter/column"
)

// DefaultDeltaRebuildThreshold is the combined add+remove size above which
// ApplyDelta falls back to a full rebuild.
const DefaultDeltaRebuildThreshold = 100

// cancelCheckInterval is the number of rows scanned between context checks.
const cancelCheckInterval = 1024

// StoreOptions configures a Store.
type StoreOptions struct {
	// DeltaRebuildThreshold overrides DefaultDeltaRebuildThreshold when > 0.
	DeltaRebuildThreshold int

	// Infer controls column type inference.
	Infer column.InferOptions

	// Clock supplies snapshot timestamps. Defaults to time.Now.
	Clock func() time.Time
}

// Delta describes an incremental row change for one column.
type Delta struct {
	Added   []any
	Removed []any
}

// Store is the per-column distinct-value cache (one per dataset, shared
// read-mostly across all filter controllers).
//
// Each column entry owns an atomically-swapped immutable Metadata snapshot.
// A new rebuild supersedes and cancels any in-flight rebuild for the same
// column key; the superseded waiter observes ErrBuildCancelled.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry

	threshold int
	inferOpts column.InferOptions
	clock     func() time.Time
}

type entry struct {
	snap atomic.Pointer[Metadata]

	// commitMu serializes snapshot commits; gen decides which build wins.
	commitMu sync.Mutex
	gen      atomic.Uint64
	cancel   context.CancelCauseFunc // cancels the in-flight build, may be nil
}

// NewStore creates an empty Store.
func NewStore(opts StoreOptions) *Store {
	threshold := opts.DeltaRebuildThreshold
	if threshold <= 0 {
		threshold = DefaultDeltaRebuildThreshold
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Store{
		entries:   make(map[string]*entry),
		threshold: threshold,
		inferOpts: opts.Infer,
		clock:     clock,
	}
}

// entryFor creates the column entry lazily on first access.
func (s *Store) entryFor(columnKey string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[columnKey]
	if !ok {
		e = &entry{}
		s.entries[columnKey] = e
	}
	return e
}

// Rebuild fully scans rows and replaces any previous snapshot for columnKey.
//
// Rebuild may run on any goroutine; it is the only suspending operation of
// the store. A concurrent Rebuild for the same key supersedes this one, in
// which case ErrBuildCancelled is returned and the newer snapshot wins.
func (s *Store) Rebuild(ctx context.Context, columnKey string, rows []any, accessor column.Accessor) (*Metadata, error) {
	e := s.entryFor(columnKey)

	// Claim a generation and cancel the in-flight build, if any.
	e.commitMu.Lock()
	if e.cancel != nil {
		e.cancel(ErrBuildCancelled)
	}
	buildCtx, cancel := context.WithCancelCause(ctx)
	e.cancel = cancel
	gen := e.gen.Add(1)
	e.commitMu.Unlock()
	defer cancel(ErrBuildCancelled)

	b := newBuilder(columnKey, s.inferOpts)
	for i, row := range rows {
		if i%cancelCheckInterval == 0 {
			if err := buildCtx.Err(); err != nil {
				return nil, buildErr(buildCtx)
			}
		}
		b.add(accessor(row, columnKey))
	}
	if err := buildCtx.Err(); err != nil {
		return nil, buildErr(buildCtx)
	}
	snap := b.seal(s.inferOpts, s.clock())

	e.commitMu.Lock()
	defer e.commitMu.Unlock()
	if e.gen.Load() != gen {
		// A newer build claimed the entry while we were scanning.
		return nil, ErrBuildCancelled
	}
	e.cancel = nil
	cancel(nil)
	e.snap.Store(snap)
	return snap, nil
}

// ApplyDelta applies an incremental row change to columnKey.
//
// Additions insert or increment. Removals decrement and drop a value at zero
// only after a containment check against remaining (the live row set), which
// guards against duplicate rows being removed once. Deltas above the rebuild
// threshold fall back to Rebuild over remaining for correctness.
func (s *Store) ApplyDelta(ctx context.Context, columnKey string, delta Delta, remaining []any, accessor column.Accessor) (*Metadata, error) {
	if len(delta.Added)+len(delta.Removed) > s.threshold {
		return s.Rebuild(ctx, columnKey, remaining, accessor)
	}

	e := s.entryFor(columnKey)
	e.commitMu.Lock()
	defer e.commitMu.Unlock()

	prev := e.snap.Load()
	if prev == nil {
		return nil, ErrNotBuilt
	}

	// Copy-on-write: mutate fresh maps, publish a new snapshot.
	counts := make(map[string]uint64, len(prev.counts))
	for k, c := range prev.counts {
		counts[k] = c
	}
	byKey := make(map[string]column.Value, len(prev.byKey))
	for k, v := range prev.byKey {
		byKey[k] = v
	}
	nullCount := prev.nullCount
	rowCount := prev.rowCount

	for _, row := range delta.Added {
		v := normalize(accessor(row, columnKey))
		k := v.Key()
		if _, ok := counts[k]; !ok {
			byKey[k] = v
		}
		counts[k]++
		rowCount++
		if v.IsNull() {
			nullCount++
		}
	}

	for _, row := range delta.Removed {
		v := normalize(accessor(row, columnKey))
		k := v.Key()
		c, ok := counts[k]
		if !ok {
			continue
		}
		rowCount--
		if v.IsNull() {
			nullCount--
		}
		if c > 1 {
			counts[k] = c - 1
			continue
		}
		// Count hit zero: drop only if no remaining row still holds the
		// value. Removals are rare, so the O(remaining) scan is acceptable.
		if held := occurrences(remaining, columnKey, k, accessor); held > 0 {
			counts[k] = held
		} else {
			delete(counts, k)
			delete(byKey, k)
		}
	}

	snap := rebuildFromCounts(prev, counts, byKey, nullCount, rowCount, s.inferOpts, s.clock())
	e.gen.Add(1)
	if e.cancel != nil {
		e.cancel(ErrBuildCancelled)
		e.cancel = nil
	}
	e.snap.Store(snap)
	return snap, nil
}

// Get returns the last fully-committed snapshot for columnKey, or
// ErrNotBuilt if the column was never built.
func (s *Store) Get(columnKey string) (*Metadata, error) {
	s.mu.Lock()
	e, ok := s.entries[columnKey]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotBuilt
	}
	snap := e.snap.Load()
	if snap == nil {
		return nil, ErrNotBuilt
	}
	return snap, nil
}

// Keys returns the column keys that currently hold a committed snapshot.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.entries))
	for k, e := range s.entries {
		if e.snap.Load() != nil {
			keys = append(keys, k)
		}
	}
	return keys
}

// Invalidate marks every committed snapshot stale. Entries are kept, not
// destroyed: readers continue to see the last snapshot with Stale() set
// until a rebuild replaces it. Used on full data-source replacement.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if snap := e.snap.Load(); snap != nil && !snap.stale {
			e.snap.Store(snap.markStale())
		}
	}
}

// InvalidateColumn marks one column's snapshot stale, if it has one.
func (s *Store) InvalidateColumn(columnKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[columnKey]
	if !ok {
		return
	}
	if snap := e.snap.Load(); snap != nil && !snap.stale {
		e.snap.Store(snap.markStale())
	}
}

func normalize(v column.Value) column.Value {
	if v.Kind == column.KindInvalid {
		return column.Null()
	}
	return v
}

// occurrences counts live rows whose cell matches the value key.
func occurrences(rows []any, columnKey, valueKey string, accessor column.Accessor) uint64 {
	var n uint64
	for _, row := range rows {
		if normalize(accessor(row, columnKey)).Key() == valueKey {
			n++
		}
	}
	return n
}

// rebuildFromCounts seals a delta result into a snapshot, re-running the
// cheap type inference over the distinct values so type drift from deltas
// is picked up.
func rebuildFromCounts(prev *Metadata, counts map[string]uint64, byKey map[string]column.Value, nullCount, rowCount uint64, inferOpts column.InferOptions, now time.Time) *Metadata {
	sampleSize := inferOpts.SampleSize
	if sampleSize <= 0 {
		sampleSize = column.DefaultSampleSize
	}
	b := &builder{
		columnKey: prev.columnKey,
		counts:    counts,
		byKey:     byKey,
		nullCount: nullCount,
		rowCount:  rowCount,
		sample:    make([]column.Value, 0, sampleSize),
	}

	// Sample in sorted value order, not map order, so the re-inferred type
	// is the same on every delta.
	ordered := make([]column.Value, 0, len(byKey))
	for _, v := range byKey {
		ordered = append(ordered, v)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return column.Compare(ordered[i], ordered[j]) < 0
	})
	for _, v := range ordered {
		if len(b.sample) == cap(b.sample) {
			break
		}
		if !v.IsNull() {
			b.sample = append(b.sample, v)
		}
	}
	return b.seal(inferOpts, now)
}

func buildErr(ctx context.Context) error {
	if cause := context.Cause(ctx); cause != nil && cause != ctx.Err() {
		return cause
	}
	return ErrBuildCancelled
}
