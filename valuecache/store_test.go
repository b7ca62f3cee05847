package valuecache

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hupe1980/gridfilter/column"
)

func testAccessor() column.Accessor {
	return column.MapAccessor()
}

func row(key string, v any) map[string]any {
	return map[string]any{key: v}
}

func TestRebuild(t *testing.T) {
	store := NewStore(StoreOptions{})
	rows := []any{row("X", "apple"), row("X", "banana"), row("X", "apple")}

	md, err := store.Rebuild(context.Background(), "X", rows, testAccessor())
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	if got := md.Count(column.String("apple")); got != 2 {
		t.Errorf("Count(apple) = %d, want 2", got)
	}
	if got := md.Count(column.String("banana")); got != 1 {
		t.Errorf("Count(banana) = %d, want 1", got)
	}
	if got := md.DataType(); got != column.TypeString {
		t.Errorf("DataType() = %v, want TypeString", got)
	}
	if got := md.RowCount(); got != 3 {
		t.Errorf("RowCount() = %d, want 3", got)
	}
	if got := md.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}

func TestRebuildCountsNulls(t *testing.T) {
	store := NewStore(StoreOptions{})
	rows := []any{row("X", "a"), row("X", nil), map[string]any{}}

	md, err := store.Rebuild(context.Background(), "X", rows, testAccessor())
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if got := md.NullCount(); got != 2 {
		t.Errorf("NullCount() = %d, want 2", got)
	}
	if got := md.Count(column.Null()); got != 2 {
		t.Errorf("Count(null) = %d, want 2", got)
	}
}

func TestGetBeforeBuild(t *testing.T) {
	store := NewStore(StoreOptions{})
	if _, err := store.Get("never"); !errors.Is(err, ErrNotBuilt) {
		t.Errorf("Get() error = %v, want ErrNotBuilt", err)
	}
}

// Delta-transform equivalence: an empty store transformed into R through
// deltas must match rebuild(R).
func TestDeltaRebuildEquivalence(t *testing.T) {
	accessor := testAccessor()
	rows := []any{
		row("X", "apple"), row("X", "banana"), row("X", "apple"),
		row("X", "cherry"), row("X", nil),
	}

	full := NewStore(StoreOptions{})
	want, err := full.Rebuild(context.Background(), "X", rows, accessor)
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	incr := NewStore(StoreOptions{})
	if _, err := incr.Rebuild(context.Background(), "X", nil, accessor); err != nil {
		t.Fatalf("Rebuild(empty) error = %v", err)
	}
	var live []any
	for _, r := range rows {
		live = append(live, r)
		if _, err := incr.ApplyDelta(context.Background(), "X", Delta{Added: []any{r}}, live, accessor); err != nil {
			t.Fatalf("ApplyDelta() error = %v", err)
		}
	}

	got, err := incr.Get("X")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Len() != want.Len() {
		t.Fatalf("distinct count = %d, want %d", got.Len(), want.Len())
	}
	for _, agg := range want.Values() {
		if c := got.Count(agg.Value); c != agg.Count {
			t.Errorf("Count(%s) = %d, want %d", agg.Value.Display(), c, agg.Count)
		}
	}
	if got.NullCount() != want.NullCount() {
		t.Errorf("NullCount() = %d, want %d", got.NullCount(), want.NullCount())
	}
	if got.RowCount() != want.RowCount() {
		t.Errorf("RowCount() = %d, want %d", got.RowCount(), want.RowCount())
	}
}

func TestApplyDeltaRemoveKeepsDuplicatedValue(t *testing.T) {
	accessor := testAccessor()
	r1, r2 := row("X", "apple"), row("X", "apple")
	store := NewStore(StoreOptions{})
	if _, err := store.Rebuild(context.Background(), "X", []any{r1, r2}, accessor); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	md, err := store.ApplyDelta(context.Background(), "X", Delta{Removed: []any{r1}}, []any{r2}, accessor)
	if err != nil {
		t.Fatalf("ApplyDelta() error = %v", err)
	}
	if got := md.Count(column.String("apple")); got != 1 {
		t.Errorf("Count(apple) = %d, want 1", got)
	}
}

func TestApplyDeltaRemoveChecksContainment(t *testing.T) {
	accessor := testAccessor()
	r1 := row("X", "apple")
	// The live row set still holds the value even though the tracked count
	// would hit zero; the containment scan must keep it.
	other := row("X", "apple")
	store := NewStore(StoreOptions{})
	if _, err := store.Rebuild(context.Background(), "X", []any{r1}, accessor); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	md, err := store.ApplyDelta(context.Background(), "X", Delta{Removed: []any{r1}}, []any{other}, accessor)
	if err != nil {
		t.Fatalf("ApplyDelta() error = %v", err)
	}
	if !md.Contains(column.String("apple")) {
		t.Error("value dropped despite remaining row holding it")
	}
	if got := md.Count(column.String("apple")); got != 1 {
		t.Errorf("Count(apple) = %d, want 1", got)
	}
}

func TestApplyDeltaDropsValueAtZero(t *testing.T) {
	accessor := testAccessor()
	r1 := row("X", "apple")
	store := NewStore(StoreOptions{})
	if _, err := store.Rebuild(context.Background(), "X", []any{r1}, accessor); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	md, err := store.ApplyDelta(context.Background(), "X", Delta{Removed: []any{r1}}, nil, accessor)
	if err != nil {
		t.Fatalf("ApplyDelta() error = %v", err)
	}
	if md.Contains(column.String("apple")) {
		t.Error("value should be dropped when no remaining row holds it")
	}
}

func TestApplyDeltaThresholdFallsBackToRebuild(t *testing.T) {
	accessor := testAccessor()
	store := NewStore(StoreOptions{DeltaRebuildThreshold: 2})
	if _, err := store.Rebuild(context.Background(), "X", []any{row("X", "stale")}, accessor); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	// Delta larger than the threshold: result must reflect `remaining`
	// exactly, proving the rebuild path ran.
	remaining := []any{row("X", "a"), row("X", "b"), row("X", "c")}
	added := []any{row("X", "a"), row("X", "b"), row("X", "c")}
	md, err := store.ApplyDelta(context.Background(), "X", Delta{Added: added}, remaining, accessor)
	if err != nil {
		t.Fatalf("ApplyDelta() error = %v", err)
	}
	if md.Contains(column.String("stale")) {
		t.Error("fallback rebuild should not retain values absent from remaining rows")
	}
	if got := md.Len(); got != 3 {
		t.Errorf("Len() = %d, want 3", got)
	}
}

func TestApplyDeltaTypeInferenceIsDeterministic(t *testing.T) {
	accessor := testAccessor()

	// Mixed-kind column where more distinct values exist than the inference
	// sample holds. The delta path re-infers from the sorted value order,
	// so every run must land on the same type: strings sort first and fill
	// the whole sample.
	for run := 0; run < 10; run++ {
		store := NewStore(StoreOptions{})
		var rows []any
		for i := 0; i < 10; i++ {
			rows = append(rows, row("X", fmt.Sprintf("s%02d", i)))
		}
		for i := 0; i < 10; i++ {
			rows = append(rows, row("X", float64(i)))
		}
		if _, err := store.Rebuild(context.Background(), "X", rows, accessor); err != nil {
			t.Fatalf("Rebuild() error = %v", err)
		}

		added := []any{row("X", 99.0)}
		remaining := append(append([]any(nil), rows...), added...)
		md, err := store.ApplyDelta(context.Background(), "X", Delta{Added: added}, remaining, accessor)
		if err != nil {
			t.Fatalf("ApplyDelta() error = %v", err)
		}
		if got := md.DataType(); got != column.TypeString {
			t.Fatalf("run %d: DataType() = %v, want TypeString", run, got)
		}
	}
}

func TestApplyDeltaBeforeBuild(t *testing.T) {
	store := NewStore(StoreOptions{})
	_, err := store.ApplyDelta(context.Background(), "X", Delta{Added: []any{row("X", "a")}}, nil, testAccessor())
	if !errors.Is(err, ErrNotBuilt) {
		t.Errorf("ApplyDelta() error = %v, want ErrNotBuilt", err)
	}
}

func TestRebuildSuperseded(t *testing.T) {
	accessor := testAccessor()
	store := NewStore(StoreOptions{})

	// Start a build that blocks inside the accessor until released, then
	// supersede it with a second build.
	started := make(chan struct{})
	release := make(chan struct{})
	blocking := func(r any, path string) column.Value {
		select {
		case <-started:
		default:
			close(started)
			<-release
		}
		return accessor(r, path)
	}

	// Enough rows to cross a cancellation check after release.
	rows := make([]any, cancelCheckInterval+1)
	for i := range rows {
		rows[i] = row("X", "old")
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := store.Rebuild(context.Background(), "X", rows, blocking)
		errCh <- err
	}()

	<-started
	if _, err := store.Rebuild(context.Background(), "X", []any{row("X", "new")}, accessor); err != nil {
		t.Fatalf("superseding Rebuild() error = %v", err)
	}
	close(release)

	if err := <-errCh; !errors.Is(err, ErrBuildCancelled) {
		t.Errorf("superseded Rebuild() error = %v, want ErrBuildCancelled", err)
	}

	md, err := store.Get("X")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !md.Contains(column.String("new")) || md.Contains(column.String("old")) {
		t.Error("newest build must win the committed snapshot")
	}
}

func TestRebuildContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rows := make([]any, 1)
	rows[0] = row("X", "a")
	store := NewStore(StoreOptions{})
	if _, err := store.Rebuild(ctx, "X", rows, testAccessor()); err == nil {
		t.Error("Rebuild() with cancelled context should fail")
	}
}

func TestInvalidateMarksStale(t *testing.T) {
	accessor := testAccessor()
	store := NewStore(StoreOptions{})
	if _, err := store.Rebuild(context.Background(), "X", []any{row("X", "a")}, accessor); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	store.Invalidate()

	md, err := store.Get("X")
	if err != nil {
		t.Fatalf("Get() after Invalidate error = %v", err)
	}
	if !md.Stale() {
		t.Error("snapshot should be stale after Invalidate")
	}
	if !md.Contains(column.String("a")) {
		t.Error("stale snapshot must still serve reads")
	}

	if _, err := store.Rebuild(context.Background(), "X", []any{row("X", "b")}, accessor); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	md, _ = store.Get("X")
	if md.Stale() {
		t.Error("rebuild should clear staleness")
	}
}

func TestSnapshotIsolation(t *testing.T) {
	accessor := testAccessor()
	store := NewStore(StoreOptions{})
	if _, err := store.Rebuild(context.Background(), "X", []any{row("X", "a")}, accessor); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	before, _ := store.Get("X")

	r := row("X", "b")
	if _, err := store.ApplyDelta(context.Background(), "X", Delta{Added: []any{r}}, []any{row("X", "a"), r}, accessor); err != nil {
		t.Fatalf("ApplyDelta() error = %v", err)
	}

	// The previously captured snapshot must not change (copy-on-write).
	if before.Contains(column.String("b")) {
		t.Error("old snapshot mutated by delta")
	}
	after, _ := store.Get("X")
	if !after.Contains(column.String("b")) {
		t.Error("new snapshot missing delta value")
	}
}
