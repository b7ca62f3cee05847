package gridfilter

import (
	"context"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/gridfilter/column"
	"github.com/hupe1980/gridfilter/engine"
	"github.com/hupe1980/gridfilter/optimizer"
	"github.com/hupe1980/gridfilter/resource"
	"github.com/hupe1980/gridfilter/rule"
	"github.com/hupe1980/gridfilter/valuecache"
)

// Engine is the facade over the filter core: the column value cache, the
// per-column filter sessions and the synchronization between the rule view
// and the value view.
//
// Engine is safe for concurrent use with one exception: a single column's
// session (Synchronize, ApplyFilter, Controller state) must be driven from
// one logical thread, matching the edit stream it models.
type Engine struct {
	opts    options
	store   *valuecache.Store
	res     *resource.Controller
	pool    *valuecache.WorkerPool
	applier *engine.Applier

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
}

type session struct {
	ctl   *engine.Controller
	coord *engine.Coordinator
}

// New creates an Engine.
func New(optFns ...Option) (*Engine, error) {
	opts := options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		clock:            time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.logger == nil {
		opts.logger = NoopLogger()
	}
	if opts.metricsCollector == nil {
		opts.metricsCollector = NoopMetricsCollector{}
	}
	if opts.clock == nil {
		opts.clock = time.Now
	}

	store := valuecache.NewStore(valuecache.StoreOptions{
		DeltaRebuildThreshold: opts.deltaRebuildThreshold,
		Infer:                 column.InferOptions{SampleSize: opts.typeSampleSize},
		Clock:                 opts.clock,
	})

	return &Engine{
		opts:     opts,
		store:    store,
		res:      resource.NewController(opts.resourceConfig),
		pool:     valuecache.NewWorkerPool(int(opts.resourceConfig.MaxBackgroundBuilds)),
		applier:  engine.NewApplier(store),
		sessions: make(map[string]*session),
	}, nil
}

// Store exposes the underlying value cache, e.g. for direct snapshot reads.
func (e *Engine) Store() *valuecache.Store { return e.store }

// Resources exposes the resource controller bounding background builds.
func (e *Engine) Resources() *resource.Controller { return e.res }

// session returns the filter session for a column, creating it on first use.
func (e *Engine) session(columnKey string) (*session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrClosed
	}
	if s, ok := e.sessions[columnKey]; ok {
		return s, nil
	}

	ctl := engine.NewController(columnKey)
	if md, err := e.store.Get(columnKey); err == nil {
		ctl.LoadCandidates(md)
	}
	coord, err := engine.NewCoordinator(ctl, e.store, engine.CoordinatorConfig{
		GuardWindow:   e.opts.guardWindow,
		BulkThreshold: e.opts.bulkThreshold,
		QuietPeriod:   e.opts.quietPeriod,
		Clock:         e.opts.clock,
	})
	if err != nil {
		return nil, err
	}

	s := &session{ctl: ctl, coord: coord}
	e.sessions[columnKey] = s
	return s, nil
}

// Controller returns the filter controller for a column, creating the
// session on first use.
func (e *Engine) Controller(columnKey string) (*engine.Controller, error) {
	s, err := e.session(columnKey)
	if err != nil {
		return nil, err
	}
	return s.ctl, nil
}

// Coordinator returns the synchronization coordinator for a column. The
// caller schedules Flush against its NextDeadline to run deferred bulk
// passes.
func (e *Engine) Coordinator(columnKey string) (*engine.Coordinator, error) {
	s, err := e.session(columnKey)
	if err != nil {
		return nil, err
	}
	return s.coord, nil
}

// BuildOrUpdateCache scans rows and (re)builds a column's value cache,
// bounded by the resource controller. A newer build for the same column
// supersedes this one.
//
// Only the store snapshot is committed here, so BuildOrUpdateCache may run
// on any goroutine. An existing session picks up the fresh candidates on
// its next owner-thread operation, with the selected state of surviving
// values preserved.
func (e *Engine) BuildOrUpdateCache(ctx context.Context, columnKey string, rows []any, accessor column.Accessor) (*valuecache.Metadata, error) {
	start := e.opts.clock()

	if err := e.res.AcquireBuild(ctx); err != nil {
		return nil, err
	}
	defer e.res.ReleaseBuild()

	if err := e.res.WaitScan(ctx, len(rows)); err != nil {
		return nil, err
	}

	md, err := e.store.Rebuild(ctx, columnKey, rows, accessor)
	err = translateError(err)

	distinct := 0
	if md != nil {
		distinct = md.Len()
	}
	e.opts.logger.LogRebuild(ctx, columnKey, distinct, err)
	e.opts.metricsCollector.RecordRebuild(e.opts.clock().Sub(start), err)
	if err != nil {
		return nil, err
	}
	return md, nil
}

// ApplyCacheDelta updates a column's cache incrementally. Deltas above the
// configured threshold fall back to a full rebuild over the remaining rows.
func (e *Engine) ApplyCacheDelta(ctx context.Context, columnKey string, delta valuecache.Delta, remaining []any, accessor column.Accessor) (*valuecache.Metadata, error) {
	start := e.opts.clock()

	md, err := e.store.ApplyDelta(ctx, columnKey, delta, remaining, accessor)
	err = translateError(err)

	e.opts.logger.LogDelta(ctx, columnKey, len(delta.Added), len(delta.Removed), err)
	e.opts.metricsCollector.RecordDelta(len(delta.Added), len(delta.Removed), e.opts.clock().Sub(start), err)
	if err != nil {
		return nil, err
	}
	return md, nil
}

// NotifyRowsChanged marks a column's cache stale and schedules the delta in
// the background. The stale snapshot stays readable until the update
// commits.
func (e *Engine) NotifyRowsChanged(ctx context.Context, columnKey string, delta valuecache.Delta, remaining []any, accessor column.Accessor) error {
	e.store.InvalidateColumn(columnKey)
	err := e.pool.Submit(ctx, func() {
		_, _ = e.ApplyCacheDelta(context.WithoutCancel(ctx), columnKey, delta, remaining, accessor)
	})
	return translateError(err)
}

// syncCandidates reloads a session's candidates when the store holds a
// newer snapshot than the one the controller last loaded.
//
// Called only from the session's owner thread (Synchronize, ApplyFilter,
// ClearFilter). Cache builds commit to the store alone; controller state is
// never touched from the worker pool, so a background delta becomes visible
// here, on the next owner-thread operation.
func (e *Engine) syncCandidates(s *session) {
	md, err := e.store.Get(s.ctl.ColumnKey())
	if err != nil || md == s.ctl.Snapshot() {
		return
	}
	s.ctl.LoadCandidates(md)
}

// Compile turns a rule tree into a predicate over the column's cell values,
// using the column's cache snapshot for aggregate operators.
func (e *Engine) Compile(groups []rule.ConditionGroup, columnKey string) (*rule.Predicate, error) {
	stats, _ := e.store.Get(columnKey)

	dt := column.TypeUnknown
	if stats != nil {
		dt = stats.DataType()
	}

	pred, err := rule.Compile(groups, rule.CompileOptions{
		DataType: dt,
		Stats:    stats,
		Now:      e.opts.clock(),
	})
	return pred, translateError(err)
}

// Optimize recommends the most compact rule equivalent to selecting exactly
// the given values out of the column's cached candidates.
func (e *Engine) Optimize(columnKey string, selected []column.Value) (optimizer.Recommendation, error) {
	md, err := e.store.Get(columnKey)
	if err != nil {
		return optimizer.Recommendation{}, translateError(err)
	}

	candidates := make([]column.Value, 0, md.Len())
	for _, agg := range md.Values() {
		candidates = append(candidates, agg.Value)
	}
	return optimizer.Optimize(candidates, selected, md.DataType()), nil
}

// Synchronize routes one filter edit through the column's coordinator.
func (e *Engine) Synchronize(columnKey string, edit engine.Edit) (engine.SyncResult, error) {
	start := e.opts.clock()

	s, err := e.session(columnKey)
	if err != nil {
		return engine.SyncResult{}, err
	}
	e.syncCandidates(s)

	res, _ := s.coord.Synchronize(edit)

	e.opts.logger.LogSynchronize(context.Background(), columnKey, string(res.StrategyUsed), res.Suppressed, res.Reason)
	e.opts.metricsCollector.RecordSynchronize(string(res.StrategyUsed), res.Suppressed, e.opts.clock().Sub(start))
	return res, nil
}

// ApplyFilter resolves a column's session into an executable filter. The
// representation is decided by content: meaningful rules first, then a
// constraining value selection, then no filter.
func (e *Engine) ApplyFilter(columnKey string) (engine.ApplicationResult, error) {
	start := e.opts.clock()

	s, err := e.session(columnKey)
	if err != nil {
		return engine.ApplicationResult{}, err
	}
	e.syncCandidates(s)

	res := e.applier.Apply(s.ctl)

	e.opts.logger.LogApply(context.Background(), columnKey, string(res.Kind), res.ErrorMessage)
	e.opts.metricsCollector.RecordApply(string(res.Kind), res.ErrorMessage != "", e.opts.clock().Sub(start))
	return res, nil
}

// ApplyGroupedFilter resolves a grouped selection: rows pass when their
// (group-by, target) value pair is among the allowed pairs.
func (e *Engine) ApplyGroupedFilter(gs engine.GroupedSelection, targetColumnKey string) engine.GroupedApplication {
	start := e.opts.clock()

	res := e.applier.ApplyGrouped(gs, targetColumnKey)

	e.opts.logger.LogApply(context.Background(), targetColumnKey, string(res.Kind), res.ErrorMessage)
	e.opts.metricsCollector.RecordApply(string(res.Kind), res.ErrorMessage != "", e.opts.clock().Sub(start))
	return res
}

// MatchRows evaluates a filter application against a row set and returns
// the matching row indices.
func (e *Engine) MatchRows(rows []any, accessor column.Accessor, res engine.ApplicationResult) *roaring.Bitmap {
	return e.applier.MatchRows(rows, accessor, res)
}

// MatchRowsGrouped evaluates a grouped application against a row set.
func (e *Engine) MatchRowsGrouped(rows []any, accessor column.Accessor, res engine.GroupedApplication) *roaring.Bitmap {
	return e.applier.MatchRowsGrouped(rows, accessor, res)
}

// ClearFilter resets a column's session: the rule tree empties and every
// value re-selects.
func (e *Engine) ClearFilter(columnKey string) error {
	s, err := e.session(columnKey)
	if err != nil {
		return err
	}
	e.syncCandidates(s)
	s.ctl.Reset()
	return nil
}

// Close releases resources held by this Engine. Pending background cache
// updates drain first.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.pool.Close()
	return nil
}
