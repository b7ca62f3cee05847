// Package engine provides the coordination layer of the filter core.
//
// All edits to a filter controller route through a Coordinator, which keeps
// the rule view and the value view semantically consistent:
//   - classify the edit (source, intensity, bulk)
//   - drop circular echoes of the coordinator's own synchronization
//   - project rules onto the value selection, or optimize the selection
//     back into rules
//   - defer bulk bursts until a quiet period
//
// The circular-change guard and the re-entrancy guard together guarantee at
// most one active synchronization pass per controller, and that a pass never
// triggers another pass for the same logical change.
package engine

import (
	"fmt"
	"time"

	"github.com/hupe1980/gridfilter/optimizer"
	"github.com/hupe1980/gridfilter/rule"
	"github.com/hupe1980/gridfilter/valuecache"
)

const (
	// DefaultGuardWindow is the window in which a cross-source edit is
	// presumed to be an echo of the last synchronization.
	DefaultGuardWindow = 500 * time.Millisecond

	// DefaultBulkThreshold is the maximum gap between same-source edits
	// that marks a bulk burst (e.g. select-all).
	DefaultBulkThreshold = 50 * time.Millisecond

	// DefaultQuietPeriod is how long a bulk burst must stay quiet before
	// the deferred pass runs.
	DefaultQuietPeriod = 150 * time.Millisecond
)

// CoordinatorConfig tunes the synchronization timing. Timing is modeled as
// explicit deadlines against the injected clock, never as library timers, so
// any scheduler can drive it.
type CoordinatorConfig struct {
	GuardWindow   time.Duration
	BulkThreshold time.Duration
	QuietPeriod   time.Duration

	// Clock supplies the monotonic-ish timestamps edits are classified
	// with. Defaults to time.Now.
	Clock func() time.Time
}

func (cfg CoordinatorConfig) withDefaults() CoordinatorConfig {
	if cfg.GuardWindow <= 0 {
		cfg.GuardWindow = DefaultGuardWindow
	}
	if cfg.BulkThreshold <= 0 {
		cfg.BulkThreshold = DefaultBulkThreshold
	}
	if cfg.QuietPeriod <= 0 {
		cfg.QuietPeriod = DefaultQuietPeriod
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return cfg
}

type stamp struct {
	source EditSource
	at     time.Time
	valid  bool
}

type pendingSync struct {
	source   EditSource
	deadline time.Time
}

// Coordinator reconciles rule-view edits with value-view edits for one
// controller. Its "last change" state is scoped per instance, so
// independent column filters cannot interfere with each other.
//
// Like its controller, a Coordinator is driven from a single logical
// thread.
type Coordinator struct {
	ctl   *Controller
	store *valuecache.Store
	cfg   CoordinatorConfig

	synchronizing bool
	lastSync      stamp // last performed pass, feeds the circular guard
	lastEdit      stamp // last accepted edit, feeds bulk detection
	pending       *pendingSync
}

// NewCoordinator creates a coordinator over one controller.
func NewCoordinator(ctl *Controller, store *valuecache.Store, cfg CoordinatorConfig) (*Coordinator, error) {
	if ctl == nil {
		return nil, fmt.Errorf("coordinator: controller is nil")
	}
	if store == nil {
		return nil, fmt.Errorf("coordinator: value cache store is nil")
	}
	return &Coordinator{ctl: ctl, store: store, cfg: cfg.withDefaults()}, nil
}

// Controller returns the controller this coordinator drives.
func (c *Coordinator) Controller() *Controller { return c.ctl }

// NextDeadline returns the deadline of a deferred bulk pass, if any. The
// collaborator schedules a Flush call at (or after) that instant.
func (c *Coordinator) NextDeadline() (time.Time, bool) {
	if c.pending == nil {
		return time.Time{}, false
	}
	return c.pending.deadline, true
}

// Flush runs a deferred bulk pass whose quiet period has elapsed at now.
// It reports StrategyNone when nothing was due.
func (c *Coordinator) Flush(now time.Time) SyncResult {
	if c.pending == nil || now.Before(c.pending.deadline) {
		return SyncResult{StrategyUsed: StrategyNone, RulesPreserved: true, Reason: "no deferred pass due"}
	}
	source := c.pending.source
	c.pending = nil
	return c.perform(source, now)
}

// Synchronize classifies one edit and reconciles the two views.
//
// Dropped and deferred edits are reported, never errors: a suppressed
// synchronization degrades to "filter still works, just not yet mirrored".
func (c *Coordinator) Synchronize(edit Edit) (SyncResult, ChangeContext) {
	now := c.cfg.Clock()

	// A deferred pass whose quiet period has passed runs before the new
	// edit is considered.
	if c.pending != nil && !now.Before(c.pending.deadline) {
		source := c.pending.source
		c.pending = nil
		c.perform(source, now)
	}

	bulk := c.lastEdit.valid && c.lastEdit.source == edit.source() &&
		now.Sub(c.lastEdit.at) < c.cfg.BulkThreshold
	cc := ChangeContext{
		Source:    edit.source(),
		Intensity: classify(edit, bulk),
		At:        now,
		Bulk:      bulk,
	}

	// Re-entrancy guard: the coordinator ignores edits it causes while
	// applying its own result.
	if c.synchronizing {
		return SyncResult{
			StrategyUsed:   StrategyNone,
			RulesPreserved: true,
			Suppressed:     true,
			Reason:         "re-entrant edit during synchronization",
		}, cc
	}

	// Circular-change guard: a cross-source edit right after a pass is
	// presumed to be that pass echoing back, not new user intent.
	if c.lastSync.valid && edit.source() != c.lastSync.source &&
		now.Sub(c.lastSync.at) < c.cfg.GuardWindow {
		return SyncResult{
			StrategyUsed:   StrategyNone,
			RulesPreserved: true,
			Suppressed:     true,
			Reason:         fmt.Sprintf("dropped %s edit %v after %s sync", edit.source(), now.Sub(c.lastSync.at), c.lastSync.source),
		}, cc
	}

	c.apply(edit)
	c.lastEdit = stamp{source: edit.source(), at: now, valid: true}

	if bulk {
		c.pending = &pendingSync{source: edit.source(), deadline: now.Add(c.cfg.QuietPeriod)}
		return SyncResult{
			StrategyUsed:   StrategyDeferred,
			RulesPreserved: true,
			Reason:         "bulk burst; pass deferred until quiet period",
		}, cc
	}

	c.pending = nil
	return c.perform(edit.source(), now), cc
}

func classify(edit Edit, bulk bool) Intensity {
	switch {
	case bulk:
		return IntensityComplete
	case edit.structural():
		return IntensityMajor
	default:
		return IntensityMinor
	}
}

// apply commits the edited state to the controller.
func (c *Coordinator) apply(edit Edit) {
	switch e := edit.(type) {
	case RulesEdit:
		c.ctl.SetGroups(e.Groups)
	case ValuesEdit:
		if sel := c.ctl.Selection(); sel != nil {
			sel.SelectOnly(e.Selection)
		} else if md, err := c.store.Get(c.ctl.ColumnKey()); err == nil {
			c.ctl.LoadCandidates(md)
			c.ctl.Selection().SelectOnly(e.Selection)
		}
	}
}

// perform runs one synchronization pass and records it for the circular
// guard.
func (c *Coordinator) perform(source EditSource, now time.Time) SyncResult {
	c.synchronizing = true
	defer func() { c.synchronizing = false }()

	var res SyncResult
	if source == SourceRules {
		res = c.rulesToValues()
	} else {
		res = c.valuesToRules()
	}

	c.lastSync = stamp{source: source, at: now, valid: true}
	return res
}

// rulesToValues marks each candidate value selected iff the compiled rule
// predicate accepts it. Performed only when at least one condition is
// meaningful; otherwise the user's in-progress rule edit must not clobber
// the selection with an all/none state.
func (c *Coordinator) rulesToValues() SyncResult {
	if !c.ctl.HasCustomExpression() {
		return SyncResult{
			StrategyUsed:   StrategyNone,
			RulesPreserved: true,
			Reason:         "no meaningful condition; selection left untouched",
		}
	}

	if c.ctl.Selection() == nil {
		if md, err := c.store.Get(c.ctl.ColumnKey()); err == nil {
			c.ctl.LoadCandidates(md)
		}
	}
	sel := c.ctl.Selection()
	if sel == nil {
		return SyncResult{
			StrategyUsed:   StrategyNone,
			RulesPreserved: true,
			Reason:         "no candidate values cached yet",
		}
	}

	stats, _ := c.store.Get(c.ctl.ColumnKey())
	pred, err := rule.Compile(c.ctl.Groups(), rule.CompileOptions{
		DataType: c.ctl.DataType(),
		Stats:    stats,
	})
	if err != nil {
		// Recovered locally: the selection stays as-is.
		return SyncResult{
			StrategyUsed:   StrategyNone,
			RulesPreserved: true,
			Reason:         "rule compilation failed: " + err.Error(),
		}
	}

	for _, cand := range sel.Candidates() {
		sel.SetSelected(cand, pred.Evaluate(cand))
	}
	return SyncResult{
		StrategyUsed:       StrategyRulesToValues,
		RulesPreserved:     true,
		ValuesSynchronized: true,
	}
}

// valuesToRules optimizes the selection into a compact rule, but only when
// the value view is active and the rule set is non-default: an empty rule
// stays empty so the user can author it from scratch.
func (c *Coordinator) valuesToRules() SyncResult {
	if c.ctl.ActiveView() != ViewValues {
		return SyncResult{
			StrategyUsed:   StrategyNone,
			RulesPreserved: true,
			Suppressed:     true,
			Reason:         "rules view active; selection not converted",
		}
	}
	if !c.ctl.HasCustomExpression() {
		return SyncResult{
			StrategyUsed:   StrategyNone,
			RulesPreserved: true,
			Reason:         "default rule preserved for authoring",
		}
	}
	sel := c.ctl.Selection()
	if sel == nil {
		return SyncResult{
			StrategyUsed:   StrategyNone,
			RulesPreserved: true,
			Reason:         "no candidate values cached yet",
		}
	}

	rec := optimizer.Optimize(sel.Candidates(), sel.SelectedValues(), c.ctl.DataType())
	if rec.Strategy == optimizer.StrategyClear {
		c.ctl.SetGroups(nil)
	} else {
		c.ctl.SetGroups([]rule.ConditionGroup{rec.ToGroup()})
	}
	return SyncResult{
		StrategyUsed:       StrategyValuesToRules,
		RulesPreserved:     false,
		ValuesSynchronized: false,
		Reason:             rec.Reason,
	}
}
