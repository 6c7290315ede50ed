package internal

import (
	"errors"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Host is the time-slicing capability the engine consumes. It never
// implements its own timing: it only asks whether the current slice has
// budget left, and asks for another slice when it suspends.
type Host interface {
	HasTimeRemaining() bool
	RequestCallback(lane Lane, fn func())
}

// Runtime wires the store, lanes, work loop and committer together and owns
// the current-root pointer. All node mutation happens on the single goroutine
// holding the guard; the current tree is read-only to everything but commit.
type Runtime struct {
	guard Guard

	store     *Store
	lanes     *Lanes
	loop      *Loop
	committer *Committer
	batcher   *Batcher

	host     Host
	renderer Renderer
	log      *zap.Logger

	// current is the last committed, externally visible generation. It is
	// swapped with the work-in-progress root only inside commit.
	current *Node

	// clock increments once per commit
	clock int

	scheduled     bool
	scheduledLane Lane

	arenaCap int
	lastErr  error
}

type Option func(*Runtime)

func WithLogger(log *zap.Logger) Option {
	return func(r *Runtime) { r.log = log }
}

func WithArenaCapacity(n int) Option {
	return func(r *Runtime) { r.arenaCap = n }
}

func NewRuntime(host Host, renderer Renderer, opts ...Option) *Runtime {
	r := &Runtime{
		host:     host,
		renderer: renderer,
		log:      zap.NewNop(),
		arenaCap: 256,
	}

	for _, opt := range opts {
		opt(r)
	}

	r.store = NewStore(r.arenaCap, &r.guard)
	r.lanes = NewLanes()
	r.batcher = NewBatcher()

	reconciler := NewReconciler(r.store, r.log)
	r.loop = NewLoop(reconciler, r.store, r.log)
	r.committer = NewCommitter(renderer, r.log)

	return r
}

// RenderRoot declares a new shape for the whole tree at the given lane. The
// first call mounts the root.
func (r *Runtime) RenderRoot(children []Decl, lane Lane) {
	release := r.guard.Enter()
	defer release()

	if r.current == nil {
		r.current = r.store.Allocate(KindRoot, "", "", nil)
	}

	r.current.Updates.Enqueue(Update{Children: children, Lane: lane})
	r.schedule(lane)
}

// ScheduleUpdate queues a state-change request against a logical node. Equal
// or less urgent updates than the in-flight pass fold into a later pass; a
// more urgent one preempts.
func (r *Runtime) ScheduleUpdate(target *Node, input any, lane Lane) {
	release := r.guard.Enter()
	defer release()

	target.Updates.Enqueue(Update{Input: input, Lane: lane})
	r.schedule(lane)
}

// Batch coalesces every update scheduled inside fn into a single pass.
func (r *Runtime) Batch(fn func()) {
	release := r.guard.Enter()
	defer release()

	r.batcher.Batch(fn, func() {
		if next := r.lanes.Next(); next != LaneNone {
			r.requestSlice(next)
		}
	})
}

func (r *Runtime) schedule(lane Lane) {
	r.lanes.Mark(lane)

	// preemption: strictly more urgent work discards the in-flight pass and
	// restarts from the root, so a committed tree is always one coherent
	// pass. The discard itself happens at the work loop's next unit
	// boundary: this can run reentrantly from a render function while the
	// loop still holds the pass.
	if r.loop.State() == StateWorking && lane.MoreUrgent(r.loop.Pass().lane) {
		r.loop.RequestPreempt(lane)
	}

	if r.batcher.IsBatching() {
		return
	}

	r.requestSlice(lane)
}

func (r *Runtime) requestSlice(lane Lane) {
	if r.host == nil {
		// no slicing capability: work runs when the embedder calls Flush
		return
	}

	if r.scheduled && !lane.MoreUrgent(r.scheduledLane) {
		return
	}

	r.scheduled = true
	r.scheduledLane = lane
	r.host.RequestCallback(lane, r.PerformWork)
}

// PerformWork is the host-granted slice entry point: it works through units
// until the budget runs out, then suspends and asks for another slice.
func (r *Runtime) PerformWork() {
	release := r.guard.Enter()
	defer release()

	r.scheduled = false
	r.scheduledLane = LaneNone
	r.work(false)
}

// Flush runs every pending pass to completion, ignoring the slice budget.
// Embedding hosts without a slicing primitive drive the engine with this. It
// returns errors surfaced by commit since the last call.
func (r *Runtime) Flush() error {
	release := r.guard.Enter()
	defer release()

	r.work(true)

	err := r.lastErr
	r.lastErr = nil
	return err
}

func (r *Runtime) work(flushAll bool) {
	for {
		if r.loop.Pass() == nil {
			lane := r.lanes.Next()
			if lane == LaneNone || r.current == nil {
				return
			}
			r.prepare(lane)
		}

		pass := r.loop.Pass()
		for pass.next != nil && !r.loop.Preempted() {
			if !flushAll && !r.hasTime() {
				// suspend: the node graph holds all accumulated state, only
				// the next-node reference needs to survive
				r.requestSlice(pass.lane)
				return
			}
			r.loop.Step()
		}

		if r.loop.Preempted() {
			r.loop.Discard()
			continue
		}

		if !r.commit() {
			return
		}

		if !flushAll {
			if r.lanes.HasPending() && r.hasTime() {
				continue
			}
			if r.lanes.HasPending() {
				r.requestSlice(r.lanes.Next())
			}
			return
		}
	}
}

func (r *Runtime) prepare(lane Lane) {
	wip := r.store.PairAlternate(r.current)
	r.loop.Prepare(wip, lane)

	wip.Updates.Fold(wip, lane)
	r.loop.Pass().folded = append(r.loop.Pass().folded, wip)
}

// commit applies the effect list in one uninterruptible pass, then promotes
// the work-in-progress generation to current. Reports whether the pass went
// through; a missing renderer aborts it with nothing applied.
func (r *Runtime) commit() bool {
	pass := r.loop.Pass()
	next := r.clock + 1

	r.loop.state = StateCommitting
	err := r.committer.Commit(pass.effects, next)

	var capErr *HostCapabilityError
	if errors.As(err, &capErr) {
		r.log.Error("pass aborted before commit", zap.Error(err))
		r.lastErr = multierr.Append(r.lastErr, err)
		r.loop.Discard()
		return false
	}
	if err != nil {
		// renderer trouble: commit still ran to completion, surface it
		r.lastErr = multierr.Append(r.lastErr, err)
	}
	if pass.errs != nil {
		// structural anomalies recovered during reconciliation ride along
		// with the commit they were folded into
		r.lastErr = multierr.Append(r.lastErr, pass.errs)
	}

	r.clock = next

	// promote: swap the root generations
	r.current = pass.root
	r.lanes.ClearThrough(pass.lane)

	for _, n := range pass.folded {
		n.Updates.CommitThrough(pass.lane)
		// updates that arrived mid-pass still need a pass of their own
		if n.Updates.Len() > 0 {
			r.lanes.Mark(n.Updates.HighestLane())
		}
	}

	for _, n := range pass.effects.entries {
		if n.Effects.Has(EffectDeletion) {
			r.store.ReleaseTree(n)
		}
	}

	clearCommittedEffects(r.current)
	r.loop.Finish()

	return true
}

func (r *Runtime) hasTime() bool {
	return r.host == nil || r.host.HasTimeRemaining()
}

// CurrentRoot returns the committed root, nil before the first mount.
func (r *Runtime) CurrentRoot() *Node { return r.current }

// Clock returns the number of commits so far.
func (r *Runtime) Clock() int { return r.clock }

// Find walks the committed tree by sibling keys, one per depth level.
func (r *Runtime) Find(keys ...string) *Node {
	n := r.current
	for _, key := range keys {
		if n == nil {
			return nil
		}
		n = findChildByKey(n, key)
	}
	return n
}

func findChildByKey(parent *Node, key string) *Node {
	for child := range parent.Children() {
		if child.Key == key {
			return child
		}
		// composites are transparent to key paths
		if child.Kind == KindComposite {
			if found := findChildByKey(child, key); found != nil {
				return found
			}
		}
	}
	return nil
}

// StoreStats reports allocation behavior for reuse accounting.
func (r *Runtime) StoreStats() (allocated, reused, live int) {
	return r.store.Allocated(), r.store.Reused(), r.store.Live()
}
