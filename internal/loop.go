package internal

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// LoopState is the work loop's phase.
type LoopState uint8

const (
	StateIdle LoopState = iota
	StateWorking
	StateCommitting
)

func (s LoopState) String() string {
	switch s {
	case StateWorking:
		return "working"
	case StateCommitting:
		return "committing"
	}
	return "idle"
}

// passState is everything one reconciliation pass accumulates outside the
// node graph itself. The single piece of resumption state is next: suspending
// saves only that reference, since all other progress lives in the nodes.
type passState struct {
	lane Lane
	root *Node // work-in-progress root
	next *Node // next unit of work

	effects *EffectList
	allocs  []*Node // fresh nodes allocated this pass
	folded  []*Node // nodes whose update queues folded into this pass

	// preemptedBy is the most urgent lane that asked to take over, LaneNone
	// while the pass is uncontested
	preemptedBy Lane

	errs error // recovered structural anomalies, reported at commit
}

// Loop drives a depth-first, parent-then-child traversal of pending work, one
// node at a time. It never looks at the clock itself; the runtime checks the
// host's budget between units.
type Loop struct {
	state      LoopState
	pass       *passState
	reconciler *Reconciler
	store      *Store
	log        *zap.Logger
}

func NewLoop(reconciler *Reconciler, store *Store, log *zap.Logger) *Loop {
	return &Loop{
		reconciler: reconciler,
		store:      store,
		log:        log,
	}
}

func (l *Loop) State() LoopState { return l.state }
func (l *Loop) Pass() *passState { return l.pass }

// Prepare starts a fresh pass from the work-in-progress root.
func (l *Loop) Prepare(wipRoot *Node, lane Lane) {
	l.pass = &passState{
		lane:    lane,
		root:    wipRoot,
		next:    wipRoot,
		effects: &EffectList{},
	}
	l.state = StateWorking
}

// RequestPreempt records that strictly more urgent work arrived. The actual
// discard is deferred to the next unit boundary: an update may be scheduled
// from inside a render function while a unit is mid-flight, and a unit always
// runs to completion.
func (l *Loop) RequestPreempt(lane Lane) {
	if l.pass == nil {
		return
	}
	if l.pass.preemptedBy == LaneNone || lane.MoreUrgent(l.pass.preemptedBy) {
		l.pass.preemptedBy = lane
	}
}

// Preempted reports whether the in-progress pass should be discarded before
// its next unit of work.
func (l *Loop) Preempted() bool {
	return l.pass != nil && l.pass.preemptedBy != LaneNone
}

// Step performs one unit of work and advances the resumption pointer.
// It returns false once the tree is complete.
func (l *Loop) Step() bool {
	if l.pass == nil || l.pass.next == nil {
		return false
	}
	l.pass.next = l.performUnitOfWork(l.pass.next)
	return l.pass.next != nil
}

// performUnitOfWork reconciles one node's declared children, then returns the
// next node: the first child if one exists (descend), else the nearest
// ancestor-or-self with a pending sibling (ascend), else nil (tree complete).
func (l *Loop) performUnitOfWork(n *Node) *Node {
	decls := n.declaredChildren()

	if err := l.reconciler.ReconcileChildren(l.pass, n, decls); err != nil {
		l.pass.errs = multierr.Append(l.pass.errs, err)
	}

	if n.FirstChild != nil {
		return n.FirstChild
	}

	return l.completeUnitOfWork(n)
}

// completeUnitOfWork finalizes nodes on the way back up: a node with effects
// appends itself to the effect list after all of its children, and any dirt
// below bubbles to the parent as ChildDirty so ancestors know the subtree
// needs commit attention even when they are clean themselves.
func (l *Loop) completeUnitOfWork(n *Node) *Node {
	for n != nil {
		if n.Effects.Has(EffectPlacement | EffectUpdate | EffectDeletion) {
			l.pass.effects.Append(n)
		}

		if n.Parent != nil && n.Effects != EffectNone {
			n.Parent.Effects.Set(EffectChildDirty)
		}

		if n.NextSibling != nil {
			return n.NextSibling
		}

		n = n.Parent
	}

	return nil
}

// Discard abandons the in-progress pass: every effect tag it set is cleared
// and every node it freshly allocated is released. Alternates it paired for
// unchanged current nodes stay linked; they are still valid for reuse by the
// next pass. The current tree is untouched throughout, so nothing observable
// changes.
func (l *Loop) Discard() {
	if l.pass == nil {
		return
	}

	for _, n := range l.pass.effects.entries {
		n.Effects = EffectNone
	}
	clearEffects(l.pass.root)

	for _, n := range l.pass.allocs {
		if n.Alternate == nil {
			l.store.Release(n)
		}
	}

	l.log.Info("pass preempted, work-in-progress discarded",
		zap.Stringer("lane", l.pass.lane))

	l.pass = nil
	l.state = StateIdle
}

// Finish tears down pass bookkeeping after a commit.
func (l *Loop) Finish() {
	l.pass = nil
	l.state = StateIdle
}

// clearEffects resets tags unconditionally. Discard uses it: a half-built
// pass has not bubbled ChildDirty everywhere yet, so no subtree can be
// skipped.
func clearEffects(n *Node) {
	if n == nil {
		return
	}
	n.Effects = EffectNone
	for child := range n.Children() {
		clearEffects(child)
	}
}

// clearCommittedEffects resets tags on a fully completed tree. Completion
// bubbled ChildDirty through every ancestor of a tagged node, so a clean node
// means a clean subtree and the walk prunes there.
func clearCommittedEffects(n *Node) {
	if n == nil || n.Effects == EffectNone {
		return
	}
	n.Effects = EffectNone
	for child := range n.Children() {
		clearCommittedEffects(child)
	}
}
