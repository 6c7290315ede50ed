package internal

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Reconciler computes, for one parent, which existing children are reused,
// updated, inserted, or deleted against the newly declared child sequence.
// One call is atomic with respect to the work loop: suspension only ever
// happens between calls.
type Reconciler struct {
	store *Store
	log   *zap.Logger
}

func NewReconciler(store *Store, log *zap.Logger) *Reconciler {
	return &Reconciler{store: store, log: log}
}

// ReconcileChildren diffs the previous children (the linked list under the
// parent's alternate) against decls and builds the parent's new child list.
//
// Matching rules, in order:
//  1. Positional: while kind and key match at the same position, the previous
//     child's alternate is reused in place. Update is tagged only if the
//     input changed.
//  2. Keyed: after the first mismatch, remaining keyed previous children are
//     indexed by key. A declared child matching key and kind anywhere in that
//     set is a move: reused and tagged Update|Placement. A key match with a
//     different kind is not a match at all.
//  3. Everything else declared is a fresh node tagged Placement. Unkeyed
//     previous children are never matched past step 1.
//  4. Previous children not consumed are tagged Deletion exactly once, in
//     original order, and enqueued for removal attached to their original
//     parent. They are excluded from the new child list.
//
// A duplicate key among declared siblings is a StructuralError: the duplicate
// occurrence is demoted to a fresh insert and the error is returned, but the
// pass continues.
func (r *Reconciler) ReconcileChildren(pass *passState, parentWIP *Node, decls []Decl) error {
	var errs error

	var prev *Node
	if parentWIP.Alternate != nil {
		prev = parentWIP.Alternate.FirstChild
	}
	firstPrev := prev

	var first, last *Node
	link := func(child *Node) {
		if last == nil {
			first = child
		} else {
			last.NextSibling = child
		}
		last = child
	}

	consumed := map[*Node]bool{}
	declaredKeys := map[string]bool{}

	// step 1: walk both sequences by position while identity holds
	idx := 0
	for prev != nil && idx < len(decls) {
		d := decls[idx]
		if prev.Key != d.Key || !prev.SameIdentity(d) {
			break
		}
		if d.Key != "" {
			declaredKeys[d.Key] = true
		}

		consumed[prev] = true
		link(r.reuse(pass, parentWIP, prev, d, false))

		prev = prev.NextSibling
		idx++
	}

	// step 2: keyed matching for the remainder
	if idx < len(decls) {
		keyed := map[string]*Node{}
		for p := prev; p != nil; p = p.NextSibling {
			if p.Key != "" {
				if _, ok := keyed[p.Key]; !ok {
					keyed[p.Key] = p
				}
			}
		}

		for ; idx < len(decls); idx++ {
			d := decls[idx]

			if d.Key == "" {
				// position already diverged, so an unkeyed child is new
				link(r.insert(pass, parentWIP, d))
				continue
			}

			if declaredKeys[d.Key] {
				err := &StructuralError{Key: d.Key, Reason: "duplicate key among siblings"}
				errs = multierr.Append(errs, err)
				r.log.Warn("declared subtree replaced after structural anomaly", zap.String("key", d.Key))

				// demote to unkeyed so sibling key uniqueness holds in the
				// stored tree
				d.Key = ""
				link(r.insert(pass, parentWIP, d))
				continue
			}
			declaredKeys[d.Key] = true

			if p, ok := keyed[d.Key]; ok && p.SameIdentity(d) {
				// key match at a different position: a move, not an insert
				consumed[p] = true
				link(r.reuse(pass, parentWIP, p, d, true))
				continue
			}

			// no match, or key reused across a kind change: the old node (if
			// any) falls through to deletion below
			link(r.insert(pass, parentWIP, d))
		}
	}

	// step 4: delete every previous child not consumed, in original order
	for p := firstPrev; p != nil; p = p.NextSibling {
		if !consumed[p] {
			r.deleteChild(pass, parentWIP, p)
		}
	}

	parentWIP.FirstChild = first
	return errs
}

// reuse pairs the previous child's alternate into the new list. A moved child
// is tagged Update|Placement so commit can distinguish it from a pure insert.
func (r *Reconciler) reuse(pass *passState, parentWIP, prev *Node, d Decl, moved bool) *Node {
	child := r.store.PairAlternate(prev)
	child.Parent = parentWIP
	child.PendingInput = d.Input
	child.children = d.Children
	child.render = d.Render

	child.Updates.Fold(child, pass.lane)
	pass.folded = append(pass.folded, child)

	if moved {
		child.Effects.Set(EffectUpdate | EffectPlacement)
	} else if !inputEqual(child.PendingInput, child.CommittedInput) {
		child.Effects.Set(EffectUpdate)
	}

	return child
}

func (r *Reconciler) insert(pass *passState, parentWIP *Node, d Decl) *Node {
	child := r.store.Allocate(d.Kind, d.Type, d.Key, parentWIP)
	child.PendingInput = d.Input
	child.children = d.Children
	child.render = d.Render
	child.Effects.Set(EffectPlacement)

	pass.allocs = append(pass.allocs, child)
	return child
}

// deleteChild tags a current-generation node for removal and enqueues it
// immediately, so deletions precede the subtree's insertions in the effect
// list. A deleted node is never traversed again. The removal stays attached
// to its original parent through the node's own Parent link.
func (r *Reconciler) deleteChild(pass *passState, parentWIP, prev *Node) {
	prev.Effects.Set(EffectDeletion)
	parentWIP.Effects.Set(EffectChildDirty)
	pass.effects.Append(prev)
}
