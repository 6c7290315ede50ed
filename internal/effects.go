package internal

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Renderer is the capability commit delegates environment mutation to. The
// engine only sequences the calls; it never touches the environment itself.
type Renderer interface {
	// ApplyInsert places a node under parent. A nil before means append;
	// otherwise the node goes immediately before that sibling.
	ApplyInsert(n, parent, before *Node) error
	// ApplyUpdate applies an input change to an already-placed node.
	ApplyUpdate(n *Node, prev, next any) error
	// ApplyDelete removes a node and its subtree.
	ApplyDelete(n *Node) error
}

// EffectList is the flat ordered list of side-effect-tagged nodes a pass
// produces. Ordering is deterministic: a node's deletions are appended when
// its parent reconciles (before any insertion below the new parent), and a
// node appends itself on completion, after all of its children.
type EffectList struct {
	entries []*Node
}

func (l *EffectList) Append(n *Node) {
	l.entries = append(l.entries, n)
}

func (l *EffectList) Len() int {
	return len(l.entries)
}

// Committer applies an effect list in one uninterruptible pass.
type Committer struct {
	renderer Renderer
	log      *zap.Logger
}

func NewCommitter(renderer Renderer, log *zap.Logger) *Committer {
	return &Committer{renderer: renderer, log: log}
}

// Commit applies each tagged effect exactly once, in list order. It never
// yields and it never stops early: a renderer error is collected and the rest
// of the list still rolls forward, so no partial tree is left observable.
// Promotion of pending input to committed input happens here and nowhere else.
func (c *Committer) Commit(list *EffectList, clock int) error {
	if c.renderer == nil {
		return &HostCapabilityError{Capability: "renderer"}
	}

	var errs error

	for _, n := range list.entries {
		if n.Effects.Has(EffectDeletion) {
			errs = multierr.Append(errs, c.renderer.ApplyDelete(n))
			continue
		}

		// promote first so the renderer reads the new input off the node
		prev := n.CommittedInput
		n.CommittedInput = n.PendingInput
		n.committedAt = clock

		if n.Effects.Has(EffectPlacement) {
			errs = multierr.Append(errs, c.renderer.ApplyInsert(n, n.Parent, placementAnchor(n)))
		}
		if n.Effects.Has(EffectUpdate) {
			errs = multierr.Append(errs, c.renderer.ApplyUpdate(n, prev, n.PendingInput))
		}
	}

	c.log.Debug("commit applied",
		zap.Int("clock", clock),
		zap.Int("effects", len(list.entries)))

	return errs
}

// placementAnchor finds the sibling a placed node must land before: the first
// following sibling that is not itself pending placement. Placements apply in
// list order (left to right), so anchoring each on the first stable sibling
// yields the declared order. Nil means append at the end.
func placementAnchor(n *Node) *Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if !s.Effects.Has(EffectPlacement) {
			return s
		}
	}
	return nil
}
