package internal

// EffectFlags describes the side effects commit must apply for a node.
type EffectFlags uint8

const (
	EffectNone EffectFlags = 0
	// EffectPlacement means the node must be inserted, or moved to a new
	// position among its siblings.
	EffectPlacement EffectFlags = 1 << iota
	// EffectUpdate means the node's committed input differs from its pending input.
	EffectUpdate
	// EffectDeletion means the node is removed from the tree. A deleted node is
	// never traversed for further child reconciliation.
	EffectDeletion
	// EffectChildDirty marks a node whose subtree carries effects even if the
	// node itself is clean.
	EffectChildDirty
)

func (f EffectFlags) Has(flag EffectFlags) bool {
	return f&flag != 0
}

func (f *EffectFlags) Set(flag EffectFlags) {
	*f |= flag
}

func (f *EffectFlags) Clear(flag EffectFlags) {
	*f &^= flag
}

func (f EffectFlags) String() string {
	if f == EffectNone {
		return "none"
	}

	s := ""
	if f.Has(EffectPlacement) {
		s += "+placement"
	}
	if f.Has(EffectUpdate) {
		s += "+update"
	}
	if f.Has(EffectDeletion) {
		s += "+deletion"
	}
	if f.Has(EffectChildDirty) {
		s += "+childdirty"
	}
	return s[1:]
}
