package internal

import (
	"iter"
	"reflect"
)

// Kind distinguishes node categories.
type Kind uint8

const (
	// KindRoot anchors a tree. There is exactly one per engine.
	KindRoot Kind = iota
	// KindHost is a node rendered by the host renderer.
	KindHost
	// KindComposite is a function unit: its children come from running its
	// render function against its input.
	KindComposite
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindHost:
		return "host"
	}
	return "composite"
}

// Decl is one declared child: the shape the next generation of the tree
// should take at a given position.
type Decl struct {
	Kind Kind
	// Type is the host type tag (e.g. "box", "text"). Only meaningful for
	// KindHost; two hosts only match if both kind and type match.
	Type string
	// Key is an optional stable identifier, unique among siblings.
	Key   string
	Input any

	// Children declares the subtree of a host node.
	Children []Decl
	// Render produces the subtree of a composite node from its input.
	Render func(input any) []Decl
}

// Node is a unit of work and render state. The tree is first-child/next-sibling
// linked so the work loop can descend and ascend without a call stack; Parent
// and Alternate are non-owning back-links.
type Node struct {
	id int // stable arena index

	Kind Kind
	Type string
	Key  string

	PendingInput   any
	CommittedInput any

	Parent      *Node
	FirstChild  *Node
	NextSibling *Node

	// Alternate is the paired node of the other generation. Pairing is
	// symmetric; at most two generations of a logical node exist at once.
	Alternate *Node

	Effects EffectFlags

	// Updates holds state-change requests not yet folded into PendingInput.
	// It is shared between the two generations: it belongs to the logical
	// node, not to one snapshot of it.
	Updates *UpdateQueue

	// Host is renderer-owned storage for the logical node, also shared
	// between generations so it survives the commit swap.
	Host *HostSlot

	// Lane of this node's pending work.
	Lane Lane

	// declared children as of the last reconciliation that visited this node,
	// so a later pass can re-descend without the parent re-declaring
	children []Decl
	render   func(any) []Decl

	// pass clock value at the last commit that touched this node
	committedAt int
}

func (n *Node) ID() int { return n.id }

// Children iterates the live child set: FirstChild reachability plus
// NextSibling chaining enumerates exactly the live children.
func (n *Node) Children() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		child := n.FirstChild

		for child != nil {
			if !yield(child) {
				return
			}

			child = child.NextSibling
		}
	}
}

// SameIdentity reports whether a declared child can reuse this node: the kind
// must match, and for host nodes the type tag too. Key equality is checked by
// the caller, since it depends on position.
func (n *Node) SameIdentity(d Decl) bool {
	if n.Kind != d.Kind {
		return false
	}
	if n.Kind == KindHost && n.Type != d.Type {
		return false
	}
	return true
}

// declaredChildren resolves what this node declares below itself: composites
// run their render function, hosts and the root carry their declared children
// verbatim.
func (n *Node) declaredChildren() []Decl {
	if n.Kind == KindComposite && n.render != nil {
		return n.render(n.PendingInput)
	}
	return n.children
}

// HostSlot is a stable box the renderer can hang its own state on (a DOM
// handle, a widget, a mirror entry). The engine never reads it.
type HostSlot struct {
	Data any
}

// inputEqual compares two input configurations. Inputs are arbitrary
// host-owned values (typically property maps), so structural equality is the
// only safe comparison.
func inputEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
