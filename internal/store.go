package internal

// Store is the arena holding every node of both generations, addressed by
// stable indices. The store owns all nodes; liveness is reachability from the
// current or work-in-progress root, and slots are recycled once a node is
// reachable from neither.
type Store struct {
	nodes []*Node
	free  []int

	guard *Guard

	allocated int
	reused    int
}

func NewStore(capacity int, guard *Guard) *Store {
	return &Store{
		nodes: make([]*Node, 0, capacity),
		guard: guard,
	}
}

// Allocate creates a fresh node. Used only when the reconciler decides no
// reusable alternate exists for a declared child.
func (s *Store) Allocate(kind Kind, typ, key string, parent *Node) *Node {
	s.guard.check()

	n := &Node{
		Kind:    kind,
		Type:    typ,
		Key:     key,
		Parent:  parent,
		Updates: &UpdateQueue{},
		Host:    &HostSlot{},
	}

	if len(s.free) > 0 {
		idx := s.free[len(s.free)-1]
		s.free = s.free[:len(s.free)-1]
		n.id = idx
		s.nodes[idx] = n
	} else {
		n.id = len(s.nodes)
		s.nodes = append(s.nodes, n)
	}

	s.allocated++
	return n
}

// PairAlternate returns the work-in-progress twin of a current-generation
// node, reusing the existing alternate when present. Reuse is preferred to
// allocation so memory stays bounded across generations.
func (s *Store) PairAlternate(current *Node) *Node {
	s.guard.check()

	alt := current.Alternate
	if alt == nil {
		alt = s.Allocate(current.Kind, current.Type, current.Key, nil)
		alt.Alternate = current
		current.Alternate = alt
		s.allocated-- // counted as a pairing, not a fresh node
	} else {
		s.reused++
	}

	// reset the twin for a fresh pass; all links are rebuilt by reconciliation
	alt.Kind = current.Kind
	alt.Type = current.Type
	alt.Key = current.Key
	alt.PendingInput = current.CommittedInput
	alt.CommittedInput = current.CommittedInput
	alt.Effects = EffectNone
	alt.Parent = nil
	alt.FirstChild = nil
	alt.NextSibling = nil
	alt.Lane = LaneNone
	alt.children = current.children
	alt.render = current.render
	alt.committedAt = current.committedAt

	// queue and host slot are shared by the pair: they belong to the logical
	// node, not to one generation of it
	alt.Updates = current.Updates
	alt.Host = current.Host

	return alt
}

// Release returns a single node's slot to the arena and severs its alternate
// pairing. The caller guarantees the node is unreachable from both roots.
func (s *Store) Release(n *Node) {
	s.guard.check()

	if n.Alternate != nil {
		n.Alternate.Alternate = nil
		n.Alternate = nil
	}

	if n.id >= 0 && n.id < len(s.nodes) && s.nodes[n.id] == n {
		s.nodes[n.id] = nil
		s.free = append(s.free, n.id)
	}

	n.Parent = nil
	n.FirstChild = nil
	n.NextSibling = nil
	n.Updates = nil
	n.Host = nil
}

// ReleaseTree releases a whole subtree, both generations. Collection runs
// before any release so shared alternate pairings are visited exactly once.
func (s *Store) ReleaseTree(n *Node) {
	seen := map[*Node]bool{}
	s.collect(n, seen)

	for node := range seen {
		s.Release(node)
	}
}

func (s *Store) collect(n *Node, seen map[*Node]bool) {
	if n == nil || seen[n] {
		return
	}
	seen[n] = true

	s.collect(n.Alternate, seen)
	for child := range n.Children() {
		s.collect(child, seen)
	}
}

// Live counts occupied arena slots.
func (s *Store) Live() int {
	live := 0
	for _, n := range s.nodes {
		if n != nil {
			live++
		}
	}
	return live
}

// Allocated is the number of fresh allocations since the store was created.
func (s *Store) Allocated() int { return s.allocated }

// Reused is the number of alternate reuses since the store was created.
func (s *Store) Reused() int { return s.reused }
