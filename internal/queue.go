package internal

// Update is one state-change request targeting a logical node.
type Update struct {
	Input any
	// Children, when non-nil, replaces the node's declared children. Used by
	// whole-tree renders targeting the root.
	Children []Decl
	Lane     Lane
}

// UpdateQueue is the ordered sequence of updates not yet folded into a node's
// pending input. It is shared between the two generations of a logical node.
type UpdateQueue struct {
	updates []Update

	// foldMark is how much of the queue the in-flight pass has folded.
	// Updates arriving after the fold belong to a later pass, even in the
	// same lane, and must survive that pass's commit.
	foldMark int
}

func (q *UpdateQueue) Enqueue(u Update) {
	q.updates = append(q.updates, u)
}

func (q *UpdateQueue) Len() int {
	return len(q.updates)
}

// HighestLane returns the most urgent lane among queued updates.
func (q *UpdateQueue) HighestLane() Lane {
	highest := LaneNone
	for _, u := range q.updates {
		if u.Lane.MoreUrgent(highest) {
			highest = u.Lane
		}
	}
	return highest
}

// Fold applies, in arrival order, every queued update at or above the pass's
// urgency to the work-in-progress node. Later updates win: each application
// replaces the pending input. Folding does not consume the queue — a
// preempted pass is discarded wholesale, and the same updates must fold again
// into the restarted pass. CommitThrough consumes them once a pass commits.
func (q *UpdateQueue) Fold(n *Node, passLane Lane) {
	q.foldMark = len(q.updates)

	for _, u := range q.updates {
		if !inLane(u.Lane, passLane) {
			continue
		}

		if u.Input != nil {
			n.PendingInput = u.Input
		}
		if u.Children != nil {
			n.children = u.Children
		}
		if u.Lane.MoreUrgent(n.Lane) {
			n.Lane = u.Lane
		}
	}
}

// CommitThrough drops every update the committed pass actually folded:
// lane-eligible entries up to the fold mark. Later arrivals stay queued.
func (q *UpdateQueue) CommitThrough(passLane Lane) {
	kept := q.updates[:0]
	for i, u := range q.updates {
		if i >= q.foldMark || !inLane(u.Lane, passLane) {
			kept = append(kept, u)
		}
	}
	q.updates = kept
	q.foldMark = 0
}

// inLane reports whether an update at lane u is folded by a pass at lane pass.
func inLane(u, pass Lane) bool {
	return u == pass || u.MoreUrgent(pass)
}
