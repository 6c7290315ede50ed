package internal

// Lane is a priority class for updates. Smaller value = more urgent; this
// total order is fixed across the engine. LaneNone sorts after every real
// lane so it never wins a preemption decision.
type Lane uint8

const (
	LaneSync    Lane = 1
	LaneInput   Lane = 2
	LaneDefault Lane = 3
	LaneIdle    Lane = 4

	LaneNone Lane = 0
	laneMax  Lane = LaneIdle
)

// MoreUrgent reports whether l preempts other.
func (l Lane) MoreUrgent(other Lane) bool {
	if l == LaneNone {
		return false
	}
	return other == LaneNone || l < other
}

func (l Lane) String() string {
	switch l {
	case LaneSync:
		return "sync"
	case LaneInput:
		return "input"
	case LaneDefault:
		return "default"
	case LaneIdle:
		return "idle"
	}
	return "none"
}

// Lanes tracks which priority classes have pending work.
type Lanes struct {
	pending [laneMax + 1]bool
}

func NewLanes() *Lanes {
	return &Lanes{}
}

func (ls *Lanes) Mark(l Lane) {
	if l != LaneNone {
		ls.pending[l] = true
	}
}

// Next returns the most urgent lane with pending work.
func (ls *Lanes) Next() Lane {
	for l := LaneSync; l <= laneMax; l++ {
		if ls.pending[l] {
			return l
		}
	}
	return LaneNone
}

// ClearThrough clears every lane at or more urgent than l. A committed pass
// at lane l folds in all pending work at or above its urgency, so those
// classes are satisfied together.
func (ls *Lanes) ClearThrough(l Lane) {
	for i := LaneSync; i <= l; i++ {
		ls.pending[i] = false
	}
}

func (ls *Lanes) HasPending() bool {
	return ls.Next() != LaneNone
}
