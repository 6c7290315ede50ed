package internal

import (
	"sync/atomic"

	"github.com/petermattis/goid"
)

// Guard enforces the single-logical-thread contract on the node store: only
// the goroutine driving the work loop may mutate nodes. Entry is reentrant
// for the owning goroutine and reclaims freely once released.
type Guard struct {
	owner atomic.Int64
	depth int
}

// Enter claims the guard for the calling goroutine and returns the matching
// release. It panics when another goroutine currently holds it, since that is
// a contract violation, not a recoverable condition.
func (g *Guard) Enter() func() {
	gid := goid.Get()

	current := g.owner.Load()
	if current == gid {
		g.depth++
		return func() { g.depth-- }
	}

	if !g.owner.CompareAndSwap(0, gid) {
		panic("loom: node store entered from a second goroutine while a pass is running")
	}

	g.depth = 1
	return func() {
		g.depth--
		if g.depth == 0 {
			g.owner.Store(0)
		}
	}
}

func (g *Guard) check() {
	if g.owner.Load() != goid.Get() {
		panic("loom: node store mutated outside the work loop's goroutine")
	}
}
