package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	guard := &Guard{}
	release := guard.Enter()
	t.Cleanup(release)

	return NewStore(8, guard)
}

func TestStore(t *testing.T) {
	t.Run("pairing is symmetric and reused", func(t *testing.T) {
		s := newTestStore(t)

		n := s.Allocate(KindHost, "box", "a", nil)
		n.CommittedInput = 1

		alt := s.PairAlternate(n)
		assert.Same(t, n, alt.Alternate)
		assert.Same(t, alt, n.Alternate)
		assert.Equal(t, 1, alt.PendingInput)
		assert.Equal(t, "a", alt.Key)

		again := s.PairAlternate(n)
		assert.Same(t, alt, again, "existing alternate must be reused")
		assert.Equal(t, 1, s.Reused())
	})

	t.Run("pairing resets stale work state", func(t *testing.T) {
		s := newTestStore(t)

		n := s.Allocate(KindHost, "box", "a", nil)
		alt := s.PairAlternate(n)
		alt.Effects.Set(EffectUpdate)
		alt.FirstChild = s.Allocate(KindHost, "text", "", nil)

		fresh := s.PairAlternate(n)
		assert.Same(t, alt, fresh)
		assert.Equal(t, EffectNone, fresh.Effects)
		assert.Nil(t, fresh.FirstChild)
	})

	t.Run("release recycles arena slots", func(t *testing.T) {
		s := newTestStore(t)

		n := s.Allocate(KindHost, "box", "a", nil)
		id := n.ID()
		assert.Equal(t, 1, s.Live())

		s.Release(n)
		assert.Equal(t, 0, s.Live())

		m := s.Allocate(KindHost, "box", "b", nil)
		assert.Equal(t, id, m.ID(), "freed slot must be reused first")
	})

	t.Run("release severs the alternate pairing", func(t *testing.T) {
		s := newTestStore(t)

		n := s.Allocate(KindHost, "box", "a", nil)
		alt := s.PairAlternate(n)

		s.Release(n)
		assert.Nil(t, alt.Alternate)
	})

	t.Run("release tree drops both generations once", func(t *testing.T) {
		s := newTestStore(t)

		parent := s.Allocate(KindHost, "box", "p", nil)
		child := s.Allocate(KindHost, "text", "c", parent)
		parent.FirstChild = child

		altParent := s.PairAlternate(parent)
		altChild := s.PairAlternate(child)
		altParent.FirstChild = altChild
		altChild.Parent = altParent

		s.ReleaseTree(parent)
		assert.Equal(t, 0, s.Live())
	})
}

func TestGuard(t *testing.T) {
	t.Run("reentrant for the owning goroutine", func(t *testing.T) {
		g := &Guard{}

		release := g.Enter()
		inner := g.Enter()
		inner()
		release()

		// free again: a later claim succeeds
		again := g.Enter()
		again()
	})

	t.Run("rejects mutation from a second goroutine", func(t *testing.T) {
		g := &Guard{}
		release := g.Enter()
		defer release()

		done := make(chan bool, 1)
		go func() {
			defer func() { done <- recover() != nil }()
			g.Enter()
		}()

		assert.True(t, <-done, "foreign goroutine must be rejected while held")
	})
}
