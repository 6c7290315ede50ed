package loom

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommit(t *testing.T) {
	t.Run("faulting renderer does not stop the effect list", func(t *testing.T) {
		boom := errors.New("renderer rejected update")
		rend := &testRenderer{fail: map[string]error{
			"update box[b] 2->20": boom,
		}}
		e := New(nil, rend)

		e.Mount(box("a", 1), box("b", 2), box("c", 3))
		assert.NoError(t, e.Flush())
		rend.calls = nil

		e.Batch(func() {
			e.ScheduleUpdate(e.Find("a"), Props{"v": 10}, LaneDefault)
			e.ScheduleUpdate(e.Find("b"), Props{"v": 20}, LaneDefault)
			e.ScheduleUpdate(e.Find("c"), Props{"v": 30}, LaneDefault)
		})

		err := e.Flush()
		assert.ErrorIs(t, err, boom)

		// every effect after the fault was still applied: commit rolls the
		// list forward to completion, never exposing a partial state
		assert.Equal(t, []string{
			"update box[a] 1->10",
			"update box[b] 2->20",
			"update box[c] 3->30",
		}, rend.calls)
		assert.Equal(t, 2, e.Clock())
	})

	t.Run("missing renderer aborts the pass before any effect", func(t *testing.T) {
		e := New(nil, nil)

		e.Mount(box("a", 1))
		err := e.Flush()

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "renderer")
		assert.Equal(t, 0, e.Clock(), "no commit may happen without the capability")
	})

	t.Run("a commit error is reported once", func(t *testing.T) {
		boom := errors.New("insert failed")
		rend := &testRenderer{fail: map[string]error{
			"insert box[a] before end": boom,
		}}
		e := New(nil, rend)

		e.Mount(box("a", 1))
		assert.ErrorIs(t, e.Flush(), boom)

		// nothing left pending, nothing left to report
		assert.NoError(t, e.Flush())
	})

	t.Run("deleted subtrees are reclaimed", func(t *testing.T) {
		rend := &testRenderer{}
		e := New(nil, rend)

		e.Mount(
			box("keep", 1),
			box("drop", 2, box("leaf", 3)),
		)
		assert.NoError(t, e.Flush())

		e.Render(LaneDefault, box("keep", 1))
		assert.NoError(t, e.Flush())

		assert.Contains(t, rend.calls, "delete box[drop]")
		assert.False(t, e.Find("drop").OK())
		assert.False(t, e.Find("leaf").OK())
	})
}
