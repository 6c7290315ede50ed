package loom

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// testRenderer records every sequenced effect and can inject failures.
type testRenderer struct {
	calls []string
	fail  map[string]error
}

func (r *testRenderer) record(s string) error {
	r.calls = append(r.calls, s)
	if r.fail != nil {
		return r.fail[s]
	}
	return nil
}

func name(h Handle) string {
	if !h.OK() {
		return "end"
	}
	if h.Key() != "" {
		return h.Type() + "[" + h.Key() + "]"
	}
	return h.Type()
}

func (r *testRenderer) ApplyInsert(n, parent, before Handle) error {
	return r.record(fmt.Sprintf("insert %s before %s", name(n), name(before)))
}

func (r *testRenderer) ApplyUpdate(n Handle, prev, next Props) error {
	return r.record(fmt.Sprintf("update %s %v->%v", name(n), prev["v"], next["v"]))
}

func (r *testRenderer) ApplyDelete(n Handle) error {
	return r.record("delete " + name(n))
}

// testHost hands out slices with a fixed unit budget, on demand.
type testHost struct {
	budget    int
	remaining int
	callbacks []func()
	requests  []Lane
}

func (h *testHost) HasTimeRemaining() bool {
	h.remaining--
	return h.remaining >= 0
}

func (h *testHost) RequestCallback(lane Lane, fn func()) {
	h.callbacks = append(h.callbacks, fn)
	h.requests = append(h.requests, lane)
}

// slice grants one time slice: runs the oldest pending callback with a fresh
// budget. Reports whether anything ran.
func (h *testHost) slice() bool {
	if len(h.callbacks) == 0 {
		return false
	}
	fn := h.callbacks[0]
	h.callbacks = h.callbacks[1:]
	h.remaining = h.budget
	fn()
	return true
}

func (h *testHost) drain(t *testing.T) {
	t.Helper()
	for i := 0; h.slice(); i++ {
		if i > 1000 {
			t.Fatal("engine keeps requesting slices without finishing")
		}
	}
}

func box(key string, v int, children ...Element) Element {
	return Element{Type: "box", Key: key, Props: Props{"v": v}, Children: children}
}

func TestEngine(t *testing.T) {
	t.Run("mounts and commits a declared tree", func(t *testing.T) {
		rend := &testRenderer{}
		e := New(nil, rend)

		e.Mount(box("a", 1), box("b", 2))
		assert.NoError(t, e.Flush())

		assert.Equal(t, []string{
			"insert box[a] before end",
			"insert box[b] before end",
		}, rend.calls)
		assert.Equal(t, 1, e.Clock())
	})

	t.Run("find resolves handles through composites", func(t *testing.T) {
		rend := &testRenderer{}
		e := New(nil, rend)

		list := Element{
			Key: "list",
			Render: func(props Props) []Element {
				return []Element{box("inner", props["v"].(int))}
			},
			Props: Props{"v": 7},
		}

		e.Mount(list)
		assert.NoError(t, e.Flush())

		h := e.Find("inner")
		assert.True(t, h.OK())
		assert.Equal(t, "box", h.Type())
		assert.Equal(t, 7, h.Props()["v"])

		assert.False(t, e.Find("missing").OK())
	})

	t.Run("not-OK handles answer every accessor with zero values", func(t *testing.T) {
		rend := &testRenderer{}
		e := New(nil, rend)

		e.Mount(box("a", 1))
		assert.NoError(t, e.Flush())

		// renderers receive not-OK handles by contract (the append anchor)
		h := e.Find("missing")
		assert.False(t, h.OK())
		assert.Equal(t, "", h.Key())
		assert.Equal(t, "", h.Type())
		assert.Nil(t, h.Props())
		assert.Nil(t, h.HostData())
		h.SetHostData(1) // no-op, must not panic
	})

	t.Run("handle update reconciles only the changed node", func(t *testing.T) {
		rend := &testRenderer{}
		e := New(nil, rend)

		e.Mount(box("a", 1), box("b", 2))
		assert.NoError(t, e.Flush())
		rend.calls = nil

		e.ScheduleUpdate(e.Find("a"), Props{"v": 10}, LaneDefault)
		assert.NoError(t, e.Flush())

		assert.Equal(t, []string{"update box[a] 1->10"}, rend.calls)
	})

	t.Run("batch coalesces updates into one pass", func(t *testing.T) {
		rend := &testRenderer{}
		e := New(nil, rend)

		e.Mount(box("a", 1), box("b", 2))
		assert.NoError(t, e.Flush())
		rend.calls = nil

		e.Batch(func() {
			e.ScheduleUpdate(e.Find("a"), Props{"v": 10}, LaneDefault)
			e.ScheduleUpdate(e.Find("b"), Props{"v": 20}, LaneDefault)
		})
		assert.NoError(t, e.Flush())

		assert.Equal(t, []string{
			"update box[a] 1->10",
			"update box[b] 2->20",
		}, rend.calls)
		assert.Equal(t, 2, e.Clock(), "one commit for the whole batch")
	})

	t.Run("updates at the same lane apply in arrival order", func(t *testing.T) {
		rend := &testRenderer{}
		e := New(nil, rend)

		e.Mount(box("a", 1))
		assert.NoError(t, e.Flush())
		rend.calls = nil

		e.Batch(func() {
			e.ScheduleUpdate(e.Find("a"), Props{"v": 2}, LaneDefault)
			e.ScheduleUpdate(e.Find("a"), Props{"v": 3}, LaneDefault)
		})
		assert.NoError(t, e.Flush())

		// the later update wins, folded in arrival order
		assert.Equal(t, []string{"update box[a] 1->3"}, rend.calls)
	})
}
