// Package loom is an incremental, priority-aware tree reconciliation engine.
// Given the previously committed tree and a newly declared shape, it computes
// the minimal structural and property changes, runs the computation as
// interruptible units of work under a host-provided time budget, and applies
// the resulting effects in one atomic commit.
package loom

import (
	"go.uber.org/zap"

	"github.com/AnatoleLucet/loom/internal"
)

// Lane is a priority class. Smaller value = more urgent; an update in a more
// urgent lane than an in-flight pass preempts it.
type Lane uint8

const (
	LaneSync    Lane = Lane(internal.LaneSync)
	LaneInput   Lane = Lane(internal.LaneInput)
	LaneDefault Lane = Lane(internal.LaneDefault)
	LaneIdle    Lane = Lane(internal.LaneIdle)
)

// Props is the input configuration of a node.
type Props = map[string]any

// ComponentFunc produces the declared children of a composite element from
// its current props.
type ComponentFunc func(props Props) []Element

// Element is one declared node: the shape the next generation of the tree
// should take at its position.
type Element struct {
	// Type is the host type tag, e.g. "box" or "text". Ignored when Render
	// is set.
	Type string
	// Key optionally identifies this element among its siblings across
	// generations. Uniqueness is only required within one sibling set.
	Key      string
	Props    Props
	Children []Element
	// Render makes this a composite element: its subtree is computed from
	// its props instead of declared inline.
	Render ComponentFunc
}

// Handle is an opaque reference to a live node, valid across generations.
type Handle struct {
	node *internal.Node
}

func (h Handle) OK() bool { return h.node != nil }

// Key returns the node's sibling key, "" for a not-OK handle.
func (h Handle) Key() string {
	if h.node == nil {
		return ""
	}
	return h.node.Key
}

// Type returns the node's host type tag, "" for a not-OK handle.
func (h Handle) Type() string {
	if h.node == nil {
		return ""
	}
	return h.node.Type
}

// Props returns the node's committed input, nil for a not-OK handle.
func (h Handle) Props() Props {
	if h.node == nil {
		return nil
	}
	p, _ := h.node.CommittedInput.(Props)
	return p
}

// HostData returns renderer-owned state for the logical node. The slot is
// stable across generations: handles from different commits of the same
// logical node see the same value.
func (h Handle) HostData() any {
	if h.node == nil || h.node.Host == nil {
		return nil
	}
	return h.node.Host.Data
}

// SetHostData stores renderer-owned state on the logical node.
func (h Handle) SetHostData(v any) {
	if h.node != nil && h.node.Host != nil {
		h.node.Host.Data = v
	}
}

// Renderer receives the sequenced effects during commit and performs the
// actual environment mutation. The engine only orders the calls.
type Renderer interface {
	// ApplyInsert places a node under parent, before the given sibling, or
	// at the end when before is not OK. It is also how moves are applied.
	ApplyInsert(n, parent, before Handle) error
	ApplyUpdate(n Handle, prev, next Props) error
	ApplyDelete(n Handle) error
}

// Host is the time-slicing capability the engine consumes. A nil Host is
// allowed: the engine then only makes progress inside Flush.
type Host interface {
	HasTimeRemaining() bool
	RequestCallback(lane Lane, fn func())
}

type Option func(*config)

type config struct {
	opts []internal.Option
}

// WithLogger attaches a logger for the engine's observability events:
// preemption discards, structural anomalies, commit summaries.
func WithLogger(log *zap.Logger) Option {
	return func(c *config) { c.opts = append(c.opts, internal.WithLogger(log)) }
}

// WithArenaCapacity pre-sizes the node arena.
func WithArenaCapacity(n int) Option {
	return func(c *config) { c.opts = append(c.opts, internal.WithArenaCapacity(n)) }
}

// Engine reconciles declared trees into renderer effects.
type Engine struct {
	rt *internal.Runtime
}

func New(host Host, renderer Renderer, opts ...Option) *Engine {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	var h internal.Host
	if host != nil {
		h = hostAdapter{host}
	}

	var r internal.Renderer
	if renderer != nil {
		r = rendererAdapter{renderer}
	}

	return &Engine{
		rt: internal.NewRuntime(h, r, cfg.opts...),
	}
}

// Mount declares the initial tree at the default lane.
func (e *Engine) Mount(children ...Element) {
	e.Render(LaneDefault, children...)
}

// Render declares a new shape for the whole tree at the given lane.
func (e *Engine) Render(lane Lane, children ...Element) {
	e.rt.RenderRoot(toDecls(children), internal.Lane(lane))
}

// ScheduleUpdate queues new props for a node. More urgent updates than the
// in-flight pass preempt it; the rest fold into a later pass.
func (e *Engine) ScheduleUpdate(h Handle, props Props, lane Lane) {
	if !h.OK() {
		return
	}
	e.rt.ScheduleUpdate(h.node, props, internal.Lane(lane))
}

// Batch coalesces every update scheduled inside fn into a single pass.
func (e *Engine) Batch(fn func()) {
	e.rt.Batch(fn)
}

// Flush runs all pending work to completion, ignoring the slice budget, and
// returns any error commit surfaced since the last call.
func (e *Engine) Flush() error {
	return e.rt.Flush()
}

// Clock returns the number of commits so far.
func (e *Engine) Clock() int {
	return e.rt.Clock()
}

// Find resolves a handle by walking the committed tree by key, one per depth
// level. Composite nodes are transparent to the path.
func (e *Engine) Find(keys ...string) Handle {
	return Handle{e.rt.Find(keys...)}
}

func toDecls(els []Element) []internal.Decl {
	if len(els) == 0 {
		return nil
	}

	decls := make([]internal.Decl, len(els))
	for i, el := range els {
		decls[i] = toDecl(el)
	}
	return decls
}

func toDecl(el Element) internal.Decl {
	d := internal.Decl{
		Key:   el.Key,
		Input: el.Props,
	}

	if el.Render != nil {
		render := el.Render
		d.Kind = internal.KindComposite
		d.Render = func(input any) []internal.Decl {
			props, _ := input.(Props)
			return toDecls(render(props))
		}
		return d
	}

	d.Kind = internal.KindHost
	d.Type = el.Type
	d.Children = toDecls(el.Children)
	return d
}

type hostAdapter struct {
	host Host
}

func (a hostAdapter) HasTimeRemaining() bool {
	return a.host.HasTimeRemaining()
}

func (a hostAdapter) RequestCallback(lane internal.Lane, fn func()) {
	a.host.RequestCallback(Lane(lane), fn)
}

type rendererAdapter struct {
	renderer Renderer
}

func (a rendererAdapter) ApplyInsert(n, parent, before *internal.Node) error {
	return a.renderer.ApplyInsert(Handle{n}, Handle{parent}, Handle{before})
}

func (a rendererAdapter) ApplyUpdate(n *internal.Node, prev, next any) error {
	prevProps, _ := prev.(Props)
	nextProps, _ := next.(Props)
	return a.renderer.ApplyUpdate(Handle{n}, prevProps, nextProps)
}

func (a rendererAdapter) ApplyDelete(n *internal.Node) error {
	return a.renderer.ApplyDelete(Handle{n})
}
