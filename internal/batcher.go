package internal

// Batcher tracks nesting of explicit update batches. While the depth is above
// zero the runtime marks lanes but requests no work; closing the outermost
// batch releases everything scheduled inside as one pass.
type Batcher struct {
	depth int
}

func NewBatcher() *Batcher {
	return &Batcher{}
}

func (b *Batcher) IsBatching() bool {
	return b.depth > 0
}

// Batch runs fn with batching in effect. onComplete fires once, when the
// outermost batch finishes, even if fn panics.
func (b *Batcher) Batch(fn, onComplete func()) {
	b.depth++
	defer func() {
		b.depth--
		if b.depth == 0 && onComplete != nil {
			onComplete()
		}
	}()

	fn()
}
