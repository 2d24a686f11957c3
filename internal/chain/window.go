package chain

// idemWindow remembers the last cap idempotency keys and the block
// each one committed. FIFO eviction keeps memory bounded; a key older
// than the window is treated as new, which matches the contract of a
// bounded recent dedup window.
type idemWindow struct {
	cap    int
	order  []string
	blocks map[string]int64
}

func newIdemWindow(cap int) *idemWindow {
	if cap <= 0 {
		cap = DefaultIdempotencyWindow
	}
	return &idemWindow{
		cap:    cap,
		blocks: make(map[string]int64, cap),
	}
}

func (w *idemWindow) lookup(key string) (int64, bool) {
	block, ok := w.blocks[key]
	return block, ok
}

func (w *idemWindow) record(key string, block int64) {
	if _, exists := w.blocks[key]; exists {
		return
	}
	if len(w.order) == w.cap {
		oldest := w.order[0]
		w.order = w.order[1:]
		delete(w.blocks, oldest)
	}
	w.order = append(w.order, key)
	w.blocks[key] = block
}
