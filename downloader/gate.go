package downloader

import "sync"

// Gate limits how many pipeline runs are active at once. Excess requests
// are rejected, never queued.
type Gate struct {
	mu      sync.Mutex
	active  int
	ceiling int
}

// NewGate creates a gate admitting up to ceiling runs (minimum 1)
func NewGate(ceiling int) *Gate {
	if ceiling < 1 {
		ceiling = 1
	}
	return &Gate{ceiling: ceiling}
}

// TryAcquire takes a slot if one is free and reports whether it did
func (g *Gate) TryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.active >= g.ceiling {
		return false
	}
	g.active++
	return true
}

// Release returns a slot taken by TryAcquire
func (g *Gate) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.active > 0 {
		g.active--
	}
}

// Active returns the number of runs holding a slot
func (g *Gate) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Ceiling returns the configured maximum
func (g *Gate) Ceiling() int {
	return g.ceiling
}
