package resolve

import (
	"context"
	"sync"
)

// RunGuard serializes resolution runs: starting a new run cancels the
// previous one, and stale runs can check whether their results still
// matter before committing them.
type RunGuard struct {
	mu      sync.Mutex
	current uint64
	cancel  context.CancelFunc
}

// Begin cancels any in-flight run and opens a new one, returning its
// id and a context that the next Begin will cancel.
func (g *RunGuard) Begin(parent context.Context) (uint64, context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cancel != nil {
		g.cancel()
	}
	g.current++
	ctx, cancel := context.WithCancel(parent)
	g.cancel = cancel
	return g.current, ctx
}

// IsCurrent reports whether id is still the active run.
func (g *RunGuard) IsCurrent(id uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return id == g.current
}

// CancelCurrent aborts the active run without starting a new one.
func (g *RunGuard) CancelCurrent() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
}
