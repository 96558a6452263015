// Package permittest provides a reset-capable engine factory for tests.
// Production code constructs one Engine at startup and passes it by
// reference; only test code should need to share and reset an instance.
package permittest

import (
	"context"
	"sync"

	"github.com/oarkflow/permit"
	"github.com/oarkflow/permit/logger"
)

// Harness owns a shared store/engine pair for a test suite. Engine builds
// the pair on first use; Reset discards it so the next Engine call starts
// from an empty store. Never call Reset while an evaluation is in flight.
type Harness struct {
	mu     sync.Mutex
	opts   []permit.EngineOption
	store  *permit.RuleStore
	engine *permit.Engine
}

// New returns a Harness applying opts to every engine it constructs. A null
// logger is installed unless opts override it.
func New(opts ...permit.EngineOption) *Harness {
	merged := append([]permit.EngineOption{permit.WithLogger(logger.NewNullLogger())}, opts...)
	return &Harness{opts: merged}
}

// Engine returns the shared engine, constructing it on first call.
func (h *Harness) Engine() *permit.Engine {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.engine == nil {
		h.store = permit.NewRuleStore()
		eng, err := permit.NewEngine(h.store, h.opts...)
		if err != nil {
			panic(err)
		}
		h.engine = eng
	}
	return h.engine
}

// Store returns the store backing the shared engine.
func (h *Harness) Store() *permit.RuleStore {
	h.Engine()
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.store
}

// Reset drops the shared instance. The next Engine call builds a fresh
// store and engine.
func (h *Harness) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.store != nil {
		h.store.Clear(context.Background())
	}
	h.store = nil
	h.engine = nil
}
