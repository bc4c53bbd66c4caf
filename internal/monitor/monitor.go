// Package monitor turns raw proctoring signals into a closed set of
// violation kinds. It is a stateless fan-out: sources emit, the single
// subscriber decides what a violation costs. No deduplication or rate
// limiting happens here.
package monitor

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Kind enumerates the violation kinds the session understands.
type Kind string

const (
	KindTabSwitch      Kind = "tab_switch"
	KindFullscreenExit Kind = "fullscreen_exit"
	KindDevtools       Kind = "devtools"
	KindDisconnect     Kind = "disconnect"
)

// Handler receives each violation exactly once per occurrence.
type Handler func(Kind)

// Source is a long-running signal producer. Run must return when ctx is
// canceled and must only call emit while running.
type Source interface {
	Name() string
	Run(ctx context.Context, emit func(Kind))
}

// Monitor owns source lifecycles and fans their emissions out to one
// handler. Enable and Disable are idempotent; while disabled nothing is
// emitted and no source goroutines exist.
type Monitor struct {
	mu      sync.Mutex
	sources []Source
	cancel  context.CancelFunc
	handler Handler
	wg      sync.WaitGroup
	log     zerolog.Logger
}

// New creates a Monitor over the given sources.
func New(log zerolog.Logger, sources ...Source) *Monitor {
	return &Monitor{
		sources: sources,
		log:     log.With().Str("component", "monitor").Logger(),
	}
}

// Enable starts all sources and routes their violations to h. Calling
// Enable while already enabled is a no-op.
func (m *Monitor) Enable(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.handler = h

	for _, src := range m.sources {
		m.wg.Add(1)
		go func(src Source) {
			defer m.wg.Done()
			m.log.Debug().Str("source", src.Name()).Msg("Source started")
			src.Run(ctx, m.emit)
			m.log.Debug().Str("source", src.Name()).Msg("Source stopped")
		}(src)
	}
}

// Disable stops all sources and detaches the handler. Waits for source
// goroutines to exit so no emission can race past a Disable.
func (m *Monitor) Disable() {
	m.mu.Lock()
	if m.cancel == nil {
		m.mu.Unlock()
		return
	}
	m.cancel()
	m.cancel = nil
	m.handler = nil
	m.mu.Unlock()

	m.wg.Wait()
}

func (m *Monitor) emit(k Kind) {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()

	if h == nil {
		return
	}
	m.log.Warn().Str("kind", string(k)).Msg("Violation detected")
	h(k)
}
