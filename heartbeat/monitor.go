package heartbeat

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Monitor tracks last-seen heartbeats and detects dead components.
// It is fed by the registration manager, which only forwards heartbeats
// whose token validated; the monitor itself trusts its callers.
type Monitor struct {
	timeout       time.Duration
	checkInterval time.Duration

	mu       sync.RWMutex
	lastSeen map[string]*Heartbeat
	deadCBs  []func(componentID string)
	reported map[string]bool // already-reported dead components

	running atomic.Bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
}

// NewMonitor creates a heartbeat monitor.
func NewMonitor(cfg MonitorConfig) *Monitor {
	def := DefaultMonitorConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = def.CheckInterval
	}

	return &Monitor{
		timeout:       cfg.Timeout,
		checkInterval: cfg.CheckInterval,
		lastSeen:      make(map[string]*Heartbeat),
		reported:      make(map[string]bool),
	}
}

// Observe records a heartbeat. A component that was reported dead and
// beats again becomes eligible for a fresh dead report later.
func (m *Monitor) Observe(hb *Heartbeat) {
	if hb == nil || hb.ComponentID == "" {
		return
	}

	m.mu.Lock()
	m.lastSeen[hb.ComponentID] = hb
	delete(m.reported, hb.ComponentID)
	m.mu.Unlock()
}

// Forget drops a component's liveness state, typically on revocation.
func (m *Monitor) Forget(componentID string) {
	m.mu.Lock()
	delete(m.lastSeen, componentID)
	delete(m.reported, componentID)
	m.mu.Unlock()
}

// IsAlive checks if a component has beaten within the given window.
func (m *Monitor) IsAlive(componentID string, within time.Duration) bool {
	m.mu.RLock()
	hb, ok := m.lastSeen[componentID]
	m.mu.RUnlock()

	if !ok {
		return false
	}
	return time.Since(hb.Timestamp) <= within
}

// LastSeen returns the last heartbeat from a component, if any.
func (m *Monitor) LastSeen(componentID string) *Heartbeat {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSeen[componentID]
}

// OnDead registers a callback invoked once per silence: a component
// that stops beating is reported a single time until it beats again.
func (m *Monitor) OnDead(callback func(componentID string)) {
	m.mu.Lock()
	m.deadCBs = append(m.deadCBs, callback)
	m.mu.Unlock()
}

// Start launches the dead-component checker.
func (m *Monitor) Start(ctx context.Context) error {
	if m.running.Swap(true) {
		return ErrAlreadyStarted
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.doneCh = make(chan struct{})

	go m.run(ctx)
	return nil
}

// run is the dead-component check loop.
func (m *Monitor) run(ctx context.Context) {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkDead()
		}
	}
}

// checkDead reports components that stopped beating.
func (m *Monitor) checkDead() {
	now := time.Now()
	var dead []string

	m.mu.RLock()
	for id, hb := range m.lastSeen {
		if now.Sub(hb.Timestamp) > m.timeout && !m.reported[id] {
			dead = append(dead, id)
		}
	}
	callbacks := make([]func(string), len(m.deadCBs))
	copy(callbacks, m.deadCBs)
	m.mu.RUnlock()

	if len(dead) == 0 {
		return
	}

	m.mu.Lock()
	for _, id := range dead {
		m.reported[id] = true
	}
	m.mu.Unlock()

	for _, id := range dead {
		for _, cb := range callbacks {
			cb(id)
		}
	}
}

// Stop stops the checker and waits for it to exit.
func (m *Monitor) Stop() error {
	if !m.running.Swap(false) {
		return ErrNotStarted
	}
	m.cancel()
	<-m.doneCh
	return nil
}
