package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ckoons/tekton-core-sub005/logging"
)

// Common errors.
var (
	ErrNotFound       = errors.New("service not found")
	ErrClosed         = errors.New("registry closed")
	ErrInvalidID      = errors.New("invalid service ID")
	ErrAlreadyStarted = errors.New("health loop already started")
	ErrNotStarted     = errors.New("health loop not started")
	ErrStopTimeout    = errors.New("health loop did not stop in time")
)

// HealthState is the tri-state health of a registered service.
type HealthState string

const (
	// HealthUnknown means the service has never been probed.
	HealthUnknown HealthState = "unknown"
	HealthHealthy HealthState = "healthy"
	HealthUnhealthy HealthState = "unhealthy"
)

// ServiceRecord describes a registered service.
type ServiceRecord struct {
	// ID uniquely identifies the service.
	ID string

	// Name is a human-readable name.
	Name string

	// Version of the service software.
	Version string

	// Endpoint is the connection string or URL for reaching the service.
	Endpoint string

	// Capabilities lists what the service can do (e.g., "memory", "planning").
	Capabilities []string

	// Metadata contains additional key-value pairs.
	Metadata map[string]string

	// RegisteredAt is when the service registered.
	RegisteredAt time.Time
}

// Service is the lookup view of a record: the record plus its health
// at the time of the call.
type Service struct {
	ServiceRecord

	// Health is a snapshot; the background loop may change it after
	// this value is returned.
	Health HealthState
}

// HasCapability checks if a record advertises a specific capability.
func HasCapability(rec ServiceRecord, capability string) bool {
	for _, cap := range rec.Capabilities {
		if cap == capability {
			return true
		}
	}
	return false
}

// ValidateRecord checks if a record is valid for registration.
func ValidateRecord(rec ServiceRecord) error {
	if rec.ID == "" {
		return ErrInvalidID
	}
	return nil
}

// Config configures the registry and its health loop.
type Config struct {
	// CheckInterval between health probe sweeps.
	// Default: 30 seconds
	CheckInterval time.Duration

	// CheckTimeout bounds a single probe.
	// Default: 10 seconds
	CheckTimeout time.Duration

	// StopTimeout bounds the wait for the health loop to exit.
	// Default: 5 seconds
	StopTimeout time.Duration

	// Logger for registration warnings and probe results.
	// Default: a logger tagged "registry".
	Logger *logging.Logger
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		CheckInterval: 30 * time.Second,
		CheckTimeout:  10 * time.Second,
		StopTimeout:   5 * time.Second,
	}
}

// Registry is a directory of live services. The record, checker, and
// health maps are shared between caller goroutines and the health loop;
// one RWMutex guards all three.
type Registry struct {
	cfg Config
	log *logging.Logger

	mu       sync.RWMutex
	records  map[string]ServiceRecord
	checkers map[string]HealthChecker
	health   map[string]HealthState
	closed   bool

	running atomic.Bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
}

// New creates a registry.
func New(cfg Config) *Registry {
	def := DefaultConfig()
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = def.CheckInterval
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = def.CheckTimeout
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = def.StopTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New().WithComponent("registry")
	}

	return &Registry{
		cfg:      cfg,
		log:      log,
		records:  make(map[string]ServiceRecord),
		checkers: make(map[string]HealthChecker),
		health:   make(map[string]HealthState),
	}
}

// Register adds or replaces a service. Re-registering an existing ID
// overwrites the record (never duplicates) and logs a warning; health
// resets to unknown either way. hc may be nil for services without a
// probe.
func (r *Registry) Register(rec ServiceRecord, hc HealthChecker) error {
	if err := ValidateRecord(rec); err != nil {
		return err
	}

	if rec.RegisteredAt.IsZero() {
		rec.RegisteredAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	if _, exists := r.records[rec.ID]; exists {
		r.log.Warn("overwriting existing registration", map[string]interface{}{
			"service_id": rec.ID,
		})
	}

	r.records[rec.ID] = rec
	r.health[rec.ID] = HealthUnknown
	if hc != nil {
		r.checkers[rec.ID] = hc
	} else {
		delete(r.checkers, rec.ID)
	}

	return nil
}

// Deregister removes a service and its health status.
func (r *Registry) Deregister(id string) error {
	if id == "" {
		return ErrInvalidID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	if _, exists := r.records[id]; !exists {
		return ErrNotFound
	}

	delete(r.records, id)
	delete(r.checkers, id)
	delete(r.health, id)
	return nil
}

// Get retrieves a service record by ID.
func (r *Registry) Get(id string) (*ServiceRecord, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, ErrClosed
	}

	rec, exists := r.records[id]
	if !exists {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// FindByCapability returns the services advertising a capability,
// each with its current health, sorted by ID.
func (r *Registry) FindByCapability(capability string) []Service {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Service
	for id, rec := range r.records {
		if HasCapability(rec, capability) {
			result = append(result, Service{ServiceRecord: rec, Health: r.health[id]})
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result
}

// All returns every service with its current health, keyed by ID.
func (r *Registry) All() map[string]Service {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]Service, len(r.records))
	for id, rec := range r.records {
		result[id] = Service{ServiceRecord: rec, Health: r.health[id]}
	}
	return result
}

// MarkHealthy records external evidence of liveness, such as a
// validated heartbeat, without waiting for the next probe sweep.
func (r *Registry) MarkHealthy(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return ErrNotFound
	}
	r.health[id] = HealthHealthy
	return nil
}

// Health returns the current health of a service.
func (r *Registry) Health(id string) HealthState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if state, ok := r.health[id]; ok {
		return state
	}
	return HealthUnknown
}

// Start launches the background health loop. The loop probes every
// registered checker each CheckInterval until ctx is canceled or Stop
// is called.
func (r *Registry) Start(ctx context.Context) error {
	if r.running.Swap(true) {
		return ErrAlreadyStarted
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.doneCh = make(chan struct{})

	go r.run(ctx)
	return nil
}

// Stop cancels the health loop and waits up to StopTimeout for it to
// exit.
func (r *Registry) Stop() error {
	if !r.running.Swap(false) {
		return ErrNotStarted
	}

	r.cancel()

	select {
	case <-r.doneCh:
		return nil
	case <-time.After(r.cfg.StopTimeout):
		return ErrStopTimeout
	}
}

// Close stops the health loop if running and marks the registry closed.
func (r *Registry) Close() error {
	if r.running.Load() {
		if err := r.Stop(); err != nil && err != ErrNotStarted {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// run is the health loop.
func (r *Registry) run(ctx context.Context) {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// sweep probes every registered checker once. Probes run against a
// snapshot so register/deregister calls are never blocked for the
// duration of a slow probe.
func (r *Registry) sweep(ctx context.Context) {
	r.mu.RLock()
	checkers := make(map[string]HealthChecker, len(r.checkers))
	for id, hc := range r.checkers {
		checkers[id] = hc
	}
	r.mu.RUnlock()

	for id, hc := range checkers {
		healthy := r.probe(ctx, id, hc)

		state := HealthUnhealthy
		if healthy {
			state = HealthHealthy
		}

		r.mu.Lock()
		// The service may have deregistered mid-sweep
		if _, exists := r.records[id]; exists {
			r.health[id] = state
		}
		r.mu.Unlock()
	}
}

// probe runs one checker with a bounded timeout. A probe error or
// panic is recorded as unhealthy, never propagated.
func (r *Registry) probe(ctx context.Context, id string, hc HealthChecker) (healthy bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Warn("health probe panic", map[string]interface{}{
				"service_id": id,
				"panic":      fmt.Sprintf("%v", rec),
			})
			healthy = false
		}
	}()

	probeCtx, cancel := context.WithTimeout(ctx, r.cfg.CheckTimeout)
	defer cancel()

	ok, err := hc.Check(probeCtx)
	if err != nil {
		r.log.Debug("health probe failed", map[string]interface{}{
			"service_id": id,
			"error":      err.Error(),
		})
		return false
	}
	return ok
}
