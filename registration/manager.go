package registration

import (
	"context"
	"sync"
	"time"

	"github.com/ckoons/tekton-core-sub005/bus"
	"github.com/ckoons/tekton-core-sub005/heartbeat"
	"github.com/ckoons/tekton-core-sub005/logging"
	"github.com/ckoons/tekton-core-sub005/registry"
	"github.com/ckoons/tekton-core-sub005/token"
)

// ActiveToken is the server-side bookkeeping entry for an issued token.
// It exists for audit and idempotent revocation only: token validity is
// self-contained in the signature and expiry, never in this map.
type ActiveToken struct {
	ComponentID string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// ManagerConfig configures a registration manager.
type ManagerConfig struct {
	// Bus carries the registration protocol events.
	Bus bus.Bus

	// Registry holds the records the manager maintains.
	Registry *registry.Registry

	// Secret is the shared signing secret for tokens.
	Secret string

	// TokenTTL is the lifetime of issued tokens.
	// Default: 3600 seconds
	TokenTTL time.Duration

	// Monitor receives validated heartbeats. Optional; a default
	// monitor is created when nil.
	Monitor *heartbeat.Monitor

	// HealthCheckerFor builds a probe for an incoming registration.
	// Optional; nil registers records without a probe.
	HealthCheckerFor func(req *Request) registry.HealthChecker

	// Logger for protocol decisions.
	// Default: a logger tagged "manager".
	Logger *logging.Logger
}

// Validate checks the configuration.
func (c *ManagerConfig) Validate() error {
	if c.Bus == nil || c.Registry == nil || c.Secret == "" {
		return ErrInvalidConfig
	}
	return nil
}

// DefaultManagerConfig returns configuration with sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		TokenTTL: 3600 * time.Second,
	}
}

// Manager drives the server side of the registration protocol. Each
// component moves through unregistered → registering → registered →
// revoked, entirely in response to bus events: registration requests,
// revocations, and heartbeats.
type Manager struct {
	bus     bus.Bus
	reg     *registry.Registry
	secret  string
	ttl     time.Duration
	monitor *heartbeat.Monitor
	checker func(req *Request) registry.HealthChecker
	log     *logging.Logger

	mu     sync.RWMutex
	active map[string]ActiveToken // tokenID → entry

	// Bound handlers, kept so Close can unsubscribe them.
	onRequest   bus.Handler
	onRevoke    bus.Handler
	onHeartbeat bus.Handler
}

// NewManager creates a manager and subscribes its protocol handlers on
// the bus.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultManagerConfig().TokenTTL
	}
	if cfg.Monitor == nil {
		cfg.Monitor = heartbeat.NewMonitor(heartbeat.DefaultMonitorConfig())
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New().WithComponent("manager")
	}

	m := &Manager{
		bus:     cfg.Bus,
		reg:     cfg.Registry,
		secret:  cfg.Secret,
		ttl:     cfg.TokenTTL,
		monitor: cfg.Monitor,
		checker: cfg.HealthCheckerFor,
		log:     log,
		active:  make(map[string]ActiveToken),
	}

	m.onRequest = func(env *bus.Envelope) { m.handleRequest(env) }
	m.onRevoke = func(env *bus.Envelope) { m.handleRevoke(env) }
	m.onHeartbeat = func(env *bus.Envelope) { m.handleHeartbeat(env) }

	if err := m.bus.Subscribe(TopicRequest, m.onRequest); err != nil {
		return nil, err
	}
	if err := m.bus.Subscribe(TopicRevoke, m.onRevoke); err != nil {
		m.bus.Unsubscribe(TopicRequest, m.onRequest)
		return nil, err
	}
	if err := m.bus.Subscribe(TopicHeartbeat, m.onHeartbeat); err != nil {
		m.bus.Unsubscribe(TopicRequest, m.onRequest)
		m.bus.Unsubscribe(TopicRevoke, m.onRevoke)
		return nil, err
	}

	return m, nil
}

// Start launches the heartbeat monitor's dead-component checker.
func (m *Manager) Start(ctx context.Context) error {
	return m.monitor.Start(ctx)
}

// Monitor returns the heartbeat monitor the manager feeds.
func (m *Manager) Monitor() *heartbeat.Monitor {
	return m.monitor
}

// Close unsubscribes the protocol handlers and stops the monitor.
func (m *Manager) Close() error {
	m.bus.Unsubscribe(TopicRequest, m.onRequest)
	m.bus.Unsubscribe(TopicRevoke, m.onRevoke)
	m.bus.Unsubscribe(TopicHeartbeat, m.onHeartbeat)

	if err := m.monitor.Stop(); err != nil && err != heartbeat.ErrNotStarted {
		return err
	}
	return nil
}

// handleRequest processes a registration request: validate, register,
// mint a token, announce, reply. The registry write and the token
// issuance are one logical transition: a token failure rolls the
// record back before the component hears anything.
func (m *Manager) handleRequest(env *bus.Envelope) {
	var req Request
	if err := decode(env, &req); err != nil {
		m.log.Warn("undecodable registration request", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	if err := req.Validate(); err != nil {
		m.log.Info("registration rejected", map[string]interface{}{
			"component": req.ComponentID,
			"error":     err.Error(),
		})
		m.respond(req.ComponentID, Response{Success: false, Error: err.Error()})
		return
	}

	rec := registry.ServiceRecord{
		ID:           req.ComponentID,
		Name:         req.Name,
		Version:      req.Version,
		Endpoint:     req.Endpoint,
		Capabilities: req.Capabilities,
		Metadata:     withType(req.Metadata, req.Type),
		RegisteredAt: time.Now().UTC(),
	}

	var hc registry.HealthChecker
	if m.checker != nil {
		hc = m.checker(&req)
	}

	if err := m.reg.Register(rec, hc); err != nil {
		m.respond(req.ComponentID, Response{Success: false, Error: err.Error()})
		return
	}

	tok, err := token.Generate(req.ComponentID, m.secret, m.ttl)
	if err != nil {
		// Roll back so no component holds a record without a token
		m.reg.Deregister(req.ComponentID)
		m.respond(req.ComponentID, Response{Success: false, Error: err.Error()})
		return
	}

	claims, err := token.Validate(tok, m.secret)
	if err != nil {
		m.reg.Deregister(req.ComponentID)
		m.respond(req.ComponentID, Response{Success: false, Error: err.Error()})
		return
	}

	m.mu.Lock()
	m.active[claims.TokenID] = ActiveToken{
		ComponentID: claims.ComponentID,
		IssuedAt:    time.Unix(claims.IssuedAt, 0).UTC(),
		ExpiresAt:   time.Unix(claims.ExpiresAt, 0).UTC(),
	}
	m.mu.Unlock()

	m.bus.Publish(TopicCompleted, Completed{
		ComponentID:  req.ComponentID,
		Name:         req.Name,
		Type:         req.Type,
		Version:      req.Version,
		Capabilities: req.Capabilities,
		RegisteredAt: rec.RegisteredAt,
	}, nil)

	m.log.Info("component registered", map[string]interface{}{
		"component": req.ComponentID,
		"type":      req.Type,
	})
	m.respond(req.ComponentID, Response{Success: true, Token: tok})
}

// handleRevoke processes a revocation: an invalid token never mutates
// the registry.
func (m *Manager) handleRevoke(env *bus.Envelope) {
	var rev Revoke
	if err := decode(env, &rev); err != nil {
		return
	}

	claims, err := token.Validate(rev.Token, m.secret)
	if err != nil || claims.ComponentID != rev.ComponentID {
		m.log.Warn("revocation rejected", map[string]interface{}{
			"component": rev.ComponentID,
		})
		return
	}

	// A record may already be gone; revocation stays idempotent.
	if err := m.reg.Deregister(rev.ComponentID); err != nil && err != registry.ErrNotFound {
		m.log.Error("deregister failed", map[string]interface{}{
			"component": rev.ComponentID,
			"error":     err.Error(),
		})
		return
	}

	m.mu.Lock()
	delete(m.active, claims.TokenID)
	m.mu.Unlock()

	m.monitor.Forget(rev.ComponentID)

	m.bus.Publish(TopicRevoked, Revoked{
		ComponentID: rev.ComponentID,
		RevokedAt:   time.Now().UTC(),
	}, nil)

	m.log.Info("component revoked", map[string]interface{}{
		"component": rev.ComponentID,
	})
}

// handleHeartbeat feeds validated heartbeats to the monitor.
// Heartbeats are fire-and-forget: an invalid token is dropped silently.
func (m *Manager) handleHeartbeat(env *bus.Envelope) {
	hb, err := heartbeat.FromEnvelope(env)
	if err != nil {
		return
	}

	claims, err := token.Validate(hb.Token, m.secret)
	if err != nil || claims.ComponentID != hb.ComponentID {
		m.log.Debug("heartbeat dropped", map[string]interface{}{
			"component": hb.ComponentID,
		})
		return
	}

	m.monitor.Observe(hb)

	// A validated heartbeat is liveness evidence; the record may have
	// been revoked between beats, which is not an error here.
	if err := m.reg.MarkHealthy(hb.ComponentID); err != nil && err != registry.ErrNotFound {
		m.log.Warn("liveness update failed", map[string]interface{}{
			"component": hb.ComponentID,
			"error":     err.Error(),
		})
	}
}

// ValidateComponent reports whether the token is cryptographically
// valid for the component AND the component still holds a live registry
// record. A revoked component's unexpired token still passes the
// signature check alone; this is the two-layer trust distinction.
func (m *Manager) ValidateComponent(componentID, tok string) bool {
	claims, err := token.Validate(tok, m.secret)
	if err != nil || claims.ComponentID != componentID {
		return false
	}

	_, err = m.reg.Get(componentID)
	return err == nil
}

// ActiveTokens returns a snapshot of the issuance bookkeeping, keyed
// by token id.
func (m *Manager) ActiveTokens() map[string]ActiveToken {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]ActiveToken, len(m.active))
	for id, entry := range m.active {
		result[id] = entry
	}
	return result
}

// respond publishes on the component's response topic.
func (m *Manager) respond(componentID string, resp Response) {
	if componentID == "" {
		return
	}
	m.bus.Publish(ResponseTopic(componentID), resp, nil)
}

// withType folds the request's type into the record metadata so
// capability lookups can filter on it.
func withType(metadata map[string]string, componentType string) map[string]string {
	merged := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		merged[k] = v
	}
	merged["type"] = componentType
	return merged
}
