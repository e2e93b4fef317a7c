package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	coreerrors "github.com/ckoons/tekton-core-sub005/errors"
)

// NATSBus implements Bus over a NATS connection, for deployments where
// components run in separate processes. The registration protocol is
// transport-agnostic: swapping a LocalBus for a NATSBus changes nothing
// above the Bus interface.
type NATSBus struct {
	config NATSConfig

	mu      sync.RWMutex
	conn    *nats.Conn
	subs    map[subKey]*nats.Subscription
	history map[string][]*Envelope
}

type subKey struct {
	pattern string
	ptr     uintptr
}

// NATSConfig holds NATS connection configuration.
type NATSConfig struct {
	Config // Embed base config

	// Host and Port of the NATS server.
	Host string
	Port int

	// Name is the client name for identification.
	Name string

	// ReconnectWait is the time to wait between reconnection attempts.
	ReconnectWait time.Duration

	// MaxReconnects is the maximum number of reconnection attempts.
	// -1 = unlimited
	MaxReconnects int

	// ConnectTimeout for initial connection.
	ConnectTimeout time.Duration
}

// DefaultNATSConfig returns configuration with sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		Config:         DefaultConfig(),
		Host:           "localhost",
		Port:           4222,
		ReconnectWait:  2 * time.Second,
		MaxReconnects:  -1, // Unlimited
		ConnectTimeout: 5 * time.Second,
	}
}

// URL returns the server URL for the configured host and port.
func (c NATSConfig) URL() string {
	if c.Host == "" {
		return nats.DefaultURL
	}
	return fmt.Sprintf("nats://%s:%d", c.Host, c.Port)
}

// NewNATSBus creates a NATS-backed bus. The connection is established
// by Connect, not here, matching the Bus lifecycle contract.
func NewNATSBus(cfg NATSConfig) *NATSBus {
	if cfg.HistoryDepth < 0 {
		cfg.HistoryDepth = 0
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = DefaultNATSConfig().ReconnectWait
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultNATSConfig().ConnectTimeout
	}

	return &NATSBus{
		config:  cfg,
		subs:    make(map[subKey]*nats.Subscription),
		history: make(map[string][]*Envelope),
	}
}

// Connect dials the configured NATS server.
func (b *NATSBus) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn != nil && !b.conn.IsClosed() {
		return nil
	}

	opts := []nats.Option{
		nats.ReconnectWait(b.config.ReconnectWait),
		nats.MaxReconnects(b.config.MaxReconnects),
		nats.Timeout(b.config.ConnectTimeout),
	}
	if b.config.Name != "" {
		opts = append(opts, nats.Name(b.config.Name))
	}
	if deadline, ok := ctx.Deadline(); ok {
		opts = append(opts, nats.Timeout(time.Until(deadline)))
	}

	conn, err := nats.Connect(b.config.URL(), opts...)
	if err != nil {
		return coreerrors.WrapWithCode(err, coreerrors.ErrCodeUnavailable,
			"nats connect", coreerrors.WithMetadata("url", b.config.URL()))
	}

	b.conn = conn
	return nil
}

// Publish marshals the envelope and sends it to the topic's subject.
func (b *NATSBus) Publish(topic string, payload interface{}, headers map[string]interface{}) error {
	if err := ValidateTopic(topic); err != nil {
		return err
	}

	b.mu.RLock()
	conn := b.conn
	b.mu.RUnlock()
	if conn == nil || conn.IsClosed() {
		return ErrClosed
	}

	env := &Envelope{
		Headers: stampHeaders(topic, headers),
		Payload: payload,
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnserializable, err)
	}

	b.retain(topic, env)

	if err := conn.Publish(topic, data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Subscribe binds a handler to a topic. Handlers run on the NATS
// delivery goroutine, not the publisher's.
func (b *NATSBus) Subscribe(topic string, h Handler) error {
	if topic == "" || h == nil {
		return ErrInvalidTopic
	}

	subject, err := toSubject(topic)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil || b.conn.IsClosed() {
		return ErrClosed
	}

	natsSub, err := b.conn.Subscribe(subject, func(m *nats.Msg) {
		var env Envelope
		if err := json.Unmarshal(m.Data, &env); err != nil {
			return
		}
		b.retain(env.Topic(), &env)
		h(&env)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	b.subs[subKey{pattern: topic, ptr: handlerPtr(h)}] = natsSub
	return nil
}

// Unsubscribe removes a previously registered handler.
func (b *NATSBus) Unsubscribe(topic string, h Handler) error {
	if topic == "" || h == nil {
		return ErrInvalidTopic
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	key := subKey{pattern: topic, ptr: handlerPtr(h)}
	natsSub, ok := b.subs[key]
	if !ok {
		return ErrNotSubscribed
	}
	delete(b.subs, key)

	if err := natsSub.Unsubscribe(); err != nil {
		return fmt.Errorf("nats unsubscribe: %w", err)
	}
	return nil
}

// History returns envelopes this process has published or received for
// a topic, oldest first. NATS itself retains nothing for plain pub/sub;
// the window is local by design.
func (b *NATSBus) History(topic string, limit int) []*Envelope {
	b.mu.RLock()
	defer b.mu.RUnlock()

	hist := b.history[topic]
	if limit > 0 && len(hist) > limit {
		hist = hist[len(hist)-limit:]
	}

	result := make([]*Envelope, len(hist))
	copy(result, hist)
	return result
}

// Close drains and closes the connection.
func (b *NATSBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil || b.conn.IsClosed() {
		return nil
	}

	for key, natsSub := range b.subs {
		natsSub.Unsubscribe()
		delete(b.subs, key)
	}

	b.conn.Close()
	return nil
}

// retain appends to the local history ring.
func (b *NATSBus) retain(topic string, env *Envelope) {
	if b.config.HistoryDepth <= 0 || topic == "" {
		return
	}
	b.mu.Lock()
	hist := append(b.history[topic], env)
	if len(hist) > b.config.HistoryDepth {
		hist = hist[len(hist)-b.config.HistoryDepth:]
	}
	b.history[topic] = hist
	b.mu.Unlock()
}

// toSubject maps a bus topic pattern onto a NATS subject. A trailing
// ".*" becomes the NATS multi-token wildcard ".>". Suffix patterns
// (leading "*") have no NATS equivalent and are rejected.
func toSubject(topic string) (string, error) {
	if !strings.Contains(topic, "*") {
		return topic, nil
	}
	if strings.HasSuffix(topic, ".*") {
		return strings.TrimSuffix(topic, ".*") + ".>", nil
	}
	return "", ErrInvalidTopic
}
