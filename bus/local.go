package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/ckoons/tekton-core-sub005/logging"
)

// LocalBus implements Bus with in-process synchronous delivery.
// Suitable for testing and single-process deployments; the registration
// protocol runs on it unchanged when a network transport is swapped in.
type LocalBus struct {
	config LocalConfig
	log    *logging.Logger

	mu        sync.RWMutex
	exact     map[string][]*subscription
	wildcards []*subscription
	history   map[string][]*Envelope
	closed    atomic.Bool
}

type subscription struct {
	pattern string
	handler Handler
	ptr     uintptr
}

// LocalConfig configures the in-process bus.
type LocalConfig struct {
	Config

	// Logger for subscriber failures and dropped publishes.
	// Default: a logger tagged "bus".
	Logger *logging.Logger
}

// DefaultLocalConfig returns configuration with sensible defaults.
func DefaultLocalConfig() LocalConfig {
	return LocalConfig{Config: DefaultConfig()}
}

// NewLocalBus creates a new in-process message bus.
func NewLocalBus(cfg LocalConfig) *LocalBus {
	if cfg.HistoryDepth < 0 {
		cfg.HistoryDepth = 0
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New().WithComponent("bus")
	}

	return &LocalBus{
		config:  cfg,
		log:     log,
		exact:   make(map[string][]*subscription),
		history: make(map[string][]*Envelope),
	}
}

// Connect is a lifecycle no-op for the in-process bus.
func (b *LocalBus) Connect(ctx context.Context) error {
	if b.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Publish delivers an envelope to every matching subscriber.
// Delivery is synchronous: exact-topic handlers first in subscribe
// order, then wildcard handlers in subscribe order.
func (b *LocalBus) Publish(topic string, payload interface{}, headers map[string]interface{}) error {
	if err := ValidateTopic(topic); err != nil {
		return err
	}
	if b.closed.Load() {
		return ErrClosed
	}

	// Serializability gate: reject before any delivery so a failure
	// never means partial delivery.
	if _, err := json.Marshal(payload); err != nil {
		b.log.Error("publish dropped", map[string]interface{}{
			"topic": topic,
			"error": err.Error(),
		})
		return fmt.Errorf("%w: %v", ErrUnserializable, err)
	}

	env := &Envelope{
		Headers: stampHeaders(topic, headers),
		Payload: payload,
	}

	b.mu.Lock()
	if b.config.HistoryDepth > 0 {
		hist := append(b.history[topic], env)
		if len(hist) > b.config.HistoryDepth {
			hist = hist[len(hist)-b.config.HistoryDepth:]
		}
		b.history[topic] = hist
	}
	handlers := make([]*subscription, 0, len(b.exact[topic]))
	handlers = append(handlers, b.exact[topic]...)
	for _, sub := range b.wildcards {
		if MatchTopic(sub.pattern, topic) {
			handlers = append(handlers, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range handlers {
		b.deliver(sub, env)
	}

	return nil
}

// deliver invokes a single handler, containing any panic so one bad
// subscriber cannot fail the publish or starve later subscribers.
func (b *LocalBus) deliver(sub *subscription, env *Envelope) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("subscriber panic", map[string]interface{}{
				"topic":   env.Topic(),
				"pattern": sub.pattern,
				"panic":   fmt.Sprintf("%v", r),
			})
		}
	}()
	sub.handler(env)
}

// Subscribe registers a handler for a topic or wildcard pattern.
func (b *LocalBus) Subscribe(topic string, h Handler) error {
	if topic == "" || h == nil {
		return ErrInvalidTopic
	}
	if b.closed.Load() {
		return ErrClosed
	}

	sub := &subscription{
		pattern: topic,
		handler: h,
		ptr:     handlerPtr(h),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if isWildcard(topic) {
		b.wildcards = append(b.wildcards, sub)
	} else {
		b.exact[topic] = append(b.exact[topic], sub)
	}
	return nil
}

// Unsubscribe removes the handler registered for the topic.
func (b *LocalBus) Unsubscribe(topic string, h Handler) error {
	if topic == "" || h == nil {
		return ErrInvalidTopic
	}
	if b.closed.Load() {
		return ErrClosed
	}

	ptr := handlerPtr(h)

	b.mu.Lock()
	defer b.mu.Unlock()

	if isWildcard(topic) {
		for i, sub := range b.wildcards {
			if sub.pattern == topic && sub.ptr == ptr {
				b.wildcards = append(b.wildcards[:i], b.wildcards[i+1:]...)
				return nil
			}
		}
		return ErrNotSubscribed
	}

	subs := b.exact[topic]
	for i, sub := range subs {
		if sub.ptr == ptr {
			b.exact[topic] = append(subs[:i], subs[i+1:]...)
			if len(b.exact[topic]) == 0 {
				delete(b.exact, topic)
			}
			return nil
		}
	}
	return ErrNotSubscribed
}

// History returns retained envelopes for a topic, oldest first.
func (b *LocalBus) History(topic string, limit int) []*Envelope {
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

// Close shuts down the bus. Subsequent operations return ErrClosed.
func (b *LocalBus) Close() error {
	if b.closed.Swap(true) {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.exact = make(map[string][]*subscription)
	b.wildcards = nil
	b.history = make(map[string][]*Envelope)
	return nil
}

func isWildcard(topic string) bool {
	for i := 0; i < len(topic); i++ {
		if topic[i] == '*' {
			return true
		}
	}
	return false
}

// handlerPtr returns a comparable identity for a handler function value.
func handlerPtr(h Handler) uintptr {
	return reflect.ValueOf(h).Pointer()
}
