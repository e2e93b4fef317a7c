package bus

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Common errors.
var (
	ErrClosed         = errors.New("bus closed")
	ErrInvalidTopic   = errors.New("invalid topic")
	ErrNotSubscribed  = errors.New("handler not subscribed")
	ErrUnserializable = errors.New("payload not serializable")
)

// Header keys attached to every published envelope.
const (
	HeaderTimestamp = "timestamp"
	HeaderTopic     = "topic"
)

// Envelope is a message on the bus: caller-supplied payload plus headers.
// The bus always stamps HeaderTimestamp and HeaderTopic before delivery.
type Envelope struct {
	Headers map[string]interface{} `json:"headers"`
	Payload interface{}            `json:"payload"`
}

// Topic returns the topic the envelope was published on.
func (e *Envelope) Topic() string {
	if t, ok := e.Headers[HeaderTopic].(string); ok {
		return t
	}
	return ""
}

// Handler receives envelopes for a subscribed topic. Delivery is
// synchronous on the publisher's goroutine for LocalBus; handlers that
// block delay the publisher and every later subscriber.
type Handler func(env *Envelope)

// Bus provides topic-based publish/subscribe with bounded per-topic
// history.
type Bus interface {
	// Connect establishes the underlying transport. For LocalBus this
	// is a lifecycle no-op kept so a network transport can be swapped
	// in without changing the contract.
	Connect(ctx context.Context) error

	// Publish stamps headers, records history, and delivers the
	// envelope to every matching subscriber. Fails only when the
	// payload cannot be serialized; subscriber panics are contained.
	Publish(topic string, payload interface{}, headers map[string]interface{}) error

	// Subscribe registers a handler for a topic. A topic containing
	// "*" is a wildcard subscription (see MatchTopic).
	Subscribe(topic string, h Handler) error

	// Unsubscribe removes a previously registered handler. The same
	// function value passed to Subscribe must be given.
	// Returns ErrNotSubscribed if not found.
	Unsubscribe(topic string, h Handler) error

	// History returns retained envelopes for a topic, oldest first.
	// limit <= 0 returns the full retained window.
	History(topic string, limit int) []*Envelope

	// Close shuts down the bus.
	Close() error
}

// Config holds common bus configuration.
type Config struct {
	// HistoryDepth is the per-topic retained envelope count.
	// Zero disables history. Default: 100
	HistoryDepth int
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		HistoryDepth: 100,
	}
}

// ValidateTopic checks if a topic is valid for publishing.
func ValidateTopic(topic string) error {
	if topic == "" || strings.Contains(topic, "*") {
		return ErrInvalidTopic
	}
	return nil
}

// MatchTopic reports whether a publish topic matches a subscription
// pattern. A pattern without "*" matches exactly. A trailing "*" is a
// prefix match and a leading "*" is a suffix match on the pattern with
// the "*" removed. Multi-segment patterns such as "a.*.c" are not
// supported and never match.
func MatchTopic(pattern, topic string) bool {
	if !strings.Contains(pattern, "*") {
		return pattern == topic
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(topic, strings.TrimSuffix(pattern, "*"))
	}
	if strings.HasPrefix(pattern, "*") {
		return strings.HasSuffix(topic, strings.TrimPrefix(pattern, "*"))
	}
	return false
}

// stampHeaders merges caller headers with the bus-owned ones.
func stampHeaders(topic string, headers map[string]interface{}) map[string]interface{} {
	stamped := make(map[string]interface{}, len(headers)+2)
	for k, v := range headers {
		stamped[k] = v
	}
	stamped[HeaderTimestamp] = time.Now().UTC().Format(time.RFC3339Nano)
	stamped[HeaderTopic] = topic
	return stamped
}
