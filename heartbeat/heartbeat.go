package heartbeat

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/ckoons/tekton-core-sub005/bus"
)

// Common errors.
var (
	ErrAlreadyStarted = errors.New("heartbeat already started")
	ErrNotStarted     = errors.New("heartbeat not started")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// DefaultTopic is the bus topic heartbeats are published on.
const DefaultTopic = "tekton.registration.heartbeat"

// Heartbeat is a single liveness signal from a registered component.
type Heartbeat struct {
	// ComponentID uniquely identifies the sending component.
	ComponentID string `json:"componentId"`

	// Token is the component's registration token. The manager drops
	// heartbeats whose token does not validate.
	Token string `json:"token"`

	// Timestamp when the heartbeat was generated.
	Timestamp time.Time `json:"timestamp"`

	// Status contains component-reported state (load, queue depth, ...).
	Status map[string]interface{} `json:"status"`
}

// Marshal serializes a heartbeat to JSON.
func (h *Heartbeat) Marshal() ([]byte, error) {
	return json.Marshal(h)
}

// Unmarshal deserializes a heartbeat from JSON.
func Unmarshal(data []byte) (*Heartbeat, error) {
	var h Heartbeat
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// FromEnvelope decodes a heartbeat from a bus envelope payload.
func FromEnvelope(env *bus.Envelope) (*Heartbeat, error) {
	data, err := json.Marshal(env.Payload)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

// SenderConfig configures a heartbeat sender.
type SenderConfig struct {
	// Bus is the message bus for publishing heartbeats.
	Bus bus.Bus

	// ComponentID is the unique identifier for this component.
	ComponentID string

	// Topic heartbeats are published on.
	// Default: DefaultTopic
	Topic string

	// Interval between heartbeats.
	// Default: 60 seconds
	Interval time.Duration
}

// Validate checks the configuration.
func (c *SenderConfig) Validate() error {
	if c.Bus == nil {
		return ErrInvalidConfig
	}
	if c.ComponentID == "" {
		return ErrInvalidConfig
	}
	return nil
}

// DefaultSenderConfig returns configuration with sensible defaults.
func DefaultSenderConfig() SenderConfig {
	return SenderConfig{
		Topic:    DefaultTopic,
		Interval: 60 * time.Second,
	}
}

// MonitorConfig configures a heartbeat monitor.
type MonitorConfig struct {
	// Timeout for considering a component dead.
	// Should be 2-3x the expected heartbeat interval.
	// Default: 180 seconds
	Timeout time.Duration

	// CheckInterval for the dead component checker.
	// Default: 15 seconds
	CheckInterval time.Duration
}

// DefaultMonitorConfig returns configuration with sensible defaults.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Timeout:       180 * time.Second,
		CheckInterval: 15 * time.Second,
	}
}
