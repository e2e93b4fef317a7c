// Package registration implements the signed-token registration
// protocol: a Manager that owns the registry and signing secret, and a
// Client that registers a component over the bus and keeps it alive
// with heartbeats.
package registration

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ckoons/tekton-core-sub005/bus"
	"github.com/ckoons/tekton-core-sub005/heartbeat"
)

// Common errors.
var (
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrTimeout           = errors.New("registration timed out")
	ErrRejected          = errors.New("registration rejected")
	ErrNotRegistered     = errors.New("not registered")
	ErrAlreadyRegistered = errors.New("already registered")
)

// Bus topics of the registration protocol.
const (
	TopicRequest        = "tekton.registration.request"
	TopicResponsePrefix = "tekton.registration.response."
	TopicCompleted      = "tekton.registration.completed"
	TopicRevoke         = "tekton.registration.revoke"
	TopicRevoked        = "tekton.registration.revoked"
	TopicHeartbeat      = heartbeat.DefaultTopic
)

// ResponseTopic returns the per-component response topic.
func ResponseTopic(componentID string) string {
	return TopicResponsePrefix + componentID
}

// Request is the payload of TopicRequest.
type Request struct {
	ComponentID  string            `json:"componentId"`
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Type         string            `json:"type"`
	Endpoint     string            `json:"endpoint"`
	Capabilities []string          `json:"capabilities"`
	Metadata     map[string]string `json:"metadata"`
}

// Validate reports the first missing required field.
func (r *Request) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"componentId", r.ComponentID},
		{"name", r.Name},
		{"version", r.Version},
		{"type", r.Type},
		{"endpoint", r.Endpoint},
	}
	for _, f := range required {
		if f.value == "" {
			return fmt.Errorf("missing required field: %s", f.name)
		}
	}
	return nil
}

// Response is the payload of the per-component response topic.
type Response struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Completed is the payload of TopicCompleted, announcing a successful
// registration to any interested subscriber.
type Completed struct {
	ComponentID  string    `json:"componentId"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	Version      string    `json:"version"`
	Capabilities []string  `json:"capabilities"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// Revoke is the payload of TopicRevoke.
type Revoke struct {
	ComponentID string `json:"componentId"`
	Token       string `json:"token"`
}

// Revoked is the payload of TopicRevoked.
type Revoked struct {
	ComponentID string    `json:"componentId"`
	RevokedAt   time.Time `json:"revokedAt"`
}

// decode extracts a typed payload from a bus envelope. Payloads arrive
// as structs from LocalBus and as generic maps from the network
// transports; a JSON round trip handles both.
func decode(env *bus.Envelope, v interface{}) error {
	data, err := json.Marshal(env.Payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
