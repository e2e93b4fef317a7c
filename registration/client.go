package registration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ckoons/tekton-core-sub005/bus"
	"github.com/ckoons/tekton-core-sub005/heartbeat"
	"github.com/ckoons/tekton-core-sub005/logging"
)

// ClientState is the client-side registration lifecycle.
type ClientState string

const (
	StateIdle             ClientState = "idle"
	StateAwaitingResponse ClientState = "awaiting-response"
	StateActive           ClientState = "active"
	StateUnregistering    ClientState = "unregistering"
)

// ClientConfig configures a registration client.
type ClientConfig struct {
	// Bus carries the registration protocol events.
	Bus bus.Bus

	// Descriptor identifies this component.
	Descriptor Request

	// RegistrationTimeout bounds the wait for the manager's response.
	// Default: 10 seconds
	RegistrationTimeout time.Duration

	// HeartbeatInterval between liveness signals while registered.
	// Default: 60 seconds
	HeartbeatInterval time.Duration

	// Logger for lifecycle transitions.
	// Default: a logger tagged with the component id.
	Logger *logging.Logger
}

// Validate checks the configuration.
func (c *ClientConfig) Validate() error {
	if c.Bus == nil {
		return ErrInvalidConfig
	}
	if err := c.Descriptor.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// DefaultClientConfig returns configuration with sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		RegistrationTimeout: 10 * time.Second,
		HeartbeatInterval:   60 * time.Second,
	}
}

// Client drives the component side of the registration protocol:
// idle → awaiting-response → active (heartbeating) → unregistering →
// idle.
type Client struct {
	bus     bus.Bus
	desc    Request
	timeout time.Duration
	log     *logging.Logger
	sender  *heartbeat.Sender

	mu    sync.RWMutex
	state ClientState
	token string
}

// NewClient creates a client for a component descriptor.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	def := DefaultClientConfig()
	if cfg.RegistrationTimeout <= 0 {
		cfg.RegistrationTimeout = def.RegistrationTimeout
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = def.HeartbeatInterval
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New().WithComponent(cfg.Descriptor.ComponentID)
	}

	sender, err := heartbeat.NewSender(heartbeat.SenderConfig{
		Bus:         cfg.Bus,
		ComponentID: cfg.Descriptor.ComponentID,
		Topic:       TopicHeartbeat,
		Interval:    cfg.HeartbeatInterval,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		bus:     cfg.Bus,
		desc:    cfg.Descriptor,
		timeout: cfg.RegistrationTimeout,
		log:     log,
		sender:  sender,
		state:   StateIdle,
	}, nil
}

// Register publishes a registration request and waits for the
// manager's response. The wait is a single bounded receive resolved by
// the response-topic handler; a response arriving after the deadline
// is lost and the caller must retry.
func (c *Client) Register(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrAlreadyRegistered
	}
	c.state = StateAwaitingResponse
	c.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	respCh := make(chan Response, 1)
	handler := func(env *bus.Envelope) {
		var resp Response
		if err := decode(env, &resp); err != nil {
			return
		}
		select {
		case respCh <- resp:
		default:
		}
	}

	topic := ResponseTopic(c.desc.ComponentID)
	if err := c.bus.Subscribe(topic, handler); err != nil {
		c.setState(StateIdle)
		return err
	}
	defer c.bus.Unsubscribe(topic, handler)

	if err := c.bus.Publish(TopicRequest, c.desc, nil); err != nil {
		c.setState(StateIdle)
		return err
	}

	select {
	case resp := <-respCh:
		if !resp.Success {
			c.setState(StateIdle)
			return fmt.Errorf("%w: %s", ErrRejected, resp.Error)
		}
		return c.activate(resp.Token)
	case <-ctx.Done():
		c.setState(StateIdle)
		return ctx.Err()
	case <-time.After(c.timeout):
		c.setState(StateIdle)
		return ErrTimeout
	}
}

// activate stores the token and starts the heartbeat loop.
func (c *Client) activate(tok string) error {
	c.mu.Lock()
	c.token = tok
	c.state = StateActive
	c.mu.Unlock()

	c.sender.SetToken(tok)

	// The heartbeat loop outlives the Register call; it stops on
	// Unregister, not on the registration context.
	if err := c.sender.Start(context.Background()); err != nil && err != heartbeat.ErrAlreadyStarted {
		return err
	}

	c.log.Info("registered", map[string]interface{}{
		"component": c.desc.ComponentID,
	})
	return nil
}

// Unregister stops the heartbeat loop, publishes a revocation with the
// held token, and clears it. Success tracks the publish
// acknowledgement.
func (c *Client) Unregister() error {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return ErrNotRegistered
	}
	c.state = StateUnregistering
	tok := c.token
	c.mu.Unlock()

	if err := c.sender.Stop(); err != nil && err != heartbeat.ErrNotStarted {
		c.log.Warn("heartbeat stop failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	err := c.bus.Publish(TopicRevoke, Revoke{
		ComponentID: c.desc.ComponentID,
		Token:       tok,
	}, nil)

	c.mu.Lock()
	c.token = ""
	c.state = StateIdle
	c.mu.Unlock()

	if err != nil {
		return err
	}

	c.log.Info("unregistered", map[string]interface{}{
		"component": c.desc.ComponentID,
	})
	return nil
}

// SetStatus updates a status field reported in heartbeats.
func (c *Client) SetStatus(key string, value interface{}) {
	c.sender.SetStatus(key, value)
}

// Token returns the held registration token, empty when unregistered.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// State returns the current lifecycle state.
func (c *Client) State() ClientState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Registered reports whether the client is active.
func (c *Client) Registered() bool {
	return c.State() == StateActive
}

func (c *Client) setState(s ClientState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
