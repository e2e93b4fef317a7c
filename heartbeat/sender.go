package heartbeat

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ckoons/tekton-core-sub005/bus"
)

// Sender publishes periodic heartbeats on the bus while a component is
// registered.
type Sender struct {
	bus      bus.Bus
	topic    string
	id       string
	interval time.Duration

	mu     sync.RWMutex
	token  string
	status map[string]interface{}

	running atomic.Bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
}

// NewSender creates a heartbeat sender.
func NewSender(cfg SenderConfig) (*Sender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	def := DefaultSenderConfig()
	if cfg.Topic == "" {
		cfg.Topic = def.Topic
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}

	return &Sender{
		bus:      cfg.Bus,
		topic:    cfg.Topic,
		id:       cfg.ComponentID,
		interval: cfg.Interval,
		status:   make(map[string]interface{}),
	}, nil
}

// SetToken sets the registration token included in heartbeats.
func (s *Sender) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// SetStatus updates a status field included in heartbeats.
func (s *Sender) SetStatus(key string, value interface{}) {
	s.mu.Lock()
	s.status[key] = value
	s.mu.Unlock()
}

// Start begins sending heartbeats at the configured interval. The
// first beat goes out immediately.
func (s *Sender) Start(ctx context.Context) error {
	if s.running.Swap(true) {
		return ErrAlreadyStarted
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.doneCh = make(chan struct{})

	go s.run(ctx)
	return nil
}

// run is the heartbeat loop.
func (s *Sender) run(ctx context.Context) {
	defer close(s.doneCh)

	s.beat()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.beat()
		}
	}
}

// beat publishes one heartbeat.
func (s *Sender) beat() error {
	return s.bus.Publish(s.topic, s.build(), nil)
}

// build creates a heartbeat with the current state.
func (s *Sender) build() *Heartbeat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hb := &Heartbeat{
		ComponentID: s.id,
		Token:       s.token,
		Timestamp:   time.Now().UTC(),
		Status:      make(map[string]interface{}, len(s.status)),
	}
	for k, v := range s.status {
		hb.Status[k] = v
	}
	return hb
}

// Stop stops sending heartbeats and waits for the loop to exit.
func (s *Sender) Stop() error {
	if !s.running.Swap(false) {
		return ErrNotStarted
	}
	s.cancel()
	<-s.doneCh
	return nil
}

// Running reports whether the sender loop is active.
func (s *Sender) Running() bool {
	return s.running.Load()
}
