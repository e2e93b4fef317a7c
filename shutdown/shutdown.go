// Package shutdown coordinates graceful teardown of the coordination
// stack. Components register in startup order; Shutdown stops them in
// reverse, so a client unregisters before the manager closes, and the
// manager closes before the bus it talks through.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ckoons/tekton-core-sub005/logging"
)

// Common errors.
var (
	// ErrAlreadyShutdown indicates shutdown was already initiated.
	ErrAlreadyShutdown = errors.New("shutdown already initiated")

	// ErrTimeout indicates shutdown did not complete within the deadline.
	ErrTimeout = errors.New("shutdown timeout exceeded")

	// ErrHandlerFailed indicates one or more handlers failed.
	ErrHandlerFailed = errors.New("one or more handlers failed")
)

// Handler is implemented by components that need graceful teardown.
// The context is cancelled when the shutdown deadline passes.
type Handler interface {
	OnShutdown(ctx context.Context) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context) error

// OnShutdown implements Handler.
func (f HandlerFunc) OnShutdown(ctx context.Context) error {
	return f(ctx)
}

// Config configures the coordinator.
type Config struct {
	// Timeout bounds the whole shutdown sequence.
	// Default: 30 seconds
	Timeout time.Duration

	// Logger for teardown progress.
	// Default: a logger tagged "shutdown".
	Logger *logging.Logger
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout: 30 * time.Second,
	}
}

type registration struct {
	name    string
	handler Handler
}

// Coordinator tears down registered components in reverse order.
type Coordinator struct {
	timeout time.Duration
	log     *logging.Logger

	mu       sync.Mutex
	handlers []registration

	once    sync.Once
	done    chan struct{}
	err     error
	sigCh   chan os.Signal
	sigOnce sync.Once
}

// NewCoordinator creates a coordinator.
func NewCoordinator(cfg Config) *Coordinator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New().WithComponent("shutdown")
	}

	return &Coordinator{
		timeout: cfg.Timeout,
		log:     log,
		done:    make(chan struct{}),
		sigCh:   make(chan os.Signal, 1),
	}
}

// Register adds a handler. Registration order is startup order;
// teardown runs in reverse.
func (c *Coordinator) Register(name string, h Handler) {
	c.mu.Lock()
	c.handlers = append(c.handlers, registration{name: name, handler: h})
	c.mu.Unlock()
}

// RegisterFunc registers a plain function as a handler.
func (c *Coordinator) RegisterFunc(name string, fn func(ctx context.Context) error) {
	c.Register(name, HandlerFunc(fn))
}

// Shutdown tears down all registered handlers in reverse registration
// order. Handlers run sequentially; a failure is logged and teardown
// continues, with ErrHandlerFailed returned at the end. A second call
// returns ErrAlreadyShutdown.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	initiated := false
	c.once.Do(func() {
		initiated = true
		c.err = c.run(ctx)
		close(c.done)
	})
	if !initiated {
		select {
		case <-c.done:
			return c.err
		default:
			return ErrAlreadyShutdown
		}
	}
	return c.err
}

// ShutdownWithTimeout runs Shutdown bounded by the configured timeout.
func (c *Coordinator) ShutdownWithTimeout() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.Shutdown(ctx)
}

// HandleSignals arranges for SIGTERM and SIGINT to trigger shutdown.
func (c *Coordinator) HandleSignals() {
	c.sigOnce.Do(func() {
		signal.Notify(c.sigCh, syscall.SIGTERM, syscall.SIGINT)
		go func() {
			<-c.sigCh
			c.ShutdownWithTimeout()
		}()
	})
}

// Trigger injects a shutdown signal, as if SIGTERM had arrived.
func (c *Coordinator) Trigger() {
	select {
	case c.sigCh <- syscall.SIGTERM:
	default:
	}
}

// Done is closed when shutdown has completed.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Err returns the shutdown error, valid once Done is closed.
func (c *Coordinator) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

func (c *Coordinator) run(ctx context.Context) error {
	c.mu.Lock()
	handlers := make([]registration, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	var failed []string
	for i := len(handlers) - 1; i >= 0; i-- {
		select {
		case <-ctx.Done():
			c.log.Error("shutdown deadline exceeded", map[string]interface{}{
				"remaining": i + 1,
			})
			return ErrTimeout
		default:
		}

		reg := handlers[i]
		start := time.Now()
		if err := reg.handler.OnShutdown(ctx); err != nil {
			failed = append(failed, reg.name)
			c.log.Error("handler failed", map[string]interface{}{
				"handler": reg.name,
				"error":   err.Error(),
			})
			continue
		}
		c.log.Debug("handler stopped", map[string]interface{}{
			"handler":  reg.name,
			"duration": time.Since(start).String(),
		})
	}

	if len(failed) > 0 {
		return fmt.Errorf("%w: %v", ErrHandlerFailed, failed)
	}
	return nil
}
