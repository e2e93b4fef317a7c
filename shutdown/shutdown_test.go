package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"
)

// --- Unit Tests ---

func TestShutdownReverseOrder(t *testing.T) {
	c := NewCoordinator(DefaultConfig())

	var order []string
	record := func(name string) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			order = append(order, name)
			return nil
		}
	}

	c.RegisterFunc("bus", record("bus"))
	c.RegisterFunc("registry", record("registry"))
	c.RegisterFunc("manager", record("manager"))

	if err := c.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	want := []string{"manager", "registry", "bus"}
	if len(order) != len(want) {
		t.Fatalf("ran %d handlers, want %d", len(order), len(want))
	}
	for i, name := range want {
		if order[i] != name {
			t.Errorf("order[%d] = %q, want %q", i, order[i], name)
		}
	}
}

func TestShutdownContinuesPastFailure(t *testing.T) {
	c := NewCoordinator(DefaultConfig())

	var ran []string
	c.RegisterFunc("first", func(ctx context.Context) error {
		ran = append(ran, "first")
		return nil
	})
	c.RegisterFunc("failing", func(ctx context.Context) error {
		ran = append(ran, "failing")
		return errors.New("boom")
	})
	c.RegisterFunc("last", func(ctx context.Context) error {
		ran = append(ran, "last")
		return nil
	})

	err := c.Shutdown(context.Background())
	if !errors.Is(err, ErrHandlerFailed) {
		t.Fatalf("Shutdown error = %v, want ErrHandlerFailed", err)
	}
	if len(ran) != 3 {
		t.Errorf("ran %d handlers, want all 3 despite the failure", len(ran))
	}
}

func TestShutdownTwice(t *testing.T) {
	c := NewCoordinator(DefaultConfig())
	c.RegisterFunc("noop", func(ctx context.Context) error { return nil })

	if err := c.Shutdown(context.Background()); err != nil {
		t.Fatalf("first Shutdown failed: %v", err)
	}
	// After completion the second call reports the stored result.
	if err := c.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown = %v, want stored nil result", err)
	}
}

func TestShutdownDeadline(t *testing.T) {
	c := NewCoordinator(DefaultConfig())

	c.RegisterFunc("skipped", func(ctx context.Context) error {
		t.Error("handler after the deadline should not run")
		return nil
	})
	c.RegisterFunc("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := c.Shutdown(ctx)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Shutdown error = %v, want ErrTimeout", err)
	}
}

func TestDoneAndErr(t *testing.T) {
	c := NewCoordinator(DefaultConfig())

	select {
	case <-c.Done():
		t.Fatal("Done closed before shutdown")
	default:
	}
	if c.Err() != nil {
		t.Errorf("Err before shutdown = %v, want nil", c.Err())
	}

	c.RegisterFunc("failing", func(ctx context.Context) error {
		return errors.New("boom")
	})
	c.Shutdown(context.Background())

	select {
	case <-c.Done():
	default:
		t.Fatal("Done should be closed after shutdown")
	}
	if !errors.Is(c.Err(), ErrHandlerFailed) {
		t.Errorf("Err = %v, want ErrHandlerFailed", c.Err())
	}
}

func TestTriggerRunsShutdown(t *testing.T) {
	c := NewCoordinator(Config{Timeout: time.Second})

	stopped := make(chan struct{})
	c.RegisterFunc("component", func(ctx context.Context) error {
		close(stopped)
		return nil
	})

	c.HandleSignals()
	c.Trigger()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("trigger did not run the handlers")
	}
	<-c.Done()
}
