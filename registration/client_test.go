package registration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ckoons/tekton-core-sub005/bus"
)

func testClient(t *testing.T, b bus.Bus, id string) *Client {
	t.Helper()
	c, err := NewClient(ClientConfig{
		Bus:               b,
		Descriptor:        testRequest(id),
		HeartbeatInterval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	t.Cleanup(func() {
		if c.Registered() {
			c.Unregister()
		}
	})
	return c
}

// --- Unit Tests ---

func TestClientConfigValidate(t *testing.T) {
	b := testBus()

	tests := []struct {
		name    string
		cfg     ClientConfig
		wantErr bool
	}{
		{"valid", ClientConfig{Bus: b, Descriptor: testRequest("athena")}, false},
		{"no bus", ClientConfig{Descriptor: testRequest("athena")}, true},
		{"incomplete descriptor", ClientConfig{Bus: b, Descriptor: Request{ComponentID: "athena"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestClientRegisterAgainstManager(t *testing.T) {
	b := testBus()
	m := testManager(t, b)
	c := testClient(t, b, "athena")

	if err := c.Register(context.Background()); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if !c.Registered() {
		t.Error("client should report registered")
	}
	if c.State() != StateActive {
		t.Errorf("state = %q, want %q", c.State(), StateActive)
	}
	if c.Token() == "" {
		t.Error("client should hold a token")
	}
	if !m.ValidateComponent("athena", c.Token()) {
		t.Error("manager should validate the client's token")
	}
}

func TestClientRegisterRejected(t *testing.T) {
	b := testBus()
	testManager(t, b)

	desc := testRequest("hermes")
	desc.Version = ""
	// Build the client around config validation to exercise the
	// manager-side rejection path with a descriptor the manager will
	// refuse.
	c, err := NewClient(ClientConfig{Bus: b, Descriptor: testRequest("hermes")})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	c.desc = desc

	err = c.Register(context.Background())
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("Register error = %v, want ErrRejected", err)
	}
	if c.Registered() {
		t.Error("rejected client should not report registered")
	}
	if c.Token() != "" {
		t.Error("rejected client should hold no token")
	}
}

func TestClientRegisterTimeout(t *testing.T) {
	b := testBus() // no manager listening

	c, err := NewClient(ClientConfig{
		Bus:                 b,
		Descriptor:          testRequest("athena"),
		RegistrationTimeout: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	err = c.Register(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Register error = %v, want ErrTimeout", err)
	}
	if c.State() != StateIdle {
		t.Errorf("state after timeout = %q, want %q", c.State(), StateIdle)
	}
}

func TestClientRegisterContextCanceled(t *testing.T) {
	b := testBus() // no manager listening
	c := testClient(t, b, "athena")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Register(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Register error = %v, want context.Canceled", err)
	}
}

func TestClientRegisterTwice(t *testing.T) {
	b := testBus()
	testManager(t, b)
	c := testClient(t, b, "athena")

	if err := c.Register(context.Background()); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := c.Register(context.Background()); !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("second Register error = %v, want ErrAlreadyRegistered", err)
	}
}

func TestClientUnregister(t *testing.T) {
	b := testBus()
	m := testManager(t, b)
	c := testClient(t, b, "athena")

	if err := c.Register(context.Background()); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	tok := c.Token()

	if err := c.Unregister(); err != nil {
		t.Fatalf("Unregister failed: %v", err)
	}

	if c.Registered() {
		t.Error("client should not report registered")
	}
	if c.Token() != "" {
		t.Error("token should be cleared")
	}
	if m.ValidateComponent("athena", tok) {
		t.Error("manager should reject the revoked component")
	}

	// A fresh cycle works after unregistering.
	if err := c.Register(context.Background()); err != nil {
		t.Fatalf("re-Register failed: %v", err)
	}
}

func TestClientUnregisterWithoutRegistering(t *testing.T) {
	b := testBus()
	c := testClient(t, b, "athena")

	if err := c.Unregister(); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("Unregister error = %v, want ErrNotRegistered", err)
	}
}

func TestClientHeartbeatsReachMonitor(t *testing.T) {
	b := testBus()
	m := testManager(t, b)
	c := testClient(t, b, "rhetor")

	c.SetStatus("queueDepth", 3)

	if err := c.Register(context.Background()); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for !m.Monitor().IsAlive("rhetor", time.Minute) {
		if time.Now().After(deadline) {
			t.Fatal("monitor never saw a heartbeat")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hb := m.Monitor().LastSeen("rhetor")
	if hb == nil {
		t.Fatal("LastSeen returned nil for a live component")
	}
	if hb.Status["queueDepth"] == nil {
		t.Error("heartbeat status should carry queueDepth")
	}
}
