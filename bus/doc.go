// Package bus provides topic-based publish/subscribe for component
// coordination.
//
// # Overview
//
// The Bus interface carries the coordination plane's control events:
// registration requests, responses, revocations, and heartbeats.
// Publishers and subscribers rendezvous by topic name; a bounded
// per-topic history window lets late subscribers inspect recent
// traffic.
//
// # Available Implementations
//
//   - LocalBus: in-process, synchronous delivery on the publisher's
//     goroutine. The reference implementation for tests and
//     single-process deployments.
//   - NATSBus: the same contract over a NATS connection for
//     multi-process deployments.
//
// # Delivery Semantics
//
// LocalBus delivers synchronously: exact-topic subscribers first in
// subscribe order, then wildcard subscribers in subscribe order. A
// subscriber that panics is contained and logged; delivery continues
// and the publish still succeeds. The only publish failure is an
// unserializable payload, rejected before any delivery.
//
// # Wildcards
//
// A subscription topic containing "*" matches by prefix (trailing "*")
// or suffix (leading "*") only:
//
//	bus.Subscribe("tekton.registration.*", handler) // prefix match
//	bus.Subscribe("*.heartbeat", handler)           // suffix match
//
// Multi-segment patterns ("a.*.c") are not supported.
//
// # History
//
//	envs := b.History("tekton.registration.completed", 10)
//	// oldest first, at most 10, most recent last
package bus
