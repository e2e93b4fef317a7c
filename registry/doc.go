// Package registry provides a capability-indexed directory of live
// services with background health monitoring.
//
// # Overview
//
// Services register a ServiceRecord (identity, endpoint, capabilities,
// metadata) and optionally a HealthChecker probe. Lookups by ID or
// capability return records augmented with the service's current
// health; a background loop started by Start refreshes health at a
// configured interval.
//
// # Health
//
// Health is tri-state: unknown until first probed, then healthy or
// unhealthy. A probe error or panic records unhealthy and never
// propagates. Probes run against a snapshot of the checker map so slow
// probes don't block registration calls.
//
// # Usage
//
//	r := registry.New(registry.DefaultConfig())
//	r.Register(registry.ServiceRecord{
//	    ID:           "engram",
//	    Name:         "engram",
//	    Endpoint:     "http://localhost:8100",
//	    Capabilities: []string{"memory"},
//	}, registry.NewHTTPChecker("http://localhost:8100/health", 5*time.Second))
//
//	r.Start(ctx)
//	defer r.Stop()
//
//	for _, svc := range r.FindByCapability("memory") {
//	    // svc.Health is the state at call time
//	}
package registry
