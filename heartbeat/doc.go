// Package heartbeat provides periodic liveness signals for registered
// components.
//
// # Overview
//
// A registered component runs a Sender that publishes a heartbeat on
// the bus every interval, carrying its registration token and a status
// map. On the manager side, a Monitor records last-seen times for
// heartbeats whose token validated and reports components that go
// silent past a timeout.
//
// # Flow
//
//	Client ──Sender──▶ Bus ──▶ Manager (token check) ──▶ Monitor
//
// The Monitor never subscribes to the bus itself: only heartbeats the
// manager has authenticated count toward liveness.
//
// # Usage
//
//	sender, _ := heartbeat.NewSender(heartbeat.SenderConfig{
//	    Bus:         b,
//	    ComponentID: "engram",
//	    Interval:    30 * time.Second,
//	})
//	sender.SetToken(tok)
//	sender.Start(ctx)
//	defer sender.Stop()
//
//	monitor := heartbeat.NewMonitor(heartbeat.DefaultMonitorConfig())
//	monitor.OnDead(func(id string) { log.Printf("%s went silent", id) })
//	monitor.Start(ctx)
//	defer monitor.Stop()
package heartbeat
