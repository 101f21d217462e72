// Package health aggregates dependency probes into a per-dependency
// [Report] and provides the checks behind the ops liveness and readiness
// endpoints.
//
// [Aggregate] and [Aggregator.Check] run every registered [probe.Pinger]
// concurrently and wait for all of them. A failing or panicking probe only
// ever affects its own entry, and there is no global deadline: wrap
// individual pingers with [probe.WithTimeout] when bounded latency matters.
//
// [ShutdownGate] fails readiness as soon as draining starts so load
// balancers stop sending traffic before in-flight requests finish.
package health
