// Package sim provides the core tick-driven engine for simulating how an LLM
// serving system batches requests.
//
// # Reading Guide
//
// Start with these three files to understand the simulation kernel:
//   - request.go: Request lifecycle (queued → prefilling → decoding → done) and state machine
//   - batcher.go: Admission policies that decide which queued requests occupy batch slots
//   - engine.go: The step loop (arrivals → admission → pricing → advancement → completion)
//
// # Architecture
//
// The sim package defines the engine, the request model and the strategy
// interfaces; everything configurable sits in sub-packages:
//   - sim/workload/: Load generators (batch, closed-loop concurrency, open-loop rate)
//   - sim/trace/: Per-step slot timeline recording
//   - sim/experiment/: Declarative YAML experiments and parallel sweeps
//   - sim/telemetry/: Prometheus export of metrics reports
//
// # Key Interfaces
//
// The extension points are small interfaces selected by name at construction:
//   - Batcher: slot admission and lockstep rules (static, ifb, ifb-one-prefill)
//   - LoadGenerator: arrivals per step, given the current occupancy
//   - LatencyModel: ticks consumed by one step (iteration, unit)
//
// One Engine simulates one run and owns its queue, slots and metrics; there
// is no package-level mutable state, so engines can run in parallel.
package sim
