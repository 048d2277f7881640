// Package supervisor owns the single llama.cpp child process that backs the
// loaded model. It serializes requests into a strict FIFO with at most one in
// flight and splits the process's unframed output into per-request results.
//
// Files by concern:
//
//   - supervisor.go: Supervisor facade (catalog, load/unload, ask, status).
//   - machine.go: session state machine, queue, prompt dispatch.
//   - demux.go: stdout/stderr pumps and process-exit handling.
//   - sink.go: buffered and streaming result sinks.
//   - process.go: Process interface and the os/exec implementation.
//   - events.go: status subscriptions and lifecycle event publishing.
//   - errors.go: error values and IsX helpers.
//   - metrics.go: Prometheus collectors.
//
// Every submitted request is resolved or rejected exactly once, including when
// the process dies mid-request.
package supervisor
