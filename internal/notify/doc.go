// Package notify carries lifecycle notifications out of the engine. Events
// are enqueued on a non-blocking Hub that batches them on a background
// goroutine and fans them out to pluggable sinks (structured logs,
// Prometheus, Pub/Sub).
package notify
