// Package sinks implements notify.Sink consumers: structured logging,
// Prometheus collectors, and an outbound publisher bridge. Each sink is
// safe for repeated Consume calls from the hub goroutine.
package sinks
