// Package api hosts the HTTP server, middleware, and REST handlers around the
// display engine. Notable routes:
//   - PUT/DELETE /v1/progress and /v1/screening for producer writes.
//   - GET /v1/view for the derived view (204 when nothing is shown) and
//     GET /v1/view/stream for Server-Sent Events.
//   - POST /v1/dismiss for the consumer's dismiss action.
//   - GET /healthz, /readyz for probes and GET /metrics for Prometheus.
package api
