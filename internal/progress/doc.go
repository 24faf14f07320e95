// Package progress models a single analysis run: the ordered pipeline steps,
// the aggregate record written by the producer, and the pure derivations a
// status indicator reads from it (completion, failure, percentage, verdict
// class). Nothing in this package owns time or shared state; see the engine
// package for the auto-dismiss lifecycle.
package progress
