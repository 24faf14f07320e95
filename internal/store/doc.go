// Package store defines the state-access interface through which the engine
// reads and writes the run and sweep aggregates. Implementations live in
// subpackages; this package must not import concrete backends.
package store
