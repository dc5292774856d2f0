// Package deployment contains pure functions for planning stack
// deployments: container naming, dependency ordering, and the roll-up of
// per-container states into a stack-level status.
//
// This is part of the Functional Core - all functions are pure with no I/O.
package deployment
