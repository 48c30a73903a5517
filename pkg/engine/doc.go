// Package engine implements the data-flow core of ArrayForge: pooled
// value storage, layered data states, simulations and the scheduling
// machinery that drives interface execution.
//
// # Data model
//
// Values live in a DataPool, addressed by generational Handle. A
// DataState maps variable identifiers to handles and carries a level
// tag; a Simulation stacks states with undo and redo, and the merged
// view of the stack is the data visible to the next interface.
//
// # Scheduling
//
// A Hub schedules registered interfaces either in any order or, as a
// pipeline, in a strict sequence. The Sequencer resolves interface
// class names and weighted ordering against plugin registries, and the
// Controller ties pools, states, hubs and registries together behind
// one API: load an interface, execute it, store its outputs as a new
// state, and query input and output status.
//
// # Persistence
//
// SerialiseStates and SerialisePool flatten a simulation and its pool
// into JSON records for project bundles; the matching deserialisers
// rebuild them against a data catalog.
package engine
