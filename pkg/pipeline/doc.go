// Package pipeline compiles declarative container pipelines into an
// executable task graph.
//
// A pipeline is a directed graph of typed, containerized components. Each
// component declares what it consumes and produces as named subsets of
// typed fields, and the compiler propagates that evolving schema along the
// declared dependency edges, rejecting any node whose contract cannot be
// satisfied by its predecessors. Alongside schema propagation the compiler
// derives a deterministic, content-addressable cache key per node from its
// spec content, resolved arguments and upstream lineage, so an external
// runner can skip work that has not changed.
//
// Compilation is a single-threaded, side-effect-free computation: it never
// touches storage and produces either a complete, topologically ordered
// task graph or the first contract violation it encounters. The compiled
// document is what an orchestration backend consumes; the compiler makes
// no scheduling promises beyond the DAG structure itself.
package pipeline
