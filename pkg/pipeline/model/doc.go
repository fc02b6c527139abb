// Package model provides the data structures shared between the pipeline
// compiler and its consumers: the per-task metadata record, the compiled
// task, and the executable graph document handed to an external runner.
package model
