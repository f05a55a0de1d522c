// Package pipeline orchestrates the per-file normalization sequence: decide
// whether work is needed, probe, measure the peak, plan, encode, verify, and
// atomically replace the original before committing state.
package pipeline
