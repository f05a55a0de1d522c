// Package scheduler runs normalization jobs on a bounded worker pool with
// per-path exclusivity.
package scheduler
