// Package ffprobe wraps ffprobe JSON inspection for stream metadata.
//
// The Result helpers implement the deterministic main-audio selection rule:
// the stream carrying the default disposition wins, otherwise the
// first-indexed audio stream.
package ffprobe
