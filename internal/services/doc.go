// Package services defines shared utilities consumed by the normalization
// pipeline and the external-tool integrations beneath it.
//
// It owns the structured error markers plus the Wrap helper that translate
// failures into consistent per-job outcomes, and hosts the ffmpeg/ffprobe
// command wrappers in subpackages. Use these helpers when wiring new pipeline
// logic so error handling stays uniform across components.
package services
