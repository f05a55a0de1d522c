// Package ffmpeg wraps the ffmpeg command line for peak measurement and
// normalization transcodes.
//
// The CLI type builds and runs the two invocation shapes the pipeline needs
// (volumedetect analysis and the gain-applying transcode), parses the
// max_volume figure out of the tool's log output, and classifies encode
// failures into the small taxonomy the retry policy understands. Callers that
// need to stub ffmpeg in tests depend on the Client interface.
package ffmpeg
