// Package encode turns a normalization plan into an ffmpeg invocation,
// handling the subtitle-drop fallback and orphan temp cleanup.
package encode
