// Package plan computes per-file normalization decisions: the gain to apply,
// whether the audio payload is touched at all, and the codec and bitrate used
// when it is. Everything here is pure; probing supplies the inputs.
package plan
