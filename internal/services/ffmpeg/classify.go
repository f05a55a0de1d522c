package ffmpeg

import "regexp"

// FailureKind buckets an ffmpeg encode failure for the retry policy.
type FailureKind int

const (
	// FailureUnknown covers errors with no applicable fallback.
	FailureUnknown FailureKind = iota
	// FailureStreamCompat covers subtitle and uncommon-codec stream-copy
	// errors that the drop-subtitles fallback can fix.
	FailureStreamCompat
)

// Stream-compatibility signatures observed from real ffmpeg runs: subtitle
// codecs the target container rejects, header write failures, and stream
// binding errors. Checked against the full stderr of a failed attempt.
var streamCompatRE = regexp.MustCompile(
	`(?i)subtitle|` +
		`\bsrt\b|` +
		`binding an input stream|` +
		`codec 0 is not supported|` +
		`could not write header|` +
		`function not implemented|` +
		`incorrect codec parameters|` +
		`could not find tag for codec`)

// ClassifyStderr inspects the diagnostic output of a failed encode and maps it
// into the fixed failure taxonomy.
func ClassifyStderr(stderr string) FailureKind {
	if streamCompatRE.MatchString(stderr) {
		return FailureStreamCompat
	}
	return FailureUnknown
}
