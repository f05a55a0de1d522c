// Package fingerprint computes cheap file identities for change detection.
//
// A Signature (size plus mtime) is the first-line check; the sampled-content
// hash from Compute guards against signature collisions such as a touch
// without a content change, or size-preserving edits.
package fingerprint
