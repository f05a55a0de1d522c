// Package discovery enumerates candidate media files and owns the
// eligibility rules (extension, sample-name tokens, minimum size) shared by
// the batch scan and the filesystem watcher.
package discovery
