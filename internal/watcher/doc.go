// Package watcher watches the library roots for new media and queues files
// once their size has been stable long enough to be safely read.
package watcher
