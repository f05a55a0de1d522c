// Package daemon composes the long-running watch service: single-instance
// locking, startup scan, orphan cleanup, scheduler, and watcher lifecycle.
package daemon
