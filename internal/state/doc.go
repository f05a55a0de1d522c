// Package state persists the processed-file records that make runs idempotent.
//
// The Store is the single shared mutable structure across workers: reads take
// point-in-time snapshots, writes are serialized behind one mutex, and every
// commit rewrites the full JSON document through a temp-file-plus-rename so
// the store is never observed half-written.
package state
