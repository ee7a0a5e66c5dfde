// Package storage persists the watcher's dedup state.
//
// Two drivers are available:
//   - "file":   a single JSON document, replaced atomically (tmp + fsync + rename)
//   - "sqlite": a one-row table in a SQLite database (modernc.org/sqlite, no cgo)
//
// Both are single-writer: the watcher serializes Save calls, and each store
// additionally guards its own handle with a mutex.
package storage
