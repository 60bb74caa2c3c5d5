// Package database provides the SQLite connection layer for the bridge's
// local store.
//
// The store is small and single-purpose: it persists runtime parameter
// overrides (so a bridge restart comes back with the values last applied
// through set_params) and a lifecycle transition audit trail. Schema
// creation lives in the paramstore package; this package only manages the
// connection, pragmas and lifecycle of the database file.
//
// SQLite is configured for a single writer (the bridge itself), WAL mode
// for concurrent readers, and a busy timeout to ride out transient locks.
package database
