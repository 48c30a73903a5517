// Package stores provides persistence layer implementations for ArrayForge.
// It includes SQLite-based storage with WAL mode, connection pooling,
// and CRUD operations for runs, execution events, and serialized project
// snapshots.
package stores
