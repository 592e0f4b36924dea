// Package storage persists source links, events, fee tiers and prizes.
//
// A Store wraps a gorm connection to either an embedded sqlite file (the
// default, under ~/.local/share/opencall/) or a postgres server. Open migrates
// the four tables and Close releases the connection.
//
// Every write runs in its own transaction and either fully commits or fully
// rolls back. Idempotent inserts (source links, fee tiers) report whether a
// row was created or an existing one was returned, using the database's
// uniqueness constraints rather than a separate check. Analytics never fail
// on an empty store; they return zeroed aggregates.
package storage
