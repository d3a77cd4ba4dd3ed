// Package storage keeps an optional on-disk history of EventLog entries.
//
// The in-memory EventLog store only ever holds the last few entries; this
// package lets an operator look further back. Backends:
//   - file: append-only JSON Lines
//   - sqlite: single table, behind the "sqlite" build tag
package storage
