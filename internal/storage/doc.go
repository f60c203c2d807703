// Package storage persists planner snapshots and an audit trail of plan
// mutations.
//
// Drivers:
//   - "file": JSON snapshot (atomically replaced) + JSON Lines audit log
//   - "sqlite": single SQLite database file (modernc.org/sqlite, no cgo)
package storage
