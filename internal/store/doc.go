// Package store adapts database/sql to the engine's driver interfaces.
//
// A Store wraps one *sql.DB. Each session acquires its own *sql.Conn from
// the pool through Connect and keeps it until the session closes, so every
// command of a unit of work runs on the same physical connection.
//
// # Parameter Binding
//
//   - "?" and "$n" placeholders are bound positionally
//   - "@name" placeholders are bound with sql.Named
//
// # Result Sets
//
// Cursors read each row once into a value buffer, so hydration can read
// columns in any order. Multiple result sets are reached through
// sql.Rows.NextResultSet; whether a driver produces them for a
// multi-statement command depends on the driver.
//
// # SQLite Configuration
//
// Open adds the following to sqlite3 DSNs unless already present:
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
