// Package driver declares the store-driver collaborator the engine executes
// against. internal/store adapts database/sql to these interfaces and
// internal/testutil provides a scripted fake.
package driver

import (
	"context"

	"github.com/roach88/litebatch/internal/sqlquery"
)

// Connector acquires the single connection a session owns.
type Connector interface {
	Connect(ctx context.Context) (Connection, error)
}

// Connection is one physical connection. Commands created from it run
// sequentially; it is never shared between sessions.
type Connection interface {
	CreateCommand() Command
	Close() error
}

// Command is one physical command. Dialects bind text and arguments onto it
// before execution. Close must be safe to call more than once.
type Command interface {
	SetText(text string)
	AddArgument(name string, arg sqlquery.Argument)
	Query(ctx context.Context) (Cursor, error)
	Close() error
}

// Cursor is the forward-only, result-set-then-row iterator returned by a
// command. Value reads a column of the current row.
type Cursor interface {
	Next() bool
	NextResultSet() bool
	Columns() ([]string, error)
	Value(ordinal int) (any, error)
	Err() error
	Close() error
}
