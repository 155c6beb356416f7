// Package testutil provides deterministic collaborators for tests: a
// scripted store driver that records every command it runs, and fixed
// session identifiers.
package testutil

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/litebatch/internal/driver"
	"github.com/roach88/litebatch/internal/sqlquery"
)

// ResultSet is one scripted result set.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// Response is what the fake returns for one executed command: either an
// error or a cursor over the result sets.
type Response struct {
	ResultSets []ResultSet
	Err        error
}

// Rows is a shorthand for a response with a single result set.
func Rows(columns []string, rows ...[]any) Response {
	return Response{ResultSets: []ResultSet{{Columns: columns, Rows: rows}}}
}

// Failure is a shorthand for a response whose execution fails.
func Failure(err error) Response {
	return Response{Err: err}
}

// FakeConnector hands out one FakeConnection.
type FakeConnector struct {
	Conn     *FakeConnection
	Err      error
	Connects int
}

// NewFakeConnector creates a connector whose connection replays responses
// in order, one per executed command.
func NewFakeConnector(responses ...Response) *FakeConnector {
	return &FakeConnector{Conn: NewFakeConnection(responses...)}
}

// Connect implements driver.Connector.
func (c *FakeConnector) Connect(ctx context.Context) (driver.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.Err != nil {
		return nil, c.Err
	}
	c.Connects++
	return c.Conn, nil
}

// FakeConnection records commands and replays scripted responses.
//
// Not safe for concurrent use, like the sessions that drive it.
type FakeConnection struct {
	responses []Response
	Commands  []*FakeCommand
	Closed    bool
}

// NewFakeConnection creates a connection with scripted responses.
func NewFakeConnection(responses ...Response) *FakeConnection {
	return &FakeConnection{responses: responses}
}

// Script appends responses for later commands.
func (c *FakeConnection) Script(responses ...Response) {
	c.responses = append(c.responses, responses...)
}

// CreateCommand implements driver.Connection.
func (c *FakeConnection) CreateCommand() driver.Command {
	cmd := &FakeCommand{conn: c}
	c.Commands = append(c.Commands, cmd)
	return cmd
}

// Close implements driver.Connection.
func (c *FakeConnection) Close() error {
	c.Closed = true
	return nil
}

// Executed returns the commands that were run, in order.
func (c *FakeConnection) Executed() []*FakeCommand {
	var out []*FakeCommand
	for _, cmd := range c.Commands {
		if cmd.Executed {
			out = append(out, cmd)
		}
	}
	return out
}

// AllReleased reports whether every created command was closed.
func (c *FakeConnection) AllReleased() bool {
	for _, cmd := range c.Commands {
		if cmd.CloseCount == 0 {
			return false
		}
	}
	return true
}

// Remaining returns the number of unconsumed responses.
func (c *FakeConnection) Remaining() int {
	return len(c.responses)
}

func (c *FakeConnection) next() (Response, error) {
	if len(c.responses) == 0 {
		return Response{}, errors.New("testutil: no scripted response left")
	}
	r := c.responses[0]
	c.responses = c.responses[1:]
	return r, nil
}

// FakeCommand records what a dialect bound onto it.
type FakeCommand struct {
	conn       *FakeConnection
	Text       string
	Names      []string
	Args       []sqlquery.Argument
	Executed   bool
	CloseCount int
	Cursor     *FakeCursor
}

// SetText implements driver.Command.
func (c *FakeCommand) SetText(text string) {
	c.Text = text
}

// AddArgument implements driver.Command.
func (c *FakeCommand) AddArgument(name string, arg sqlquery.Argument) {
	c.Names = append(c.Names, name)
	c.Args = append(c.Args, arg)
}

// Values returns the bound argument values.
func (c *FakeCommand) Values() []any {
	out := make([]any, len(c.Args))
	for i, a := range c.Args {
		out[i] = a.Value
	}
	return out
}

// Query implements driver.Command.
func (c *FakeCommand) Query(ctx context.Context) (driver.Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.Executed = true

	resp, err := c.conn.next()
	if err != nil {
		return nil, err
	}
	if resp.Err != nil {
		return nil, resp.Err
	}

	c.Cursor = &FakeCursor{sets: resp.ResultSets, row: -1}
	return c.Cursor, nil
}

// Close implements driver.Command.
func (c *FakeCommand) Close() error {
	c.CloseCount++
	return nil
}

// FakeCursor iterates scripted result sets.
type FakeCursor struct {
	sets     []ResultSet
	set      int
	row      int
	RowsRead int
	Closed   bool
}

// Next implements driver.Cursor.
func (c *FakeCursor) Next() bool {
	if c.set >= len(c.sets) {
		return false
	}
	rows := c.sets[c.set].Rows
	if c.row+1 >= len(rows) {
		c.row = len(rows)
		return false
	}
	c.row++
	c.RowsRead++
	return true
}

// NextResultSet implements driver.Cursor.
func (c *FakeCursor) NextResultSet() bool {
	c.set++
	c.row = -1
	return c.set < len(c.sets)
}

// Columns implements driver.Cursor.
func (c *FakeCursor) Columns() ([]string, error) {
	if c.set >= len(c.sets) {
		return nil, errors.New("testutil: no current result set")
	}
	return c.sets[c.set].Columns, nil
}

// Value implements driver.Cursor.
func (c *FakeCursor) Value(ordinal int) (any, error) {
	if c.set >= len(c.sets) {
		return nil, errors.New("testutil: no current result set")
	}
	rows := c.sets[c.set].Rows
	if c.row < 0 || c.row >= len(rows) {
		return nil, errors.New("testutil: cursor is not on a row")
	}
	values := rows[c.row]
	if ordinal < 0 || ordinal >= len(values) {
		return nil, fmt.Errorf("testutil: ordinal %d out of range", ordinal)
	}
	return values[ordinal], nil
}

// Err implements driver.Cursor.
func (c *FakeCursor) Err() error {
	return nil
}

// Close implements driver.Cursor.
func (c *FakeCursor) Close() error {
	c.Closed = true
	return nil
}

var (
	_ driver.Connector  = (*FakeConnector)(nil)
	_ driver.Connection = (*FakeConnection)(nil)
	_ driver.Command    = (*FakeCommand)(nil)
	_ driver.Cursor     = (*FakeCursor)(nil)
)
