package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/litebatch/internal/driver"
	"github.com/roach88/litebatch/internal/sqlquery"
)

// sqliteParams are appended to sqlite3 DSNs; go-sqlite3 applies them to
// every connection it opens.
var sqliteParams = []struct{ key, value string }{
	{"_journal_mode", "WAL"},
	{"_synchronous", "NORMAL"},
	{"_busy_timeout", "5000"},
	{"_foreign_keys", "on"},
}

// Store is a driver.Connector over a database/sql pool.
type Store struct {
	db *sql.DB
}

// Open opens a database with a registered database/sql driver and verifies
// the connection works.
//
// sqlite3 is registered by this package; other drivers must be registered
// by the caller (cmd/litebatch imports pgx and mysql). sqlite3 DSNs get the
// pragmas listed in the package documentation.
func Open(driverName, dsn string) (*Store, error) {
	if driverName == "sqlite3" {
		dsn = sqliteDSN(dsn)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Store{db: db}, nil
}

// New wraps an existing pool.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the pool.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct statements (schema setup,
// writes). Sessions never use it.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Connect implements driver.Connector by reserving one pooled connection.
func (s *Store) Connect(ctx context.Context) (driver.Connection, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return &connection{conn: conn}, nil
}

// sqliteDSN adds the default parameters missing from dsn.
func sqliteDSN(dsn string) string {
	var missing []string
	for _, p := range sqliteParams {
		if !strings.Contains(dsn, p.key+"=") {
			missing = append(missing, p.key+"="+p.value)
		}
	}
	if len(missing) == 0 {
		return dsn
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(missing, "&")
}

// connection is a driver.Connection over a reserved *sql.Conn.
type connection struct {
	conn *sql.Conn
}

func (c *connection) CreateCommand() driver.Command {
	return &command{conn: c.conn}
}

func (c *connection) Close() error {
	return c.conn.Close()
}

// command accumulates text and arguments until Query.
type command struct {
	conn   *sql.Conn
	text   string
	args   []any
	rows   *sql.Rows
	closed bool
}

func (c *command) SetText(text string) {
	c.text = text
}

// AddArgument binds "@name" placeholders by name and everything else by
// position.
func (c *command) AddArgument(name string, arg sqlquery.Argument) {
	if strings.HasPrefix(name, "@") && len(name) > 1 {
		c.args = append(c.args, sql.Named(name[1:], arg.Value))
		return
	}
	c.args = append(c.args, arg.Value)
}

func (c *command) Query(ctx context.Context) (driver.Cursor, error) {
	if c.closed {
		return nil, fmt.Errorf("command is closed")
	}
	rows, err := c.conn.QueryContext(ctx, c.text, c.args...)
	if err != nil {
		return nil, err
	}
	c.rows = rows
	return &cursor{rows: rows}, nil
}

// Close releases the command's rows. Safe to call more than once.
func (c *command) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.rows != nil {
		return c.rows.Close()
	}
	return nil
}

// cursor reads *sql.Rows one row at a time into a value buffer.
type cursor struct {
	rows    *sql.Rows
	columns []string
	values  []any
	scanned bool
}

func (c *cursor) Next() bool {
	c.scanned = false
	return c.rows.Next()
}

func (c *cursor) NextResultSet() bool {
	c.columns = nil
	c.values = nil
	c.scanned = false
	return c.rows.NextResultSet()
}

func (c *cursor) Columns() ([]string, error) {
	if c.columns == nil {
		cols, err := c.rows.Columns()
		if err != nil {
			return nil, err
		}
		c.columns = cols
	}
	return c.columns, nil
}

// Value returns the value of the column at ordinal in the current row.
func (c *cursor) Value(ordinal int) (any, error) {
	if !c.scanned {
		if err := c.scan(); err != nil {
			return nil, err
		}
	}
	if ordinal < 0 || ordinal >= len(c.values) {
		return nil, fmt.Errorf("column ordinal %d out of range (%d columns)", ordinal, len(c.values))
	}
	return c.values[ordinal], nil
}

func (c *cursor) scan() error {
	cols, err := c.Columns()
	if err != nil {
		return err
	}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := c.rows.Scan(ptrs...); err != nil {
		return fmt.Errorf("scan row: %w", err)
	}
	c.values = values
	c.scanned = true
	return nil
}

func (c *cursor) Err() error {
	return c.rows.Err()
}

func (c *cursor) Close() error {
	return c.rows.Close()
}

var (
	_ driver.Connector  = (*Store)(nil)
	_ driver.Connection = (*connection)(nil)
	_ driver.Command    = (*command)(nil)
	_ driver.Cursor     = (*cursor)(nil)
)
