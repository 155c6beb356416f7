package dialect

import (
	"github.com/roach88/litebatch/internal/sqlquery"
)

// SQLite pages with "LIMIT offset,count".
//
// Batching is off by default: go-sqlite3 runs every statement of a
// multi-statement query but only returns the rows of the last one.
type SQLite struct{ base }

// NewSQLite creates the SQLite dialect.
func NewSQLite(opts ...Option) *SQLite {
	return &SQLite{base: newBase("sqlite", Characters{
		LeftDelimiter:      `"`,
		RightDelimiter:     `"`,
		StatementSeparator: ";",
		ParameterPrefix:    "?",
	}, false, 999, opts)}
}

// PageQuery appends "LIMIT ?,?" with offset and size arguments.
func (d *SQLite) PageQuery(q sqlquery.Query, paging sqlquery.PagingOptions) (sqlquery.Query, error) {
	return d.appendWindow(q, paging, func(offset, count string) string {
		return " LIMIT " + offset + "," + count
	}, paging.Offset(), paging.Size())
}

// MySQL pages like SQLite. The server returns one result set per statement
// when the connection enables multiStatements.
type MySQL struct{ base }

// NewMySQL creates the MySQL dialect.
func NewMySQL(opts ...Option) *MySQL {
	return &MySQL{base: newBase("mysql", Characters{
		LeftDelimiter:      "`",
		RightDelimiter:     "`",
		StatementSeparator: ";",
		ParameterPrefix:    "?",
	}, true, 0, opts)}
}

// PageQuery appends "LIMIT ?,?" with offset and size arguments.
func (d *MySQL) PageQuery(q sqlquery.Query, paging sqlquery.PagingOptions) (sqlquery.Query, error) {
	return d.appendWindow(q, paging, func(offset, count string) string {
		return " LIMIT " + offset + "," + count
	}, paging.Offset(), paging.Size())
}

// PostgreSQL uses numbered "$n" placeholders.
//
// Batching is off by default: the extended query protocol rejects
// multi-statement commands that carry arguments.
type PostgreSQL struct{ base }

// NewPostgreSQL creates the PostgreSQL dialect.
func NewPostgreSQL(opts ...Option) *PostgreSQL {
	return &PostgreSQL{base: newBase("postgres", Characters{
		LeftDelimiter:      `"`,
		RightDelimiter:     `"`,
		StatementSeparator: ";",
		ParameterPrefix:    "$",
		Numbered:           true,
		FirstParameter:     1,
	}, false, 65535, opts)}
}

// PageQuery appends "LIMIT $n OFFSET $n+1" with size and offset arguments.
func (d *PostgreSQL) PageQuery(q sqlquery.Query, paging sqlquery.PagingOptions) (sqlquery.Query, error) {
	return d.appendWindow(q, paging, func(count, offset string) string {
		return " LIMIT " + count + " OFFSET " + offset
	}, paging.Size(), paging.Offset())
}

// MsSQL uses "@pN" placeholders and OFFSET/FETCH paging, which requires an
// ORDER BY clause.
type MsSQL struct{ base }

// NewMsSQL creates the SQL Server dialect.
func NewMsSQL(opts ...Option) *MsSQL {
	return &MsSQL{base: newBase("mssql", Characters{
		LeftDelimiter:      "[",
		RightDelimiter:     "]",
		StatementSeparator: ";",
		ParameterPrefix:    "@p",
		Numbered:           true,
		FirstParameter:     1,
	}, true, 2100, opts)}
}

// PageQuery appends "OFFSET @pN ROWS FETCH NEXT @pN+1 ROWS ONLY", adding
// "ORDER BY (SELECT NULL)" when q has no ordering.
func (d *MsSQL) PageQuery(q sqlquery.Query, paging sqlquery.PagingOptions) (sqlquery.Query, error) {
	orderBy := ""
	if !q.IsZero() && d.clauseIndex(trimStatement(q.Text()), "ORDER BY", true) < 0 {
		orderBy = " ORDER BY (SELECT NULL)"
	}
	return d.appendWindow(q, paging, func(offset, count string) string {
		return orderBy + " OFFSET " + offset + " ROWS FETCH NEXT " + count + " ROWS ONLY"
	}, paging.Offset(), paging.Size())
}

// CountQuery counts through a derived table when needed. A kept ORDER BY
// gets "OFFSET 0 ROWS", without which SQL Server rejects ordering inside a
// derived table.
func (d *MsSQL) CountQuery(q sqlquery.Query) (sqlquery.Query, error) {
	return d.countQuery(q, " OFFSET 0 ROWS")
}

// Firebird pages with "ROWS m TO n" (1-based, inclusive) and has no
// multi-statement batches.
type Firebird struct{ base }

// NewFirebird creates the Firebird dialect.
func NewFirebird(opts ...Option) *Firebird {
	return &Firebird{base: newBase("firebird", Characters{
		LeftDelimiter:      `"`,
		RightDelimiter:     `"`,
		StatementSeparator: ";",
		ParameterPrefix:    "?",
	}, false, 0, opts)}
}

// PageQuery appends "ROWS ? TO ?".
func (d *Firebird) PageQuery(q sqlquery.Query, paging sqlquery.PagingOptions) (sqlquery.Query, error) {
	return d.appendWindow(q, paging, func(from, to string) string {
		return " ROWS " + from + " TO " + to
	}, paging.Offset()+1, paging.Offset()+paging.Size())
}

var (
	_ Dialect = (*SQLite)(nil)
	_ Dialect = (*MySQL)(nil)
	_ Dialect = (*PostgreSQL)(nil)
	_ Dialect = (*MsSQL)(nil)
	_ Dialect = (*Firebird)(nil)
)
