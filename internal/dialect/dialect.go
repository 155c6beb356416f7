// Package dialect translates engine operations into backend-specific SQL.
//
// A Dialect is chosen once, when a session factory is built, and never
// changes for the lifetime of the sessions it opens. Each backend is its own
// type; they share the count, combine and binding logic of base and differ
// in placeholders, paging syntax and batching capability.
package dialect

import (
	"strings"

	"github.com/roach88/litebatch/internal/dberr"
	"github.com/roach88/litebatch/internal/driver"
	"github.com/roach88/litebatch/internal/sqlquery"
)

// Dialect is the per-backend capability used by the execution engine.
type Dialect interface {
	// Name identifies the backend ("sqlite", "postgres", ...).
	Name() string

	// Characters returns the backend's lexical conventions.
	Characters() Characters

	// SupportsBatchedQueries reports whether several statements may be sent
	// as one command and read back as sequential result sets.
	SupportsBatchedQueries() bool

	// MaxParameters is the parameter limit of one command; 0 means no limit.
	MaxParameters() int

	// CountQuery returns a query counting the rows q selects.
	CountQuery(q sqlquery.Query) (sqlquery.Query, error)

	// PageQuery returns the window of q described by paging.
	PageQuery(q sqlquery.Query, paging sqlquery.PagingOptions) (sqlquery.Query, error)

	// Combine concatenates queries into one multi-statement query.
	Combine(queries []sqlquery.Query) (sqlquery.Query, error)

	// BuildCommand binds q onto cmd.
	BuildCommand(cmd driver.Command, q sqlquery.Query) error
}

// Option configures a dialect at construction.
type Option func(*base)

// WithBatchedQueries overrides the backend's default batching capability.
func WithBatchedQueries(enabled bool) Option {
	return func(b *base) {
		b.batched = enabled
	}
}

// WithMaxParameters overrides the backend's per-command parameter limit.
func WithMaxParameters(n int) Option {
	return func(b *base) {
		b.maxParameters = n
	}
}

// base implements everything but paging.
type base struct {
	name          string
	chars         Characters
	batched       bool
	maxParameters int
}

func newBase(name string, chars Characters, batched bool, maxParameters int, opts []Option) base {
	b := base{name: name, chars: chars, batched: batched, maxParameters: maxParameters}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b *base) Name() string                 { return b.name }
func (b *base) Characters() Characters       { return b.chars }
func (b *base) SupportsBatchedQueries() bool { return b.batched }
func (b *base) MaxParameters() int           { return b.maxParameters }

// Combine joins the statements with the separator. Numbered placeholders of
// each query are shifted by the number of arguments preceding it so every
// query keeps its own arguments.
func (b *base) Combine(queries []sqlquery.Query) (sqlquery.Query, error) {
	if len(queries) == 0 {
		return sqlquery.Query{}, dberr.Usage("combine requires at least one query")
	}

	total := 0
	for _, q := range queries {
		total += q.ArgumentCount()
	}
	if b.maxParameters > 0 && total > b.maxParameters {
		return sqlquery.Query{}, dberr.Usage("combined query has %d parameters, %s allows %d", total, b.name, b.maxParameters)
	}

	var sb strings.Builder
	args := make([]sqlquery.Argument, 0, total)
	for i, q := range queries {
		if q.IsZero() {
			return sqlquery.Query{}, dberr.Usage("query %d of combine has no command text", i)
		}
		if i > 0 {
			sb.WriteString(b.chars.StatementSeparator)
			sb.WriteString("\n")
		}
		sb.WriteString(b.chars.renumber(trimStatement(q.Text()), len(args)))
		args = append(args, q.Arguments()...)
	}

	return sqlquery.NewWithArguments(sb.String(), args), nil
}

// CountQuery rewrites "SELECT <projection> FROM <rest> [ORDER BY ...]" as
// "SELECT COUNT(*) FROM <rest>". Anything the rewrite cannot preserve
// (DISTINCT, grouping, set operations, limits, arguments in the projection
// or the ORDER BY clause) is counted through a derived table instead.
func (b *base) CountQuery(q sqlquery.Query) (sqlquery.Query, error) {
	return b.countQuery(q, "")
}

// countQuery implements CountQuery. orderedSuffix is appended to a derived
// table that keeps an unbounded ORDER BY.
func (b *base) countQuery(q sqlquery.Query, orderedSuffix string) (sqlquery.Query, error) {
	if q.IsZero() {
		return sqlquery.Query{}, dberr.Usage("count query requires command text")
	}

	text := trimStatement(q.Text())
	body, ordering := text, ""
	if orderBy := b.clauseIndex(text, "ORDER BY", true); orderBy >= 0 {
		body = strings.TrimSpace(text[:orderBy])
		ordering = text[orderBy:]
	}

	// The ordering stays when it binds arguments or bounds the rows.
	bounded := ordering != "" && b.needsDerivedTable(ordering)
	keepOrdering := bounded || b.chars.placeholderCount(ordering) > 0

	from := b.clauseIndex(body, "FROM", false)
	if from < 0 || keepOrdering || b.needsDerivedTable(body) || b.chars.placeholderCount(body[:from]) > 0 {
		inner := body
		if keepOrdering {
			inner = text
			if !bounded {
				inner += orderedSuffix
			}
		}
		return sqlquery.NewWithArguments("SELECT COUNT(*) FROM ("+inner+") AS q", q.Arguments()), nil
	}

	return sqlquery.NewWithArguments("SELECT COUNT(*) "+body[from:], q.Arguments()), nil
}

var derivedTableClauses = []string{
	"DISTINCT", "GROUP BY", "HAVING", "UNION", "INTERSECT", "EXCEPT",
	"LIMIT", "OFFSET", "FETCH", "ROWS", "TOP",
}

func (b *base) needsDerivedTable(body string) bool {
	for _, clause := range derivedTableClauses {
		if b.clauseIndex(body, clause, false) >= 0 {
			return true
		}
	}
	return false
}

// BuildCommand sets the command text and binds every argument under the
// placeholder name of its position.
func (b *base) BuildCommand(cmd driver.Command, q sqlquery.Query) error {
	if cmd == nil {
		return dberr.Usage("build command requires a command")
	}
	if q.IsZero() {
		return dberr.Usage("build command requires command text")
	}

	cmd.SetText(q.Text())
	for i, arg := range q.Arguments() {
		cmd.AddArgument(b.chars.ParameterName(i), arg)
	}
	return nil
}

// appendWindow appends clause (built from the positions of the new
// arguments) and its arguments to q.
func (b *base) appendWindow(q sqlquery.Query, paging sqlquery.PagingOptions, clause func(first string, second string) string, first, second int) (sqlquery.Query, error) {
	if q.IsZero() {
		return sqlquery.Query{}, dberr.Usage("page query requires command text")
	}
	if paging.IsNone() {
		return sqlquery.Query{}, dberr.Usage("page query requires paging options")
	}

	n := q.ArgumentCount()
	text := trimStatement(q.Text()) + clause(b.chars.ParameterName(n), b.chars.ParameterName(n+1))
	trimmed := sqlquery.NewWithArguments(text, q.Arguments())
	return trimmed.Append("", sqlquery.Arg(first), sqlquery.Arg(second)), nil
}

// clauseIndex returns the offset of the first (or last) occurrence of the
// keyword phrase at nesting depth zero, outside literals, quoted
// identifiers and comments. It returns -1 when there is none.
func (b *base) clauseIndex(text, phrase string, last bool) int {
	words := strings.Fields(phrase)
	found := -1
	depth := 0

	for i := 0; i < len(text); i++ {
		ch := text[i]
		if closer, ok := b.chars.quoteCloser(ch); ok {
			i = skipQuoted(text, i, closer)
			continue
		}
		if end, ok := skipComment(text, i); ok {
			i = end
			continue
		}
		switch ch {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		default:
			if depth != 0 || (i > 0 && isIdentChar(text[i-1])) {
				continue
			}
			if end, ok := matchPhrase(text, i, words); ok {
				if !last {
					return i
				}
				found = i
				i = end - 1
			}
		}
	}
	return found
}

// matchPhrase matches words case-insensitively at text[i:], allowing any
// run of whitespace between words, and returns the end offset.
func matchPhrase(text string, i int, words []string) (int, bool) {
	pos := i
	for wi, w := range words {
		if wi > 0 {
			start := pos
			for pos < len(text) && isSpace(text[pos]) {
				pos++
			}
			if pos == start {
				return 0, false
			}
		}
		if len(text)-pos < len(w) || !strings.EqualFold(text[pos:pos+len(w)], w) {
			return 0, false
		}
		pos += len(w)
	}
	if pos < len(text) && isIdentChar(text[pos]) {
		return 0, false
	}
	return pos, true
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

// trimStatement drops surrounding whitespace and trailing separators.
func trimStatement(text string) string {
	return strings.TrimRight(strings.TrimSpace(text), "; \t\r\n")
}

// ByName returns the dialect registered under name.
func ByName(name string, opts ...Option) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3":
		return NewSQLite(opts...), nil
	case "mysql", "mariadb":
		return NewMySQL(opts...), nil
	case "postgres", "postgresql", "pgx":
		return NewPostgreSQL(opts...), nil
	case "mssql", "sqlserver":
		return NewMsSQL(opts...), nil
	case "firebird":
		return NewFirebird(opts...), nil
	default:
		return nil, dberr.Usage("unknown dialect %q", name)
	}
}

// Names lists the canonical dialect names accepted by ByName.
var Names = []string{"sqlite", "mysql", "postgres", "mssql", "firebird"}
