// Package querysql compiles queryir criteria into parameterized commands.
//
// The Compiler is the session's query builder: it produces the "all rows"
// and "by identifier" queries for mapped types from their table metadata.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/litebatch/internal/dberr"
	"github.com/roach88/litebatch/internal/dialect"
	"github.com/roach88/litebatch/internal/mapping"
	"github.com/roach88/litebatch/internal/queryir"
	"github.com/roach88/litebatch/internal/sqlquery"
)

// Compiler compiles queryir.Select values into sqlquery.Query values for
// one dialect's lexical conventions.
//
// CRITICAL: All values are parameterized (never interpolated).
// Identifiers are escaped with the dialect's delimiters.
type Compiler struct {
	chars dialect.Characters
}

// NewCompiler creates a compiler for the given characters.
func NewCompiler(chars dialect.Characters) *Compiler {
	return &Compiler{chars: chars}
}

// Compile converts a Select to a parameterized query. Placeholders are
// numbered from the first argument of the returned query. Without OrderBy
// no ORDER BY clause is emitted.
func (c *Compiler) Compile(sel queryir.Select) (sqlquery.Query, error) {
	if err := queryir.Validate(sel).Err(); err != nil {
		return sqlquery.Query{}, dberr.UsageCause(err, "%s", err.Error())
	}

	b := &builder{chars: c.chars}
	b.WriteString("SELECT ")
	b.WriteString(c.compileColumns(sel.Columns))
	b.WriteString(" FROM ")
	b.WriteString(c.chars.Escape(sel.From))

	if sel.Filter != nil {
		b.WriteString(" WHERE ")
		if err := b.predicate(sel.Filter); err != nil {
			return sqlquery.Query{}, fmt.Errorf("compile filter: %w", err)
		}
	}

	if len(sel.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		for i, o := range sel.OrderBy {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(c.chars.Escape(o.Field))
			if o.Descending {
				b.WriteString(" DESC")
			} else {
				b.WriteString(" ASC")
			}
		}
	}

	return sqlquery.NewWithArguments(b.String(), b.args), nil
}

// SelectAll returns a query reading every row of the table, ordered by the
// identifier when the table has one.
func (c *Compiler) SelectAll(table mapping.TableInfo) (sqlquery.Query, error) {
	sel := queryir.Select{From: table.Name, Columns: table.Columns}
	if table.Identifier != "" {
		sel.OrderBy = []queryir.Order{{Field: table.Identifier}}
	}
	return c.Compile(sel)
}

// SelectByID returns a query reading the row whose identifier equals id.
func (c *Compiler) SelectByID(table mapping.TableInfo, id any) (sqlquery.Query, error) {
	if table.Identifier == "" {
		return sqlquery.Query{}, dberr.Usage("table %q has no identifier column", table.Name)
	}
	return c.Compile(queryir.Select{
		From:    table.Name,
		Columns: table.Columns,
		Filter:  queryir.Equals{Field: table.Identifier, Value: id},
	})
}

// compileColumns converts the column list to the SELECT clause.
func (c *Compiler) compileColumns(columns []string) string {
	if len(columns) == 0 {
		return "*"
	}
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = c.chars.Escape(col)
	}
	return strings.Join(parts, ", ")
}

// builder accumulates command text and its arguments so placeholders are
// named by their final position.
type builder struct {
	strings.Builder
	chars dialect.Characters
	args  []sqlquery.Argument
}

func (b *builder) bind(v any) {
	b.WriteString(b.chars.ParameterName(len(b.args)))
	b.args = append(b.args, sqlquery.Arg(v))
}

// predicate compiles p into the WHERE clause.
func (b *builder) predicate(p queryir.Predicate) error {
	switch pred := p.(type) {
	case queryir.Equals:
		if pred.Value == nil {
			return b.predicate(queryir.IsNull{Field: pred.Field})
		}
		b.WriteString(b.chars.Escape(pred.Field))
		b.WriteString(" = ")
		b.bind(pred.Value)
	case *queryir.Equals:
		return b.predicate(*pred)
	case queryir.In:
		b.WriteString(b.chars.Escape(pred.Field))
		b.WriteString(" IN (")
		for i, v := range pred.Values {
			if i > 0 {
				b.WriteString(", ")
			}
			b.bind(v)
		}
		b.WriteString(")")
	case *queryir.In:
		return b.predicate(*pred)
	case queryir.Between:
		b.WriteString(b.chars.Escape(pred.Field))
		b.WriteString(" BETWEEN ")
		b.bind(pred.Low)
		b.WriteString(" AND ")
		b.bind(pred.High)
	case *queryir.Between:
		return b.predicate(*pred)
	case queryir.IsNull:
		b.WriteString(b.chars.Escape(pred.Field))
		if pred.Not {
			b.WriteString(" IS NOT NULL")
		} else {
			b.WriteString(" IS NULL")
		}
	case *queryir.IsNull:
		return b.predicate(*pred)
	case queryir.And:
		return b.and(pred)
	case *queryir.And:
		return b.and(*pred)
	default:
		return fmt.Errorf("unsupported predicate type: %T", p)
	}
	return nil
}

// and compiles a conjunction. Nested conjunctions are parenthesized.
func (b *builder) and(and queryir.And) error {
	if len(and.Predicates) == 0 {
		b.WriteString("1 = 1") // Always true (vacuous truth)
		return nil
	}
	for i, sub := range and.Predicates {
		if i > 0 {
			b.WriteString(" AND ")
		}
		_, nested := sub.(queryir.And)
		if !nested {
			_, nested = sub.(*queryir.And)
		}
		if nested {
			b.WriteString("(")
		}
		if err := b.predicate(sub); err != nil {
			return err
		}
		if nested {
			b.WriteString(")")
		}
	}
	return nil
}
