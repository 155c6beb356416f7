// Package sqlquery holds the immutable values that flow through the engine:
// Query (command text plus ordered typed arguments), PagingOptions and Page.
package sqlquery

import (
	"fmt"
	"strings"
	"time"
)

// DbType tags an argument with the store type it should bind as.
type DbType int

const (
	DbTypeUnknown DbType = iota
	DbTypeNull
	DbTypeString
	DbTypeBool
	DbTypeInt32
	DbTypeInt64
	DbTypeFloat64
	DbTypeBytes
	DbTypeTime
)

var dbTypeNames = [...]string{
	DbTypeUnknown: "unknown",
	DbTypeNull:    "null",
	DbTypeString:  "string",
	DbTypeBool:    "bool",
	DbTypeInt32:   "int32",
	DbTypeInt64:   "int64",
	DbTypeFloat64: "float64",
	DbTypeBytes:   "bytes",
	DbTypeTime:    "time",
}

func (t DbType) String() string {
	if t < 0 || int(t) >= len(dbTypeNames) {
		return fmt.Sprintf("DbType(%d)", int(t))
	}
	return dbTypeNames[t]
}

// TypeOf infers the DbType of a Go value.
func TypeOf(v any) DbType {
	switch v.(type) {
	case nil:
		return DbTypeNull
	case string:
		return DbTypeString
	case bool:
		return DbTypeBool
	case int8, int16, int32, uint8, uint16:
		return DbTypeInt32
	case int, int64, uint, uint32, uint64:
		return DbTypeInt64
	case float32, float64:
		return DbTypeFloat64
	case []byte:
		return DbTypeBytes
	case time.Time:
		return DbTypeTime
	default:
		return DbTypeUnknown
	}
}

// Argument is one positional value of a Query.
type Argument struct {
	Value any
	Type  DbType
}

// Arg creates an Argument with an inferred type.
func Arg(v any) Argument {
	return Argument{Value: v, Type: TypeOf(v)}
}

// Query is command text plus its ordered arguments.
//
// A Query is immutable once built: constructors copy their inputs and
// accessors return copies. The zero Query has no text and is rejected by
// every engine entry point.
type Query struct {
	text string
	args []Argument
}

// New creates a Query whose argument types are inferred from values.
func New(text string, values ...any) Query {
	args := make([]Argument, len(values))
	for i, v := range values {
		args[i] = Arg(v)
	}
	return Query{text: text, args: args}
}

// NewWithArguments creates a Query from explicitly typed arguments.
func NewWithArguments(text string, args []Argument) Query {
	copied := make([]Argument, len(args))
	copy(copied, args)
	return Query{text: text, args: copied}
}

// Text returns the command text.
func (q Query) Text() string {
	return q.text
}

// Arguments returns a copy of the arguments in order.
func (q Query) Arguments() []Argument {
	out := make([]Argument, len(q.args))
	copy(out, q.args)
	return out
}

// Values returns the raw argument values in order.
func (q Query) Values() []any {
	out := make([]any, len(q.args))
	for i, a := range q.args {
		out[i] = a.Value
	}
	return out
}

// ArgumentCount returns the number of arguments.
func (q Query) ArgumentCount() int {
	return len(q.args)
}

// IsZero reports whether the query has no command text.
func (q Query) IsZero() bool {
	return strings.TrimSpace(q.text) == ""
}

// Append returns a new Query with text appended and extra arguments placed
// after the existing ones.
func (q Query) Append(text string, extra ...Argument) Query {
	args := make([]Argument, 0, len(q.args)+len(extra))
	args = append(args, q.args...)
	args = append(args, extra...)
	return Query{text: q.text + text, args: args}
}

// String renders the query for logs and diagnostics.
func (q Query) String() string {
	if len(q.args) == 0 {
		return q.text
	}
	return fmt.Sprintf("%s %v", q.text, q.Values())
}
