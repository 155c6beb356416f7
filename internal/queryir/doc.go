// Package queryir provides the criteria representation the query builder
// compiles into SQL.
//
// ARCHITECTURE:
//
// Callers describe what to read, not how a backend spells it:
//
//	[criteria] → [queryir.Select] → [querysql.Compiler] → [sqlquery.Query]
//
// The compiler owns identifier quoting and placeholder syntax, so the same
// Select compiles for every dialect.
//
// SEALED INTERFACES:
//
// Predicate is sealed with a marker method. Only types in this package
// implement it, which keeps the compiler's type switch exhaustive:
//
//	switch p := pred.(type) {
//	case Equals:
//	case In:
//	case Between:
//	case IsNull:
//	case And:
//	default:
//	    // Impossible outside this package
//	}
//
// Values are always bound as arguments. Nothing in a Select is ever
// interpolated into command text except identifiers, which are escaped.
package queryir
