package queryir

// Predicate represents a filter condition.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Select represents a single-table read.
//
// Semantics:
//
//	SELECT <columns> FROM <from> WHERE <filter> ORDER BY <order>
//
// Example:
//
//	Select{
//	  From:    "Customers",
//	  Columns: []string{"Id", "Name"},
//	  Filter: And{Predicates: []Predicate{
//	    Equals{Field: "Status", Value: 1},
//	    In{Field: "Region", Values: []any{"EU", "US"}},
//	  }},
//	  OrderBy: []Order{{Field: "Name"}},
//	}
//
// Translates to SQL (SQLite):
//
//	SELECT "Id", "Name" FROM "Customers"
//	WHERE "Status" = ? AND "Region" IN (?, ?) ORDER BY "Name" ASC
type Select struct {
	From    string    // Table name, optionally schema-qualified
	Columns []string  // Selected columns (empty = all)
	Filter  Predicate // WHERE conditions (nil = no filter)
	OrderBy []Order   // Sort keys (empty = compiler default)
}

// Order is one sort key.
type Order struct {
	Field      string
	Descending bool
}

// Equals represents "<field> = <value>".
type Equals struct {
	Field string
	Value any
}

func (Equals) predicateNode() {}

// In represents "<field> IN (<values>)". Values must not be empty.
type In struct {
	Field  string
	Values []any
}

func (In) predicateNode() {}

// Between represents "<field> BETWEEN <low> AND <high>", inclusive.
type Between struct {
	Field string
	Low   any
	High  any
}

func (Between) predicateNode() {}

// IsNull represents "<field> IS NULL", or "IS NOT NULL" when Not is set.
type IsNull struct {
	Field string
	Not   bool
}

func (IsNull) predicateNode() {}

// And represents a conjunction. An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}
