package queryir

import (
	"fmt"
	"strings"
)

// ValidationResult lists every problem found in a Select.
type ValidationResult struct {
	// Valid is true when Problems is empty.
	Valid bool

	// Problems describes each defect in traversal order.
	Problems []string
}

// Err returns nil for a valid result, otherwise an error joining every
// problem.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return fmt.Errorf("invalid select: %s", strings.Join(r.Problems, "; "))
}

// Validate checks that a Select can be compiled:
//  1. From names a table
//  2. Every column and sort key names a field
//  3. Every predicate names a field and carries its operands
//
// Validate is a pure function with no side effects.
func Validate(sel Select) ValidationResult {
	v := &validator{problems: []string{}}
	v.validateSelect(sel)

	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateSelect(sel Select) {
	if strings.TrimSpace(sel.From) == "" {
		v.addProblem("select has no table")
	}
	for i, c := range sel.Columns {
		if strings.TrimSpace(c) == "" {
			v.addProblem("column %d is empty", i)
		}
	}
	for i, o := range sel.OrderBy {
		if strings.TrimSpace(o.Field) == "" {
			v.addProblem("sort key %d is empty", i)
		}
	}
	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
}

// validatePredicate recursively validates a predicate node.
func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
		v.addProblem("nil predicate")
	case Equals:
		v.requireField("equals", pred.Field)
	case *Equals:
		v.validatePredicate(*pred)
	case In:
		v.requireField("in", pred.Field)
		if len(pred.Values) == 0 {
			v.addProblem("in predicate on %q has no values", pred.Field)
		}
	case *In:
		v.validatePredicate(*pred)
	case Between:
		v.requireField("between", pred.Field)
	case *Between:
		v.validatePredicate(*pred)
	case IsNull:
		v.requireField("is null", pred.Field)
	case *IsNull:
		v.validatePredicate(*pred)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case *And:
		v.validatePredicate(*pred)
	default:
		v.addProblem("unknown predicate type: %T", p)
	}
}

func (v *validator) requireField(kind, field string) {
	if strings.TrimSpace(field) == "" {
		v.addProblem("%s predicate has no field", kind)
	}
}
