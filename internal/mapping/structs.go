package mapping

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"golang.org/x/text/cases"

	"github.com/roach88/litebatch/internal/dberr"
)

// RegisterStruct registers T (a struct or pointer to struct) using an
// accessor table built from its fields.
//
// Column names come from the `db` struct tag, or the field name when the tag
// is absent; `db:"-"` skips a field. Columns are matched case-insensitively
// using Unicode case folding. Embedded structs contribute their fields.
//
// If table.Columns is empty it is filled from the accessor table. If
// table.Identifier is empty, a column folding to "id" is used.
func RegisterStruct[T any](r *Registry, table TableInfo) error {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	structType := typ
	pointer := false
	if structType.Kind() == reflect.Pointer {
		structType = structType.Elem()
		pointer = true
	}
	if structType.Kind() != reflect.Struct {
		return dberr.Usage("RegisterStruct requires a struct type, got %s", typ)
	}
	if table.Name == "" {
		return dberr.Usage("table name for %s is required", typ)
	}

	acc := newAccessors(structType)
	if len(table.Columns) == 0 {
		table.Columns = acc.columns
	}
	if table.Identifier == "" {
		for _, c := range acc.columns {
			if fold(c) == "id" {
				table.Identifier = c
				break
			}
		}
	}

	hydrate := func(row Row) (T, error) {
		var zero T

		cols, err := row.Columns()
		if err != nil {
			return zero, fmt.Errorf("read columns: %w", err)
		}

		target := reflect.New(structType)
		for i, path := range acc.ordinals(cols) {
			if path == nil {
				continue
			}
			v, err := row.Value(i)
			if err != nil {
				return zero, fmt.Errorf("read column %q: %w", cols[i], err)
			}
			if err := assign(target.Elem().FieldByIndex(path), v); err != nil {
				return zero, fmt.Errorf("column %q: %w", cols[i], err)
			}
		}

		if pointer {
			return target.Interface().(T), nil
		}
		return target.Elem().Interface().(T), nil
	}

	return register(r, NewMapper(table, hydrate))
}

// accessors is the per-type field table. ordinal plans are cached per
// distinct column list because cursors of the same query repeat it.
type accessors struct {
	columns  []string
	byColumn map[string][]int
	plans    sync.Map // column signature -> [][]int
}

func newAccessors(structType reflect.Type) *accessors {
	acc := &accessors{byColumn: make(map[string][]int)}
	acc.collect(structType, nil)
	return acc
}

func (a *accessors) collect(t reflect.Type, prefix []int) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		path := append(append([]int(nil), prefix...), i)

		tag, hasTag := f.Tag.Lookup("db")
		if tag == "-" {
			continue
		}
		if f.Anonymous && f.Type.Kind() == reflect.Struct && !hasTag {
			a.collect(f.Type, path)
			continue
		}
		if !f.IsExported() {
			continue
		}

		name := f.Name
		if tag != "" {
			name = strings.Split(tag, ",")[0]
		}
		key := fold(name)
		if _, dup := a.byColumn[key]; dup {
			continue
		}
		a.byColumn[key] = path
		a.columns = append(a.columns, name)
	}
}

// ordinals maps each cursor column to a field index path (nil when the
// column has no field).
func (a *accessors) ordinals(cols []string) [][]int {
	signature := strings.Join(cols, "\x00")
	if cached, ok := a.plans.Load(signature); ok {
		return cached.([][]int)
	}

	plan := make([][]int, len(cols))
	for i, c := range cols {
		plan[i] = a.byColumn[fold(c)]
	}
	a.plans.Store(signature, plan)
	return plan
}

// fold returns the case-folded form of a column name. A Caser keeps state,
// so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}
