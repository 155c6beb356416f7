// Package mapping turns cursor rows into typed values.
//
// Every mapped type has exactly one Mapper, registered once in a Registry
// and looked up by type identity. A Mapper is either an explicit hydration
// function (RegisterFunc) or an accessor table derived from struct tags
// (RegisterStruct). Nothing is generated or rebuilt per call.
package mapping

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/roach88/litebatch/internal/dberr"
)

// Row is the read side of a cursor positioned on a row.
type Row interface {
	Columns() ([]string, error)
	Value(ordinal int) (any, error)
}

// TableInfo describes the table a type maps to.
type TableInfo struct {
	// Name is the (optionally schema-qualified) table name.
	Name string

	// Columns lists the selected columns; empty selects all.
	Columns []string

	// Identifier is the primary key column used by by-identifier lookups.
	Identifier string
}

// Mapper hydrates rows into T.
type Mapper[T any] struct {
	table   TableInfo
	hydrate func(Row) (T, error)
}

// NewMapper creates a Mapper from an explicit hydration function.
func NewMapper[T any](table TableInfo, hydrate func(Row) (T, error)) *Mapper[T] {
	return &Mapper[T]{table: table, hydrate: hydrate}
}

// Table returns the table metadata.
func (m *Mapper[T]) Table() TableInfo {
	return m.table
}

// Hydrate builds one T from the current row.
func (m *Mapper[T]) Hydrate(row Row) (T, error) {
	return m.hydrate(row)
}

// Registry holds one Mapper per type. It is shared by every session a
// factory opens and is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	mappers map[reflect.Type]any
}

// NewRegistry creates a registry that already maps Record.
func NewRegistry() *Registry {
	r := &Registry{mappers: make(map[reflect.Type]any)}
	r.mappers[reflect.TypeOf((*Record)(nil)).Elem()] = NewMapper(TableInfo{}, hydrateRecord)
	return r
}

// RegisterFunc registers an explicit hydration function for T.
func RegisterFunc[T any](r *Registry, table TableInfo, hydrate func(Row) (T, error)) error {
	if hydrate == nil {
		return dberr.Usage("hydrate function for %s is nil", reflect.TypeOf((*T)(nil)).Elem())
	}
	return register(r, NewMapper(table, hydrate))
}

func register[T any](r *Registry, m *Mapper[T]) error {
	typ := reflect.TypeOf((*T)(nil)).Elem()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.mappers[typ]; exists {
		return dberr.Usage("type %s is already mapped", typ)
	}
	r.mappers[typ] = m
	return nil
}

// Lookup returns the Mapper registered for T.
func Lookup[T any](r *Registry) (*Mapper[T], error) {
	typ := reflect.TypeOf((*T)(nil)).Elem()

	r.mu.RLock()
	m, ok := r.mappers[typ]
	r.mu.RUnlock()

	if !ok {
		return nil, dberr.Usage("type %s is not mapped", typ)
	}
	mapper, ok := m.(*Mapper[T])
	if !ok {
		return nil, fmt.Errorf("mapper for %s has type %T", typ, m)
	}
	return mapper, nil
}

// Len returns the number of mapped types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.mappers)
}
