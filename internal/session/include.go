package session

import (
	"github.com/roach88/litebatch/internal/driver"
	"github.com/roach88/litebatch/internal/mapping"
	"github.com/roach88/litebatch/internal/sqlquery"
)

// IncludeMany defers q and returns a future of every row it selects,
// hydrated as T. No rows resolve to an empty, non-nil slice.
func IncludeMany[T any](s *Session, q sqlquery.Query) (*Future[[]T], error) {
	m, err := mapping.Lookup[T](s.registry)
	if err != nil {
		return nil, err
	}
	idx, err := s.enqueue(q, strategyMany, readMany(m))
	if err != nil {
		return nil, err
	}
	return &Future[[]T]{s: s, idx: idx}, nil
}

// IncludeSingle defers q and returns a future of its first row, hydrated as
// T. No rows resolve to nil. Only the first row is read.
func IncludeSingle[T any](s *Session, q sqlquery.Query) (*Future[*T], error) {
	m, err := mapping.Lookup[T](s.registry)
	if err != nil {
		return nil, err
	}
	idx, err := s.enqueue(q, strategySingle, readSingle(m))
	if err != nil {
		return nil, err
	}
	return &Future[*T]{s: s, idx: idx}, nil
}

// IncludeScalar defers q and returns a future of the first column of its
// first row converted to T. No rows (or NULL) resolve to the zero value.
func IncludeScalar[T any](s *Session, q sqlquery.Query) (*Future[T], error) {
	idx, err := s.enqueue(q, strategyScalar, readScalar[T]())
	if err != nil {
		return nil, err
	}
	return &Future[T]{s: s, idx: idx}, nil
}

func readMany[T any](m *mapping.Mapper[T]) materializer {
	return func(cur driver.Cursor) (any, error) {
		out := make([]T, 0)
		for cur.Next() {
			v, err := m.Hydrate(cur)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		if err := cur.Err(); err != nil {
			return nil, err
		}
		return out, nil
	}
}

func readSingle[T any](m *mapping.Mapper[T]) materializer {
	return func(cur driver.Cursor) (any, error) {
		if !cur.Next() {
			if err := cur.Err(); err != nil {
				return nil, err
			}
			return (*T)(nil), nil
		}
		v, err := m.Hydrate(cur)
		if err != nil {
			return nil, err
		}
		return &v, nil
	}
}

func readScalar[T any]() materializer {
	return func(cur driver.Cursor) (any, error) {
		if !cur.Next() {
			if err := cur.Err(); err != nil {
				return nil, err
			}
			var zero T
			return zero, nil
		}
		raw, err := cur.Value(0)
		if err != nil {
			return nil, err
		}
		return mapping.To[T](raw)
	}
}
