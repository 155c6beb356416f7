package session

import (
	"context"

	"github.com/roach88/litebatch/internal/dberr"
	"github.com/roach88/litebatch/internal/driver"
	"github.com/roach88/litebatch/internal/mapping"
	"github.com/roach88/litebatch/internal/metrics"
	"github.com/roach88/litebatch/internal/sqlquery"
)

// Immediate reads run one command at once, through the same command
// boundary and hydration as a drain. The pending queue is left untouched.

// All reads every row of T's table.
func All[T any](ctx context.Context, s *Session) ([]T, error) {
	m, err := mapping.Lookup[T](s.registry)
	if err != nil {
		return nil, err
	}
	q, err := s.builder.SelectAll(m.Table())
	if err != nil {
		return nil, err
	}
	return runTyped[[]T](ctx, s, q, readMany(m))
}

// SingleByID reads the row of T's table whose identifier equals id, or nil.
func SingleByID[T any](ctx context.Context, s *Session, id any) (*T, error) {
	if id == nil {
		return nil, dberr.Usage("identifier must not be nil")
	}
	m, err := mapping.Lookup[T](s.registry)
	if err != nil {
		return nil, err
	}
	q, err := s.builder.SelectByID(m.Table(), id)
	if err != nil {
		return nil, err
	}
	return runTyped[*T](ctx, s, q, readSingle(m))
}

// Single runs q and returns its first row as T, or nil when there is none.
func Single[T any](ctx context.Context, s *Session, q sqlquery.Query) (*T, error) {
	m, err := mapping.Lookup[T](s.registry)
	if err != nil {
		return nil, err
	}
	return runTyped[*T](ctx, s, q, readSingle(m))
}

// Fetch runs q and returns every row as T.
func Fetch[T any](ctx context.Context, s *Session, q sqlquery.Query) ([]T, error) {
	m, err := mapping.Lookup[T](s.registry)
	if err != nil {
		return nil, err
	}
	return runTyped[[]T](ctx, s, q, readMany(m))
}

// Projection runs q and returns every row as a dynamic Record.
func Projection(ctx context.Context, s *Session, q sqlquery.Query) ([]mapping.Record, error) {
	return Fetch[mapping.Record](ctx, s, q)
}

// Scalar runs q and returns the first column of the first row as T, or the
// zero value when there is no row.
func Scalar[T any](ctx context.Context, s *Session, q sqlquery.Query) (T, error) {
	return runTyped[T](ctx, s, q, readScalar[T]())
}

// Paged runs the count of q and the requested window of q, then drains.
//
// Both queries go through the pending queue, so a batching dialect sends
// them (and anything already pending) as one command.
func Paged[T any](ctx context.Context, s *Session, q sqlquery.Query, paging sqlquery.PagingOptions) (sqlquery.Page[T], error) {
	if paging.IsNone() {
		return sqlquery.Page[T]{}, dberr.Usage("paged query requires paging options")
	}
	if err := s.usable(); err != nil {
		return sqlquery.Page[T]{}, err
	}

	countQuery, err := s.dialect.CountQuery(q)
	if err != nil {
		return sqlquery.Page[T]{}, err
	}
	pageQuery, err := s.dialect.PageQuery(q, paging)
	if err != nil {
		return sqlquery.Page[T]{}, err
	}

	// Resolve the mapper before enqueuing anything so an unmapped type
	// leaves the queue unchanged.
	if _, err := mapping.Lookup[T](s.registry); err != nil {
		return sqlquery.Page[T]{}, err
	}

	total, err := IncludeScalar[int64](s, countQuery)
	if err != nil {
		return sqlquery.Page[T]{}, err
	}
	items, err := IncludeMany[T](s, pageQuery)
	if err != nil {
		return sqlquery.Page[T]{}, err
	}

	if err := s.Drain(ctx); err != nil {
		return sqlquery.Page[T]{}, err
	}

	count, err := total.Value(ctx)
	if err != nil {
		return sqlquery.Page[T]{}, err
	}
	rows, err := items.Value(ctx)
	if err != nil {
		return sqlquery.Page[T]{}, err
	}

	return sqlquery.Page[T]{
		Page:         paging.Page(),
		PageSize:     paging.Size(),
		TotalResults: count,
		Items:        rows,
	}, nil
}

// runTyped executes q immediately and asserts the materialised value.
func runTyped[R any](ctx context.Context, s *Session, q sqlquery.Query, read materializer) (R, error) {
	var zero R
	v, err := s.execute(ctx, q, read)
	if err != nil || v == nil {
		return zero, err
	}
	typed, ok := v.(R)
	if !ok {
		return zero, dberr.Protocol("immediate read produced %T", v)
	}
	return typed, nil
}

// execute runs q as a singleton command outside the pending queue.
func (s *Session) execute(ctx context.Context, q sqlquery.Query, read materializer) (any, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}
	if q.IsZero() {
		return nil, dberr.Usage("query has no command text")
	}

	var out any
	err := s.executeCommand(ctx, q, metrics.ModeSingle, 1, func(cur driver.Cursor) error {
		v, err := read(cur)
		out = v
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
