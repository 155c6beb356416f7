package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/litebatch/internal/dberr"
	"github.com/roach88/litebatch/internal/dialect"
	"github.com/roach88/litebatch/internal/driver"
	"github.com/roach88/litebatch/internal/mapping"
	"github.com/roach88/litebatch/internal/metrics"
	"github.com/roach88/litebatch/internal/querysql"
	"github.com/roach88/litebatch/internal/sqlquery"
)

// QueryBuilder produces the queries of the typed convenience reads.
// Implemented by querysql.Compiler.
type QueryBuilder interface {
	SelectAll(table mapping.TableInfo) (sqlquery.Query, error)
	SelectByID(table mapping.TableInfo, id any) (sqlquery.Query, error)
}

// Factory opens sessions against one store with one dialect.
//
// The dialect is fixed at construction and shared by every session the
// factory opens. Thread-safety: Open may be called from any goroutine.
type Factory struct {
	connector driver.Connector
	dialect   dialect.Dialect
	registry  *mapping.Registry
	builder   QueryBuilder
	metrics   *metrics.Collector
	logger    *slog.Logger
	ids       IDGenerator
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithRegistry sets the mapping registry. Default: a new registry that maps
// mapping.Record only.
func WithRegistry(r *mapping.Registry) FactoryOption {
	return func(f *Factory) {
		f.registry = r
	}
}

// WithQueryBuilder sets the builder used by All and SingleByID.
// Default: a querysql.Compiler for the dialect's characters.
func WithQueryBuilder(b QueryBuilder) FactoryOption {
	return func(f *Factory) {
		f.builder = b
	}
}

// WithMetrics records command activity in c.
func WithMetrics(c *metrics.Collector) FactoryOption {
	return func(f *Factory) {
		f.metrics = c
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = l
	}
}

// WithIDGenerator sets the session identifier source.
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) FactoryOption {
	return func(f *Factory) {
		f.ids = g
	}
}

// NewFactory creates a Factory.
func NewFactory(connector driver.Connector, d dialect.Dialect, opts ...FactoryOption) (*Factory, error) {
	if connector == nil {
		return nil, dberr.Usage("session factory requires a connector")
	}
	if d == nil {
		return nil, dberr.Usage("session factory requires a dialect")
	}

	f := &Factory{
		connector: connector,
		dialect:   d,
		ids:       UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.registry == nil {
		f.registry = mapping.NewRegistry()
	}
	if f.builder == nil {
		f.builder = querysql.NewCompiler(d.Characters())
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f, nil
}

// Dialect returns the factory's dialect.
func (f *Factory) Dialect() dialect.Dialect {
	return f.dialect
}

// Registry returns the mapping registry shared by the factory's sessions.
func (f *Factory) Registry() *mapping.Registry {
	return f.registry
}

// Open acquires a connection and starts a session.
func (f *Factory) Open(ctx context.Context) (*Session, error) {
	conn, err := f.connector.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	id := f.ids.Generate()
	s := &Session{
		id:       id,
		conn:     conn,
		dialect:  f.dialect,
		registry: f.registry,
		builder:  f.builder,
		metrics:  f.metrics,
		logger:   f.logger.With("session", id),
		queue:    newPendingQueue(),
	}
	s.logger.Debug("session opened", "dialect", f.dialect.Name())
	return s, nil
}

// Session is one unit of work on one connection.
//
// INVARIANTS:
//   - Pending entries resolve in the order they were included
//   - Each future is resolved at most once
//   - Every command created is closed before the next one is created
//   - After a failed drain, closed is false and broken holds the failure
type Session struct {
	id       string
	conn     driver.Connection
	dialect  dialect.Dialect
	registry *mapping.Registry
	builder  QueryBuilder
	metrics  *metrics.Collector
	logger   *slog.Logger

	queue  *pendingQueue
	slots  []slot
	closed bool
	broken error
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Pending returns the number of included queries not yet resolved.
func (s *Session) Pending() int {
	return s.queue.size()
}

// Close releases the connection.
//
// Closing with pending queries discards them: their futures return a
// UsageError and Close returns a UsageError naming how many were dropped.
// The connection is released either way. Closing twice is a no-op.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var discardErr error
	if dropped := s.queue.clear(); len(dropped) > 0 {
		for _, e := range dropped {
			s.slots[e.slot].state = slotDiscarded
		}
		s.metrics.QueriesDiscarded(len(dropped))
		s.logger.Warn("session closed with pending queries", "discarded", len(dropped))
		discardErr = dberr.Usage("session %s closed with %d pending queries", s.id, len(dropped))
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("close session %s: %w", s.id, err)
	}
	return discardErr
}

// usable returns the UsageError for a closed or broken session.
func (s *Session) usable() error {
	if s.closed {
		return dberr.Usage("session %s is closed", s.id)
	}
	if s.broken != nil {
		return dberr.UsageCause(s.broken, "session %s is unusable after a failed drain: %v", s.id, s.broken)
	}
	return nil
}

// fail marks the session unusable.
func (s *Session) fail(err error) {
	if s.broken == nil {
		s.broken = err
	}
}

// enqueue records a deferred query and returns its slot.
func (s *Session) enqueue(q sqlquery.Query, st strategy, read materializer) (int, error) {
	if err := s.usable(); err != nil {
		return 0, err
	}
	if q.IsZero() {
		return 0, dberr.Usage("%s query has no command text", st)
	}

	idx := s.newSlot()
	s.queue.push(&entry{query: q, strategy: st, slot: idx, read: read})
	return idx, nil
}

// Drain executes every pending query and resolves its future.
//
// With a batching dialect and more than one pending entry, entries are
// combined into as few commands as the dialect's parameter limit allows.
// Otherwise entries run one command each, in order. An empty queue executes
// nothing.
func (s *Session) Drain(ctx context.Context) error {
	if err := s.usable(); err != nil {
		return err
	}

	batched := s.dialect.SupportsBatchedQueries()
	for s.queue.size() > 0 {
		n := 1
		if batched {
			n = s.batchSize()
		}

		var err error
		if n > 1 {
			err = s.executeBatch(ctx, s.queue.front(n))
		} else {
			err = s.executeEntry(ctx, s.queue.front(1)[0])
		}
		if err != nil {
			s.fail(err)
			return err
		}
	}
	return nil
}

// batchSize returns how many entries from the front of the queue fit in one
// command. It is at least 1.
func (s *Session) batchSize() int {
	limit := s.dialect.MaxParameters()
	entries := s.queue.front(s.queue.size())
	if limit <= 0 {
		return len(entries)
	}

	n, params := 0, 0
	for _, e := range entries {
		params += e.query.ArgumentCount()
		if n > 0 && params > limit {
			break
		}
		n++
	}
	return n
}

// executeEntry runs one entry as its own command.
func (s *Session) executeEntry(ctx context.Context, e *entry) error {
	return s.executeCommand(ctx, e.query, metrics.ModeSingle, 1, func(cur driver.Cursor) error {
		return s.consume(cur, e)
	})
}

// executeBatch combines entries into one command and reads their result
// sets in order. Fewer result sets than entries is a ProtocolViolation.
func (s *Session) executeBatch(ctx context.Context, entries []*entry) error {
	queries := make([]sqlquery.Query, len(entries))
	for i, e := range entries {
		queries[i] = e.query
	}
	combined, err := s.dialect.Combine(queries)
	if err != nil {
		return err
	}

	// Copy: consume pops the queue, which shares entries' backing array.
	batch := make([]*entry, len(entries))
	copy(batch, entries)

	return s.executeCommand(ctx, combined, metrics.ModeBatched, len(batch), func(cur driver.Cursor) error {
		for i, e := range batch {
			if i > 0 && !cur.NextResultSet() {
				if err := cur.Err(); err != nil {
					return err
				}
				return dberr.Protocol("command returned %d result sets for %d queries", i, len(batch))
			}
			if err := s.consume(cur, e); err != nil {
				return err
			}
		}
		return nil
	})
}

// consume materialises the current result set into e's future and removes e
// from the queue.
func (s *Session) consume(cur driver.Cursor, e *entry) error {
	v, err := e.read(cur)
	if err != nil {
		return err
	}
	if err := s.resolve(e.slot, v); err != nil {
		return err
	}
	s.queue.pop()
	return nil
}

// executeCommand runs q as one command and hands the cursor to read.
//
// The command and cursor are always closed. Failures are wrapped once into
// an ExecutionError; dberr errors pass through unchanged.
func (s *Session) executeCommand(ctx context.Context, q sqlquery.Query, mode string, queries int, read func(driver.Cursor) error) (err error) {
	cmd := s.conn.CreateCommand()
	defer func() {
		if cerr := cmd.Close(); cerr != nil && err == nil {
			err = dberr.Wrap(cerr)
		}
		if err != nil {
			s.metrics.CommandFailed()
		}
	}()

	if err := s.dialect.BuildCommand(cmd, q); err != nil {
		return err
	}

	s.logger.Debug("executing command", "mode", mode, "queries", queries, "parameters", q.ArgumentCount())

	cur, err := cmd.Query(ctx)
	if err != nil {
		return dberr.Wrap(err)
	}
	defer func() {
		if cerr := cur.Close(); cerr != nil && err == nil {
			err = dberr.Wrap(cerr)
		}
	}()

	if err := read(cur); err != nil {
		return dberr.Wrap(err)
	}
	if err := cur.Err(); err != nil {
		return dberr.Wrap(err)
	}

	s.metrics.CommandExecuted(mode, queries)
	return nil
}
