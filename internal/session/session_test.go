package session

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/litebatch/internal/dberr"
	"github.com/roach88/litebatch/internal/dialect"
	"github.com/roach88/litebatch/internal/mapping"
	"github.com/roach88/litebatch/internal/sqlquery"
	"github.com/roach88/litebatch/internal/testutil"
)

type Customer struct {
	ID     int64  `db:"Id"`
	Name   string `db:"Name"`
	Status int    `db:"Status"`
}

var customerColumns = []string{"Id", "Name", "Status"}

func newRegistry(t *testing.T) *mapping.Registry {
	t.Helper()
	reg := mapping.NewRegistry()
	require.NoError(t, mapping.RegisterStruct[Customer](reg, mapping.TableInfo{Name: "Customers"}))
	return reg
}

// openSession opens a session against a fake connection scripted with
// responses.
func openSession(t *testing.T, d dialect.Dialect, responses ...testutil.Response) (*Session, *testutil.FakeConnection) {
	t.Helper()
	connector := testutil.NewFakeConnector(responses...)
	f, err := NewFactory(connector, d,
		WithRegistry(newRegistry(t)),
		WithIDGenerator(testutil.NewSequenceIDGenerator("")),
	)
	require.NoError(t, err)

	s, err := f.Open(context.Background())
	require.NoError(t, err)
	return s, connector.Conn
}

func TestDrain_BatchedDialectExecutesOneCommand(t *testing.T) {
	ctx := context.Background()
	s, conn := openSession(t, dialect.NewMySQL(), testutil.Response{ResultSets: []testutil.ResultSet{
		{Columns: customerColumns, Rows: [][]any{{int64(1), "Fred", int64(1)}}},
		{Columns: []string{"n"}, Rows: [][]any{{int64(12)}}},
		{Columns: customerColumns, Rows: [][]any{{int64(2), "Ann", int64(0)}, {int64(3), "Bob", int64(1)}}},
	}})

	one, err := IncludeSingle[Customer](s, sqlquery.New("SELECT * FROM Customers WHERE Id = ?", 1))
	require.NoError(t, err)
	count, err := IncludeScalar[int64](s, sqlquery.New("SELECT COUNT(*) FROM Customers"))
	require.NoError(t, err)
	many, err := IncludeMany[Customer](s, sqlquery.New("SELECT * FROM Customers WHERE Id > ?", 1))
	require.NoError(t, err)
	assert.Equal(t, 3, s.Pending())

	require.NoError(t, s.Drain(ctx))

	executed := conn.Executed()
	require.Len(t, executed, 1)
	assert.Equal(t,
		"SELECT * FROM Customers WHERE Id = ?;\nSELECT COUNT(*) FROM Customers;\nSELECT * FROM Customers WHERE Id > ?",
		executed[0].Text)
	assert.Equal(t, []any{1, 1}, executed[0].Values())
	assert.True(t, conn.AllReleased())
	assert.Zero(t, s.Pending())

	c, err := one.Value(ctx)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "Fred", c.Name)

	n, err := count.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)

	list, err := many.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Customer{{ID: 2, Name: "Ann"}, {ID: 3, Name: "Bob", Status: 1}}, list)
}

func TestDrain_NonBatchedDialectExecutesInOrder(t *testing.T) {
	ctx := context.Background()
	s, conn := openSession(t, dialect.NewSQLite(),
		testutil.Rows([]string{"n"}, []any{int64(1)}),
		testutil.Rows([]string{"n"}, []any{int64(2)}),
		testutil.Rows([]string{"n"}, []any{int64(3)}),
	)

	var futures []*Future[int64]
	for _, text := range []string{"SELECT 1", "SELECT 2", "SELECT 3"} {
		f, err := IncludeScalar[int64](s, sqlquery.New(text))
		require.NoError(t, err)
		futures = append(futures, f)
	}

	require.NoError(t, s.Drain(ctx))

	executed := conn.Executed()
	require.Len(t, executed, 3)
	for i, text := range []string{"SELECT 1", "SELECT 2", "SELECT 3"} {
		assert.Equal(t, text, executed[i].Text)
		assert.Equal(t, 1, executed[i].CloseCount)
		assert.True(t, executed[i].Cursor.Closed)

		v, err := futures[i].Value(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), v)
	}
}

func TestDrain_SingleEntryIsNotCombined(t *testing.T) {
	s, conn := openSession(t, dialect.NewPostgreSQL(dialect.WithBatchedQueries(true)),
		testutil.Rows([]string{"n"}, []any{int64(5)}),
	)

	f, err := IncludeScalar[int64](s, sqlquery.New("SELECT COUNT(*) FROM Customers WHERE Status = $1;", 1))
	require.NoError(t, err)
	require.NoError(t, s.Drain(context.Background()))

	require.Len(t, conn.Executed(), 1)
	assert.Equal(t, "SELECT COUNT(*) FROM Customers WHERE Status = $1;", conn.Executed()[0].Text)
	assert.Equal(t, []string{"$1"}, conn.Executed()[0].Names)
	assert.True(t, f.Resolved())
}

func TestDrain_EmptyQueueExecutesNothing(t *testing.T) {
	s, conn := openSession(t, dialect.NewMySQL())

	require.NoError(t, s.Drain(context.Background()))
	require.NoError(t, s.Drain(context.Background()))

	assert.Empty(t, conn.Commands)
	assert.Zero(t, s.Pending())
	assert.NoError(t, s.Close())
}

func TestDrain_SplitsBatchesAtParameterLimit(t *testing.T) {
	ctx := context.Background()
	d := dialect.NewMsSQL(dialect.WithMaxParameters(3))
	s, conn := openSession(t, d,
		testutil.Response{ResultSets: []testutil.ResultSet{
			{Columns: []string{"n"}, Rows: [][]any{{int64(1)}}},
			{Columns: []string{"n"}, Rows: [][]any{{int64(2)}}},
		}},
		testutil.Rows([]string{"n"}, []any{int64(3)}),
	)

	a, err := IncludeScalar[int64](s, sqlquery.New("SELECT @p1 + @p2", 1, 2))
	require.NoError(t, err)
	b, err := IncludeScalar[int64](s, sqlquery.New("SELECT @p1", 3))
	require.NoError(t, err)
	c, err := IncludeScalar[int64](s, sqlquery.New("SELECT @p1 + @p2", 4, 5))
	require.NoError(t, err)

	require.NoError(t, s.Drain(ctx))

	executed := conn.Executed()
	require.Len(t, executed, 2)
	assert.Equal(t, "SELECT @p1 + @p2;\nSELECT @p3", executed[0].Text)
	assert.Equal(t, []any{1, 2, 3}, executed[0].Values())
	assert.Equal(t, "SELECT @p1 + @p2", executed[1].Text)

	for i, f := range []*Future[int64]{a, b, c} {
		v, err := f.Value(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), v)
	}
}

func TestDrain_ResultSetsMapToEntriesInOrder(t *testing.T) {
	ctx := context.Background()
	s, _ := openSession(t, dialect.NewMySQL(), testutil.Response{ResultSets: []testutil.ResultSet{
		{Columns: []string{"v"}, Rows: [][]any{{"first"}}},
		{Columns: []string{"v"}, Rows: [][]any{{"second"}}},
	}})

	f0, err := IncludeScalar[string](s, sqlquery.New("SELECT 'first'"))
	require.NoError(t, err)
	f1, err := IncludeScalar[string](s, sqlquery.New("SELECT 'second'"))
	require.NoError(t, err)

	// Reading the second future first drains both.
	v1, err := f1.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", v1)
	assert.True(t, f0.Resolved())

	v0, err := f0.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", v0)
}

func TestDrain_TooFewResultSetsIsProtocolViolation(t *testing.T) {
	ctx := context.Background()
	s, conn := openSession(t, dialect.NewMySQL(), testutil.Response{ResultSets: []testutil.ResultSet{
		{Columns: []string{"v"}, Rows: [][]any{{int64(1)}}},
	}})

	f0, err := IncludeScalar[int64](s, sqlquery.New("SELECT 1"))
	require.NoError(t, err)
	f1, err := IncludeScalar[int64](s, sqlquery.New("SELECT 2"))
	require.NoError(t, err)

	err = s.Drain(ctx)
	require.Error(t, err)
	assert.True(t, dberr.IsProtocolViolation(err))
	assert.False(t, dberr.IsExecutionError(err), "domain errors are not wrapped")

	assert.True(t, f0.Resolved(), "entries read before the failure keep their values")
	assert.False(t, f1.Resolved())
	assert.Equal(t, 1, s.Pending())
	assert.True(t, conn.AllReleased())

	v, err := f0.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	_, err = f1.Value(ctx)
	assert.True(t, dberr.IsUsageError(err), "session is unusable after a failed drain")
	assert.True(t, dberr.IsProtocolViolation(errors.Unwrap(err)), "the usage error carries the original failure")
}

func TestDrain_ExecutionErrorWrapsCauseAndReleasesCommand(t *testing.T) {
	ctx := context.Background()
	cause := errors.New("no such table: Customers")
	s, conn := openSession(t, dialect.NewSQLite(),
		testutil.Rows([]string{"n"}, []any{int64(1)}),
		testutil.Failure(cause),
	)

	first, err := IncludeScalar[int64](s, sqlquery.New("SELECT 1"))
	require.NoError(t, err)
	second, err := IncludeMany[Customer](s, sqlquery.New("SELECT * FROM Customers"))
	require.NoError(t, err)

	err = s.Drain(ctx)
	require.Error(t, err)
	assert.True(t, dberr.IsExecutionError(err))
	assert.Equal(t, cause.Error(), err.Error())
	assert.Same(t, cause, errors.Unwrap(err))
	assert.True(t, conn.AllReleased())

	assert.True(t, first.Resolved())
	assert.False(t, second.Resolved())

	err = s.Drain(ctx)
	require.Error(t, err)
	assert.True(t, dberr.IsUsageError(err))
	assert.ErrorIs(t, err, cause)
	assert.Len(t, conn.Executed(), 2, "a broken session executes nothing more")

	_, err = IncludeScalar[int64](s, sqlquery.New("SELECT 2"))
	assert.True(t, dberr.IsUsageError(err))
}

func TestDrain_HydrationErrorIsExecutionError(t *testing.T) {
	s, conn := openSession(t, dialect.NewSQLite(),
		testutil.Rows(customerColumns, []any{"not a number", "Fred", int64(1)}),
	)

	f, err := IncludeMany[Customer](s, sqlquery.New("SELECT * FROM Customers"))
	require.NoError(t, err)

	_, err = f.Value(context.Background())
	require.Error(t, err)
	assert.True(t, dberr.IsExecutionError(err))
	assert.True(t, conn.AllReleased())
}

func TestDrain_ContextCanceled(t *testing.T) {
	s, conn := openSession(t, dialect.NewSQLite(), testutil.Rows([]string{"n"}, []any{int64(1)}))

	_, err := IncludeScalar[int64](s, sqlquery.New("SELECT 1"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.Drain(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, dberr.IsExecutionError(err))
	assert.True(t, conn.AllReleased())
}

func TestFuture_ResolveTwiceIsProtocolViolation(t *testing.T) {
	s, _ := openSession(t, dialect.NewSQLite())

	idx := s.newSlot()
	require.NoError(t, s.resolve(idx, int64(1)))

	err := s.resolve(idx, int64(2))
	require.Error(t, err)
	assert.True(t, dberr.IsProtocolViolation(err))

	f := &Future[int64]{s: s, idx: idx}
	v, err := f.Value(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), v, "the first value wins")
}

func TestFuture_ResolvedHasNoSideEffects(t *testing.T) {
	s, conn := openSession(t, dialect.NewSQLite(), testutil.Rows([]string{"n"}, []any{int64(1)}))

	f, err := IncludeScalar[int64](s, sqlquery.New("SELECT 1"))
	require.NoError(t, err)

	assert.False(t, f.Resolved())
	assert.Empty(t, conn.Commands)
	assert.Equal(t, 1, s.Pending())
}

func TestInclude_Rejects(t *testing.T) {
	s, _ := openSession(t, dialect.NewSQLite())

	_, err := IncludeMany[Customer](s, sqlquery.New("   "))
	assert.True(t, dberr.IsUsageError(err))

	type Unmapped struct{ ID int64 }
	_, err = IncludeSingle[Unmapped](s, sqlquery.New("SELECT 1"))
	assert.True(t, dberr.IsUsageError(err))

	assert.Zero(t, s.Pending())
}

func TestClose_WithPendingQueriesFailsLoudly(t *testing.T) {
	var logs bytes.Buffer
	connector := testutil.NewFakeConnector()
	f, err := NewFactory(connector, dialect.NewSQLite(),
		WithIDGenerator(testutil.NewSequenceIDGenerator("uow")),
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
	)
	require.NoError(t, err)
	s, err := f.Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "uow-1", s.ID())

	pending, err := IncludeScalar[int64](s, sqlquery.New("SELECT 1"))
	require.NoError(t, err)

	err = s.Close()
	require.Error(t, err)
	assert.True(t, dberr.IsUsageError(err))
	assert.Contains(t, err.Error(), "1 pending queries")
	assert.True(t, connector.Conn.Closed, "connection is released anyway")
	assert.Empty(t, connector.Conn.Commands)

	assert.Contains(t, logs.String(), "session closed with pending queries")
	assert.Contains(t, logs.String(), "session=uow-1")

	_, err = pending.Value(context.Background())
	require.Error(t, err)
	assert.True(t, dberr.IsUsageError(err))
	assert.Contains(t, err.Error(), "discarded")

	assert.NoError(t, s.Close(), "closing twice is a no-op")
	assert.True(t, dberr.IsUsageError(s.Drain(context.Background())))
}

func TestNewFactory_Rejects(t *testing.T) {
	_, err := NewFactory(nil, dialect.NewSQLite())
	assert.True(t, dberr.IsUsageError(err))

	_, err = NewFactory(testutil.NewFakeConnector(), nil)
	assert.True(t, dberr.IsUsageError(err))
}

func TestFactory_OpenConnectFailure(t *testing.T) {
	connector := testutil.NewFakeConnector()
	connector.Err = errors.New("connection refused")

	f, err := NewFactory(connector, dialect.NewSQLite())
	require.NoError(t, err)
	assert.Equal(t, "sqlite", f.Dialect().Name())
	assert.Equal(t, 1, f.Registry().Len())

	_, err = f.Open(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestUUIDv7Generator(t *testing.T) {
	gen := UUIDv7Generator{}
	a, b := gen.Generate(), gen.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
	assert.Equal(t, byte('7'), a[14], "version nibble")
}
