package dialect

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/litebatch/internal/dberr"
	"github.com/roach88/litebatch/internal/sqlquery"
)

// render formats a query for golden comparison: text, then values.
func render(q sqlquery.Query) []byte {
	return []byte(fmt.Sprintf("%s\n%v\n", q.Text(), q.Values()))
}

func newGoldie(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestPageQuery_Golden(t *testing.T) {
	paging := sqlquery.MustForPage(10, 25)

	for _, name := range Names {
		t.Run(name, func(t *testing.T) {
			d, err := ByName(name)
			require.NoError(t, err)

			status := d.Characters().ParameterName(0)
			q := sqlquery.New("SELECT * FROM Customers WHERE Status = "+status, 1)

			paged, err := d.PageQuery(q, paging)
			require.NoError(t, err)

			newGoldie(t).Assert(t, "page_"+name, render(paged))
		})
	}
}

func TestCombine_Golden(t *testing.T) {
	for _, name := range []string{"mysql", "postgres", "mssql"} {
		t.Run(name, func(t *testing.T) {
			d, err := ByName(name)
			require.NoError(t, err)
			p := d.Characters().ParameterName

			queries := []sqlquery.Query{
				sqlquery.New("SELECT COUNT(*) FROM Customers WHERE Status = "+p(0), 1),
				sqlquery.New("SELECT * FROM Customers WHERE Status = "+p(0)+" AND Name <> "+p(1)+";", 1, "Fred"),
				sqlquery.New("SELECT * FROM Invoices WHERE Total > "+p(0)+" AND Note = '"+p(0)+"'", 100),
			}

			combined, err := d.Combine(queries)
			require.NoError(t, err)
			assert.Equal(t, 4, combined.ArgumentCount())

			newGoldie(t).Assert(t, "combine_"+name, render(combined))
		})
	}
}

func TestCombine_PreservesArgumentOrder(t *testing.T) {
	d := NewPostgreSQL()

	combined, err := d.Combine([]sqlquery.Query{
		sqlquery.New("SELECT $1, $2", "a", "b"),
		sqlquery.New("SELECT $2, $1", "c", "d"),
	})
	require.NoError(t, err)

	assert.Equal(t, "SELECT $1, $2;\nSELECT $4, $3", combined.Text())
	assert.Equal(t, []any{"a", "b", "c", "d"}, combined.Values())
}

func TestCombine_SingleQuery(t *testing.T) {
	d := NewMySQL()

	combined, err := d.Combine([]sqlquery.Query{sqlquery.New("SELECT 1;")})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", combined.Text())
}

func TestCombine_Errors(t *testing.T) {
	d := NewMsSQL(WithMaxParameters(2))

	_, err := d.Combine(nil)
	assert.True(t, dberr.IsUsageError(err))

	_, err = d.Combine([]sqlquery.Query{sqlquery.New("SELECT @p1", 1), sqlquery.New("SELECT @p1, @p2", 2, 3)})
	assert.True(t, dberr.IsUsageError(err), "3 parameters exceed the limit of 2")

	_, err = d.Combine([]sqlquery.Query{sqlquery.New("SELECT 1"), {}})
	assert.True(t, dberr.IsUsageError(err))
}

func TestCountQuery(t *testing.T) {
	d := NewSQLite()

	tests := []struct {
		name  string
		query sqlquery.Query
		want  string
	}{
		{
			name:  "drops projection and ordering",
			query: sqlquery.New("SELECT CustomerId, Name FROM Customers WHERE Status = ? ORDER BY Name", 1),
			want:  "SELECT COUNT(*) FROM Customers WHERE Status = ?",
		},
		{
			name:  "case insensitive keywords",
			query: sqlquery.New("select Name from Customers order  by Name desc"),
			want:  "SELECT COUNT(*) from Customers",
		},
		{
			name:  "ignores nested FROM and ORDER BY",
			query: sqlquery.New("SELECT Name, (SELECT MAX(Total) FROM Invoices i WHERE i.CustomerId = c.Id ORDER BY Total) AS Best FROM Customers c"),
			want:  "SELECT COUNT(*) FROM Customers c",
		},
		{
			name:  "ignores keywords in literals",
			query: sqlquery.New("SELECT 'FROM x' AS Label FROM Customers WHERE Note <> 'ORDER BY'"),
			want:  "SELECT COUNT(*) FROM Customers WHERE Note <> 'ORDER BY'",
		},
		{
			name:  "distinct uses derived table",
			query: sqlquery.New("SELECT DISTINCT Name FROM Customers ORDER BY Name"),
			want:  "SELECT COUNT(*) FROM (SELECT DISTINCT Name FROM Customers) AS q",
		},
		{
			name:  "group by uses derived table",
			query: sqlquery.New("SELECT Status, COUNT(*) FROM Customers GROUP BY Status"),
			want:  "SELECT COUNT(*) FROM (SELECT Status, COUNT(*) FROM Customers GROUP BY Status) AS q",
		},
		{
			name:  "no from uses derived table",
			query: sqlquery.New("SELECT 1"),
			want:  "SELECT COUNT(*) FROM (SELECT 1) AS q",
		},
		{
			name:  "arguments in order by keep the whole query",
			query: sqlquery.New("SELECT Name FROM Customers ORDER BY CASE WHEN Name = ? THEN 0 ELSE 1 END", "Fred"),
			want:  "SELECT COUNT(*) FROM (SELECT Name FROM Customers ORDER BY CASE WHEN Name = ? THEN 0 ELSE 1 END) AS q",
		},
		{
			name:  "arguments in projection keep the whole query",
			query: sqlquery.New("SELECT Id, ? AS Tag FROM Customers WHERE Status = ? ORDER BY Id", "x", 1),
			want:  "SELECT COUNT(*) FROM (SELECT Id, ? AS Tag FROM Customers WHERE Status = ?) AS q",
		},
		{
			name:  "limit after order by keeps the whole query",
			query: sqlquery.New("SELECT Name FROM Customers ORDER BY Name LIMIT 5"),
			want:  "SELECT COUNT(*) FROM (SELECT Name FROM Customers ORDER BY Name LIMIT 5) AS q",
		},
		{
			name:  "ignores keywords and placeholders in comments",
			query: sqlquery.New("SELECT Name /* , ? */ -- FROM Archive\nFROM Customers WHERE Status = ?", 1),
			want:  "SELECT COUNT(*) FROM Customers WHERE Status = ?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, err := d.CountQuery(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, count.Text())
			assert.Equal(t, tt.query.Values(), count.Values(), "arguments are preserved")
			assert.Equal(t, count.ArgumentCount(), d.Characters().placeholderCount(count.Text()),
				"every argument has a placeholder")
		})
	}
}

func TestCountQuery_NumberedPlaceholdersStayAligned(t *testing.T) {
	q := sqlquery.New(`SELECT Id, $1 AS Tag FROM Customers WHERE Status = $2`, "x", 1)

	count, err := NewPostgreSQL().CountQuery(q)
	require.NoError(t, err)
	assert.Equal(t, `SELECT COUNT(*) FROM (SELECT Id, $1 AS Tag FROM Customers WHERE Status = $2) AS q`, count.Text())
	assert.Equal(t, []any{"x", 1}, count.Values())
}

func TestMsSQL_CountQueryBoundsKeptOrdering(t *testing.T) {
	d := NewMsSQL()

	count, err := d.CountQuery(sqlquery.New("SELECT Name FROM Customers ORDER BY CASE WHEN Name = @p1 THEN 0 ELSE 1 END", "Fred"))
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT COUNT(*) FROM (SELECT Name FROM Customers ORDER BY CASE WHEN Name = @p1 THEN 0 ELSE 1 END OFFSET 0 ROWS) AS q",
		count.Text())

	count, err = d.CountQuery(sqlquery.New("SELECT Name FROM Customers ORDER BY Name OFFSET 5 ROWS"))
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM (SELECT Name FROM Customers ORDER BY Name OFFSET 5 ROWS) AS q", count.Text())

	count, err = d.CountQuery(sqlquery.New("SELECT Name FROM Customers WHERE Status = @p1 ORDER BY Name", 1))
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM Customers WHERE Status = @p1", count.Text())
}

func TestCountQuery_RequiresText(t *testing.T) {
	_, err := NewSQLite().CountQuery(sqlquery.Query{})
	assert.True(t, dberr.IsUsageError(err))
}

func TestPageQuery_RequiresPaging(t *testing.T) {
	for _, name := range Names {
		d, err := ByName(name)
		require.NoError(t, err)

		_, err = d.PageQuery(sqlquery.New("SELECT * FROM Customers"), sqlquery.NoPaging)
		assert.True(t, dberr.IsUsageError(err), name)
	}
}

func TestPageQuery_FirstPage(t *testing.T) {
	paged, err := NewSQLite().PageQuery(sqlquery.New("SELECT * FROM Customers;"), sqlquery.MustForPage(1, 1))
	require.NoError(t, err)

	assert.Equal(t, "SELECT * FROM Customers LIMIT ?,?", paged.Text())
	assert.Equal(t, []any{0, 1}, paged.Values())
}

func TestMsSQL_PageQueryKeepsExistingOrder(t *testing.T) {
	paged, err := NewMsSQL().PageQuery(sqlquery.New("SELECT * FROM Customers ORDER BY Name"), sqlquery.MustForPage(2, 10))
	require.NoError(t, err)

	assert.Equal(t, "SELECT * FROM Customers ORDER BY Name OFFSET @p1 ROWS FETCH NEXT @p2 ROWS ONLY", paged.Text())
	assert.Equal(t, []any{10, 10}, paged.Values())
}

func TestBatchingDefaults(t *testing.T) {
	expected := map[string]bool{
		"sqlite":   false,
		"mysql":    true,
		"postgres": false,
		"mssql":    true,
		"firebird": false,
	}
	for name, batched := range expected {
		d, err := ByName(name)
		require.NoError(t, err)
		assert.Equal(t, batched, d.SupportsBatchedQueries(), name)
		assert.Equal(t, name, d.Name())
	}

	d, err := ByName("sqlite", WithBatchedQueries(true))
	require.NoError(t, err)
	assert.True(t, d.SupportsBatchedQueries())
}

func TestByName_Unknown(t *testing.T) {
	_, err := ByName("oracle")
	require.Error(t, err)
	assert.True(t, dberr.IsUsageError(err))
}

func TestCharacters(t *testing.T) {
	pg := NewPostgreSQL().Characters()
	assert.Equal(t, "$1", pg.ParameterName(0))
	assert.Equal(t, "$3", pg.ParameterName(2))
	assert.Equal(t, `"public"."Customers"`, pg.Escape("public.Customers"))

	ms := NewMsSQL().Characters()
	assert.Equal(t, "@p1", ms.ParameterName(0))
	assert.Equal(t, "[dbo].[Customers]", ms.Escape("dbo.[Customers]"))

	lite := NewSQLite().Characters()
	assert.Equal(t, "?", lite.ParameterName(5))
	assert.Equal(t, 2, lite.placeholderCount("a = ? AND b = ? AND c = '?'"))
}

func TestRenumber_SkipsQuotedAndIdentifiers(t *testing.T) {
	ms := NewMsSQL().Characters()
	got := ms.renumber("SELECT [@p1], x@p1, @p1, '@p2' FROM t WHERE a = @p2", 3)
	assert.Equal(t, "SELECT [@p1], x@p1, @p4, '@p2' FROM t WHERE a = @p5", got)

	pg := NewPostgreSQL().Characters()
	assert.Equal(t, "SELECT ARRAY[$3, $4], $$text$$", pg.renumber("SELECT ARRAY[$1, $2], $$text$$", 2))
}

func TestPlaceholders_SkipComments(t *testing.T) {
	lite := NewSQLite().Characters()
	assert.Equal(t, 2, lite.placeholderCount("a = ? -- b = ?\nAND c = /* ? */ ?"))
	assert.Equal(t, 1, lite.placeholderCount("a = ? -- trailing ?"))
	assert.Equal(t, 1, lite.placeholderCount("a = ? /* unterminated ?"))

	pg := NewPostgreSQL().Characters()
	assert.Equal(t, "SELECT $3 /* $1 */ -- $2\nFROM t WHERE a = $4",
		pg.renumber("SELECT $1 /* $1 */ -- $2\nFROM t WHERE a = $2", 2))
}
