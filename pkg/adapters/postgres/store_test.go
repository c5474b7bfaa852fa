package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpospelov/chewy/pkg/core"
)

func TestNewStore(t *testing.T) {
	_, err := NewStore(Config{DSN: "  "})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	s, err := NewStore(Config{DSN: "postgres://localhost/chewy", TablePrefix: "it"})
	require.NoError(t, err)
	assert.Equal(t, "it_indices", s.indices)
	assert.Equal(t, "it_documents", s.documents)
	assert.Equal(t, defaultOperationTimeout, s.timeout)

	state := core.Inspect(s)
	assert.Equal(t, "postgres-store", state.Type)
	assert.False(t, state.State.(StoreState).Connected)
}

func TestBuildSelect(t *testing.T) {
	req := core.SearchRequest{
		Index: "chewy_journal",
		Query: core.Query{
			Terms:  []core.Term{{Field: "index_name", Values: []string{"places"}}},
			Ranges: []core.Range{{Field: "created_at", GTE: core.Int64(10), LT: core.Int64(20)}},
		},
		Sort: "created_at",
		From: 100,
		Size: 50,
	}

	query, args := buildSelect(`"chewy_documents"`, req)

	assert.True(t, strings.HasPrefix(query, `SELECT id, doc_type, seq, source FROM "chewy_documents" WHERE index_name = $1 AND `))
	assert.Contains(t, query, "jsonb_array_elements_text(source->$2::text)")
	assert.Contains(t, query, "= ANY($3::text[])")
	assert.Contains(t, query, ">= $5")
	assert.Contains(t, query, "< $6")
	assert.Contains(t, query, "ORDER BY (CASE WHEN jsonb_typeof(source->$7::text) = 'number'")
	assert.True(t, strings.HasSuffix(query, "LIMIT $8 OFFSET $9"))

	require.Len(t, args, 9)
	assert.Equal(t, "chewy_journal", args[0])
	assert.Equal(t, "index_name", args[1])
	assert.Equal(t, pq.Array([]string{"places"}), args[2])
	assert.Equal(t, "created_at", args[3])
	assert.Equal(t, int64(10), args[4])
	assert.Equal(t, int64(20), args[5])
	assert.Equal(t, "created_at", args[6])
	assert.Equal(t, 50, args[7])
	assert.Equal(t, 100, args[8])
}

func TestBuildSelect_Unsorted(t *testing.T) {
	query, args := buildSelect(`"docs"`, core.SearchRequest{Index: "i"})
	assert.Equal(t, `SELECT id, doc_type, seq, source FROM "docs" WHERE index_name = $1 ORDER BY seq ASC`, query)
	assert.Equal(t, []any{"i"}, args)
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"chewy"`, quoteIdentifier(" chewy "))
	assert.Equal(t, `"a""b"`, quoteIdentifier(`a"b`))
	assert.Equal(t, `""`, quoteIdentifier(""))
}

// schemaConn accepts statements through ExecerContext. The first
// connector.failures statements fail.
type schemaConn struct {
	connector *schemaConnector
}

func (c *schemaConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}

func (c *schemaConn) Close() error { return nil }

func (c *schemaConn) Begin() (driver.Tx, error) {
	return nil, errors.New("transactions not supported")
}

func (c *schemaConn) ExecContext(ctx context.Context, _ string, _ []driver.NamedValue) (driver.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.connector.mu.Lock()
	defer c.connector.mu.Unlock()
	c.connector.execs++
	if c.connector.execs <= c.connector.failures {
		return nil, errors.New("relation lock timeout")
	}
	return driver.RowsAffected(0), nil
}

type schemaConnector struct {
	mu       sync.Mutex
	execs    int
	failures int
}

func (c *schemaConnector) Connect(context.Context) (driver.Conn, error) {
	return &schemaConn{connector: c}, nil
}

func (c *schemaConnector) Driver() driver.Driver { return schemaDriver{c} }

func (c *schemaConnector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.execs
}

type schemaDriver struct{ connector *schemaConnector }

func (d schemaDriver) Open(string) (driver.Conn, error) {
	return &schemaConn{connector: d.connector}, nil
}

func newSchemaStore(t *testing.T, connector *schemaConnector) *Store {
	t.Helper()
	s, err := NewStore(Config{DSN: "postgres://localhost/chewy"})
	require.NoError(t, err)
	s.openDB = func(string, string) (*sql.DB, error) {
		return sql.OpenDB(connector), nil
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestEnsureReady(t *testing.T) {
	t.Run("Cancelled Caller Does Not Poison Setup", func(t *testing.T) {
		connector := &schemaConnector{}
		s := newSchemaStore(t, connector)

		cancelled, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := s.IndexExists(cancelled, "places")
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, connector.count())
		assert.True(t, core.Inspect(s).State.(StoreState).Connected)

		db, err := s.ensureReady()
		require.NoError(t, err)
		assert.NotNil(t, db)
		assert.Equal(t, 1, connector.count(), "schema is created once")
	})

	t.Run("Failed Setup Is Retried", func(t *testing.T) {
		connector := &schemaConnector{failures: 1}
		s := newSchemaStore(t, connector)

		_, err := s.ensureReady()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to setup schema")
		assert.False(t, core.Inspect(s).State.(StoreState).Connected)

		db, err := s.ensureReady()
		require.NoError(t, err)
		assert.NotNil(t, db)
		assert.Equal(t, 2, connector.count())
		assert.True(t, core.Inspect(s).State.(StoreState).Connected)
	})

	t.Run("State While Connecting", func(t *testing.T) {
		connector := &schemaConnector{}
		s := newSchemaStore(t, connector)

		var wg sync.WaitGroup
		for range 4 {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, _ = s.ensureReady()
			}()
			go func() {
				defer wg.Done()
				_ = s.State()
			}()
		}
		wg.Wait()
		assert.True(t, core.Inspect(s).State.(StoreState).Connected)
		assert.Equal(t, 1, connector.count())
	})

	t.Run("Close Resets The Pool", func(t *testing.T) {
		connector := &schemaConnector{}
		s := newSchemaStore(t, connector)

		_, err := s.ensureReady()
		require.NoError(t, err)
		require.NoError(t, s.Close())
		assert.False(t, core.Inspect(s).State.(StoreState).Connected)
	})
}
