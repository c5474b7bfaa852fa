package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpospelov/chewy/pkg/core"
)

var integrationCounter uint64

func integrationStore(t *testing.T) *Store {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("CHEWY_TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("set CHEWY_TEST_POSTGRES_DSN to run Postgres integration tests")
	}
	n := atomic.AddUint64(&integrationCounter, 1)
	prefix := fmt.Sprintf("chewy_it_%d_%d", time.Now().UnixNano(), n)

	s, err := NewStore(Config{DSN: dsn, TablePrefix: prefix})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			t.Fatalf("open postgres for cleanup failed: %v", err)
		}
		defer db.Close()
		for _, stmt := range []string{
			"DROP TABLE IF EXISTS " + quoteIdentifier(prefix+"_documents"),
			"DROP TABLE IF EXISTS " + quoteIdentifier(prefix+"_indices"),
			"DROP SEQUENCE IF EXISTS " + quoteIdentifier(prefix+"_documents_seq"),
		} {
			if _, err := db.Exec(stmt); err != nil {
				t.Fatalf("cleanup %q failed: %v", stmt, err)
			}
		}
	})
	return s
}

func TestPostgresIntegrationRoundTrip(t *testing.T) {
	s := integrationStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateIndex(ctx, "journal", core.IndexBody{Settings: map[string]any{"a": 1}}))
	assert.ErrorIs(t, s.CreateIndex(ctx, "journal", core.IndexBody{}), core.ErrIndexExists)

	res, err := s.Bulk(ctx, []core.BulkOperation{
		{Action: core.ActionIndex, Index: "journal", Type: "journal", ID: "a", Source: core.Source{"created_at": 20, "object_ids": []string{"1", "2"}}},
		{Action: core.ActionIndex, Index: "journal", Type: "journal", ID: "b", Source: core.Source{"created_at": 10, "object_ids": []string{"3"}}},
		{Action: core.ActionDelete, Index: "journal", ID: "c"},
	})
	require.NoError(t, err)
	assert.Equal(t, core.BulkResult{Indexed: 2, Missing: 1}, res)

	page, err := s.Search(ctx, core.SearchRequest{
		Index: "journal",
		Query: core.Query{Ranges: []core.Range{{Field: "created_at", GTE: core.Int64(10)}}},
		Sort:  "created_at",
	})
	require.NoError(t, err)
	require.Len(t, page.Hits, 2)
	assert.Equal(t, "b", page.Hits[0].ID)

	terms, err := s.Search(ctx, core.SearchRequest{
		Index: "journal",
		Query: core.Query{Terms: []core.Term{{Field: "object_ids", Values: []string{"2"}}}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, terms.Total)

	doc, err := s.Get(ctx, "journal", "a")
	require.NoError(t, err)
	assert.Equal(t, "journal", doc.Type)

	require.NoError(t, s.DeleteIndex(ctx, "journal"))
	assert.ErrorIs(t, s.DeleteIndex(ctx, "journal"), core.ErrIndexNotFound)
	_, err = s.Get(ctx, "journal", "a")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
