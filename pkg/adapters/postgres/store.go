// Package postgres implements core.Store on PostgreSQL. Documents are kept as
// JSONB rows; term and range filters are translated to SQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/introspection"
	"github.com/lib/pq"

	"github.com/mpospelov/chewy/pkg/core"
)

const (
	defaultTablePrefix      = "chewy"
	defaultOperationTimeout = 5 * time.Second
)

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// Config holds the configuration for the PostgreSQL store.
type Config struct {
	DSN string
	// TablePrefix names the tables (<prefix>_indices, <prefix>_documents).
	TablePrefix string
	// OperationTimeout bounds every statement. Zero means 5s.
	OperationTimeout time.Duration
	Logger           *slog.Logger
}

// Store is a PostgreSQL-backed document store.
type Store struct {
	dsn       string
	indices   string
	documents string
	sequence  string
	timeout   time.Duration
	logger    *slog.Logger
	openDB    sqlOpenFunc

	// mu guards db. Schema setup runs under it until it first succeeds.
	mu sync.Mutex
	db *sql.DB
}

// NewStore creates a store. The connection is opened lazily on first use.
func NewStore(config Config) (*Store, error) {
	dsn := strings.TrimSpace(config.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("%w: empty postgres dsn", core.ErrInvalidInput)
	}
	prefix := strings.TrimSpace(config.TablePrefix)
	if prefix == "" {
		prefix = defaultTablePrefix
	}
	timeout := config.OperationTimeout
	if timeout <= 0 {
		timeout = defaultOperationTimeout
	}
	return &Store{
		dsn:       dsn,
		indices:   prefix + "_indices",
		documents: prefix + "_documents",
		sequence:  prefix + "_documents_seq",
		timeout:   timeout,
		logger:    config.Logger,
		openDB:    sql.Open,
	}, nil
}

var _ core.Store = (*Store)(nil)

// Close releases the connection pool.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// ensureReady opens the pool and creates the schema. Setup is bound to the
// store's own timeout, not to the caller's context, and a failed setup is
// retried by the next call.
func (s *Store) ensureReady() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db, nil
	}

	db, err := s.openDB("postgres", s.dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	schema := fmt.Sprintf(`
		CREATE SEQUENCE IF NOT EXISTS %[3]s;
		CREATE TABLE IF NOT EXISTS %[1]s (
			name TEXT PRIMARY KEY,
			body TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS %[2]s (
			index_name TEXT NOT NULL REFERENCES %[1]s (name) ON DELETE CASCADE,
			id TEXT NOT NULL,
			doc_type TEXT NOT NULL DEFAULT '',
			seq BIGINT NOT NULL DEFAULT nextval('%[4]s'),
			source JSONB NOT NULL,
			PRIMARY KEY (index_name, id)
		);
		CREATE INDEX IF NOT EXISTS %[5]s ON %[2]s (index_name, seq);`,
		quoteIdentifier(s.indices),
		quoteIdentifier(s.documents),
		quoteIdentifier(s.sequence),
		s.sequence,
		quoteIdentifier(s.documents+"_seq_idx"),
	)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to setup schema: %w", err)
	}
	s.db = db
	return db, nil
}

func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	db, err := s.ensureReady()
	if err != nil {
		return false, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var one int
	err = db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT 1 FROM %s WHERE name = $1", quoteIdentifier(s.indices)), name,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) CreateIndex(ctx context.Context, name string, body core.IndexBody) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty index name", core.ErrInvalidInput)
	}
	db, err := s.ensureReady()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := db.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (name, body) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING", quoteIdentifier(s.indices)),
		name, string(payload),
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", core.ErrIndexExists, name)
	}
	return nil
}

func (s *Store) DeleteIndex(ctx context.Context, name string) error {
	db, err := s.ensureReady()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE name = $1", quoteIdentifier(s.indices)), name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", core.ErrIndexNotFound, name)
	}
	return nil
}

// Bulk applies all operations in one transaction.
func (s *Store) Bulk(ctx context.Context, ops []core.BulkOperation) (core.BulkResult, error) {
	var res core.BulkResult
	db, err := s.ensureReady()
	if err != nil {
		return res, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer tx.Rollback()

	ensureIndex := fmt.Sprintf(
		"INSERT INTO %s (name, body) VALUES ($1, '{}') ON CONFLICT (name) DO NOTHING",
		quoteIdentifier(s.indices))
	upsert := fmt.Sprintf(`
		INSERT INTO %[1]s (index_name, id, doc_type, source)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (index_name, id)
		DO UPDATE SET doc_type = EXCLUDED.doc_type, source = EXCLUDED.source, seq = nextval('%[2]s')`,
		quoteIdentifier(s.documents), s.sequence)
	remove := fmt.Sprintf("DELETE FROM %s WHERE index_name = $1 AND id = $2", quoteIdentifier(s.documents))

	for _, op := range ops {
		if op.Index == "" || op.ID == "" {
			return core.BulkResult{}, fmt.Errorf("%w: bulk operation needs index and id", core.ErrInvalidInput)
		}
		switch op.Action {
		case core.ActionIndex:
			source, err := json.Marshal(op.Source)
			if err != nil {
				return core.BulkResult{}, fmt.Errorf("failed to encode document %s/%s: %w", op.Index, op.ID, err)
			}
			if _, err := tx.ExecContext(ctx, ensureIndex, op.Index); err != nil {
				return core.BulkResult{}, err
			}
			if _, err := tx.ExecContext(ctx, upsert, op.Index, op.ID, op.Type, string(source)); err != nil {
				return core.BulkResult{}, err
			}
			res.Indexed++
		case core.ActionDelete:
			r, err := tx.ExecContext(ctx, remove, op.Index, op.ID)
			if err != nil {
				return core.BulkResult{}, err
			}
			if n, _ := r.RowsAffected(); n == 0 {
				res.Missing++
			} else {
				res.Deleted++
			}
		default:
			return core.BulkResult{}, fmt.Errorf("%w: unknown bulk action %q", core.ErrInvalidInput, op.Action)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.BulkResult{}, err
	}
	if s.logger != nil {
		s.logger.Debug("bulk applied", "indexed", res.Indexed, "deleted", res.Deleted, "missing", res.Missing)
	}
	return res, nil
}

func (s *Store) Get(ctx context.Context, index, id string) (core.Document, error) {
	db, err := s.ensureReady()
	if err != nil {
		return core.Document{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc := core.Document{Index: index, ID: id}
	var source string
	err = db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT doc_type, seq, source FROM %s WHERE index_name = $1 AND id = $2", quoteIdentifier(s.documents)),
		index, id,
	).Scan(&doc.Type, &doc.Seq, &source)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Document{}, fmt.Errorf("%w: %s/%s", core.ErrNotFound, index, id)
	}
	if err != nil {
		return core.Document{}, err
	}
	if err := json.Unmarshal([]byte(source), &doc.Source); err != nil {
		return core.Document{}, fmt.Errorf("corrupted document %s/%s: %w", index, id, err)
	}
	return doc, nil
}

func (s *Store) Search(ctx context.Context, req core.SearchRequest) (core.SearchResult, error) {
	exists, err := s.IndexExists(ctx, req.Index)
	if err != nil {
		return core.SearchResult{}, err
	}
	if !exists {
		return core.SearchResult{}, fmt.Errorf("%w: %s", core.ErrIndexNotFound, req.Index)
	}

	db, err := s.ensureReady()
	if err != nil {
		return core.SearchResult{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	where, args := buildWhere(req)
	var res core.SearchResult
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", quoteIdentifier(s.documents), where)
	if err := db.QueryRowContext(ctx, countQuery, args...).Scan(&res.Total); err != nil {
		return core.SearchResult{}, err
	}

	query, args := buildSelect(quoteIdentifier(s.documents), req)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return core.SearchResult{}, err
	}
	defer rows.Close()

	for rows.Next() {
		doc := core.Document{Index: req.Index}
		var source string
		if err := rows.Scan(&doc.ID, &doc.Type, &doc.Seq, &source); err != nil {
			return core.SearchResult{}, err
		}
		if err := json.Unmarshal([]byte(source), &doc.Source); err != nil {
			return core.SearchResult{}, fmt.Errorf("corrupted document %s/%s: %w", req.Index, doc.ID, err)
		}
		res.Hits = append(res.Hits, doc)
	}
	return res, rows.Err()
}

// buildWhere translates the request filters. Field names travel as bind
// parameters, never as SQL text.
func buildWhere(req core.SearchRequest) (string, []any) {
	args := []any{req.Index}
	clauses := []string{"index_name = $1"}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	for _, t := range req.Query.Terms {
		field := next(t.Field) + "::text"
		values := next(pq.Array(t.Values)) + "::text[]"
		clauses = append(clauses, fmt.Sprintf(
			"(CASE WHEN jsonb_typeof(source->%[1]s) = 'array'"+
				" THEN EXISTS (SELECT 1 FROM jsonb_array_elements_text(source->%[1]s) AS e(v) WHERE e.v = ANY(%[2]s))"+
				" ELSE source->>%[1]s = ANY(%[2]s) END)",
			field, values))
	}
	for _, r := range req.Query.Ranges {
		num := numeric(next(r.Field) + "::text")
		if r.GTE != nil {
			clauses = append(clauses, fmt.Sprintf("%s >= %s", num, next(*r.GTE)))
		}
		if r.LT != nil {
			clauses = append(clauses, fmt.Sprintf("%s < %s", num, next(*r.LT)))
		}
	}
	return strings.Join(clauses, " AND "), args
}

func buildSelect(table string, req core.SearchRequest) (string, []any) {
	where, args := buildWhere(req)
	order := "seq ASC"
	if req.Sort != "" {
		args = append(args, req.Sort)
		order = fmt.Sprintf("%s ASC NULLS LAST, seq ASC", numeric(fmt.Sprintf("$%d::text", len(args))))
	}
	query := fmt.Sprintf("SELECT id, doc_type, seq, source FROM %s WHERE %s ORDER BY %s", table, where, order)
	if req.Size > 0 {
		args = append(args, req.Size)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if req.From > 0 {
		args = append(args, req.From)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}

func numeric(field string) string {
	return fmt.Sprintf("(CASE WHEN jsonb_typeof(source->%[1]s) = 'number' THEN (source->>%[1]s)::numeric END)", field)
}

func quoteIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "\"\""
	}
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

// StoreState exposes internal state for observability.
type StoreState struct {
	Tables    []string `json:"tables"`
	Connected bool     `json:"connected"`
	OpenConns int      `json:"open_connections"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	st := StoreState{Tables: []string{s.indices, s.documents}}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		st.Connected = true
		st.OpenConns = s.db.Stats().OpenConnections
	}
	return st
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "postgres-store"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
