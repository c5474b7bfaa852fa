// Package fs implements core.Store on the local filesystem.
//
// Layout under the root directory:
//
//	<index>/_index.json        index body and write sequence
//	<index>/docs/<id>.json     one file per document
//
// Index names and ids are path-escaped, so namespaced names such as
// "namespace/cities" map to a single directory.
package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mpospelov/chewy/pkg/core"
)

const (
	metaFile = "_index.json"
	docsDir  = "docs"
	docExt   = ".json"
)

// Config holds the configuration for the filesystem store.
type Config struct {
	Path      string
	MustExist bool
	Logger    *slog.Logger
	// ErrorHandler receives runtime watcher failures.
	ErrorHandler func(error)
}

// Store is a filesystem-backed document store.
type Store struct {
	Path   string
	config Config
	cache  *cache

	mu            sync.RWMutex
	watchers      int
	lastWriteSeq  int64
	writeRequests int
}

type indexMeta struct {
	Body core.IndexBody `json:"body"`
	Seq  int64          `json:"seq"`
}

type storedDoc struct {
	Type   string      `json:"type,omitempty"`
	Seq    int64       `json:"seq"`
	Source core.Source `json:"source"`
}

// NewStore creates a filesystem store rooted at config.Path.
func NewStore(config Config) *Store {
	return &Store{
		Path:   config.Path,
		config: config,
		cache:  newCache(),
	}
}

var _ core.Store = (*Store)(nil)
var _ core.Watchable = (*Store)(nil)

// Initialize ensures the root directory exists.
func (s *Store) Initialize(ctx context.Context) error {
	if s.config.MustExist {
		info, err := os.Stat(s.Path)
		if os.IsNotExist(err) {
			return fmt.Errorf("store path does not exist: %s", s.Path)
		}
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("store path is not a directory: %s", s.Path)
		}
		return nil
	}
	if err := os.MkdirAll(s.Path, 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	return nil
}

func (s *Store) indexDir(name string) string {
	return filepath.Join(s.Path, url.PathEscape(name))
}

func (s *Store) docPath(indexName, id string) string {
	return filepath.Join(s.indexDir(indexName), docsDir, url.PathEscape(id)+docExt)
}

func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exists(name)
}

func (s *Store) exists(name string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.indexDir(name), metaFile))
	if os.IsNotExist(err) {
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
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.exists(name)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%w: %s", core.ErrIndexExists, name)
	}
	return s.createIndex(name, body)
}

func (s *Store) createIndex(name string, body core.IndexBody) error {
	if err := os.MkdirAll(filepath.Join(s.indexDir(name), docsDir), 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}
	return s.writeMeta(name, indexMeta{Body: body})
}

func (s *Store) readMeta(name string) (indexMeta, error) {
	var meta indexMeta
	data, err := os.ReadFile(filepath.Join(s.indexDir(name), metaFile))
	if os.IsNotExist(err) {
		return meta, fmt.Errorf("%w: %s", core.ErrIndexNotFound, name)
	}
	if err != nil {
		return meta, fmt.Errorf("failed to read index %s: %w", name, err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("corrupted index %s: %w", name, err)
	}
	return meta, nil
}

func (s *Store) writeMeta(name string, meta indexMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(s.indexDir(name), metaFile), data, 0644)
}

func (s *Store) DeleteIndex(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.exists(name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrIndexNotFound, name)
	}
	dir := s.indexDir(name)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove index %s: %w", name, err)
	}
	s.cache.Prune(dir + string(os.PathSeparator))
	return nil
}

// Bulk writes each operation as its own atomic file change. A failure stops
// the request; operations before it stay applied.
func (s *Store) Bulk(ctx context.Context, ops []core.BulkOperation) (core.BulkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeRequests++

	var res core.BulkResult
	metas := make(map[string]*indexMeta)
	defer func() {
		for name, meta := range metas {
			if err := s.writeMeta(name, *meta); err != nil && s.config.Logger != nil {
				s.config.Logger.Error("failed to persist index sequence", "index", name, "error", err)
			}
		}
	}()

	meta := func(name string, create bool) (*indexMeta, error) {
		if m, ok := metas[name]; ok {
			return m, nil
		}
		m, err := s.readMeta(name)
		if errors.Is(err, core.ErrIndexNotFound) && create {
			if err := s.createIndex(name, core.IndexBody{}); err != nil {
				return nil, err
			}
			m, err = indexMeta{}, nil
		}
		if err != nil {
			return nil, err
		}
		metas[name] = &m
		return &m, nil
	}

	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if op.Index == "" || op.ID == "" {
			return res, fmt.Errorf("%w: bulk operation needs index and id", core.ErrInvalidInput)
		}

		switch op.Action {
		case core.ActionIndex:
			m, err := meta(op.Index, true)
			if err != nil {
				return res, err
			}
			m.Seq++
			data, err := json.Marshal(storedDoc{Type: op.Type, Seq: m.Seq, Source: op.Source})
			if err != nil {
				return res, fmt.Errorf("failed to encode document %s/%s: %w", op.Index, op.ID, err)
			}
			path := s.docPath(op.Index, op.ID)
			if err := writeFileAtomic(path, data, 0644); err != nil {
				return res, err
			}
			s.cache.Delete(path)
			s.lastWriteSeq = m.Seq
			res.Indexed++

		case core.ActionDelete:
			path := s.docPath(op.Index, op.ID)
			err := os.Remove(path)
			if os.IsNotExist(err) {
				res.Missing++
				continue
			}
			if err != nil {
				return res, fmt.Errorf("failed to remove document %s/%s: %w", op.Index, op.ID, err)
			}
			s.cache.Delete(path)
			res.Deleted++

		default:
			return res, fmt.Errorf("%w: unknown bulk action %q", core.ErrInvalidInput, op.Action)
		}
	}

	if s.config.Logger != nil {
		s.config.Logger.Debug("bulk applied", "indexed", res.Indexed, "deleted", res.Deleted, "missing", res.Missing)
	}
	return res, nil
}

func (s *Store) Get(ctx context.Context, indexName, id string) (core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path := s.docPath(indexName, id)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return core.Document{}, fmt.Errorf("%w: %s/%s", core.ErrNotFound, indexName, id)
	}
	if err != nil {
		return core.Document{}, err
	}
	doc, err := s.load(indexName, id, path, info)
	if err != nil {
		return core.Document{}, err
	}
	doc.Source = maps.Clone(doc.Source)
	return doc, nil
}

func (s *Store) load(indexName, id, path string, info os.FileInfo) (core.Document, error) {
	if doc, ok := s.cache.Get(path, info.ModTime()); ok {
		return doc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return core.Document{}, fmt.Errorf("failed to read document %s/%s: %w", indexName, id, err)
	}
	var stored storedDoc
	if err := json.Unmarshal(data, &stored); err != nil {
		return core.Document{}, fmt.Errorf("corrupted document %s/%s: %w", indexName, id, err)
	}
	doc := core.Document{
		Index:  indexName,
		Type:   stored.Type,
		ID:     id,
		Source: stored.Source,
		Seq:    stored.Seq,
	}
	s.cache.Set(path, doc, info.ModTime())
	return doc, nil
}

func (s *Store) Search(ctx context.Context, req core.SearchRequest) (core.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ok, err := s.exists(req.Index)
	if err != nil {
		return core.SearchResult{}, err
	}
	if !ok {
		return core.SearchResult{}, fmt.Errorf("%w: %s", core.ErrIndexNotFound, req.Index)
	}

	dir := filepath.Join(s.indexDir(req.Index), docsDir)
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return core.SearchResult{}, fmt.Errorf("failed to list index %s: %w", req.Index, err)
	}

	docs := make([]core.Document, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, TempFilePrefix) || filepath.Ext(name) != docExt {
			continue
		}
		id, err := url.PathUnescape(strings.TrimSuffix(name, docExt))
		if err != nil {
			continue
		}
		info, err := e.Info()
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return core.SearchResult{}, err
		}
		doc, err := s.load(req.Index, id, filepath.Join(dir, name), info)
		if err != nil {
			return core.SearchResult{}, err
		}
		docs = append(docs, doc)
	}

	res := core.Execute(docs, req)
	for i := range res.Hits {
		res.Hits[i].Source = maps.Clone(res.Hits[i].Source)
	}
	return res, nil
}
