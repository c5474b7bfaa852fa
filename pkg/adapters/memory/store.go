// Package memory implements core.Store in process memory. It backs tests and
// embedded use where no external engine is available.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/aretw0/introspection"

	"github.com/mpospelov/chewy/pkg/core"
)

type index struct {
	body core.IndexBody
	docs map[string]core.Document
}

// Store is a concurrency-safe in-memory document store.
type Store struct {
	mu      sync.RWMutex
	indices map[string]*index
	seq     int64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{indices: make(map[string]*index)}
}

var _ core.Store = (*Store)(nil)

// IndexExists reports whether name was created.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.indices[name]
	return ok, nil
}

// CreateIndex registers an empty index. It fails with core.ErrIndexExists if
// name is taken.
func (s *Store) CreateIndex(ctx context.Context, name string, body core.IndexBody) error {
	if name == "" {
		return fmt.Errorf("%w: empty index name", core.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indices[name]; ok {
		return fmt.Errorf("%w: %s", core.ErrIndexExists, name)
	}
	s.indices[name] = &index{body: body, docs: make(map[string]core.Document)}
	return nil
}

// DeleteIndex drops an index with all its documents.
func (s *Store) DeleteIndex(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indices[name]; !ok {
		return fmt.Errorf("%w: %s", core.ErrIndexNotFound, name)
	}
	delete(s.indices, name)
	return nil
}

// Bulk applies ops in order. Indexing into an unknown index creates it;
// deleting a missing document counts as missing, not as an error.
func (s *Store) Bulk(ctx context.Context, ops []core.BulkOperation) (core.BulkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res core.BulkResult
	for _, op := range ops {
		if op.Index == "" || op.ID == "" {
			return res, fmt.Errorf("%w: bulk operation needs index and id", core.ErrInvalidInput)
		}
		switch op.Action {
		case core.ActionIndex:
			idx, ok := s.indices[op.Index]
			if !ok {
				idx = &index{docs: make(map[string]core.Document)}
				s.indices[op.Index] = idx
			}
			s.seq++
			idx.docs[op.ID] = core.Document{
				Index:  op.Index,
				Type:   op.Type,
				ID:     op.ID,
				Source: maps.Clone(op.Source),
				Seq:    s.seq,
			}
			res.Indexed++
		case core.ActionDelete:
			idx, ok := s.indices[op.Index]
			if !ok {
				res.Missing++
				continue
			}
			if _, ok := idx.docs[op.ID]; !ok {
				res.Missing++
				continue
			}
			delete(idx.docs, op.ID)
			res.Deleted++
		default:
			return res, fmt.Errorf("%w: unknown bulk action %q", core.ErrInvalidInput, op.Action)
		}
	}
	return res, nil
}

// Get returns a copy of a stored document.
func (s *Store) Get(ctx context.Context, indexName, id string) (core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.indices[indexName]
	if !ok {
		return core.Document{}, fmt.Errorf("%w: %s/%s", core.ErrNotFound, indexName, id)
	}
	doc, ok := idx.docs[id]
	if !ok {
		return core.Document{}, fmt.Errorf("%w: %s/%s", core.ErrNotFound, indexName, id)
	}
	doc.Source = maps.Clone(doc.Source)
	return doc, nil
}

// Search filters, sorts and pages the documents of one index.
func (s *Store) Search(ctx context.Context, req core.SearchRequest) (core.SearchResult, error) {
	s.mu.RLock()
	idx, ok := s.indices[req.Index]
	if !ok {
		s.mu.RUnlock()
		return core.SearchResult{}, fmt.Errorf("%w: %s", core.ErrIndexNotFound, req.Index)
	}
	docs := make([]core.Document, 0, len(idx.docs))
	for _, d := range idx.docs {
		d.Source = maps.Clone(d.Source)
		docs = append(docs, d)
	}
	s.mu.RUnlock()

	return core.Execute(docs, req), nil
}

// Body returns the definition an index was created with.
func (s *Store) Body(name string) (core.IndexBody, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.indices[name]
	if !ok {
		return core.IndexBody{}, false
	}
	return idx.body, true
}

// StoreState exposes internal state for observability.
type StoreState struct {
	Indices map[string]int `json:"indices"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int, len(s.indices))
	for name, idx := range s.indices {
		counts[name] = len(idx.docs)
	}
	return StoreState{Indices: counts}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "memory-store"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
