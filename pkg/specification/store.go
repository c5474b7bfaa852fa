package specification

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cast"

	"github.com/mpospelov/chewy/pkg/config"
	"github.com/mpospelov/chewy/pkg/core"
)

// DocumentType is the document type of specification records.
const DocumentType = "specification"

// Record is the last locked definition of one index.
type Record struct {
	// Name is the index name and the record's document id.
	Name string
	// Fingerprint is the encoded canonical definition.
	Fingerprint string
	// Hash identifies the canonical definition.
	Hash string
	// Value is an opaque payload stored with the lock.
	Value any
}

// Store persists specification records in the specification index. It does
// not cache: every call is a store round trip.
type Store struct {
	store core.Store
	cfg   config.Config
}

// NewStore creates a specification store.
func NewStore(store core.Store, cfg config.Config) *Store {
	return &Store{store: store, cfg: cfg}
}

// IndexName returns the name of the backing index.
func (s *Store) IndexName() string {
	return s.cfg.SpecificationIndex()
}

// Get returns the record for name, or nil when nothing was locked.
func (s *Store) Get(ctx context.Context, name string) (*Record, error) {
	doc, err := s.store.Get(ctx, s.IndexName(), name)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read specification %s: %w", name, err)
	}
	return &Record{
		Name:        name,
		Fingerprint: cast.ToString(doc.Source["fingerprint"]),
		Hash:        cast.ToString(doc.Source["hash"]),
		Value:       doc.Source["value"],
	}, nil
}

// Put replaces the record for name.
func (s *Store) Put(ctx context.Context, name, fingerprint, hash string, value any) error {
	if err := s.EnsureIndex(ctx); err != nil {
		return err
	}
	_, err := s.store.Bulk(ctx, []core.BulkOperation{{
		Action: core.ActionIndex,
		Index:  s.IndexName(),
		Type:   DocumentType,
		ID:     name,
		Source: core.Source{
			"fingerprint": fingerprint,
			"hash":        hash,
			"value":       value,
		},
	}})
	if err != nil {
		return fmt.Errorf("failed to write specification %s: %w", name, err)
	}
	return nil
}

// EnsureIndex creates the backing index unless it exists.
func (s *Store) EnsureIndex(ctx context.Context) error {
	ok, err := s.store.IndexExists(ctx, s.IndexName())
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	err = s.store.CreateIndex(ctx, s.IndexName(), core.IndexBody{
		Settings: map[string]any{"index": s.cfg.IndexSettings},
		Mappings: map[string]any{
			DocumentType: map[string]any{
				"properties": map[string]any{
					"fingerprint": map[string]any{"type": "keyword", "index": false},
					"hash":        map[string]any{"type": "keyword"},
					"value":       map[string]any{"type": "object", "enabled": false},
				},
			},
		},
	})
	if errors.Is(err, core.ErrIndexExists) {
		return nil
	}
	return err
}

// DropIndex removes the backing index. It reports false when the index was
// already absent.
func (s *Store) DropIndex(ctx context.Context) (bool, error) {
	err := s.store.DeleteIndex(ctx, s.IndexName())
	if errors.Is(err, core.ErrIndexNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
