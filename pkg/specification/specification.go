// Package specification detects drift between an index's declared
// definition and the definition that was last locked for it.
//
// A lock persists the canonical fingerprint of the declared settings and
// mappings (with configured default settings merged in) in a system index.
// Before writing, callers ask Changed: a true answer means the live index
// structure is stale and the index must be rebuilt.
package specification

import (
	"context"

	"github.com/mpospelov/chewy/pkg/config"
	"github.com/mpospelov/chewy/pkg/fingerprint"
	"github.com/mpospelov/chewy/pkg/index"
)

// Specification compares one index's declaration with its lock. It is not
// safe for concurrent use.
type Specification struct {
	index *index.Index
	store *Store
	cfg   config.Config

	locked *string
}

// New creates the specification of idx.
func New(idx *index.Index, store *Store, cfg config.Config) *Specification {
	return &Specification{index: idx, store: store, cfg: cfg}
}

// Name returns the index name the lock is recorded under.
func (s *Specification) Name() string {
	return s.index.Name
}

// Current returns the canonical declared definition. It does not touch the
// store.
func (s *Specification) Current() (string, error) {
	b, err := s.current()
	return string(b), err
}

func (s *Specification) current() ([]byte, error) {
	return fingerprint.Canonicalize(s.index.Normalized(s.cfg.IndexSettings))
}

// Locked returns the canonical locked definition, or fingerprint.Empty when
// nothing is locked. The first call reads the store; later calls reuse it
// until Lock or Reload.
func (s *Specification) Locked(ctx context.Context) (string, error) {
	if s.locked != nil {
		return *s.locked, nil
	}
	rec, err := s.store.Get(ctx, s.index.Name)
	if err != nil {
		return "", err
	}
	locked := fingerprint.Empty
	if rec != nil && rec.Fingerprint != "" {
		b, err := fingerprint.Decode(rec.Fingerprint)
		if err != nil {
			return "", err
		}
		locked = string(b)
	}
	s.locked = &locked
	return locked, nil
}

// Changed reports whether the declared definition differs from the locked one.
func (s *Specification) Changed(ctx context.Context) (bool, error) {
	current, err := s.Current()
	if err != nil {
		return false, err
	}
	locked, err := s.Locked(ctx)
	if err != nil {
		return false, err
	}
	return current != locked, nil
}

// Lock stores the current definition as the new baseline. It always writes,
// even when nothing changed.
func (s *Specification) Lock(ctx context.Context) error {
	return s.LockWithValue(ctx, nil)
}

// LockWithValue is Lock with an opaque payload stored next to the fingerprint.
func (s *Specification) LockWithValue(ctx context.Context, value any) error {
	current, err := s.current()
	if err != nil {
		return err
	}
	if err := s.store.Put(ctx, s.index.Name, fingerprint.Encode(current), fingerprint.Hash(current), value); err != nil {
		return err
	}
	locked := string(current)
	s.locked = &locked
	return nil
}

// Reload drops the memoized locked definition.
func (s *Specification) Reload() {
	s.locked = nil
}

// Diff returns the definition paths that differ between the declaration and
// the lock.
func (s *Specification) Diff(ctx context.Context) ([]string, error) {
	current, err := s.current()
	if err != nil {
		return nil, err
	}
	locked, err := s.Locked(ctx)
	if err != nil {
		return nil, err
	}
	a, err := fingerprint.Parse([]byte(locked))
	if err != nil {
		return nil, err
	}
	b, err := fingerprint.Parse(current)
	if err != nil {
		return nil, err
	}
	return fingerprint.Diff(a, b), nil
}
