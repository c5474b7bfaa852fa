package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/aretw0/introspection"

	"github.com/mpospelov/chewy/pkg/config"
	"github.com/mpospelov/chewy/pkg/core"
	"github.com/mpospelov/chewy/pkg/index"
)

// Mapping is the journal index mapping. Every field is stored unanalyzed.
func Mapping() map[string]any {
	keyword := func() map[string]any { return map[string]any{"type": "keyword"} }
	return map[string]any{
		DocumentType: map[string]any{
			"properties": map[string]any{
				"index_name": keyword(),
				"type_name":  keyword(),
				"action":     keyword(),
				"object_ids": keyword(),
				"created_at": map[string]any{"type": "date", "format": "epoch_second"},
			},
		},
	}
}

// Service owns the journal index.
type Service struct {
	store  core.Store
	cfg    config.Config
	logger *slog.Logger

	query *Query
	apply *Apply
	clean *Clean

	written atomic.Int64
	applied atomic.Int64
	cleaned atomic.Int64
}

// NewService creates the journal service. registry resolves the types named
// by entries during ApplyChangesFrom; logger may be nil.
func NewService(store core.Store, cfg config.Config, registry *index.Registry, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		cfg:    cfg,
		logger: logger,
		query:  NewQuery(store, cfg),
		apply:  NewApply(store, cfg, registry, logger),
		clean:  NewClean(store, cfg),
	}
}

// IndexName returns the name of the journal index.
func (s *Service) IndexName() string {
	return s.cfg.JournalIndex()
}

// Exists reports whether the journal index exists.
func (s *Service) Exists(ctx context.Context) (bool, error) {
	return s.store.IndexExists(ctx, s.IndexName())
}

// Create creates the journal index unless it exists.
func (s *Service) Create(ctx context.Context) error {
	ok, err := s.Exists(ctx)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	err = s.store.CreateIndex(ctx, s.IndexName(), core.IndexBody{
		Settings: map[string]any{"index": s.cfg.IndexSettings},
		Mappings: Mapping(),
	})
	if errors.Is(err, core.ErrIndexExists) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create journal: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("journal created", "index", s.IndexName())
	}
	return nil
}

// Delete removes the journal index. It fails with core.ErrIndexNotFound when
// there is none.
func (s *Service) Delete(ctx context.Context) error {
	if err := s.store.DeleteIndex(ctx, s.IndexName()); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Info("journal deleted", "index", s.IndexName())
	}
	return nil
}

// DeleteIfExists removes the journal index and reports whether there was one.
func (s *Service) DeleteIfExists(ctx context.Context) (bool, error) {
	err := s.Delete(ctx)
	if errors.Is(err, core.ErrIndexNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Flush persists the entries of j in one bulk request, creating the journal
// index first. An empty journal writes nothing.
func (s *Service) Flush(ctx context.Context, j *Journal) error {
	ops := j.BulkBody()
	if len(ops) == 0 {
		return nil
	}
	if err := s.Create(ctx); err != nil {
		return err
	}
	if _, err := s.store.Bulk(ctx, ops); err != nil {
		return fmt.Errorf("failed to write journal: %w", err)
	}
	s.Written(j.Entries())
	return nil
}

// Written counts entries persisted by a caller's own bulk request.
func (s *Service) Written(entries []Entry) {
	for _, e := range entries {
		EntriesWritten.WithLabelValues(e.IndexName, string(e.Action)).Inc()
	}
	s.written.Add(int64(len(entries)))
}

// ApplyChangesFrom replays the entries created at or after since.
func (s *Service) ApplyChangesFrom(ctx context.Context, since int64, filter Filter, opts ...ApplyOption) ([]ApplyResult, error) {
	results, err := s.apply.Since(ctx, since, filter, opts...)
	for _, r := range results {
		s.applied.Add(int64(r.Count))
	}
	return results, err
}

// EntriesFrom returns the raw entries created at or after since.
func (s *Service) EntriesFrom(ctx context.Context, since int64, filter Filter) ([]Entry, error) {
	return Collect(s.query.Matching(ctx, since, filter))
}

// CleanUntil deletes the entries created before before.
func (s *Service) CleanUntil(ctx context.Context, before int64, filter Filter) (int, error) {
	n, err := s.clean.Until(ctx, before, filter)
	s.cleaned.Add(int64(n))
	if s.logger != nil && n > 0 {
		s.logger.Info("journal cleaned", "index", s.IndexName(), "before", before, "deleted", n)
	}
	return n, err
}

// ServiceState exposes counters of this process.
type ServiceState struct {
	Index   string `json:"index"`
	Written int64  `json:"written"`
	Applied int64  `json:"applied"`
	Cleaned int64  `json:"cleaned"`
}

// State implements introspection.Introspectable.
func (s *Service) State() any {
	return ServiceState{
		Index:   s.IndexName(),
		Written: s.written.Load(),
		Applied: s.applied.Load(),
		Cleaned: s.cleaned.Load(),
	}
}

// ComponentType implements introspection.Component.
func (s *Service) ComponentType() string {
	return "journal"
}

var _ introspection.Introspectable = (*Service)(nil)
var _ introspection.Component = (*Service)(nil)
