// Package indexer runs indexing: it turns mutation batches into bulk writes
// against an index, journals them when asked to, and rebuilds indices whose
// declaration drifted from the locked one.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mpospelov/chewy/pkg/config"
	"github.com/mpospelov/chewy/pkg/core"
	"github.com/mpospelov/chewy/pkg/index"
	"github.com/mpospelov/chewy/pkg/journal"
	"github.com/mpospelov/chewy/pkg/specification"
)

// Option configures an Indexer.
type Option func(*Indexer)

// WithJournal overrides config.Journal.Enabled for this indexer.
func WithJournal(enabled bool) Option {
	return func(i *Indexer) {
		i.journaling = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Indexer) {
		i.logger = logger
	}
}

// Result summarizes one Import.
type Result struct {
	Indexed   int
	Deleted   int
	Journaled int
}

// Indexer writes documents of declared types.
type Indexer struct {
	store    core.Store
	cfg      config.Config
	journals *journal.Service
	specs    *specification.Store

	journaling bool
	logger     *slog.Logger
}

// New creates an indexer. Journaling defaults to cfg.Journal.Enabled.
func New(store core.Store, cfg config.Config, journals *journal.Service, specs *specification.Store, opts ...Option) *Indexer {
	i := &Indexer{
		store:      store,
		cfg:        cfg,
		journals:   journals,
		specs:      specs,
		journaling: cfg.Journal.Enabled,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Import runs one indexing pass for t. Objects of index batches are fetched
// through the type's adapter; ids that no longer resolve are deleted from
// the index. With journaling on, the run's journal entries travel in the
// same bulk request as the documents.
func (i *Indexer) Import(ctx context.Context, t *index.Type, batches ...journal.Batch) (Result, error) {
	if t.Index() == nil || t.Adapter() == nil {
		return Result{}, fmt.Errorf("%w: type %s cannot be imported", core.ErrInvalidInput, t.Name)
	}

	j := journal.New(i.cfg, t)
	if err := j.Add(batches...); err != nil {
		return Result{}, err
	}
	entries := j.Entries()
	if len(entries) == 0 {
		return Result{}, nil
	}

	target := i.cfg.IndexName(t.Index().Name)
	var ops []core.BulkOperation
	for _, e := range entries {
		batch, err := i.operations(ctx, t, target, e)
		if err != nil {
			return Result{}, err
		}
		ops = append(ops, batch...)
	}

	var res Result
	if i.journaling {
		if err := i.journals.Create(ctx); err != nil {
			return Result{}, err
		}
		ops = append(ops, j.BulkBody()...)
		res.Journaled = len(entries)
	}

	written, err := i.store.Bulk(ctx, ops)
	if err != nil {
		return Result{}, fmt.Errorf("failed to import %s/%s: %w", t.Index().Name, t.Name, err)
	}
	res.Indexed = written.Indexed - res.Journaled
	res.Deleted = written.Deleted
	if i.journaling {
		i.journals.Written(entries)
	}

	if i.logger != nil {
		i.logger.Debug("import",
			"index", target, "type", t.Name,
			"indexed", res.Indexed, "deleted", res.Deleted, "journaled", res.Journaled)
	}
	return res, nil
}

func (i *Indexer) operations(ctx context.Context, t *index.Type, target string, e journal.Entry) ([]core.BulkOperation, error) {
	ops := make([]core.BulkOperation, 0, len(e.ObjectIDs))
	deleteOp := func(id string) core.BulkOperation {
		return core.BulkOperation{Action: core.ActionDelete, Index: target, Type: t.Name, ID: id}
	}

	if e.Action == core.ActionDelete {
		for _, id := range e.ObjectIDs {
			ops = append(ops, deleteOp(id))
		}
		return ops, nil
	}

	docs, err := t.Adapter().FetchByIDs(ctx, e.ObjectIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s/%s: %w", t.Index().Name, t.Name, err)
	}
	live := make(map[string]bool, len(docs))
	for _, d := range docs {
		live[d.ID] = true
		ops = append(ops, core.BulkOperation{
			Action: core.ActionIndex,
			Index:  target,
			Type:   t.Name,
			ID:     d.ID,
			Source: d.Source,
		})
	}
	for _, id := range e.ObjectIDs {
		if !live[id] {
			ops = append(ops, deleteOp(id))
		}
	}
	return ops, nil
}

// Reset drops idx, creates it from its current declaration and locks the
// new definition.
func (i *Indexer) Reset(ctx context.Context, idx *index.Index) error {
	target := i.cfg.IndexName(idx.Name)
	if err := i.store.DeleteIndex(ctx, target); err != nil && !errors.Is(err, core.ErrIndexNotFound) {
		return fmt.Errorf("failed to drop %s: %w", target, err)
	}
	if err := i.store.CreateIndex(ctx, target, idx.Body(i.cfg.IndexSettings)); err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	if err := specification.New(idx, i.specs, i.cfg).Lock(ctx); err != nil {
		return err
	}
	if i.logger != nil {
		i.logger.Info("index reset", "index", target)
	}
	return nil
}

// EnsureCurrent creates idx when it is missing and rebuilds it when its
// declaration changed since the last lock. It reports whether either
// happened.
func (i *Indexer) EnsureCurrent(ctx context.Context, idx *index.Index) (bool, error) {
	exists, err := i.store.IndexExists(ctx, i.cfg.IndexName(idx.Name))
	if err != nil {
		return false, err
	}
	if exists {
		changed, err := specification.New(idx, i.specs, i.cfg).Changed(ctx)
		if err != nil {
			return false, err
		}
		if !changed {
			return false, nil
		}
	}
	if err := i.Reset(ctx, idx); err != nil {
		return false, err
	}
	return true, nil
}
