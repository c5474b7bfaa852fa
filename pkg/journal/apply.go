package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mpospelov/chewy/pkg/config"
	"github.com/mpospelov/chewy/pkg/core"
	"github.com/mpospelov/chewy/pkg/index"
)

// ApplyResult reports the replay of one (index, type) group.
type ApplyResult struct {
	IndexName string
	TypeName  string
	// Count is the number of documents resubmitted.
	Count int
	// Err is set when the group was skipped or its write failed.
	Err error
}

// ApplyOption configures a single Since call.
type ApplyOption func(*applyOptions)

type applyOptions struct {
	entries []Entry
	reuse   bool
}

// WithEntries replays already fetched entries instead of querying the
// journal. The entries are still narrowed by the since and filter of the
// Since call.
func WithEntries(entries []Entry) ApplyOption {
	return func(o *applyOptions) {
		o.entries = entries
		o.reuse = true
	}
}

// Apply replays journaled changes into their target indices.
type Apply struct {
	store    core.Store
	cfg      config.Config
	registry *index.Registry
	query    *Query
	logger   *slog.Logger
}

// NewApply creates a replayer resolving types through registry.
func NewApply(store core.Store, cfg config.Config, registry *index.Registry, logger *slog.Logger) *Apply {
	return &Apply{
		store:    store,
		cfg:      cfg,
		registry: registry,
		query:    NewQuery(store, cfg),
		logger:   logger,
	}
}

// Since re-indexes the current state of every object journaled at or after
// since. Each group is fetched and written independently: a failing group is
// reported on its result and does not stop the others. Replays never write
// journal entries, so repeated or overlapping replays only re-index.
func (a *Apply) Since(ctx context.Context, since int64, filter Filter, opts ...ApplyOption) ([]ApplyResult, error) {
	var o applyOptions
	for _, opt := range opts {
		opt(&o)
	}

	started := time.Now()
	defer func() { ApplyDuration.Observe(time.Since(started).Seconds()) }()

	var entries []Entry
	if o.reuse {
		for _, e := range o.entries {
			if e.CreatedAt >= since && filter.matches(e) {
				entries = append(entries, e)
			}
		}
	} else {
		var err error
		if entries, err = Collect(a.query.Matching(ctx, since, filter)); err != nil {
			return nil, fmt.Errorf("failed to query journal: %w", err)
		}
	}

	groups := Reduce(entries)
	results := make([]ApplyResult, 0, len(groups))
	for _, g := range groups {
		res := a.applyGroup(ctx, g)
		if res.Err != nil {
			ApplyFailures.WithLabelValues(g.IndexName, g.TypeName).Inc()
			if a.logger != nil {
				a.logger.Error("journal apply skipped group",
					"index", g.IndexName, "type", g.TypeName, "ids", len(g.IDs), "error", res.Err)
			}
		} else {
			ApplyDocuments.WithLabelValues(g.IndexName, g.TypeName).Add(float64(res.Count))
			if a.logger != nil {
				a.logger.Debug("journal apply group",
					"index", g.IndexName, "type", g.TypeName, "ids", len(g.IDs), "count", res.Count)
			}
		}
		results = append(results, res)
	}
	return results, nil
}

func (a *Apply) applyGroup(ctx context.Context, g Group) ApplyResult {
	res := ApplyResult{IndexName: g.IndexName, TypeName: g.TypeName}
	if a.registry == nil {
		res.Err = fmt.Errorf("%w: %s", index.ErrUnknownIndex, g.IndexName)
		return res
	}
	t, err := a.registry.Type(g.IndexName, g.TypeName)
	if err != nil {
		res.Err = err
		return res
	}
	if t.Adapter() == nil {
		res.Err = fmt.Errorf("%w: type %s/%s has no adapter", core.ErrInvalidInput, g.IndexName, g.TypeName)
		return res
	}

	docs, err := t.Adapter().FetchByIDs(ctx, g.IDs)
	if err != nil {
		res.Err = fmt.Errorf("failed to fetch %s/%s: %w", g.IndexName, g.TypeName, err)
		return res
	}
	if len(docs) == 0 {
		return res
	}

	target := a.cfg.IndexName(g.IndexName)
	ops := make([]core.BulkOperation, 0, len(docs))
	for _, d := range docs {
		ops = append(ops, core.BulkOperation{
			Action: core.ActionIndex,
			Index:  target,
			Type:   t.Name,
			ID:     d.ID,
			Source: d.Source,
		})
	}
	if _, err := a.store.Bulk(ctx, ops); err != nil {
		res.Err = fmt.Errorf("failed to write %s/%s: %w", g.IndexName, g.TypeName, err)
		return res
	}
	res.Count = len(ops)
	return res
}
