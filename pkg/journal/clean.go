package journal

import (
	"context"
	"errors"
	"fmt"

	"github.com/mpospelov/chewy/pkg/config"
	"github.com/mpospelov/chewy/pkg/core"
)

// Clean removes old journal entries.
type Clean struct {
	store core.Store
	cfg   config.Config
}

// NewClean creates a journal sweeper.
func NewClean(store core.Store, cfg config.Config) *Clean {
	return &Clean{store: store, cfg: cfg}
}

// Until deletes the entries created strictly before before that match
// filter, one page at a time, and returns how many were deleted. Entries
// created exactly at before are kept.
func (c *Clean) Until(ctx context.Context, before int64, filter Filter) (int, error) {
	req := core.SearchRequest{
		Index: c.cfg.JournalIndex(),
		Query: core.Query{
			Terms:  filter.terms(),
			Ranges: []core.Range{{Field: "created_at", LT: core.Int64(before)}},
		},
		Sort: "created_at",
		Size: c.cfg.BatchSize(),
	}

	total := 0
	for {
		page, err := c.store.Search(ctx, req)
		if errors.Is(err, core.ErrIndexNotFound) {
			return total, nil
		}
		if err != nil {
			return total, fmt.Errorf("failed to query journal: %w", err)
		}
		if len(page.Hits) == 0 {
			return total, nil
		}

		ops := make([]core.BulkOperation, 0, len(page.Hits))
		for _, d := range page.Hits {
			ops = append(ops, core.BulkOperation{
				Action: core.ActionDelete,
				Index:  c.cfg.JournalIndex(),
				Type:   DocumentType,
				ID:     d.ID,
			})
		}
		res, err := c.store.Bulk(ctx, ops)
		if err != nil {
			return total, fmt.Errorf("failed to delete journal entries: %w", err)
		}
		total += res.Deleted
		CleanDeleted.Add(float64(res.Deleted))

		// Every hit of the page is gone now, so the next page starts at
		// offset zero again. A page that deleted nothing would repeat forever.
		if res.Deleted == 0 || len(page.Hits) < req.Size {
			return total, nil
		}
	}
}
