// Package journal records which documents an indexing run touched, so that
// the changes can later be replayed into a rebuilt index or swept away.
//
// A Journal buffers the entries of a single run. Service persists buffers and
// owns the process-wide operations on the journal index: querying, applying
// and cleaning entries.
package journal

import (
	"time"

	"github.com/mpospelov/chewy/pkg/config"
	"github.com/mpospelov/chewy/pkg/core"
	"github.com/mpospelov/chewy/pkg/index"
)

// Batch is a group of source objects affected by one action.
type Batch struct {
	Action  core.Action
	Objects []any
}

// Index is shorthand for an index batch.
func Index(objects ...any) Batch {
	return Batch{Action: core.ActionIndex, Objects: objects}
}

// Delete is shorthand for a delete batch.
func Delete(objects ...any) Batch {
	return Batch{Action: core.ActionDelete, Objects: objects}
}

// Journal accumulates the entries of one indexing run for one type. It is
// not safe for concurrent use.
type Journal struct {
	cfg     config.Config
	typ     *index.Type
	entries []Entry
	now     func() time.Time
}

// New creates an empty journal bound to t.
func New(cfg config.Config, t *index.Type) *Journal {
	return &Journal{cfg: cfg, typ: t, now: time.Now}
}

// Type returns the type the journal is bound to.
func (j *Journal) Type() *index.Type {
	return j.typ
}

// Add records an entry for each non-empty batch, in call order. On error
// nothing from this call is kept.
func (j *Journal) Add(batches ...Batch) error {
	recorded := make([]Entry, 0, len(batches))
	for _, b := range batches {
		e, err := Record(j.typ, b.Action, b.Objects, j.now())
		if err != nil {
			return err
		}
		if e != nil {
			recorded = append(recorded, *e)
		}
	}
	j.entries = append(j.entries, recorded...)
	return nil
}

// Entries returns the accumulated entries in accumulation order.
func (j *Journal) Entries() []Entry {
	out := make([]Entry, len(j.entries))
	copy(out, j.entries)
	return out
}

// Len returns the number of accumulated entries.
func (j *Journal) Len() int {
	return len(j.entries)
}

// BulkBody returns one journal index instruction per entry, in accumulation
// order.
func (j *Journal) BulkBody() []core.BulkOperation {
	ops := make([]core.BulkOperation, 0, len(j.entries))
	for i := range j.entries {
		ops = append(ops, j.entries[i].BulkOperation(j.cfg))
	}
	return ops
}
