package journal

import (
	"context"
	"errors"
	"iter"
	"slices"
	"sort"

	"github.com/mpospelov/chewy/pkg/config"
	"github.com/mpospelov/chewy/pkg/core"
)

// Filter narrows journal queries. A value matches if it equals any element
// of its list; empty lists match everything.
type Filter struct {
	Indices []string
	Types   []string
}

func (f Filter) terms() []core.Term {
	var terms []core.Term
	if len(f.Indices) > 0 {
		terms = append(terms, core.Term{Field: "index_name", Values: f.Indices})
	}
	if len(f.Types) > 0 {
		terms = append(terms, core.Term{Field: "type_name", Values: f.Types})
	}
	return terms
}

func (f Filter) matches(e Entry) bool {
	return (len(f.Indices) == 0 || slices.Contains(f.Indices, e.IndexName)) &&
		(len(f.Types) == 0 || slices.Contains(f.Types, e.TypeName))
}

// Group is the set of object ids of one (index, type) pair that a replay has
// to refresh.
type Group struct {
	IndexName string
	TypeName  string
	// IDs are deduplicated, in first-seen order.
	IDs []string
}

// Query reads journal entries page by page.
type Query struct {
	store core.Store
	cfg   config.Config
}

// NewQuery creates a journal query over store.
func NewQuery(store core.Store, cfg config.Config) *Query {
	return &Query{store: store, cfg: cfg}
}

// Matching yields entries created at or after since that match filter,
// oldest first. Entries created in the same second keep storage order. A
// missing journal index yields nothing; a failed page ends the sequence with
// its error.
func (q *Query) Matching(ctx context.Context, since int64, filter Filter) iter.Seq2[Entry, error] {
	query := core.Query{
		Terms:  filter.terms(),
		Ranges: []core.Range{{Field: "created_at", GTE: core.Int64(since)}},
	}
	return q.scan(ctx, query)
}

func (q *Query) scan(ctx context.Context, query core.Query) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		for doc, err := range q.documents(ctx, query) {
			if err != nil {
				yield(Entry{}, err)
				return
			}
			e, err := entryFromSource(doc.Source)
			if !yield(e, err) || err != nil {
				return
			}
		}
	}
}

// documents pages through the journal index. Pages are fetched lazily, one
// request per BatchSize documents.
func (q *Query) documents(ctx context.Context, query core.Query) iter.Seq2[core.Document, error] {
	return func(yield func(core.Document, error) bool) {
		size := q.cfg.BatchSize()
		for from := 0; ; from += size {
			page, err := q.store.Search(ctx, core.SearchRequest{
				Index: q.cfg.JournalIndex(),
				Query: query,
				Sort:  "created_at",
				From:  from,
				Size:  size,
			})
			if errors.Is(err, core.ErrIndexNotFound) {
				return
			}
			if err != nil {
				yield(core.Document{}, err)
				return
			}
			for _, doc := range page.Hits {
				if !yield(doc, nil) {
					return
				}
			}
			if len(page.Hits) < size || from+len(page.Hits) >= page.Total {
				return
			}
		}
	}
}

// Collect drains a sequence into a slice, stopping at the first error.
func Collect(seq iter.Seq2[Entry, error]) ([]Entry, error) {
	var out []Entry
	for e, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Reduce folds entries into one group per (index, type), regardless of the
// entries' actions. Groups are sorted by index then type.
func Reduce(entries []Entry) []Group {
	type key struct{ index, typ string }
	groups := make(map[key]*Group)
	seen := make(map[key]map[string]struct{})
	for _, e := range entries {
		k := key{e.IndexName, e.TypeName}
		g, ok := groups[k]
		if !ok {
			g = &Group{IndexName: e.IndexName, TypeName: e.TypeName}
			groups[k] = g
			seen[k] = make(map[string]struct{})
		}
		for _, id := range e.ObjectIDs {
			if _, dup := seen[k][id]; dup {
				continue
			}
			seen[k][id] = struct{}{}
			g.IDs = append(g.IDs, id)
		}
	}

	out := make([]Group, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IndexName != out[j].IndexName {
			return out[i].IndexName < out[j].IndexName
		}
		return out[i].TypeName < out[j].TypeName
	})
	return out
}
