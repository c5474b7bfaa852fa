package core

import (
	"sort"

	"github.com/spf13/cast"
)

// Term matches documents whose field equals any of Values. Array fields match
// when one of their elements does.
type Term struct {
	Field  string
	Values []string
}

// Range bounds a numeric field. Nil bounds are open.
type Range struct {
	Field string
	GTE   *int64
	LT    *int64
}

// Query is a conjunction of term and range filters. The zero Query matches
// every document.
type Query struct {
	Terms  []Term
	Ranges []Range
}

// SearchRequest asks for one page of an index. When Sort is set, hits are
// ordered by that numeric field ascending; ties (and unsorted requests) fall
// back to storage order.
type SearchRequest struct {
	Index string
	Query Query
	Sort  string
	From  int
	Size  int
}

// SearchResult is one page of hits plus the total number of matches.
type SearchResult struct {
	Total int
	Hits  []Document
}

// Match reports whether src satisfies every filter of q.
func (q Query) Match(src Source) bool {
	for _, t := range q.Terms {
		if !matchTerm(src[t.Field], t.Values) {
			return false
		}
	}
	for _, r := range q.Ranges {
		n, err := cast.ToInt64E(src[r.Field])
		if err != nil {
			return false
		}
		if r.GTE != nil && n < *r.GTE {
			return false
		}
		if r.LT != nil && n >= *r.LT {
			return false
		}
	}
	return true
}

func matchTerm(v any, values []string) bool {
	switch t := v.(type) {
	case nil:
		return false
	case []any:
		for _, item := range t {
			if matchTerm(item, values) {
				return true
			}
		}
		return false
	case []string:
		for _, item := range t {
			if matchTerm(item, values) {
				return true
			}
		}
		return false
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return false
	}
	for _, want := range values {
		if s == want {
			return true
		}
	}
	return false
}

// Execute filters, sorts and pages docs in memory. Stores without a native
// query engine use it to serve Search.
func Execute(docs []Document, req SearchRequest) SearchResult {
	hits := make([]Document, 0, len(docs))
	for _, d := range docs {
		if req.Query.Match(d.Source) {
			hits = append(hits, d)
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if req.Sort != "" {
			a := cast.ToInt64(hits[i].Source[req.Sort])
			b := cast.ToInt64(hits[j].Source[req.Sort])
			if a != b {
				return a < b
			}
		}
		return hits[i].Seq < hits[j].Seq
	})

	total := len(hits)
	from := req.From
	if from < 0 {
		from = 0
	}
	if from > total {
		from = total
	}
	end := total
	if req.Size > 0 && from+req.Size < total {
		end = from + req.Size
	}
	return SearchResult{Total: total, Hits: hits[from:end]}
}

// Int64 returns a pointer to n, for Range bounds.
func Int64(n int64) *int64 {
	return &n
}
