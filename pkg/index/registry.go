package index

import (
	"fmt"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// Registry resolves declared indices and types by name.
type Registry struct {
	mu      sync.RWMutex
	indices map[string]*Index
}

// NewRegistry creates a registry holding indices.
func NewRegistry(indices ...*Index) *Registry {
	r := &Registry{indices: make(map[string]*Index)}
	for _, idx := range indices {
		r.Register(idx)
	}
	return r
}

// Register adds or replaces an index declaration.
func (r *Registry) Register(idx *Index) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indices[idx.Name] = idx
}

// Index returns the named index or ErrUnknownIndex.
func (r *Registry) Index(name string) (*Index, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.indices[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIndex, name)
	}
	return idx, nil
}

// Type resolves a type by index and type name.
func (r *Registry) Type(indexName, typeName string) (*Type, error) {
	idx, err := r.Index(indexName)
	if err != nil {
		return nil, err
	}
	t, err := idx.Type(typeName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%s", err, indexName, typeName)
	}
	return t, nil
}

// All returns every registered index sorted by name.
func (r *Registry) All() []*Index {
	return r.Match("**")
}

// Match returns the indices whose name matches a doublestar pattern
// ("places", "namespace/*", "**"), sorted by name. An invalid pattern
// matches nothing.
func (r *Registry) Match(pattern string) []*Index {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Index
	for name, idx := range r.indices {
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			out = append(out, idx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
