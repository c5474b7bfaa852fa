// Package index declares indices, their document types and field mappings,
// and resolves declared types by name.
package index

import (
	"context"
	"errors"
	"maps"

	"github.com/mpospelov/chewy/pkg/core"
	"github.com/mpospelov/chewy/pkg/fingerprint"
)

// Errors returned by type resolution.
var (
	ErrUnknownIndex = errors.New("unknown index")
	ErrUnknownType  = errors.New("unknown type")
)

// Adapter is the entity layer capability a document type is backed by.
type Adapter interface {
	// Identify resolves a batch of source objects to their primitive ids
	// (strings or integers), in batch order.
	Identify(objects []any) ([]any, error)

	// FetchByIDs loads the indexable documents for ids. Ids that no longer
	// resolve to a live object are omitted from the result.
	FetchByIDs(ctx context.Context, ids []string) ([]core.Document, error)
}

// Field is one declared field of a type mapping.
type Field struct {
	Name    string         `yaml:"name"`
	Type    string         `yaml:"type"`
	Options map[string]any `yaml:"options,omitempty"`
	// Fields are nested under "properties" (object and nested types).
	Fields []Field `yaml:"fields,omitempty"`
}

func (f Field) mapping() map[string]any {
	m := make(map[string]any, len(f.Options)+2)
	maps.Copy(m, f.Options)
	if f.Type != "" {
		m["type"] = f.Type
	}
	if len(f.Fields) > 0 {
		m["properties"] = properties(f.Fields)
	}
	return m
}

func properties(fields []Field) map[string]any {
	props := make(map[string]any, len(fields))
	for _, f := range fields {
		props[f.Name] = f.mapping()
	}
	return props
}

// Type is a document type declared inside an index.
type Type struct {
	Name   string  `yaml:"name"`
	Fields []Field `yaml:"fields"`

	index   *Index
	adapter Adapter
}

// NewType declares a type backed by adapter.
func NewType(name string, adapter Adapter, fields ...Field) *Type {
	return &Type{Name: name, Fields: fields, adapter: adapter}
}

// Index returns the index the type was added to, or nil.
func (t *Type) Index() *Index {
	return t.index
}

// Adapter returns the entity layer backing the type. It may be nil for
// types declared only to be fingerprinted.
func (t *Type) Adapter() Adapter {
	return t.adapter
}

// SetAdapter binds the entity layer of a type loaded from a definition file.
func (t *Type) SetAdapter(a Adapter) {
	t.adapter = a
}

// Mapping returns the type mapping object.
func (t *Type) Mapping() map[string]any {
	return map[string]any{"properties": properties(t.Fields)}
}

// Index is a declared index: a name (possibly namespaced, e.g.
// "namespace/cities"), its settings and types.
type Index struct {
	Name     string         `yaml:"name"`
	Settings map[string]any `yaml:"settings,omitempty"`
	Types    []*Type        `yaml:"types"`
}

// New declares an index.
func New(name string, settings map[string]any, types ...*Type) *Index {
	idx := &Index{Name: name, Settings: settings}
	for _, t := range types {
		idx.AddType(t)
	}
	return idx
}

// AddType appends t to the index.
func (i *Index) AddType(t *Type) {
	t.index = i
	i.Types = append(i.Types, t)
}

// Type returns the named type or ErrUnknownType.
func (i *Index) Type(name string) (*Type, error) {
	for _, t := range i.Types {
		if t.Name == name {
			return t, nil
		}
	}
	return nil, ErrUnknownType
}

// Mappings returns the mappings object keyed by type name.
func (i *Index) Mappings() map[string]any {
	m := make(map[string]any, len(i.Types))
	for _, t := range i.Types {
		m[t.Name] = t.Mapping()
	}
	return m
}

// Definition returns the index definition as declared.
func (i *Index) Definition() fingerprint.Definition {
	return fingerprint.New(cloneMap(i.Settings), i.Mappings())
}

// Normalized returns the definition with defaults deep-merged under
// settings.index; declared values win.
func (i *Index) Normalized(defaults map[string]any) fingerprint.Definition {
	settings := cloneMap(i.Settings)
	if settings == nil {
		settings = map[string]any{}
	}
	if len(defaults) > 0 {
		declared, _ := settings["index"].(map[string]any)
		settings["index"] = merge(cloneMap(defaults), declared)
	}
	return fingerprint.New(settings, i.Mappings())
}

// Body returns the normalized definition as a store index body.
func (i *Index) Body(defaults map[string]any) core.IndexBody {
	def := i.Normalized(defaults)
	return core.IndexBody{Settings: def.Settings(), Mappings: def.Mappings()}
}

// merge deep-merges src into dst and returns dst.
func merge(dst, src map[string]any) map[string]any {
	for k, v := range src {
		sv, sok := v.(map[string]any)
		dv, dok := dst[k].(map[string]any)
		if sok && dok {
			dst[k] = merge(cloneMap(dv), sv)
			continue
		}
		dst[k] = v
	}
	return dst
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			v = cloneMap(nested)
		}
		out[k] = v
	}
	return out
}
