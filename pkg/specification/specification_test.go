package specification_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpospelov/chewy/pkg/adapters/memory"
	"github.com/mpospelov/chewy/pkg/config"
	"github.com/mpospelov/chewy/pkg/core"
	"github.com/mpospelov/chewy/pkg/fingerprint"
	"github.com/mpospelov/chewy/pkg/index"
	"github.com/mpospelov/chewy/pkg/specification"
)

const defaults = `"settings":{"index":{"number_of_replicas":0,"number_of_shards":1}}`

func places(settings map[string]any, fields ...index.Field) *index.Index {
	return index.New("places", settings, index.NewType("city", nil, fields...))
}

var (
	foundedOn  = index.Field{Name: "founded_on", Type: "date"}
	population = index.Field{Name: "population", Type: "integer"}
)

type fixture struct {
	ctx   context.Context
	store *memory.Store
	specs *specification.Store
	cfg   config.Config
}

func setup(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Default()
	store := memory.NewStore()
	return &fixture{
		ctx:   context.Background(),
		store: store,
		specs: specification.NewStore(store, cfg),
		cfg:   cfg,
	}
}

func (f *fixture) spec(idx *index.Index) *specification.Specification {
	return specification.New(idx, f.specs, f.cfg)
}

func TestLock(t *testing.T) {
	f := setup(t)
	spec := f.spec(places(nil, foundedOn))

	require.NoError(t, spec.Lock(f.ctx))

	doc, err := f.store.Get(f.ctx, "chewy_specifications", "places")
	require.NoError(t, err)
	assert.Equal(t, specification.DocumentType, doc.Type)
	decoded, err := fingerprint.Decode(doc.Source["fingerprint"].(string))
	require.NoError(t, err)
	assert.Equal(t,
		`{"mappings":{"city":{"properties":{"founded_on":{"type":"date"}}}},`+defaults+`}`,
		string(decoded))
	assert.Equal(t, fingerprint.Hash(decoded), doc.Source["hash"])
	assert.Nil(t, doc.Source["value"])

	t.Run("Namespaced Index Adds A Second Record", func(t *testing.T) {
		cities := index.New("namespace/cities", nil, index.NewType("city", nil, population))
		require.NoError(t, f.spec(cities).Lock(f.ctx))

		page, err := f.store.Search(f.ctx, core.SearchRequest{Index: "chewy_specifications"})
		require.NoError(t, err)
		require.Len(t, page.Hits, 2)
		assert.Equal(t, "places", page.Hits[0].ID)
		assert.Equal(t, "namespace/cities", page.Hits[1].ID)
	})
}

func TestLocked(t *testing.T) {
	f := setup(t)
	spec1 := f.spec(places(nil, foundedOn))

	locked, err := spec1.Locked(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, "{}", locked)

	require.NoError(t, spec1.Lock(f.ctx))
	locked, err = spec1.Locked(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"mappings":{"city":{"properties":{"founded_on":{"type":"date"}}}},`+defaults+`}`, locked)

	t.Run("Other Declaration Sees The Lock", func(t *testing.T) {
		spec3 := f.spec(places(nil, foundedOn, population))
		before, err := spec3.Locked(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, locked, before)

		require.NoError(t, spec3.Lock(f.ctx))
		after, err := spec3.Locked(f.ctx)
		require.NoError(t, err)
		assert.Equal(t,
			`{"mappings":{"city":{"properties":{"founded_on":{"type":"date"},"population":{"type":"integer"}}}},`+defaults+`}`,
			after)
	})

	t.Run("Memoized Until Reload", func(t *testing.T) {
		stale, err := spec1.Locked(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, locked, stale)

		spec1.Reload()
		fresh, err := spec1.Locked(f.ctx)
		require.NoError(t, err)
		assert.Contains(t, fresh, "population")
	})
}

func TestCurrent(t *testing.T) {
	f := setup(t)
	spec2 := f.spec(places(map[string]any{"analyzer": map[string]any{}}, foundedOn))

	current, err := spec2.Current()
	require.NoError(t, err)
	assert.Equal(t,
		`{"mappings":{"city":{"properties":{"founded_on":{"type":"date"}}}},"settings":{"analyzer":{},"index":{"number_of_replicas":0,"number_of_shards":1}}}`,
		current)

	ok, err := f.store.IndexExists(f.ctx, "chewy_specifications")
	require.NoError(t, err)
	assert.False(t, ok, "Current must not touch the store")
}

func TestChanged(t *testing.T) {
	t.Run("True Before Any Lock", func(t *testing.T) {
		f := setup(t)
		changed, err := f.spec(places(nil, foundedOn)).Changed(f.ctx)
		require.NoError(t, err)
		assert.True(t, changed)
	})

	t.Run("False After Lock And Stays False", func(t *testing.T) {
		f := setup(t)
		spec := f.spec(places(nil, foundedOn))
		require.NoError(t, spec.Lock(f.ctx))
		changed, err := spec.Changed(f.ctx)
		require.NoError(t, err)
		assert.False(t, changed)

		before, _ := spec.Locked(f.ctx)
		require.NoError(t, spec.Lock(f.ctx))
		changed, err = spec.Changed(f.ctx)
		require.NoError(t, err)
		assert.False(t, changed)
		after, _ := spec.Locked(f.ctx)
		assert.Equal(t, before, after)
	})

	cases := []struct {
		name string
		next *index.Index
	}{
		{"Settings Added", places(map[string]any{"analyzer": map[string]any{}}, foundedOn)},
		{"Field Added", places(nil, foundedOn, population)},
		{"Field Retyped", places(nil, index.Field{Name: "founded_on", Type: "keyword"})},
		{"Field Removed", places(nil)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := setup(t)
			require.NoError(t, f.spec(places(nil, foundedOn)).Lock(f.ctx))

			next := f.spec(tc.next)
			changed, err := next.Changed(f.ctx)
			require.NoError(t, err)
			assert.True(t, changed)

			require.NoError(t, next.Lock(f.ctx))
			changed, err = next.Changed(f.ctx)
			require.NoError(t, err)
			assert.False(t, changed)
		})
	}

	t.Run("Other Index Is Independent", func(t *testing.T) {
		f := setup(t)
		require.NoError(t, f.spec(places(nil, foundedOn)).Lock(f.ctx))

		cities := f.spec(index.New("namespace/cities", nil, index.NewType("city", nil, population)))
		changed, err := cities.Changed(f.ctx)
		require.NoError(t, err)
		assert.True(t, changed)
	})

	t.Run("Field Reorder Is Not A Change", func(t *testing.T) {
		f := setup(t)
		require.NoError(t, f.spec(places(nil, foundedOn, population)).Lock(f.ctx))

		spec4 := f.spec(places(nil, population, foundedOn))
		changed, err := spec4.Changed(f.ctx)
		require.NoError(t, err)
		assert.False(t, changed)
	})
}

func TestEndToEnd(t *testing.T) {
	f := setup(t)

	spec := f.spec(places(nil, foundedOn))
	require.NoError(t, spec.Lock(f.ctx))
	ok, err := f.store.IndexExists(f.ctx, "chewy_specifications")
	require.NoError(t, err)
	assert.True(t, ok)
	changed, err := spec.Changed(f.ctx)
	require.NoError(t, err)
	assert.False(t, changed)

	grown := f.spec(places(nil, foundedOn, population))
	changed, err = grown.Changed(f.ctx)
	require.NoError(t, err)
	assert.True(t, changed)

	diff, err := grown.Diff(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"mappings.city.properties.population"}, diff)

	require.NoError(t, grown.Lock(f.ctx))
	locked, err := grown.Locked(f.ctx)
	require.NoError(t, err)
	assert.Equal(t,
		`{"mappings":{"city":{"properties":{"founded_on":{"type":"date"},"population":{"type":"integer"}}}},`+defaults+`}`,
		locked)
}

func TestStore(t *testing.T) {
	f := setup(t)

	rec, err := f.specs.Get(f.ctx, "places")
	require.NoError(t, err)
	assert.Nil(t, rec)

	dropped, err := f.specs.DropIndex(f.ctx)
	require.NoError(t, err)
	assert.False(t, dropped)

	require.NoError(t, f.specs.EnsureIndex(f.ctx))
	require.NoError(t, f.specs.EnsureIndex(f.ctx))

	require.NoError(t, f.specs.Put(f.ctx, "places", "e30=", "h1", map[string]any{"rev": 1}))
	require.NoError(t, f.specs.Put(f.ctx, "places", "e30=", "h2", nil))
	rec, err = f.specs.Get(f.ctx, "places")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, specification.Record{Name: "places", Fingerprint: "e30=", Hash: "h2"}, *rec)

	t.Run("Value Is Stored Opaquely", func(t *testing.T) {
		spec := f.spec(places(nil, foundedOn))
		require.NoError(t, spec.LockWithValue(f.ctx, "v1"))
		rec, err := f.specs.Get(f.ctx, "places")
		require.NoError(t, err)
		assert.Equal(t, "v1", rec.Value)
	})

	dropped, err = f.specs.DropIndex(f.ctx)
	require.NoError(t, err)
	assert.True(t, dropped)
}
