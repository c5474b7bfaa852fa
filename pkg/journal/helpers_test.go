package journal_test

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mpospelov/chewy/pkg/adapters/memory"
	"github.com/mpospelov/chewy/pkg/config"
	"github.com/mpospelov/chewy/pkg/core"
	"github.com/mpospelov/chewy/pkg/index"
	"github.com/mpospelov/chewy/pkg/journal"
)

type city struct {
	ID   int
	Name string
}

// cities is an entity layer holding live cities by id.
type cities struct {
	live     map[string]city
	fetchErr error
	fetched  [][]string
}

func newCities(list ...city) *cities {
	c := &cities{live: make(map[string]city)}
	for _, x := range list {
		c.live[strconv.Itoa(x.ID)] = x
	}
	return c
}

func (c *cities) Identify(objects []any) ([]any, error) {
	ids := make([]any, 0, len(objects))
	for _, o := range objects {
		switch v := o.(type) {
		case city:
			ids = append(ids, v.ID)
		case int, string:
			ids = append(ids, v)
		default:
			return nil, errors.New("unidentifiable object")
		}
	}
	return ids, nil
}

func (c *cities) FetchByIDs(ctx context.Context, ids []string) ([]core.Document, error) {
	c.fetched = append(c.fetched, ids)
	if c.fetchErr != nil {
		return nil, c.fetchErr
	}
	var docs []core.Document
	for _, id := range ids {
		if x, ok := c.live[id]; ok {
			docs = append(docs, core.Document{ID: id, Source: core.Source{"name": x.Name}})
		}
	}
	return docs, nil
}

type fixture struct {
	ctx      context.Context
	cfg      config.Config
	store    *memory.Store
	registry *index.Registry
	cities   *cities
	city     *index.Type
	service  *journal.Service
}

func setup(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.Journal.BatchSize = 2

	c := newCities(city{1, "Kyiv"}, city{2, "Lviv"}, city{3, "Odesa"})
	cityType := index.NewType("city", c, index.Field{Name: "name", Type: "text"})
	places := index.New("places", nil, cityType)
	registry := index.NewRegistry(places)
	store := memory.NewStore()

	return &fixture{
		ctx:      context.Background(),
		cfg:      cfg,
		store:    store,
		registry: registry,
		cities:   c,
		city:     cityType,
		service:  journal.NewService(store, cfg, registry, nil),
	}
}

// seed writes entries verbatim, so tests control created_at.
func (f *fixture) seed(t *testing.T, entries ...journal.Entry) {
	t.Helper()
	require.NoError(t, f.service.Create(f.ctx))
	ops := make([]core.BulkOperation, 0, len(entries))
	for i := range entries {
		ops = append(ops, entries[i].BulkOperation(f.cfg))
	}
	_, err := f.store.Bulk(f.ctx, ops)
	require.NoError(t, err)
}

func entry(idx, typ string, action core.Action, createdAt int64, ids ...string) journal.Entry {
	return journal.Entry{IndexName: idx, TypeName: typ, Action: action, ObjectIDs: ids, CreatedAt: createdAt}
}
