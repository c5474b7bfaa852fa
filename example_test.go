package chewy_test

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/mpospelov/chewy"
	"github.com/mpospelov/chewy/pkg/config"
	"github.com/mpospelov/chewy/pkg/core"
	"github.com/mpospelov/chewy/pkg/index"
	"github.com/mpospelov/chewy/pkg/indexer"
	"github.com/mpospelov/chewy/pkg/journal"
)

// cityTable stands in for an application's entity layer.
type cityTable map[int]string

func (t cityTable) Identify(objects []any) ([]any, error) {
	return objects, nil
}

func (t cityTable) FetchByIDs(ctx context.Context, ids []string) ([]core.Document, error) {
	var docs []core.Document
	for _, id := range ids {
		n, _ := strconv.Atoi(id)
		if name, ok := t[n]; ok {
			docs = append(docs, core.Document{ID: id, Source: core.Source{"name": name}})
		}
	}
	return docs, nil
}

// Example_specification shows how a lock detects a changed declaration.
func Example_specification() {
	client, err := chewy.New("memory://", chewy.WithConfig(config.Default()))
	if err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()

	city := index.NewType("city", nil, index.Field{Name: "founded_on", Type: "date"})
	places := index.New("places", nil, city)
	spec := client.Specification(places)

	changed, _ := spec.Changed(ctx)
	fmt.Println("before lock:", changed)

	if err := spec.Lock(ctx); err != nil {
		log.Fatal(err)
	}
	changed, _ = spec.Changed(ctx)
	fmt.Println("after lock:", changed)

	city.Fields = append(city.Fields, index.Field{Name: "population", Type: "integer"})
	changed, _ = spec.Changed(ctx)
	fmt.Println("after adding a field:", changed)
	// Output:
	// before lock: true
	// after lock: false
	// after adding a field: true
}

// Example_journal shows an indexing run being journaled and replayed.
func Example_journal() {
	table := cityTable{1: "Kyiv", 2: "Lviv"}
	city := index.NewType("city", table)
	places := index.New("places", nil, city)

	client, err := chewy.New("memory://",
		chewy.WithConfig(config.Default()),
		chewy.WithRegistry(index.NewRegistry(places)),
	)
	if err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()

	res, err := client.Indexer(indexer.WithJournal(true)).Import(ctx, city, journal.Index(1, 2))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("indexed %d, journaled %d\n", res.Indexed, res.Journaled)

	table[2] = "Lemberg"
	results, err := client.Journal().ApplyChangesFrom(ctx, 0, journal.Filter{})
	if err != nil {
		log.Fatal(err)
	}
	for _, r := range results {
		fmt.Printf("replayed %s/%s: %d\n", r.IndexName, r.TypeName, r.Count)
	}

	doc, err := client.Store().Get(ctx, "places", "2")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(doc.Source["name"])
	// Output:
	// indexed 2, journaled 1
	// replayed places/city: 2
	// Lemberg
}
