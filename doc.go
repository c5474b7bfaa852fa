// Package chewy is the composition root of the journal and specification
// layers that sit between an application's entities and a document index
// store.
//
// Two concerns are covered:
//
//   - **Journal**: every indexing run can record which objects it touched.
//     The journal is later replayed into a rebuilt index (so writes that
//     happened during a rebuild are not lost) and swept by retention.
//   - **Specification**: the canonical settings and mappings of each
//     declared index are locked in a system index. Comparing the declaration
//     with its lock tells whether the index structure is stale.
//
// The store behind both is a port (core.Store) with in-memory, filesystem and
// PostgreSQL adapters.
//
// Usage:
//
//	client, err := chewy.New("file:///var/lib/chewy",
//		chewy.WithConfigFile("chewy.yml"),
//		chewy.WithRegistry(registry),
//		chewy.WithLogger(logger),
//	)
//
//	// Rebuild the index if its declaration changed
//	rebuilt, err := client.Indexer().EnsureCurrent(ctx, places)
//
//	// Replay what was journaled since the rebuild started
//	results, err := client.Journal().ApplyChangesFrom(ctx, started, journal.Filter{})
package chewy
