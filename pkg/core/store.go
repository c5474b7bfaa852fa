package core

import "context"

// Store is the contract of the document store the journal and specification
// layers write to. Adhering to this interface keeps the core independent of the
// backing engine (filesystem, PostgreSQL, memory, a remote search cluster).
type Store interface {
	// IndexExists reports whether the named index exists.
	IndexExists(ctx context.Context, name string) (bool, error)

	// CreateIndex creates an index. It returns ErrIndexExists if it is already present.
	CreateIndex(ctx context.Context, name string, body IndexBody) error

	// DeleteIndex drops an index with all its documents.
	// It returns ErrIndexNotFound if the index does not exist.
	DeleteIndex(ctx context.Context, name string) error

	// Bulk applies index and delete operations in order. Index operations
	// create their target index on demand; deleting a missing document is
	// counted in BulkResult.Missing and is not an error.
	Bulk(ctx context.Context, ops []BulkOperation) (BulkResult, error)

	// Get retrieves a document by id. It returns ErrNotFound if the document
	// or the index does not exist.
	Get(ctx context.Context, index, id string) (Document, error)

	// Search returns one page of the documents matching the request.
	// It returns ErrIndexNotFound if the index does not exist.
	Search(ctx context.Context, req SearchRequest) (SearchResult, error)
}

// Watchable is implemented by stores that can stream document changes.
type Watchable interface {
	// Watch emits an Event for every document created, modified or deleted in
	// the named index until ctx is done.
	Watch(ctx context.Context, index string) (<-chan Event, error)
}

// Closer is implemented by stores holding resources (connections, watchers).
type Closer interface {
	Close() error
}
