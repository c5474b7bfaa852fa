// Package core defines the document store port and the shared value types the
// journal and specification packages are built on.
package core

import "fmt"

// Source is the JSON-like body of a stored document.
type Source map[string]any

// Document is a single stored document addressed by index, type and id.
type Document struct {
	Index  string
	Type   string
	ID     string
	Source Source
	// Seq is assigned by the store on write and orders documents that
	// otherwise sort equal.
	Seq int64
}

// Action is the kind of mutation applied to a batch of objects.
type Action string

const (
	ActionIndex  Action = "index"
	ActionDelete Action = "delete"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	return a == ActionIndex || a == ActionDelete
}

// IndexBody is the definition an index is created with.
type IndexBody struct {
	Settings map[string]any `json:"settings,omitempty"`
	Mappings map[string]any `json:"mappings,omitempty"`
}

// BulkOperation is one instruction of a bulk request.
type BulkOperation struct {
	Action Action
	Index  string
	Type   string
	ID     string
	Source Source
}

// BulkResult summarizes an applied bulk request.
type BulkResult struct {
	Indexed int
	Deleted int
	// Missing counts delete operations whose document did not exist.
	Missing int
}

// EventType represents the type of change observed in a watched index.
type EventType string

const (
	EventCreate EventType = "CREATE"
	EventModify EventType = "MODIFY"
	EventDelete EventType = "DELETE"
)

// Event represents a change to a document of a watched index.
type Event struct {
	Type      EventType
	Index     string
	ID        string
	Timestamp int64 // Unix timestamp
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s/%s", e.Type, e.Index, e.ID)
}
