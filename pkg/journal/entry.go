package journal

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"

	"github.com/mpospelov/chewy/pkg/config"
	"github.com/mpospelov/chewy/pkg/core"
	"github.com/mpospelov/chewy/pkg/index"
)

// DocumentType is the document type of journal entries.
const DocumentType = "journal"

// Entry records one mutation batch of an indexing run.
type Entry struct {
	IndexName string      `json:"index_name"`
	TypeName  string      `json:"type_name"`
	Action    core.Action `json:"action"`
	ObjectIDs []string    `json:"object_ids"`
	// CreatedAt is a Unix timestamp in seconds.
	CreatedAt int64 `json:"created_at"`
}

// Record builds the entry for a batch of objects of type t. It returns nil
// for an empty batch.
func Record(t *index.Type, action core.Action, objects []any, now time.Time) (*Entry, error) {
	if len(objects) == 0 {
		return nil, nil
	}
	if !action.Valid() {
		return nil, fmt.Errorf("%w: unknown action %q", core.ErrInvalidInput, action)
	}
	if t.Index() == nil {
		return nil, fmt.Errorf("%w: type %s is not declared in an index", core.ErrInvalidInput, t.Name)
	}
	if t.Adapter() == nil {
		return nil, fmt.Errorf("%w: type %s/%s has no adapter", core.ErrInvalidInput, t.Index().Name, t.Name)
	}

	raw, err := t.Adapter().Identify(objects)
	if err != nil {
		return nil, fmt.Errorf("failed to identify %s/%s objects: %w", t.Index().Name, t.Name, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(raw))
	for _, id := range raw {
		s, err := cast.ToStringE(id)
		if err != nil {
			return nil, fmt.Errorf("%w: id %v of %s/%s", core.ErrInvalidInput, id, t.Index().Name, t.Name)
		}
		ids = append(ids, s)
	}

	return &Entry{
		IndexName: t.Index().Name,
		TypeName:  t.Name,
		Action:    action,
		ObjectIDs: ids,
		CreatedAt: now.Unix(),
	}, nil
}

// Source returns the entry as a document body.
func (e *Entry) Source() core.Source {
	ids := make([]any, len(e.ObjectIDs))
	for i, id := range e.ObjectIDs {
		ids[i] = id
	}
	return core.Source{
		"index_name": e.IndexName,
		"type_name":  e.TypeName,
		"action":     string(e.Action),
		"object_ids": ids,
		"created_at": e.CreatedAt,
	}
}

// BulkOperation returns the instruction that stores e in the journal index.
func (e *Entry) BulkOperation(cfg config.Config) core.BulkOperation {
	return core.BulkOperation{
		Action: core.ActionIndex,
		Index:  cfg.JournalIndex(),
		Type:   DocumentType,
		ID:     uuid.NewString(),
		Source: e.Source(),
	}
}

// entryFromSource reverses Source for documents read back from a store.
func entryFromSource(src core.Source) (Entry, error) {
	created, err := cast.ToInt64E(src["created_at"])
	if err != nil {
		return Entry{}, fmt.Errorf("invalid journal created_at %v: %w", src["created_at"], err)
	}
	ids, err := cast.ToStringSliceE(src["object_ids"])
	if err != nil {
		return Entry{}, fmt.Errorf("invalid journal object_ids: %w", err)
	}
	return Entry{
		IndexName: cast.ToString(src["index_name"]),
		TypeName:  cast.ToString(src["type_name"]),
		Action:    core.Action(cast.ToString(src["action"])),
		ObjectIDs: ids,
		CreatedAt: created,
	}, nil
}
