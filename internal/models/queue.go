package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Op is the kind of a queued remote operation.
type Op string

const (
	OpCreate     Op = "create"
	OpUpdate     Op = "update"
	OpDelete     Op = "delete"
	OpSoftDelete Op = "soft_delete"
	OpRestore    Op = "restore"
	OpPin        Op = "pin"
	OpAddTag     Op = "add_tag"
	OpRemoveTag  Op = "remove_tag"
)

// Entity names the target collection of a queued operation.
type Entity string

const (
	EntityNote Entity = "note"
	EntityTag  Entity = "tag"
	EntityLink Entity = "link"
)

// QueueEntry is a durable record of one not-yet-confirmed remote operation.
// Entries are the only source of truth for what must still reach the server.
type QueueEntry struct {
	Seq        int64
	Token      string
	Op         Op
	Entity     Entity
	EntityID   string
	Payload    json.RawMessage
	EnqueuedAt time.Time
	Retries    int
}

// Payload variants. One per operation kind, so the push dispatcher gets
// strongly typed data instead of free-form JSON blobs.

// NotePayload carries a note create or update.
type NotePayload struct {
	Title     string    `json:"title"`
	Content   []byte    `json:"content"`
	Pinned    bool      `json:"pinned"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SoftDeletePayload carries a soft delete. Restore sends no payload.
type SoftDeletePayload struct {
	DeletedAt time.Time `json:"deleted_at"`
}

// PinPayload carries a pin toggle.
type PinPayload struct {
	Pinned bool `json:"pinned"`
}

// TagPayload carries a tag create or update.
type TagPayload struct {
	Name  string   `json:"name"`
	Color TagColor `json:"color"`
}

// LinkPayload carries an add_tag or remove_tag link operation.
type LinkPayload struct {
	NoteID string `json:"note_id"`
	TagID  string `json:"tag_id"`
}

// NewQueueEntry builds an entry with a fresh idempotency token and a
// JSON-encoded payload. A nil payload is stored as JSON null.
func NewQueueEntry(op Op, entity Entity, entityID string, payload any, now time.Time) (*QueueEntry, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", op, err)
	}
	return &QueueEntry{
		Token:      uuid.NewString(),
		Op:         op,
		Entity:     entity,
		EntityID:   entityID,
		Payload:    data,
		EnqueuedAt: now,
	}, nil
}

// NotePayload decodes the entry payload as a NotePayload.
func (e *QueueEntry) NotePayload() (*NotePayload, error) {
	var p NotePayload
	if err := e.decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SoftDeletePayload decodes the entry payload as a SoftDeletePayload.
func (e *QueueEntry) SoftDeletePayload() (*SoftDeletePayload, error) {
	var p SoftDeletePayload
	if err := e.decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// PinPayload decodes the entry payload as a PinPayload.
func (e *QueueEntry) PinPayload() (*PinPayload, error) {
	var p PinPayload
	if err := e.decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// TagPayload decodes the entry payload as a TagPayload.
func (e *QueueEntry) TagPayload() (*TagPayload, error) {
	var p TagPayload
	if err := e.decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// LinkPayload decodes the entry payload as a LinkPayload.
func (e *QueueEntry) LinkPayload() (*LinkPayload, error) {
	var p LinkPayload
	if err := e.decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (e *QueueEntry) decode(dst any) error {
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("malformed %s payload for %s %s: %w", e.Op, e.Entity, e.EntityID, err)
	}
	return nil
}

// ValidatePayload checks that the stored payload is well-formed JSON for the
// entry's operation kind. The local store calls this on every scan so a
// corrupted row surfaces as an error instead of a crash later in the push
// dispatcher.
func (e *QueueEntry) ValidatePayload() error {
	switch e.Op {
	case OpCreate, OpUpdate:
		if e.Entity == EntityTag {
			_, err := e.TagPayload()
			return err
		}
		_, err := e.NotePayload()
		return err
	case OpSoftDelete:
		_, err := e.SoftDeletePayload()
		return err
	case OpPin:
		_, err := e.PinPayload()
		return err
	case OpAddTag, OpRemoveTag:
		p, err := e.LinkPayload()
		if err != nil {
			return err
		}
		if p.NoteID == "" || p.TagID == "" {
			return fmt.Errorf("malformed %s payload for link %s: missing endpoint", e.Op, e.EntityID)
		}
		return nil
	case OpDelete, OpRestore:
		if len(e.Payload) == 0 {
			return nil
		}
		if !json.Valid(e.Payload) {
			return fmt.Errorf("malformed %s payload for %s %s", e.Op, e.Entity, e.EntityID)
		}
		return nil
	default:
		return fmt.Errorf("unknown operation kind %q", e.Op)
	}
}
