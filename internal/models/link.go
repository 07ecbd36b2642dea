package models

import (
	"strings"
	"time"
)

// NoteTag links a note to a tag. The composite (NoteID, TagID) is the key.
type NoteTag struct {
	NoteID     string
	TagID      string
	CreatedAt  time.Time
	SyncStatus SyncStatus
}

// LinkID builds the composite identifier used for link queue entries.
func LinkID(noteID, tagID string) string {
	return noteID + "/" + tagID
}

// SplitLinkID is the inverse of LinkID.
func SplitLinkID(id string) (noteID, tagID string, ok bool) {
	noteID, tagID, ok = strings.Cut(id, "/")
	return noteID, tagID, ok && noteID != "" && tagID != ""
}
