package models

import "time"

// TagColor is the fixed palette a tag can carry.
type TagColor string

const (
	ColorSlate  TagColor = "slate"
	ColorRed    TagColor = "red"
	ColorOrange TagColor = "orange"
	ColorAmber  TagColor = "amber"
	ColorGreen  TagColor = "green"
	ColorTeal   TagColor = "teal"
	ColorBlue   TagColor = "blue"
	ColorViolet TagColor = "violet"
	ColorPink   TagColor = "pink"
)

// Valid reports whether c is one of the known palette values.
func (c TagColor) Valid() bool {
	switch c {
	case ColorSlate, ColorRed, ColorOrange, ColorAmber, ColorGreen,
		ColorTeal, ColorBlue, ColorViolet, ColorPink:
		return true
	}
	return false
}

// Tag is a user-defined label. Tags are low-cardinality metadata and sync
// last-write-wins; they never enter conflict resolution.
type Tag struct {
	ID        string
	Name      string
	Color     TagColor
	CreatedAt time.Time

	SyncStatus      SyncStatus
	LastSyncedAt    *time.Time
	ServerUpdatedAt *time.Time
	LocalUpdatedAt  time.Time
}
