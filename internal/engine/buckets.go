package engine

import (
	"sort"

	"github.com/anbuneel/zenote-sub002/internal/models"
)

// pushBucket orders queue entries for a push pass. Creates go first so
// every later operation references an entity the server knows about; link
// operations go last because they reference two entities.
func pushBucket(e *models.QueueEntry) int {
	switch {
	case e.Op == models.OpCreate:
		return 0
	case e.Entity == models.EntityLink:
		return 2
	default:
		return 1
	}
}

// orderForPush returns the entries sorted by bucket, preserving enqueue
// order within each bucket. The input slice is not modified.
func orderForPush(entries []*models.QueueEntry) []*models.QueueEntry {
	ordered := make([]*models.QueueEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		bi, bj := pushBucket(ordered[i]), pushBucket(ordered[j])
		if bi != bj {
			return bi < bj
		}
		return ordered[i].Seq < ordered[j].Seq
	})
	return ordered
}
