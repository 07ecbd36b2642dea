package engine

import (
	"testing"

	"github.com/anbuneel/zenote-sub002/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(seq int64, op models.Op, entity models.Entity) *models.QueueEntry {
	return &models.QueueEntry{Seq: seq, Op: op, Entity: entity, EntityID: "x"}
}

func TestOrderForPush_BucketsThenFIFO(t *testing.T) {
	in := []*models.QueueEntry{
		entry(1, models.OpAddTag, models.EntityLink),
		entry(2, models.OpUpdate, models.EntityNote),
		entry(3, models.OpCreate, models.EntityTag),
		entry(4, models.OpCreate, models.EntityNote),
		entry(5, models.OpRemoveTag, models.EntityLink),
		entry(6, models.OpSoftDelete, models.EntityNote),
	}

	out := orderForPush(in)

	seqs := make([]int64, len(out))
	for i, e := range out {
		seqs[i] = e.Seq
	}
	// creates (3,4), then entity ops (2,6), then link ops (1,5)
	assert.Equal(t, []int64{3, 4, 2, 6, 1, 5}, seqs)
}

func TestOrderForPush_InputUntouched(t *testing.T) {
	in := []*models.QueueEntry{
		entry(1, models.OpAddTag, models.EntityLink),
		entry(2, models.OpCreate, models.EntityNote),
	}
	_ = orderForPush(in)
	require.EqualValues(t, 1, in[0].Seq)
	require.EqualValues(t, 2, in[1].Seq)
}

func TestOrderForPush_Empty(t *testing.T) {
	assert.Empty(t, orderForPush(nil))
}
