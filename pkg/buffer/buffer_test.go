package buffer

import (
	"fmt"
	"testing"

	"github.com/hervehildenbrand/attack-radar/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func events(from, to int) []models.AttackEvent {
	out := make([]models.AttackEvent, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, models.AttackEvent{ID: fmt.Sprintf("ATK-%d", i)})
	}
	return out
}

func ids(events []models.AttackEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

func TestBuffer_SeedBelowCapacity(t *testing.T) {
	b := New(DefaultCapacity)

	evicted := b.Insert(events(1, 8)...)

	assert.Empty(t, evicted)
	assert.Equal(t, 8, b.Len())
	assert.Equal(t, ids(events(1, 8)), ids(b.Snapshot()))
}

func TestBuffer_InsertAtCapacity(t *testing.T) {
	b := New(DefaultCapacity)
	b.Insert(events(1, 18)...)
	require.Equal(t, 18, b.Len())
	oldest := b.Snapshot()[0]

	evicted := b.Insert(models.AttackEvent{ID: "ATK-19"})

	assert.Equal(t, 18, b.Len())
	require.Len(t, evicted, 1)
	assert.Equal(t, oldest.ID, evicted[0].ID)
	_, found := b.Find(oldest.ID)
	assert.False(t, found)
	snapshot := b.Snapshot()
	assert.Equal(t, "ATK-19", snapshot[len(snapshot)-1].ID)
}

func TestBuffer_EvictionKeepsLastCapacity(t *testing.T) {
	tests := []struct {
		capacity int
		k        int
	}{
		{1, 0},
		{1, 5},
		{3, 1},
		{18, 0},
		{18, 7},
		{18, 100},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("cap=%d,k=%d", tt.capacity, tt.k), func(t *testing.T) {
			b := New(tt.capacity)
			total := tt.capacity + tt.k
			for _, e := range events(1, total) {
				b.Insert(e)
				assert.LessOrEqual(t, b.Len(), tt.capacity)
			}
			assert.Equal(t, ids(events(tt.k+1, total)), ids(b.Snapshot()))
		})
	}
}

func TestBuffer_BatchInsertOverCapacity(t *testing.T) {
	b := New(5)
	b.Insert(events(1, 3)...)

	evicted := b.Insert(events(4, 9)...)

	assert.Equal(t, []string{"ATK-1", "ATK-2", "ATK-3", "ATK-4"}, ids(evicted))
	assert.Equal(t, []string{"ATK-5", "ATK-6", "ATK-7", "ATK-8", "ATK-9"}, ids(b.Snapshot()))
}

func TestBuffer_SnapshotIsACopy(t *testing.T) {
	b := New(4)
	b.Insert(events(1, 2)...)

	snap := b.Snapshot()
	snap[0].ID = "mutated"

	assert.Equal(t, "ATK-1", b.Snapshot()[0].ID)
}

func TestBuffer_FindAndReset(t *testing.T) {
	b := New(4)
	b.Insert(events(1, 3)...)

	e, ok := b.Find("ATK-2")
	assert.True(t, ok)
	assert.Equal(t, "ATK-2", e.ID)

	_, ok = b.Find("ATK-99")
	assert.False(t, ok)

	b.Reset()
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 4, b.Cap())
	assert.Empty(t, b.Snapshot())
	assert.Empty(t, b.EvictOverflow())
}

func TestNew_NonPositiveCapacityPanics(t *testing.T) {
	assert.Panics(t, func() { New(0) })
	assert.Panics(t, func() { New(-1) })
}
