package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mknezic/go-dotboy/dotboy/memory"
)

func frameSnap(n uint64) *Snapshot {
	return &Snapshot{Frame: n}
}

func TestRewindSeek(t *testing.T) {
	r := NewRewind(10)
	for i := 0; i < 5; i++ {
		r.Record(frameSnap(uint64(i)), memory.Input(i))
	}
	require.Equal(t, 5, r.Len())

	snap, inputs, ok := r.Seek(2)
	require.True(t, ok)
	assert.Equal(t, uint64(3), snap.Frame, "snapshot from just before the target frame")
	assert.Empty(t, inputs, "every frame has a snapshot, nothing to replay")
	assert.Equal(t, 3, r.Len(), "the undone frames are gone")
}

func TestRewindSeekSparseSnapshots(t *testing.T) {
	// snapshots every fourth frame, inputs every frame
	r := NewRewind(20)
	for i := 0; i < 10; i++ {
		var snap *Snapshot
		if i%4 == 0 {
			snap = frameSnap(uint64(i))
		}
		r.Record(snap, memory.Input(i))
	}

	snap, inputs, ok := r.Seek(3) // target frame 7, nearest snapshot at 4
	require.True(t, ok)
	assert.Equal(t, uint64(4), snap.Frame)
	assert.Equal(t, []memory.Input{4, 5, 6}, inputs)
	assert.Equal(t, 7, r.Len())
}

func TestRewindSeekOutOfRange(t *testing.T) {
	r := NewRewind(10)
	r.Record(frameSnap(0), 0)

	_, _, ok := r.Seek(0)
	assert.False(t, ok)
	_, _, ok = r.Seek(2)
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len(), "failed seeks leave history alone")
}

func TestRewindEviction(t *testing.T) {
	r := NewRewind(4)
	for i := 0; i < 7; i++ {
		r.Record(frameSnap(uint64(i)), memory.Input(i))
	}
	require.Equal(t, 4, r.Len())
	assert.Equal(t, 4, r.Capacity())

	// only frames 3..6 remain; undoing all four lands on frame 3
	snap, inputs, ok := r.Seek(4)
	require.True(t, ok)
	assert.Equal(t, uint64(3), snap.Frame)
	assert.Empty(t, inputs)
	assert.Zero(t, r.Len())
}

func TestRewindSeekFailsPastEvictedSnapshot(t *testing.T) {
	// one snapshot at the very start, then eviction drops it
	r := NewRewind(3)
	r.Record(frameSnap(0), 0)
	for i := 1; i < 6; i++ {
		r.Record(nil, memory.Input(i))
	}

	_, _, ok := r.Seek(3)
	assert.False(t, ok, "no snapshot survives at or before the target")
	assert.Equal(t, 3, r.Len())
}

func TestRewindRecordAfterSeek(t *testing.T) {
	r := NewRewind(10)
	for i := 0; i < 6; i++ {
		r.Record(frameSnap(uint64(i)), memory.Input(i))
	}
	_, _, ok := r.Seek(4)
	require.True(t, ok)

	// new history overwrites the abandoned timeline
	r.Record(frameSnap(100), 9)
	snap, _, ok := r.Seek(1)
	require.True(t, ok)
	assert.Equal(t, uint64(100), snap.Frame)
}
