package state

import "github.com/mknezic/go-dotboy/dotboy/memory"

// frameRecord is one frame of history: the input the frame ran with and,
// when retained, the machine state from just before it ran.
type frameRecord struct {
	snap  *Snapshot
	input memory.Input
}

// Rewind is a fixed-capacity ring of per-frame history. Every frame gets
// an input entry; snapshots may be sparser when the caller captures them
// at an interval, in which case Seek returns the inputs needed to replay
// forward from the nearest retained snapshot.
type Rewind struct {
	records []frameRecord
	head    int // oldest entry
	count   int
}

// NewRewind builds a buffer holding up to capacity frames of history.
func NewRewind(capacity int) *Rewind {
	if capacity < 1 {
		capacity = 1
	}
	return &Rewind{records: make([]frameRecord, capacity)}
}

func (r *Rewind) Len() int      { return r.count }
func (r *Rewind) Capacity() int { return len(r.records) }

func (r *Rewind) at(i int) *frameRecord {
	return &r.records[(r.head+i)%len(r.records)]
}

// Record appends one frame of history. snap is the state before the frame
// ran, or nil when this frame falls between snapshot captures. A full ring
// evicts its oldest entry.
func (r *Rewind) Record(snap *Snapshot, input memory.Input) {
	idx := (r.head + r.count) % len(r.records)
	r.records[idx] = frameRecord{snap: snap, input: input}
	if r.count == len(r.records) {
		r.head = (r.head + 1) % len(r.records)
	} else {
		r.count++
	}
}

// Seek undoes the last n frames. It returns the snapshot to restore and
// the inputs to replay, oldest first, so that after replaying them the
// machine sits exactly where it was before the target frame ran. The
// history being re-lived is discarded. Seek reports false when n is out
// of range or eviction has dropped every snapshot at or before the
// target frame.
func (r *Rewind) Seek(n int) (Snapshot, []memory.Input, bool) {
	if n < 1 || n > r.count {
		return Snapshot{}, nil, false
	}
	target := r.count - n
	base := target
	for base >= 0 && r.at(base).snap == nil {
		base--
	}
	if base < 0 {
		return Snapshot{}, nil, false
	}

	snap := *r.at(base).snap
	inputs := make([]memory.Input, 0, target-base)
	for i := base; i < target; i++ {
		inputs = append(inputs, r.at(i).input)
	}
	r.count = target
	return snap, inputs, true
}
