package cull

import "github.com/cullgate/cullgate/internal/core/ecs"

// Membership reports whether a handle is already in the evaluated set.
type Membership interface {
	Contains(id ecs.EntityID) bool
}

type pendingEntry struct {
	id  ecs.EntityID
	seq uint64
}

// Queue buffers handles awaiting insertion into the registry, in FIFO order.
// Cancelled entries stay in the backing slice until drained past; the seq
// stamp tells a live entry from a stale one after cancel + re-enqueue.
// Not safe for concurrent use.
type Queue struct {
	entries []pendingEntry
	head    int
	live    map[ecs.EntityID]uint64
	seq     uint64
	known   Membership
}

// NewQueue creates a queue that also refuses handles known (may be nil).
func NewQueue(known Membership) *Queue {
	return &Queue{
		entries: make([]pendingEntry, 0, 64),
		live:    make(map[ecs.EntityID]uint64, 64),
		known:   known,
	}
}

// Enqueue appends id unless it is already pending or already registered.
// Reports whether id was added.
func (q *Queue) Enqueue(id ecs.EntityID) bool {
	if _, pending := q.live[id]; pending {
		return false
	}
	if q.known != nil && q.known.Contains(id) {
		return false
	}
	q.seq++
	q.live[id] = q.seq
	q.entries = append(q.entries, pendingEntry{id: id, seq: q.seq})
	return true
}

// Cancel drops a pending id. Reports whether it was pending.
func (q *Queue) Cancel(id ecs.EntityID) bool {
	if _, pending := q.live[id]; !pending {
		return false
	}
	delete(q.live, id)
	if len(q.live) == 0 {
		q.reset()
	}
	return true
}

// DrainBatch removes and returns up to max pending ids in FIFO order.
func (q *Queue) DrainBatch(max int) []ecs.EntityID {
	if max <= 0 || len(q.live) == 0 {
		return nil
	}
	n := max
	if n > len(q.live) {
		n = len(q.live)
	}
	out := make([]ecs.EntityID, 0, n)
	for q.head < len(q.entries) && len(out) < max {
		e := q.entries[q.head]
		q.head++
		if seq, ok := q.live[e.id]; !ok || seq != e.seq {
			continue
		}
		delete(q.live, e.id)
		out = append(out, e.id)
	}
	q.compact()
	return out
}

// Requeue puts ids back at the head of the queue in the given order.
// Handles that are pending again are left where they are.
func (q *Queue) Requeue(ids []ecs.EntityID) {
	if len(ids) == 0 {
		return
	}
	front := make([]pendingEntry, 0, len(ids)+len(q.entries)-q.head)
	for _, id := range ids {
		if _, pending := q.live[id]; pending {
			continue
		}
		q.seq++
		q.live[id] = q.seq
		front = append(front, pendingEntry{id: id, seq: q.seq})
	}
	q.entries = append(front, q.entries[q.head:]...)
	q.head = 0
}

// Contains reports whether id is pending.
func (q *Queue) Contains(id ecs.EntityID) bool {
	_, ok := q.live[id]
	return ok
}

// Len returns the number of live pending ids.
func (q *Queue) Len() int { return len(q.live) }

func (q *Queue) compact() {
	if len(q.live) == 0 {
		q.reset()
		return
	}
	if q.head > 64 && q.head*2 >= len(q.entries) {
		n := copy(q.entries, q.entries[q.head:])
		q.entries = q.entries[:n]
		q.head = 0
	}
}

func (q *Queue) reset() {
	q.entries = q.entries[:0]
	q.head = 0
}
