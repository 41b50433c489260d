package ecs

// World owns the entity pool, the stores attached to it and a deferred
// destruction queue flushed once per tick by the cleanup phase.
type World struct {
	pool         *EntityPool
	stores       []Removable
	destroyQueue []EntityID
	onDestroy    []func(EntityID)
}

func NewWorld() *World {
	return &World{
		pool:         NewEntityPool(),
		stores:       make([]Removable, 0, 8),
		destroyQueue: make([]EntityID, 0, 64),
	}
}

func (w *World) Pool() *EntityPool { return w.pool }

// Attach registers a store whose entries are cleared on destroy.
func (w *World) Attach(store Removable) {
	w.stores = append(w.stores, store)
}

// OnDestroy registers fn to run for each entity right before its data is dropped.
func (w *World) OnDestroy(fn func(EntityID)) {
	w.onDestroy = append(w.onDestroy, fn)
}

func (w *World) CreateEntity() EntityID {
	return w.pool.Create()
}

func (w *World) Alive(id EntityID) bool {
	return w.pool.Alive(id)
}

// MarkForDestruction queues an entity for end-of-tick cleanup.
func (w *World) MarkForDestruction(id EntityID) {
	w.destroyQueue = append(w.destroyQueue, id)
}

// Pending returns how many entities are waiting for the next flush.
func (w *World) Pending() int { return len(w.destroyQueue) }

// FlushDestroyQueue destroys all queued entities and clears their data.
// Ids queued twice or already dead are skipped.
func (w *World) FlushDestroyQueue() int {
	n := 0
	for _, id := range w.destroyQueue {
		if !w.pool.Alive(id) {
			continue
		}
		for _, fn := range w.onDestroy {
			fn(id)
		}
		for _, s := range w.stores {
			s.Remove(id)
		}
		w.pool.Destroy(id)
		n++
	}
	w.destroyQueue = w.destroyQueue[:0]
	return n
}
