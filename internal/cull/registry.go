package cull

import (
	"fmt"
	"math"

	"github.com/cullgate/cullgate/internal/core/ecs"
	"github.com/cullgate/cullgate/internal/core/event"
	"go.uber.org/zap"
)

const (
	DefaultInitialCapacity = 256
	DefaultGrowthFactor    = 1.5
)

// RegistryOptions tunes the packed arrays. Zero values pick the defaults;
// MaxCapacity 0 means unbounded.
type RegistryOptions struct {
	InitialCapacity int
	MaxCapacity     int
	GrowthFactor    float64
}

// Registry is the packed table of (handle, sphere, visible) triples.
// The three slices always share one length (the capacity) and are
// index-aligned; slots [0, count) are live and there are no gaps.
// Owned by the tick goroutine, no locks.
type Registry struct {
	handles []ecs.EntityID
	spheres []Sphere
	visible []bool

	count        int
	visibleCount int
	slots        map[ecs.EntityID]int

	growth float64
	maxCap int

	bus *event.Bus
	log *zap.Logger
}

func NewRegistry(opts RegistryOptions, bus *event.Bus, log *zap.Logger) *Registry {
	if opts.InitialCapacity <= 0 {
		opts.InitialCapacity = DefaultInitialCapacity
	}
	if opts.MaxCapacity > 0 && opts.InitialCapacity > opts.MaxCapacity {
		opts.InitialCapacity = opts.MaxCapacity
	}
	if opts.GrowthFactor <= 1 {
		opts.GrowthFactor = DefaultGrowthFactor
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		handles: make([]ecs.EntityID, opts.InitialCapacity),
		spheres: make([]Sphere, opts.InitialCapacity),
		visible: make([]bool, opts.InitialCapacity),
		slots:   make(map[ecs.EntityID]int, opts.InitialCapacity),
		growth:  opts.GrowthFactor,
		maxCap:  opts.MaxCapacity,
		bus:     bus,
		log:     log,
	}
}

// Insert appends id with its sphere, growing the arrays when full, and
// publishes Registered. New entries start not visible.
func (r *Registry) Insert(id ecs.EntityID, s Sphere) (int, error) {
	if id.IsZero() {
		return -1, ErrInvalidHandle
	}
	if _, ok := r.slots[id]; ok {
		return -1, ErrAlreadyRegistered
	}
	if r.count == len(r.handles) {
		if err := r.grow(); err != nil {
			return -1, err
		}
	}
	slot := r.count
	r.handles[slot] = id
	r.spheres[slot] = s
	r.visible[slot] = false
	r.slots[id] = slot
	r.count++

	event.Publish(r.bus, event.Registered{EntityID: id, Slot: slot})
	return slot, nil
}

func (r *Registry) grow() error {
	old := len(r.handles)
	next := int(math.Ceil(float64(old) * r.growth))
	if next <= old {
		next = old + 1
	}
	if r.maxCap > 0 && next > r.maxCap {
		next = r.maxCap
	}
	if next <= old {
		return fmt.Errorf("%w: %d entries", ErrCapacityExceeded, old)
	}

	handles := make([]ecs.EntityID, next)
	spheres := make([]Sphere, next)
	visible := make([]bool, next)
	copy(handles, r.handles[:r.count])
	copy(spheres, r.spheres[:r.count])
	copy(visible, r.visible[:r.count])
	r.handles, r.spheres, r.visible = handles, spheres, visible

	r.log.Debug("registry grown", zap.Int("from", old), zap.Int("to", next))
	return nil
}

// Remove swap-removes id: the last live slot moves into the freed one.
// Publishes Unregistered.
func (r *Registry) Remove(id ecs.EntityID) error {
	if id.IsZero() {
		return ErrInvalidHandle
	}
	slot, ok := r.slots[id]
	if !ok {
		return ErrNotRegistered
	}
	if r.visible[slot] {
		r.visibleCount--
	}

	last := r.count - 1
	if slot != last {
		moved := r.handles[last]
		r.handles[slot] = moved
		r.spheres[slot] = r.spheres[last]
		r.visible[slot] = r.visible[last]
		r.slots[moved] = slot
	}
	r.handles[last] = 0
	r.spheres[last] = Sphere{}
	r.visible[last] = false
	delete(r.slots, id)
	r.count = last

	event.Publish(r.bus, event.Unregistered{EntityID: id})
	return nil
}

// UpdateSphere replaces the stored sphere of a registered handle.
func (r *Registry) UpdateSphere(id ecs.EntityID, s Sphere) error {
	slot, ok := r.slots[id]
	if !ok {
		return ErrNotRegistered
	}
	r.spheres[slot] = s
	return nil
}

func (r *Registry) Contains(id ecs.EntityID) bool {
	_, ok := r.slots[id]
	return ok
}

// Slot returns the current slot of id. Slots move on removal of other handles.
func (r *Registry) Slot(id ecs.EntityID) (int, bool) {
	slot, ok := r.slots[id]
	return slot, ok
}

// At returns the entry stored in slot.
func (r *Registry) At(slot int) (ecs.EntityID, Sphere, bool) {
	if slot < 0 || slot >= r.count {
		return 0, Sphere{}, false
	}
	return r.handles[slot], r.spheres[slot], r.visible[slot]
}

// Visible reports the stored visibility flag of id.
func (r *Registry) Visible(id ecs.EntityID) bool {
	slot, ok := r.slots[id]
	return ok && r.visible[slot]
}

func (r *Registry) Count() int        { return r.count }
func (r *Registry) CapacityHint() int { return len(r.handles) }
func (r *Registry) VisibleCount() int { return r.visibleCount }

// setVisible stores v in slot and reports whether the flag flipped.
func (r *Registry) setVisible(slot int, v bool) bool {
	if r.visible[slot] == v {
		return false
	}
	r.visible[slot] = v
	if v {
		r.visibleCount++
	} else {
		r.visibleCount--
	}
	return true
}
