package cull

import (
	"github.com/cullgate/cullgate/internal/core/ecs"
	"github.com/cullgate/cullgate/internal/core/event"
)

type recorder struct {
	registered   []ecs.EntityID
	unregistered []ecs.EntityID
	changes      []event.VisibilityChanged
}

func newRecorder(bus *event.Bus) *recorder {
	r := &recorder{}
	event.Subscribe(bus, func(e event.Registered) { r.registered = append(r.registered, e.EntityID) })
	event.Subscribe(bus, func(e event.Unregistered) { r.unregistered = append(r.unregistered, e.EntityID) })
	event.Subscribe(bus, func(e event.VisibilityChanged) { r.changes = append(r.changes, e) })
	return r
}

func (r *recorder) reset() {
	r.registered, r.unregistered, r.changes = nil, nil, nil
}

func id(n uint32) ecs.EntityID { return ecs.NewEntityID(n, 1) }

func at(x, y, z float64) Sphere { return Sphere{Center: Vec3{x, y, z}, Radius: 1} }

// movingProvider is a Mover whose sphere tracks pos.
type movingProvider struct {
	pos    Vec3
	moving bool
}

func (p *movingProvider) BoundingSphere() Sphere { return Sphere{Center: p.pos, Radius: 1} }
func (p *movingProvider) Moving() bool           { return p.moving }
