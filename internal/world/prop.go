package world

import (
	"github.com/cullgate/cullgate/internal/core/ecs"
	"github.com/cullgate/cullgate/internal/cull"
)

// Prop is a world object whose rendering and collision are gated by the
// visibility manager. Accessed only from the tick goroutine.
type Prop struct {
	ID       ecs.EntityID
	Name     string
	Position cull.Vec3
	Velocity cull.Vec3 // units per second; non-zero marks the prop as moving

	// Local-space extents, relative to Position. Either may be nil.
	Collider *cull.Box
	Renderer *cull.Box

	Active     bool // whole-entity switch
	Rendered   bool // renderable facet
	Collidable bool // physical facet

	bounds cull.BoundsProvider
}

// Attach resolves the bounds strategy once and asks m to register the prop.
func (p *Prop) Attach(m *cull.Manager) error {
	p.bounds = cull.ResolveBounds(cull.Vec3{}, p.Collider, p.Renderer)
	return m.RequestRegister(p.ID, p)
}

// Detach removes the prop from m, whether it was already drained or not.
func (p *Prop) Detach(m *cull.Manager) error {
	return m.RequestUnregister(p.ID)
}

// BoundingSphere translates the resolved local bounds to the current position.
func (p *Prop) BoundingSphere() cull.Sphere {
	b := p.bounds
	if b == nil {
		b = cull.ResolveBounds(cull.Vec3{}, p.Collider, p.Renderer)
	}
	s := b.BoundingSphere()
	s.Center = s.Center.Add(p.Position)
	return s
}

func (p *Prop) Moving() bool { return p.Velocity != (cull.Vec3{}) }

// OnVisibilityChanged applies the manager's decision. With facetsOnly the
// entity stays active and only its render and collision facets follow
// visible; otherwise the whole entity is switched and the facets are left on.
func (p *Prop) OnVisibilityChanged(visible, facetsOnly bool) {
	if facetsOnly {
		p.Active = true
		p.Rendered = visible
		p.Collidable = visible
		return
	}
	p.Active = visible
	p.Rendered = true
	p.Collidable = true
}

// Rendering reports whether the prop is currently drawn.
func (p *Prop) Rendering() bool { return p.Active && p.Rendered }
