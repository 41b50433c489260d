package world

import (
	"errors"
	"time"

	"github.com/cullgate/cullgate/internal/core/ecs"
	"github.com/cullgate/cullgate/internal/core/event"
	"github.com/cullgate/cullgate/internal/cull"
	"go.uber.org/zap"
)

// Scene owns the props, keeps them registered with the manager and routes
// visibility transitions back to the owning prop.
type Scene struct {
	world      *ecs.World
	props      *ecs.Store[Prop]
	mgr        *cull.Manager
	facetsOnly bool
	log        *zap.Logger
	unsub      func()
}

func NewScene(w *ecs.World, mgr *cull.Manager, bus *event.Bus, facetsOnly bool, log *zap.Logger) *Scene {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Scene{
		world:      w,
		props:      ecs.NewStore[Prop](),
		mgr:        mgr,
		facetsOnly: facetsOnly,
		log:        log,
	}
	w.Attach(s.props)
	w.OnDestroy(s.detach)
	s.unsub = event.Subscribe(bus, s.onVisibilityChanged)
	return s
}

// Spawn copies tmpl into a new entity, hides it until the first evaluation
// proves it visible, and requests registration.
func (s *Scene) Spawn(tmpl Prop) (ecs.EntityID, error) {
	id := s.world.CreateEntity()
	p := tmpl
	p.ID = id
	p.OnVisibilityChanged(false, s.facetsOnly)
	if err := p.Attach(s.mgr); err != nil {
		s.world.Pool().Destroy(id)
		return 0, err
	}
	s.props.Set(id, &p)
	return id, nil
}

// Despawn queues the prop for the cleanup phase, where it is detached.
func (s *Scene) Despawn(id ecs.EntityID) bool {
	if !s.props.Has(id) {
		return false
	}
	s.world.MarkForDestruction(id)
	return true
}

func (s *Scene) detach(id ecs.EntityID) {
	p, ok := s.props.Get(id)
	if !ok {
		return
	}
	if err := p.Detach(s.mgr); err != nil && !errors.Is(err, cull.ErrNotRegistered) {
		s.log.Warn("detach prop", zap.Stringer("entity", id), zap.Error(err))
	}
}

func (s *Scene) onVisibilityChanged(e event.VisibilityChanged) {
	p, ok := s.props.Get(e.EntityID)
	if !ok {
		return
	}
	p.OnVisibilityChanged(e.Visible, s.facetsOnly)
}

// SetFacetsOnly switches the deactivation mode and re-applies every prop's
// current visibility under the new mode.
func (s *Scene) SetFacetsOnly(facetsOnly bool) {
	if s.facetsOnly == facetsOnly {
		return
	}
	s.facetsOnly = facetsOnly
	s.props.Each(func(id ecs.EntityID, p *Prop) {
		p.OnVisibilityChanged(s.mgr.IsVisible(id), facetsOnly)
	})
	s.log.Info("deactivation mode changed", zap.Bool("facets_only", facetsOnly))
}

// Step integrates the velocity of moving props.
func (s *Scene) Step(dt time.Duration) {
	sec := dt.Seconds()
	s.props.Each(func(_ ecs.EntityID, p *Prop) {
		if p.Moving() {
			p.Position = p.Position.Add(p.Velocity.Scale(sec))
		}
	})
}

func (s *Scene) Prop(id ecs.EntityID) (*Prop, bool) { return s.props.Get(id) }

func (s *Scene) Len() int { return s.props.Len() }

// Rendering counts props currently drawn.
func (s *Scene) Rendering() int {
	n := 0
	s.props.Each(func(_ ecs.EntityID, p *Prop) {
		if p.Rendering() {
			n++
		}
	})
	return n
}

// Close stops routing events to the props.
func (s *Scene) Close() {
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
}
