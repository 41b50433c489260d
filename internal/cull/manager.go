package cull

import (
	"errors"
	"fmt"

	"github.com/cullgate/cullgate/internal/core/ecs"
	"github.com/cullgate/cullgate/internal/core/event"
	"go.uber.org/zap"
)

const DefaultBatchSize = 32

// Settings is the hot-reloadable part of the configuration.
type Settings struct {
	CullingDistance   float64
	BatchSize         int
	DisableOnlyFacets bool
	Viewpoints        []Viewpoint

	// RefreshTicks re-samples Mover spheres every N drain passes; 0 disables.
	RefreshTicks int

	Workers           int
	ParallelThreshold int
}

// Stats is a read-only snapshot for overlays and periodic logging.
type Stats struct {
	Registered int
	Visible    int
	Pending    int
	Capacity   int
}

// Manager ties the registration queue, registry and evaluator together.
// One Manager is built per world and handed to every owner explicitly.
// All methods must be called from the tick goroutine.
type Manager struct {
	settings Settings

	queue    *Queue
	registry *Registry
	eval     *Evaluator

	providers    map[ecs.EntityID]BoundsProvider
	movers       map[ecs.EntityID]BoundsProvider
	sinceRefresh int

	bus *event.Bus
	log *zap.Logger
}

func NewManager(s Settings, opts RegistryOptions, bus *event.Bus, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	reg := NewRegistry(opts, bus, log)
	m := &Manager{
		queue:     NewQueue(reg),
		registry:  reg,
		eval:      NewEvaluator(reg, bus, EvaluatorOptions{}),
		providers: make(map[ecs.EntityID]BoundsProvider, 64),
		movers:    make(map[ecs.EntityID]BoundsProvider),
		bus:       bus,
		log:       log,
	}
	m.Configure(s)
	return m
}

// Configure replaces the settings. Call between ticks only.
func (m *Manager) Configure(s Settings) {
	if s.BatchSize <= 0 {
		s.BatchSize = DefaultBatchSize
	}
	s.Viewpoints = append([]Viewpoint(nil), s.Viewpoints...)
	m.settings = s
	m.eval.Configure(EvaluatorOptions{Workers: s.Workers, ParallelThreshold: s.ParallelThreshold})
}

// SetViewpoints replaces only the viewpoint list. Owners of destroyed
// cameras must call this before the next tick.
func (m *Manager) SetViewpoints(vps []Viewpoint) {
	m.settings.Viewpoints = append(m.settings.Viewpoints[:0], vps...)
}

func (m *Manager) Settings() Settings {
	s := m.settings
	s.Viewpoints = append([]Viewpoint(nil), s.Viewpoints...)
	return s
}

// RequestRegister queues id for insertion on a later drain. Registering a
// handle that is already pending, in flight or registered is a no-op.
func (m *Manager) RequestRegister(id ecs.EntityID, p BoundsProvider) error {
	if id.IsZero() || p == nil {
		return ErrInvalidHandle
	}
	if _, waiting := m.providers[id]; waiting || !m.queue.Enqueue(id) {
		m.log.Debug("duplicate registration ignored", zap.Stringer("entity", id))
		return nil
	}
	m.providers[id] = p
	return nil
}

// RequestUnregister removes id from the queue or the registry. A handle that
// was not inserted yet disappears without any event, including one taken off
// the queue by a drain that is still publishing Registered for earlier
// handles of its batch.
func (m *Manager) RequestUnregister(id ecs.EntityID) error {
	if id.IsZero() {
		return ErrInvalidHandle
	}
	// providers holds exactly the pending and in-flight handles
	if _, waiting := m.providers[id]; waiting {
		m.queue.Cancel(id)
		delete(m.providers, id)
		return nil
	}
	delete(m.movers, id)
	if err := m.registry.Remove(id); err != nil {
		m.log.Debug("unregister of unknown entity", zap.Stringer("entity", id))
		return err
	}
	return nil
}

// Drain moves at most BatchSize pending handles into the registry, sampling
// each provider once, and returns how many were inserted. Handles withdrawn
// by a Registered subscriber before their turn are skipped.
// ErrCapacityExceeded is returned wrapped; the handle that did not fit and
// the rest of its batch go back to the head of the queue.
func (m *Manager) Drain() (int, error) {
	ids := m.queue.DrainBatch(m.settings.BatchSize)
	n := 0
	for i, id := range ids {
		p, ok := m.providers[id]
		if !ok {
			continue
		}
		// dropped before Insert publishes, so a subscriber sees id as registered
		delete(m.providers, id)
		if _, err := m.registry.Insert(id, p.BoundingSphere()); err != nil {
			if errors.Is(err, ErrAlreadyRegistered) {
				continue
			}
			m.providers[id] = p
			m.requeue(ids[i:])
			return n, fmt.Errorf("register %s: %w", id, err)
		}
		n++
		if _, ok := p.(Mover); ok && m.registry.Contains(id) {
			m.movers[id] = p
		}
	}
	return n, nil
}

// requeue returns the still-wanted handles of an interrupted batch to the
// queue head in their original order.
func (m *Manager) requeue(ids []ecs.EntityID) {
	back := make([]ecs.EntityID, 0, len(ids))
	for _, id := range ids {
		if _, ok := m.providers[id]; ok {
			back = append(back, id)
		}
	}
	m.queue.Requeue(back)
}

// Refresh re-samples moving providers every RefreshTicks calls and returns
// how many spheres were updated.
func (m *Manager) Refresh() int {
	if m.settings.RefreshTicks <= 0 || len(m.movers) == 0 {
		return 0
	}
	m.sinceRefresh++
	if m.sinceRefresh < m.settings.RefreshTicks {
		return 0
	}
	m.sinceRefresh = 0
	n := 0
	for id, p := range m.movers {
		if !p.(Mover).Moving() {
			continue
		}
		if err := m.registry.UpdateSphere(id, p.BoundingSphere()); err == nil {
			n++
		}
	}
	return n
}

// Evaluate runs one visibility pass against the configured viewpoints.
func (m *Manager) Evaluate() int {
	return m.eval.EvaluateTick(m.settings.Viewpoints, m.settings.CullingDistance)
}

// Tick runs drain, refresh and evaluate in that order.
func (m *Manager) Tick() (transitions int, err error) {
	if _, err := m.Drain(); err != nil {
		return 0, err
	}
	m.Refresh()
	return m.Evaluate(), nil
}

func (m *Manager) TotalRegistered() int { return m.registry.Count() }
func (m *Manager) TotalVisible() int    { return m.registry.VisibleCount() }
func (m *Manager) Pending() int         { return m.queue.Len() }

// IsVisible reports the stored flag; false for pending or unknown handles.
func (m *Manager) IsVisible(id ecs.EntityID) bool { return m.registry.Visible(id) }

// IsRegistered reports whether id is in the evaluated set.
func (m *Manager) IsRegistered(id ecs.EntityID) bool { return m.registry.Contains(id) }

func (m *Manager) Stats() Stats {
	return Stats{
		Registered: m.registry.Count(),
		Visible:    m.registry.VisibleCount(),
		Pending:    m.queue.Len(),
		Capacity:   m.registry.CapacityHint(),
	}
}
