package cull

import (
	"testing"

	"github.com/cullgate/cullgate/internal/core/ecs"
	"github.com/cullgate/cullgate/internal/core/event"
	"github.com/stretchr/testify/require"
)

func newManagerFixture(t *testing.T, s Settings, opts RegistryOptions) (*Manager, *recorder) {
	t.Helper()
	bus := event.NewBus()
	rec := newRecorder(bus)
	return NewManager(s, opts, bus, nil), rec
}

func TestManagerIdempotentRegistration(t *testing.T) {
	m, rec := newManagerFixture(t, Settings{CullingDistance: 10, BatchSize: 4}, RegistryOptions{})
	h := id(1)
	require.NoError(t, m.RequestRegister(h, at(1, 0, 0)))
	require.NoError(t, m.RequestRegister(h, at(1, 0, 0)))
	require.Equal(t, 1, m.Pending())

	_, err := m.Tick()
	require.NoError(t, err)
	require.NoError(t, m.RequestRegister(h, at(1, 0, 0)))
	_, err = m.Tick()
	require.NoError(t, err)

	require.Equal(t, 1, m.TotalRegistered())
	require.Equal(t, []ecs.EntityID{h}, rec.registered)
	require.Equal(t, 0, m.Pending())
}

func TestManagerRejectsInvalidInput(t *testing.T) {
	m, rec := newManagerFixture(t, Settings{}, RegistryOptions{})
	require.ErrorIs(t, m.RequestRegister(0, at(0, 0, 0)), ErrInvalidHandle)
	require.ErrorIs(t, m.RequestRegister(id(1), nil), ErrInvalidHandle)
	require.ErrorIs(t, m.RequestUnregister(0), ErrInvalidHandle)
	require.ErrorIs(t, m.RequestUnregister(id(9)), ErrNotRegistered)
	require.Equal(t, 0, m.Pending())
	require.Empty(t, rec.registered)
}

func TestManagerBatchingBound(t *testing.T) {
	const k, total = 3, 10
	m, rec := newManagerFixture(t, Settings{CullingDistance: 10, BatchSize: k}, RegistryOptions{})
	for i := uint32(1); i <= total; i++ {
		require.NoError(t, m.RequestRegister(id(i), at(0, 0, 0)))
	}

	_, err := m.Tick()
	require.NoError(t, err)
	require.Equal(t, k, m.TotalRegistered())
	require.Equal(t, total-k, m.Pending())

	ticks := 1
	for m.Pending() > 0 {
		_, err := m.Tick()
		require.NoError(t, err)
		ticks++
	}
	require.Equal(t, 4, ticks)
	require.Equal(t, total, m.TotalRegistered())

	want := make([]ecs.EntityID, 0, total)
	for i := uint32(1); i <= total; i++ {
		want = append(want, id(i))
	}
	require.Equal(t, want, rec.registered)
}

func TestManagerUnregisterWhilePending(t *testing.T) {
	m, rec := newManagerFixture(t, Settings{CullingDistance: 10, Viewpoints: []Viewpoint{{}}}, RegistryOptions{})
	h := id(1)
	require.NoError(t, m.RequestRegister(h, at(1, 0, 0)))
	require.NoError(t, m.RequestUnregister(h))

	_, err := m.Tick()
	require.NoError(t, err)
	require.False(t, m.IsRegistered(h))
	require.Empty(t, rec.registered)
	require.Empty(t, rec.unregistered)
	require.Empty(t, rec.changes)
}

func TestManagerFirstTickStartsHidden(t *testing.T) {
	m, rec := newManagerFixture(t, Settings{CullingDistance: 10, Viewpoints: []Viewpoint{{}}}, RegistryOptions{})
	require.NoError(t, m.RequestRegister(id(1), at(3, 0, 0)))
	require.NoError(t, m.RequestRegister(id(2), at(30, 0, 0)))

	n, err := m.Tick()
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, []event.VisibilityChanged{{EntityID: id(1), Visible: true}}, rec.changes)
	require.Equal(t, 2, m.TotalRegistered())
	require.Equal(t, 1, m.TotalVisible())
}

func TestManagerUnregisterRegistered(t *testing.T) {
	m, rec := newManagerFixture(t, Settings{CullingDistance: 10, Viewpoints: []Viewpoint{{}}}, RegistryOptions{})
	require.NoError(t, m.RequestRegister(id(1), at(3, 0, 0)))
	_, err := m.Tick()
	require.NoError(t, err)
	require.Equal(t, 1, m.TotalVisible())

	require.NoError(t, m.RequestUnregister(id(1)))
	require.Equal(t, []ecs.EntityID{id(1)}, rec.unregistered)
	require.Equal(t, 0, m.TotalRegistered())
	require.Equal(t, 0, m.TotalVisible())
	require.ErrorIs(t, m.RequestUnregister(id(1)), ErrNotRegistered)

	// a fresh registration after removal is accepted again
	require.NoError(t, m.RequestRegister(id(1), at(3, 0, 0)))
	require.Equal(t, 1, m.Pending())
}

func TestManagerCapacityExceededIsReturned(t *testing.T) {
	m, _ := newManagerFixture(t, Settings{BatchSize: 10}, RegistryOptions{InitialCapacity: 2, MaxCapacity: 2})
	for i := uint32(1); i <= 3; i++ {
		require.NoError(t, m.RequestRegister(id(i), at(0, 0, 0)))
	}
	_, err := m.Tick()
	require.ErrorIs(t, err, ErrCapacityExceeded)
	require.Equal(t, 2, m.TotalRegistered())
	require.Equal(t, 1, m.Pending(), "the handle that did not fit stays queued")
}

func TestManagerCapacityExceededRequeuesRestOfBatch(t *testing.T) {
	m, rec := newManagerFixture(t, Settings{BatchSize: 10}, RegistryOptions{InitialCapacity: 2, MaxCapacity: 2})
	for i := uint32(1); i <= 4; i++ {
		require.NoError(t, m.RequestRegister(id(i), at(0, 0, 0)))
	}
	n, err := m.Drain()
	require.ErrorIs(t, err, ErrCapacityExceeded)
	require.Equal(t, 2, n)
	require.Equal(t, 2, m.Pending())
	require.Len(t, m.providers, 2)

	// withdrawing a requeued handle is still a silent cancel
	require.NoError(t, m.RequestUnregister(id(4)))
	require.NoError(t, m.RequestUnregister(id(1)))

	n, err = m.Drain()
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, []ecs.EntityID{id(1), id(2), id(3)}, rec.registered)
	require.Equal(t, []ecs.EntityID{id(1)}, rec.unregistered)
	require.True(t, m.IsRegistered(id(3)))
	require.False(t, m.IsRegistered(id(4)))
	require.Empty(t, m.providers)
}

func TestManagerUnregisterLaterHandleOfBatchFromHandler(t *testing.T) {
	bus := event.NewBus()
	m := NewManager(Settings{BatchSize: 4}, RegistryOptions{}, bus, nil)
	a, b := id(1), id(2)
	var unregErr error
	event.Subscribe(bus, func(e event.Registered) {
		if e.EntityID == a {
			unregErr = m.RequestUnregister(b)
		}
	})
	rec := newRecorder(bus)
	require.NoError(t, m.RequestRegister(a, at(0, 0, 0)))
	require.NoError(t, m.RequestRegister(b, at(0, 0, 0)))

	n, err := m.Drain()
	require.NoError(t, err)
	require.NoError(t, unregErr)
	require.Equal(t, 1, n)
	require.True(t, m.IsRegistered(a))
	require.False(t, m.IsRegistered(b))
	require.Equal(t, []ecs.EntityID{a}, rec.registered)
	require.Empty(t, rec.unregistered)
	require.Equal(t, 0, m.Pending())
}

func TestManagerRegisterInFlightHandleFromHandler(t *testing.T) {
	bus := event.NewBus()
	m := NewManager(Settings{BatchSize: 4}, RegistryOptions{}, bus, nil)
	a, b := id(1), id(2)
	event.Subscribe(bus, func(e event.Registered) {
		if e.EntityID == a {
			require.NoError(t, m.RequestRegister(b, at(50, 0, 0)))
		}
	})
	rec := newRecorder(bus)
	require.NoError(t, m.RequestRegister(a, at(0, 0, 0)))
	require.NoError(t, m.RequestRegister(b, at(1, 0, 0)))

	_, err := m.Drain()
	require.NoError(t, err)
	require.Equal(t, []ecs.EntityID{a, b}, rec.registered)
	require.Equal(t, 0, m.Pending())
	_, s, _ := m.registry.At(1)
	require.Equal(t, at(1, 0, 0), s, "the first provider wins")
}

func TestManagerMoverUnregisteredOnRegisteredIsForgotten(t *testing.T) {
	bus := event.NewBus()
	m := NewManager(Settings{RefreshTicks: 1}, RegistryOptions{}, bus, nil)
	h := id(1)
	event.Subscribe(bus, func(e event.Registered) {
		require.NoError(t, m.RequestUnregister(e.EntityID))
	})
	require.NoError(t, m.RequestRegister(h, &movingProvider{moving: true}))

	_, err := m.Drain()
	require.NoError(t, err)
	require.False(t, m.IsRegistered(h))
	require.Empty(t, m.movers)
	require.Equal(t, 0, m.Refresh())
}

func TestManagerConfigureBetweenTicks(t *testing.T) {
	m, rec := newManagerFixture(t, Settings{CullingDistance: 5, Viewpoints: []Viewpoint{{}}}, RegistryOptions{})
	require.NoError(t, m.RequestRegister(id(1), at(8, 0, 0)))
	_, err := m.Tick()
	require.NoError(t, err)
	require.Equal(t, 0, m.TotalVisible())

	s := m.Settings()
	s.CullingDistance = 10
	m.Configure(s)
	_, err = m.Tick()
	require.NoError(t, err)
	require.Equal(t, []event.VisibilityChanged{{EntityID: id(1), Visible: true}}, rec.changes)

	m.SetViewpoints(nil)
	_, err = m.Tick()
	require.NoError(t, err)
	require.Equal(t, 0, m.TotalVisible())
}

func TestManagerSettingsAreCopied(t *testing.T) {
	vps := []Viewpoint{{Name: "a"}}
	m, _ := newManagerFixture(t, Settings{Viewpoints: vps}, RegistryOptions{})
	vps[0].Name = "mutated"
	require.Equal(t, "a", m.Settings().Viewpoints[0].Name)
	require.Equal(t, DefaultBatchSize, m.Settings().BatchSize)
}

func TestManagerStaleSphereWithoutRefresh(t *testing.T) {
	m, _ := newManagerFixture(t, Settings{CullingDistance: 10, Viewpoints: []Viewpoint{{}}}, RegistryOptions{})
	p := &movingProvider{pos: Vec3{X: 50}, moving: true}
	require.NoError(t, m.RequestRegister(id(1), p))
	_, err := m.Tick()
	require.NoError(t, err)

	p.pos = Vec3{X: 1}
	for i := 0; i < 3; i++ {
		_, err = m.Tick()
		require.NoError(t, err)
	}
	require.False(t, m.IsVisible(id(1)), "refresh disabled: sphere stays where it was registered")
}

func TestManagerRefreshesMovingSpheres(t *testing.T) {
	m, rec := newManagerFixture(t, Settings{
		CullingDistance: 10,
		Viewpoints:      []Viewpoint{{}},
		RefreshTicks:    2,
	}, RegistryOptions{})
	mover := &movingProvider{pos: Vec3{X: 50}, moving: true}
	parked := &movingProvider{pos: Vec3{X: 50}, moving: false}
	require.NoError(t, m.RequestRegister(id(1), mover))
	require.NoError(t, m.RequestRegister(id(2), parked))
	_, err := m.Tick()
	require.NoError(t, err)
	require.Empty(t, rec.changes)

	mover.pos = Vec3{X: 1}
	parked.pos = Vec3{X: 1}

	_, err = m.Tick() // refresh counter 2 of 2
	require.NoError(t, err)
	require.True(t, m.IsVisible(id(1)))
	require.False(t, m.IsVisible(id(2)), "parked movers are not re-sampled")
	require.Equal(t, []event.VisibilityChanged{{EntityID: id(1), Visible: true}}, rec.changes)
}

func TestManagerRefreshSkipsUnregisteredMovers(t *testing.T) {
	m, _ := newManagerFixture(t, Settings{RefreshTicks: 1}, RegistryOptions{})
	require.NoError(t, m.RequestRegister(id(1), &movingProvider{moving: true}))
	_, err := m.Drain()
	require.NoError(t, err)
	require.NoError(t, m.RequestUnregister(id(1)))
	require.Equal(t, 0, m.Refresh())
}
