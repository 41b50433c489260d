package world

import (
	"testing"
	"time"

	"github.com/cullgate/cullgate/internal/core/ecs"
	"github.com/cullgate/cullgate/internal/core/event"
	"github.com/cullgate/cullgate/internal/cull"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	world *ecs.World
	bus   *event.Bus
	mgr   *cull.Manager
	scene *Scene
}

func newFixture(t *testing.T, facetsOnly bool, refresh int) *fixture {
	t.Helper()
	bus := event.NewBus()
	w := ecs.NewWorld()
	mgr := cull.NewManager(cull.Settings{
		CullingDistance: 10,
		BatchSize:       16,
		Viewpoints:      []cull.Viewpoint{{Name: "cam"}},
		RefreshTicks:    refresh,
	}, cull.RegistryOptions{}, bus, nil)
	return &fixture{world: w, bus: bus, mgr: mgr, scene: NewScene(w, mgr, bus, facetsOnly, nil)}
}

func (f *fixture) tick(t *testing.T) {
	t.Helper()
	_, err := f.mgr.Tick()
	require.NoError(t, err)
	f.world.FlushDestroyQueue()
}

func TestSpawnStartsHiddenThenShows(t *testing.T) {
	f := newFixture(t, true, 0)
	near, err := f.scene.Spawn(Prop{Name: "crate", Position: cull.Vec3{X: 3}})
	require.NoError(t, err)
	far, err := f.scene.Spawn(Prop{Name: "tower", Position: cull.Vec3{X: 40}})
	require.NoError(t, err)

	p, _ := f.scene.Prop(near)
	require.False(t, p.Rendering())
	require.True(t, p.Active)

	f.tick(t)
	require.True(t, p.Rendering())
	require.True(t, p.Collidable)

	q, _ := f.scene.Prop(far)
	require.False(t, q.Rendering())
	require.False(t, q.Collidable)
	require.Equal(t, 1, f.scene.Rendering())
}

func TestWholeEntityMode(t *testing.T) {
	f := newFixture(t, false, 0)
	id, err := f.scene.Spawn(Prop{Position: cull.Vec3{X: 40}})
	require.NoError(t, err)
	f.tick(t)

	p, _ := f.scene.Prop(id)
	require.False(t, p.Active)
	require.True(t, p.Rendered, "facets untouched in whole-entity mode")

	f.scene.SetFacetsOnly(true)
	require.True(t, p.Active)
	require.False(t, p.Rendered)
}

func TestDespawnDetachesAtCleanup(t *testing.T) {
	f := newFixture(t, true, 0)
	var gone []ecs.EntityID
	event.Subscribe(f.bus, func(e event.Unregistered) { gone = append(gone, e.EntityID) })

	id, err := f.scene.Spawn(Prop{Position: cull.Vec3{X: 1}})
	require.NoError(t, err)
	f.tick(t)
	require.Equal(t, 1, f.mgr.TotalRegistered())

	require.True(t, f.scene.Despawn(id))
	require.Equal(t, 1, f.mgr.TotalRegistered(), "removal waits for cleanup")
	f.world.FlushDestroyQueue()

	require.Equal(t, 0, f.mgr.TotalRegistered())
	require.Equal(t, []ecs.EntityID{id}, gone)
	require.Equal(t, 0, f.scene.Len())
	require.False(t, f.scene.Despawn(id))
}

func TestDespawnBeforeDrainIsSilent(t *testing.T) {
	f := newFixture(t, true, 0)
	var events int
	event.Subscribe(f.bus, func(event.Registered) { events++ })
	event.Subscribe(f.bus, func(event.Unregistered) { events++ })

	id, err := f.scene.Spawn(Prop{})
	require.NoError(t, err)
	f.scene.Despawn(id)
	f.world.FlushDestroyQueue()
	f.tick(t)

	require.Zero(t, events)
	require.Equal(t, 0, f.mgr.Pending())
}

func TestMovingPropRefreshedByManager(t *testing.T) {
	f := newFixture(t, true, 1)
	id, err := f.scene.Spawn(Prop{
		Position: cull.Vec3{X: 30},
		Velocity: cull.Vec3{X: -10},
		Collider: &cull.Box{Min: cull.Vec3{X: -1, Y: -1, Z: -1}, Max: cull.Vec3{X: 1, Y: 1, Z: 1}},
	})
	require.NoError(t, err)
	p, _ := f.scene.Prop(id)

	f.tick(t)
	require.False(t, p.Rendering())

	f.scene.Step(2500 * time.Millisecond) // x = 5
	f.tick(t)
	require.True(t, p.Rendering())
}

func TestPropBoundsPreferCollider(t *testing.T) {
	p := &Prop{
		Position: cull.Vec3{X: 10},
		Collider: &cull.Box{Min: cull.Vec3{X: -1, Y: -1, Z: -1}, Max: cull.Vec3{X: 1, Y: 1, Z: 1}},
		Renderer: &cull.Box{Min: cull.Vec3{X: -5, Y: -5, Z: -5}, Max: cull.Vec3{X: 5, Y: 5, Z: 5}},
	}
	s := p.BoundingSphere()
	require.Equal(t, cull.Vec3{X: 10}, s.Center)
	require.InDelta(t, 1.7320508, s.Radius, 1e-6)

	p.Collider = nil
	p.bounds = nil
	require.InDelta(t, 8.660254, p.BoundingSphere().Radius, 1e-6)
}

func TestSceneCloseStopsRouting(t *testing.T) {
	f := newFixture(t, true, 0)
	id, _ := f.scene.Spawn(Prop{Position: cull.Vec3{X: 1}})
	f.scene.Close()
	f.tick(t)
	p, _ := f.scene.Prop(id)
	require.False(t, p.Rendering())
	require.True(t, f.mgr.IsVisible(id))
}
