package system

import (
	"time"

	coresys "github.com/cullgate/cullgate/internal/core/system"
	"github.com/cullgate/cullgate/internal/cull"
	"github.com/cullgate/cullgate/internal/world"
	"go.uber.org/zap"
)

// ViewpointMover computes a viewpoint's next position.
type ViewpointMover interface {
	MoveViewpoint(fn string, vp cull.Viewpoint, tick uint64) (cull.Vec3, error)
}

// ViewpointSystem advances moving props and scripted viewpoints before the
// registration and evaluation phases read them. Phase Input.
type ViewpointSystem struct {
	mgr     *cull.Manager
	scene   *world.Scene
	mover   ViewpointMover
	scripts map[string]string // viewpoint name -> lua function
	log     *zap.Logger
	tick    uint64
	failed  map[string]bool
}

func NewViewpointSystem(mgr *cull.Manager, scene *world.Scene, mover ViewpointMover, log *zap.Logger) *ViewpointSystem {
	return &ViewpointSystem{
		mgr:     mgr,
		scene:   scene,
		mover:   mover,
		scripts: make(map[string]string),
		log:     log,
		failed:  make(map[string]bool),
	}
}

// SetScripts replaces the viewpoint to script bindings, e.g. after a reload.
func (s *ViewpointSystem) SetScripts(scripts map[string]string) {
	s.scripts = make(map[string]string, len(scripts))
	for name, fn := range scripts {
		if fn != "" {
			s.scripts[name] = fn
		}
	}
	clear(s.failed)
}

func (s *ViewpointSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *ViewpointSystem) Update(dt time.Duration) error {
	s.tick++
	if s.scene != nil {
		s.scene.Step(dt)
	}
	if s.mover == nil || len(s.scripts) == 0 {
		return nil
	}

	vps := s.mgr.Settings().Viewpoints
	moved := false
	for i := range vps {
		fn, ok := s.scripts[vps[i].Name]
		if !ok || s.failed[vps[i].Name] {
			continue
		}
		pos, err := s.mover.MoveViewpoint(fn, vps[i], s.tick)
		if err != nil {
			// stop calling a broken script; the viewpoint stays where it is
			s.failed[vps[i].Name] = true
			s.log.Warn("viewpoint script disabled",
				zap.String("viewpoint", vps[i].Name),
				zap.String("script", fn),
				zap.Error(err),
			)
			continue
		}
		vps[i].Position = pos
		moved = true
	}
	if moved {
		s.mgr.SetViewpoints(vps)
	}
	return nil
}
