package system

import (
	"time"

	"github.com/cullgate/cullgate/internal/core/ecs"
	coresys "github.com/cullgate/cullgate/internal/core/system"
)

// CleanupSystem flushes the deferred entity destruction queue at tick end.
// Despawned props are detached from the manager here. Phase Cleanup.
type CleanupSystem struct {
	world     *ecs.World
	destroyed int
}

func NewCleanupSystem(world *ecs.World) *CleanupSystem {
	return &CleanupSystem{world: world}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) error {
	s.destroyed += s.world.FlushDestroyQueue()
	return nil
}

// Destroyed returns the running total of flushed entities.
func (s *CleanupSystem) Destroyed() int { return s.destroyed }
