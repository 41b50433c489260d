package system

import (
	"time"

	coresys "github.com/cullgate/cullgate/internal/core/system"
	"github.com/cullgate/cullgate/internal/cull"
)

// VisibilitySystem runs the per-tick visibility pass. Transitions are
// published synchronously from inside Update, so every subscriber has seen
// them before the Persist phase starts. Phase Evaluate.
type VisibilitySystem struct {
	mgr         *cull.Manager
	transitions uint64
	last        int
}

func NewVisibilitySystem(mgr *cull.Manager) *VisibilitySystem {
	return &VisibilitySystem{mgr: mgr}
}

func (s *VisibilitySystem) Phase() coresys.Phase { return coresys.PhaseEvaluate }

func (s *VisibilitySystem) Update(_ time.Duration) error {
	s.last = s.mgr.Evaluate()
	s.transitions += uint64(s.last)
	return nil
}

// Transitions returns the total number of visibility flips so far.
func (s *VisibilitySystem) Transitions() uint64 { return s.transitions }

// LastTick returns the flips of the most recent pass.
func (s *VisibilitySystem) LastTick() int { return s.last }
