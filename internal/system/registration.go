package system

import (
	"time"

	coresys "github.com/cullgate/cullgate/internal/core/system"
	"github.com/cullgate/cullgate/internal/cull"
	"go.uber.org/zap"
)

// RegistrationSystem moves one bounded batch of pending registrations into
// the registry and re-samples moving spheres. Phase Register.
type RegistrationSystem struct {
	mgr *cull.Manager
	log *zap.Logger
}

func NewRegistrationSystem(mgr *cull.Manager, log *zap.Logger) *RegistrationSystem {
	return &RegistrationSystem{mgr: mgr, log: log}
}

func (s *RegistrationSystem) Phase() coresys.Phase { return coresys.PhaseRegister }

func (s *RegistrationSystem) Update(_ time.Duration) error {
	drained, err := s.mgr.Drain()
	if err != nil {
		return err
	}
	refreshed := s.mgr.Refresh()
	if drained > 0 || refreshed > 0 {
		s.log.Debug("registration pass",
			zap.Int("drained", drained),
			zap.Int("refreshed", refreshed),
			zap.Int("pending", s.mgr.Pending()),
		)
	}
	return nil
}
