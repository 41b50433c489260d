package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput    Phase = iota // 0: move viewpoints, apply config reloads
	PhaseRegister              // 1: drain pending registrations, refresh moving spheres
	PhaseEvaluate              // 2: visibility pass + event dispatch
	PhasePersist               // 3: journal flush
	PhaseCleanup               // 4: destroy queued entities
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhaseRegister:
		return "register"
	case PhaseEvaluate:
		return "evaluate"
	case PhasePersist:
		return "persist"
	case PhaseCleanup:
		return "cleanup"
	}
	return "unknown"
}

// System is the interface every tick system implements.
// A non-nil error from Update aborts the tick and is returned by Runner.Tick.
type System interface {
	Phase() Phase
	Update(dt time.Duration) error
}
