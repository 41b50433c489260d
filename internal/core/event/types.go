package event

import "github.com/cullgate/cullgate/internal/core/ecs"

// Registered fires when an entity enters the evaluated set.
type Registered struct {
	EntityID ecs.EntityID
	Slot     int
}

// Unregistered fires when an entity leaves the evaluated set. The handle must
// not be assumed valid by subscribers after this event.
type Unregistered struct {
	EntityID ecs.EntityID
}

// VisibilityChanged fires once per real flip of an entity's visibility flag.
type VisibilityChanged struct {
	EntityID ecs.EntityID
	Visible  bool
}
