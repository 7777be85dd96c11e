package session

// State enumerates the capture lifecycle.
type State int

const (
	StateIdle State = iota
	StateRequestingPermission
	StateInitializing
	StateActive
	StateStopped
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequestingPermission:
		return "requesting-permission"
	case StateInitializing:
		return "initializing"
	case StateActive:
		return "active"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is the lifecycle state together with the failure cause. Err is
// non-nil exactly when State is StateFailed, so "failed without a reason" is
// unrepresentable in practice.
type Status struct {
	State State
	Err   error
}
