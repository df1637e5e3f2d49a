package relay

// State is a step in the life of a relay connection.
type State int

const (
	StateConnecting State = iota
	StateAwaitingIdentity
	StateActive
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingIdentity:
		return "awaiting_identity"
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
