package device

import "fmt"

// State is a controller state.
type State int

const (
	StateBoot State = iota
	StateConnecting
	StateProvisioning
	StateRunning
	StateReset
)

func (s State) String() string {
	switch s {
	case StateBoot:
		return "boot"
	case StateConnecting:
		return "connecting"
	case StateProvisioning:
		return "provisioning"
	case StateRunning:
		return "running"
	case StateReset:
		return "reset"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
