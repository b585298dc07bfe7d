package virt

// State is the lifecycle state of a Machine.
type State int

const (
	// StateNotStarted is the initial state before Start is called.
	StateNotStarted State = iota

	// StateStarting means the native start call is in flight.
	StateStarting

	// StateRunning means the guest is executing.
	StateRunning

	// StatePausing means the native pause call is in flight.
	StatePausing

	// StatePaused means the guest is suspended.
	StatePaused

	// StateResuming means the native resume call is in flight.
	StateResuming

	// StateStopping means the native stop call is in flight.
	StateStopping

	// StateStopped means the guest has shut down and the foreign VM
	// object has been released. A stopped machine may be started again.
	StateStopped

	// StateError is terminal: a native failure or protocol violation
	// occurred. The reason is available via Machine.Err.
	StateError
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StatePausing:
		return "pausing"
	case StatePaused:
		return "paused"
	case StateResuming:
		return "resuming"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// transitional reports whether a native operation is pending in s.
// Transitional states serialize the machine: no second operation may be
// issued until the pending one completes.
func (s State) transitional() bool {
	switch s {
	case StateStarting, StatePausing, StateResuming, StateStopping:
		return true
	}
	return false
}
