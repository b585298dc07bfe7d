package virt

// guestEvent reports a state change originating inside the hypervisor,
// such as the guest powering itself off. A nil err is a clean
// guest-initiated stop.
type guestEvent struct {
	err error
}

// nativeMachine is the boundary to the platform hypervisor. Completion
// callbacks are invoked on framework-owned goroutines; implementations
// must call each completion exactly once.
//
// The platform factory newNativeMachine builds the foreign VM object
// with all devices attached, immediately before use. Machine releases it
// exactly once via Release.
type nativeMachine interface {
	// Start boots the configured machine.
	Start(complete func(error))

	// Pause suspends a running machine.
	Pause(complete func(error))

	// Resume continues a paused machine.
	Resume(complete func(error))

	// Stop terminates the machine.
	Stop(complete func(error))

	// Events delivers guest-initiated state changes. The channel is
	// closed after Release.
	Events() <-chan guestEvent

	// Release frees the foreign VM object. Called exactly once.
	Release() error
}
