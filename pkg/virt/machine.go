package virt

import (
	"errors"
	"fmt"
	"sync"
)

// Machine is a live virtual machine built from an immutable
// Configuration.
//
// Lifecycle calls are serialized by the state machine: while an
// operation is pending (a transitional state) no other operation may be
// issued, so completions for a machine arrive in the order the
// operations were issued. Each call returns an Operation; the caller
// waits on it rather than on any framework-owned thread.
type Machine struct {
	cfg    *Configuration
	bridge *bridge

	// newNative builds the foreign VM object. Swapped in tests.
	newNative func(*Configuration) (nativeMachine, error)

	mu       sync.Mutex
	state    State
	stateErr error         // terminal reason when state == StateError
	native   nativeMachine // held between Start and release
	done     chan error
}

// NewMachine creates a machine from cfg. The foreign VM object is not
// constructed until Start.
func NewMachine(cfg *Configuration) (*Machine, error) {
	if cfg == nil {
		return nil, errors.New("virt: nil configuration")
	}
	return &Machine{
		cfg:       cfg,
		bridge:    newBridge(),
		newNative: newNativeMachine,
		state:     StateNotStarted,
		done:      make(chan error, 1),
	}, nil
}

// Configuration returns the machine's immutable configuration.
func (m *Machine) Configuration() *Configuration { return m.cfg }

// State returns the current lifecycle state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err returns the terminal failure reason, or nil if the machine has not
// entered the error state.
func (m *Machine) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateErr
}

// Done reports arrival at a terminal state: nil when the machine reaches
// Stopped (including a guest-initiated shutdown), the failure reason
// when it reaches the error state. A machine restarted after Stopped
// delivers again for the new run.
func (m *Machine) Done() <-chan error { return m.done }

// Start boots the machine. Valid only from NotStarted or Stopped. The
// foreign VM object is created and all configured devices attached
// before the native start call is issued; the machine moves to Starting
// immediately and to Running or the error state when the native
// completion arrives.
func (m *Machine) Start() (*Operation, error) {
	m.mu.Lock()
	if m.state != StateNotStarted && m.state != StateStopped {
		st := m.state
		m.mu.Unlock()
		return nil, transitionErr(opStart, st)
	}
	op := m.bridge.register(opStart)
	native, err := m.newNative(m.cfg)
	if err != nil {
		nerr := &NativeError{Op: string(opStart), Err: err}
		m.failLocked(nerr)
		m.mu.Unlock()
		m.finish(op, nerr)
		return op, nil
	}
	m.native = native
	m.state = StateStarting
	m.mu.Unlock()

	go m.watchGuest(native)
	native.Start(m.completion(op))
	return op, nil
}

// Pause suspends a running machine.
func (m *Machine) Pause() (*Operation, error) {
	return m.issue(opPause, StatePausing, StateRunning)
}

// Resume continues a paused machine.
func (m *Machine) Resume() (*Operation, error) {
	return m.issue(opResume, StateResuming, StatePaused)
}

// Stop shuts the machine down. Valid from Running or Paused. On
// completion the foreign VM object and its device handles are released
// and the machine moves to Stopped.
func (m *Machine) Stop() (*Operation, error) {
	return m.issue(opStop, StateStopping, StateRunning, StatePaused)
}

// Close releases the foreign VM object if it is still held. It does not
// shut a running guest down gracefully; use Stop for that.
func (m *Machine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked()
	return nil
}

// issue moves the machine into the transitional state and forwards the
// matching native call. The native call is made outside the lock so a
// synchronous completion cannot deadlock; the transitional state already
// blocks any concurrent operation.
func (m *Machine) issue(kind opKind, pending State, from ...State) (*Operation, error) {
	m.mu.Lock()
	ok := false
	for _, s := range from {
		if m.state == s {
			ok = true
			break
		}
	}
	if !ok {
		st := m.state
		m.mu.Unlock()
		return nil, transitionErr(kind, st)
	}
	op := m.bridge.register(kind)
	native := m.native
	m.state = pending
	m.mu.Unlock()

	switch kind {
	case opPause:
		native.Pause(m.completion(op))
	case opResume:
		native.Resume(m.completion(op))
	case opStop:
		native.Stop(m.completion(op))
	}
	return op, nil
}

// completion adapts a native callback into a state transition plus an
// exactly-once delivery through the bridge.
func (m *Machine) completion(op *Operation) func(error) {
	return func(nativeErr error) {
		claimed, err := m.bridge.claim(op.id)
		if err != nil {
			// Duplicate or stray native callback.
			m.mu.Lock()
			m.failLocked(err)
			m.mu.Unlock()
			m.notifyDone(err)
			return
		}
		result, terminal := m.applyCompletion(op.kind, nativeErr)
		claimed.deliver(result)
		if terminal {
			m.notifyDone(result)
		}
	}
}

// finish delivers a result for an operation that never reached the
// native layer, such as a failed foreign object creation.
func (m *Machine) finish(op *Operation, result error) {
	claimed, err := m.bridge.claim(op.id)
	if err != nil {
		m.mu.Lock()
		m.failLocked(err)
		m.mu.Unlock()
		m.notifyDone(err)
		return
	}
	claimed.deliver(result)
	m.notifyDone(result)
}

// applyCompletion moves the state machine according to the completed
// operation. It returns the result to deliver to the waiter and whether
// a terminal state was reached.
func (m *Machine) applyCompletion(kind opKind, nativeErr error) (error, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if nativeErr != nil {
		nerr := &NativeError{Op: string(kind), Err: nativeErr}
		m.failLocked(nerr)
		return nerr, true
	}

	switch kind {
	case opStart, opResume:
		m.state = StateRunning
	case opPause:
		m.state = StatePaused
	case opStop:
		m.releaseLocked()
		m.state = StateStopped
		return nil, true
	}
	return nil, false
}

// watchGuest observes hypervisor-initiated state changes that arrive
// outside any pending operation, such as the guest powering itself off.
// It exits when the native machine is released and its event channel
// closes.
func (m *Machine) watchGuest(native nativeMachine) {
	for ev := range native.Events() {
		m.mu.Lock()
		if m.native != native {
			// Stale event from an already released machine.
			m.mu.Unlock()
			continue
		}
		if ev.err != nil {
			nerr := &NativeError{Op: "run", Err: ev.err}
			m.failLocked(nerr)
			m.mu.Unlock()
			m.notifyDone(nerr)
			continue
		}
		if m.state == StateRunning || m.state == StatePaused {
			m.releaseLocked()
			m.state = StateStopped
			m.mu.Unlock()
			m.notifyDone(nil)
			continue
		}
		m.mu.Unlock()
	}
}

// failLocked records the first terminal failure and releases the
// foreign VM object. Later failures keep the original reason.
func (m *Machine) failLocked(reason error) {
	if m.state == StateError {
		return
	}
	m.state = StateError
	m.stateErr = reason
	m.releaseLocked()
}

// releaseLocked frees the native VM exactly once.
func (m *Machine) releaseLocked() {
	if m.native != nil {
		m.native.Release()
		m.native = nil
	}
}

func (m *Machine) notifyDone(result error) {
	select {
	case m.done <- result:
	default:
		// The previous terminal result was never consumed.
	}
}

func transitionErr(kind opKind, from State) error {
	return fmt.Errorf("%w: cannot %s from state %s", ErrInvalidTransition, kind, from)
}
