package virt

import "sync"

// fakeNative scripts native completions for state machine tests. By
// default every operation completes successfully and synchronously; in
// manual mode the completion callbacks are captured so tests can fire
// them themselves, including more than once.
type fakeNative struct {
	mu        sync.Mutex
	manual    bool
	startErr  error
	pauseErr  error
	resumeErr error
	stopErr   error

	calls    []string
	captured []func(error)
	released int

	events chan guestEvent
}

func newFakeNative() *fakeNative {
	return &fakeNative{events: make(chan guestEvent, 4)}
}

// install points a machine's native factory at f and returns a counter
// of factory invocations.
func (f *fakeNative) install(m *Machine) *int {
	creations := new(int)
	m.newNative = func(*Configuration) (nativeMachine, error) {
		*creations++
		return f, nil
	}
	return creations
}

func (f *fakeNative) complete(name string, scripted error, c func(error)) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	if f.manual {
		f.captured = append(f.captured, c)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	c(scripted)
}

func (f *fakeNative) Start(c func(error))  { f.complete("start", f.startErr, c) }
func (f *fakeNative) Pause(c func(error))  { f.complete("pause", f.pauseErr, c) }
func (f *fakeNative) Resume(c func(error)) { f.complete("resume", f.resumeErr, c) }
func (f *fakeNative) Stop(c func(error))   { f.complete("stop", f.stopErr, c) }

func (f *fakeNative) Events() <-chan guestEvent { return f.events }

func (f *fakeNative) Release() error {
	f.mu.Lock()
	f.released++
	if f.released == 1 {
		close(f.events)
	}
	f.mu.Unlock()
	return nil
}

func (f *fakeNative) releaseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

func (f *fakeNative) callNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fire invokes the i-th captured completion with err.
func (f *fakeNative) fire(i int, err error) {
	f.mu.Lock()
	c := f.captured[i]
	f.mu.Unlock()
	c(err)
}
