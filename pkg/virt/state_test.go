package virt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateNotStarted, "not-started"},
		{StateStarting, "starting"},
		{StateRunning, "running"},
		{StatePausing, "pausing"},
		{StatePaused, "paused"},
		{StateResuming, "resuming"},
		{StateStopping, "stopping"},
		{StateStopped, "stopped"},
		{StateError, "error"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, tt.state.String())
	}
}

func TestStateTransitional(t *testing.T) {
	transitional := map[State]bool{
		StateStarting: true,
		StatePausing:  true,
		StateResuming: true,
		StateStopping: true,
	}
	all := []State{
		StateNotStarted, StateStarting, StateRunning, StatePausing,
		StatePaused, StateResuming, StateStopping, StateStopped, StateError,
	}
	for _, s := range all {
		require.Equal(t, transitional[s], s.transitional(), "state %s", s)
	}
}
