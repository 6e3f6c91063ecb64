package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionHappyPath(t *testing.T) {
	s := StateIdle
	steps := []struct {
		event Event
		want  State
	}{
		{EventStart, StateRequestingPermission},
		{EventGranted, StateRecording},
		{EventStop, StateStopping},
		{EventReleased, StateTranscribing},
		{EventTranscribed, StateDelivered},
		{EventReset, StateIdle},
	}

	for _, step := range steps {
		next, err := Transition(s, step.event)
		require.NoError(t, err)
		require.Equal(t, step.want, next)
		s = next
	}
}

func TestTransitionFailFromActiveStatesGoesFailed(t *testing.T) {
	states := []State{StateRequestingPermission, StateRecording, StateStopping, StateTranscribing, StateFailed}
	for _, state := range states {
		next, err := Transition(state, EventFail)
		require.NoError(t, err)
		require.Equal(t, StateFailed, next)
	}
}

func TestTransitionAbandonFromAnyStateGoesIdle(t *testing.T) {
	states := []State{
		StateIdle, StateRequestingPermission, StateRecording, StateStopping,
		StateTranscribing, StateDelivered, StateFailed,
	}
	for _, state := range states {
		next, err := Transition(state, EventAbandon)
		require.NoError(t, err)
		require.Equal(t, StateIdle, next)
	}
}

func TestTransitionMatrixInvalidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		event   Event
		want    State
		wantErr bool
	}{
		{name: "idle stop invalid", state: StateIdle, event: EventStop, want: StateIdle, wantErr: true},
		{name: "idle fail invalid", state: StateIdle, event: EventFail, want: StateIdle, wantErr: true},
		{name: "requesting stop invalid", state: StateRequestingPermission, event: EventStop, want: StateRequestingPermission, wantErr: true},
		{name: "recording start invalid", state: StateRecording, event: EventStart, want: StateRecording, wantErr: true},
		{name: "recording transcribed invalid", state: StateRecording, event: EventTranscribed, want: StateRecording, wantErr: true},
		{name: "transcribing start invalid", state: StateTranscribing, event: EventStart, want: StateTranscribing, wantErr: true},
		{name: "transcribing stop invalid", state: StateTranscribing, event: EventStop, want: StateTranscribing, wantErr: true},
		{name: "delivered start invalid", state: StateDelivered, event: EventStart, want: StateDelivered, wantErr: true},
		{name: "failed start invalid", state: StateFailed, event: EventStart, want: StateFailed, wantErr: true},
		{name: "failed reset valid", state: StateFailed, event: EventReset, want: StateIdle, wantErr: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Transition(tc.state, tc.event)
			require.Equal(t, tc.want, next)
			if tc.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), "invalid transition")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTransitionUnknownState(t *testing.T) {
	next, err := Transition(State("mystery"), EventStart)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown state")
	require.Equal(t, State("mystery"), next)
}

func TestTerminal(t *testing.T) {
	require.True(t, Terminal(StateIdle))
	require.True(t, Terminal(StateDelivered))
	require.True(t, Terminal(StateFailed))
	require.False(t, Terminal(StateRecording))
	require.False(t, Terminal(StateTranscribing))
}
