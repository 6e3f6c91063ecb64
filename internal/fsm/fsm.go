// Package fsm holds the recording session transition table.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle                 State = "idle"
	StateRequestingPermission State = "requesting_permission"
	StateRecording            State = "recording"
	StateStopping             State = "stopping"
	StateTranscribing         State = "transcribing"
	StateDelivered            State = "delivered"
	StateFailed               State = "failed"
)

const (
	EventStart       Event = "start"
	EventGranted     Event = "granted"
	EventStop        Event = "stop"
	EventReleased    Event = "released"
	EventTranscribed Event = "transcribed"
	EventFail        Event = "fail"
	EventAbandon     Event = "abandon"
	EventReset       Event = "reset"
)

// Terminal reports whether a session in state s has finished its attempt.
func Terminal(s State) bool {
	return s == StateIdle || s == StateDelivered || s == StateFailed
}

// Transition returns the state reached by applying event to current.
func Transition(current State, event Event) (State, error) {
	if !known(current) {
		return current, fmt.Errorf("unknown state %q", current)
	}
	switch event {
	case EventAbandon:
		return StateIdle, nil
	case EventFail:
		if current == StateIdle || current == StateDelivered {
			return current, invalidTransition(current, event)
		}
		return StateFailed, nil
	}

	switch current {
	case StateIdle:
		if event == EventStart {
			return StateRequestingPermission, nil
		}
	case StateRequestingPermission:
		if event == EventGranted {
			return StateRecording, nil
		}
	case StateRecording:
		if event == EventStop {
			return StateStopping, nil
		}
	case StateStopping:
		if event == EventReleased {
			return StateTranscribing, nil
		}
	case StateTranscribing:
		if event == EventTranscribed {
			return StateDelivered, nil
		}
	case StateDelivered, StateFailed:
		if event == EventReset {
			return StateIdle, nil
		}
	}
	return current, invalidTransition(current, event)
}

func known(s State) bool {
	switch s {
	case StateIdle, StateRequestingPermission, StateRecording, StateStopping,
		StateTranscribing, StateDelivered, StateFailed:
		return true
	default:
		return false
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
