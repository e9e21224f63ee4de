package sim

import (
	"errors"
	"fmt"
)

// ErrLoadAborted is returned by load hooks when the user cancels an
// interactive configuration load.
var ErrLoadAborted = errors.New("load aborted by user")

// StopError requests a graceful simulation stop from inside an event
// callback, e.g. an emulator hitting a breakpoint. The loop exits without
// treating it as a failure.
type StopError struct {
	Reason string
}

func (e *StopError) Error() string {
	return "simulation stop requested: " + e.Reason
}

// EventExecutionError wraps an error escaping an event callback, annotated
// with the mote context when the failing event carried one.
type EventExecutionError struct {
	Event *TimeEvent
	Mote  Mote
	Err   error
}

func (e *EventExecutionError) Error() string {
	if e.Mote != nil {
		return fmt.Sprintf("event %s failed for mote %d: %v", e.Event, e.Mote.ID(), e.Err)
	}
	return fmt.Sprintf("event %s failed: %v", e.Event, e.Err)
}

func (e *EventExecutionError) Unwrap() error {
	return e.Err
}

// ConfigError reports a malformed or unresolvable configuration element.
// Loading aborts on the first ConfigError.
type ConfigError struct {
	Element string
	Err     error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config element %q: %v", e.Element, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
