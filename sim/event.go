package sim

import (
	"fmt"
	"sync/atomic"
)

// TimeEvent is the unit of work for the simulation loop: a callback bound to
// a simulated microsecond. Events are single-owner values; the queue linkage
// fields (next, queue tag) are mutated only on the simulation goroutine,
// except for the removed flag and queue tag reads performed under the queue
// mutex by the deferred scheduling path.
type TimeEvent struct {
	time int64
	next *TimeEvent

	// queue holds the owning queue's tag, 0 while unscheduled. It exists
	// only to detect double-scheduling across queues.
	queue atomic.Uint64

	// removed marks a logical deletion; the pop path consumes flagged
	// events without firing them.
	removed atomic.Bool

	mote  Mote
	label string
	fire  func(t int64) error
}

// NewTimeEvent returns an event firing fn when dispatched. The label is used
// in logs and dispatch traces.
func NewTimeEvent(label string, fn func(t int64) error) *TimeEvent {
	return &TimeEvent{label: label, fire: fn}
}

// NewMoteTimeEvent returns an event carrying mote context. RemoveMote cancels
// all queued events carrying the removed mote.
func NewMoteTimeEvent(m Mote, label string, fn func(t int64) error) *TimeEvent {
	return &TimeEvent{mote: m, label: label, fire: fn}
}

// Time returns the simulated microsecond the event is scheduled for. Only
// meaningful while the event is scheduled.
func (e *TimeEvent) Time() int64 {
	return e.time
}

// Mote returns the mote context, or nil for kernel events.
func (e *TimeEvent) Mote() Mote {
	return e.mote
}

// Scheduled reports whether the event is linked in a queue.
func (e *TimeEvent) Scheduled() bool {
	return e.queue.Load() != 0
}

// Remove tombstones the event: it stays linked until popped, but will not
// fire.
func (e *TimeEvent) Remove() {
	e.removed.Store(true)
}

func (e *TimeEvent) String() string {
	if e.label != "" {
		return fmt.Sprintf("%s@%d", e.label, e.time)
	}
	return fmt.Sprintf("event@%d", e.time)
}
