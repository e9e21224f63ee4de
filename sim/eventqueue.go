package sim

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// queueTags hands out distinct tags so an event can detect which queue owns it.
var queueTags atomic.Uint64

// EventQueue is a time-ordered store of future events, implemented as a
// sorted singly-linked chain. Events scheduled for equal times dispatch in
// scheduling order.
//
// All operations except ScheduleExternal must run on the simulation
// goroutine. Foreign goroutines append to the pending list under the queue
// mutex and never touch the chain itself; the pop and peek paths merge
// pending entries before reading the head.
type EventQueue struct {
	tag   uint64
	first *TimeEvent
	count int

	mu         sync.Mutex
	pending    []pendingEvent
	hasPending atomic.Bool
}

// pendingEvent carries the requested time alongside the event so the deferred
// path never writes event fields owned by the simulation goroutine.
type pendingEvent struct {
	event *TimeEvent
	time  int64
}

// NewEventQueue returns an empty queue.
func NewEventQueue() *EventQueue {
	return &EventQueue{tag: queueTags.Add(1)}
}

// ScheduleInThread links the event at the sorted position for time t,
// unlinking it first if it is already scheduled here. Scheduling an event
// owned by a different queue is a programming error.
//
// Must run on the simulation goroutine.
func (q *EventQueue) ScheduleInThread(e *TimeEvent, t int64) {
	e.time = t
	q.link(e)
}

// ScheduleExternal schedules the event from any goroutine. An event already
// linked here is tombstoned rather than spliced out, and re-linked at its new
// time when the simulation goroutine merges the pending list.
func (q *EventQueue) ScheduleExternal(e *TimeEvent, t int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e.queue.Load() == q.tag {
		e.removed.Store(true)
	}
	q.pending = append(q.pending, pendingEvent{event: e, time: t})
	q.hasPending.Store(true)
}

// mergePending links deferred events in submission order. Runs on the
// simulation goroutine, under the queue mutex.
func (q *EventQueue) mergePending() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.hasPending.Store(false)
	for _, p := range q.pending {
		p.event.time = p.time
		q.link(p.event)
	}
	q.pending = q.pending[:0]
}

// link inserts the event after the last node with node.time <= e.time, which
// keeps equal-time events in scheduling order.
func (q *EventQueue) link(e *TimeEvent) {
	if owner := e.queue.Load(); owner != 0 {
		if owner != q.tag {
			panic(fmt.Sprintf("event %s is scheduled in another queue", e))
		}
		q.unlink(e)
	}

	if q.first == nil {
		q.first = e
		e.next = nil
	} else {
		pos := q.first
		last := q.first
		for pos != nil && pos.time <= e.time {
			last = pos
			pos = pos.next
		}
		if pos == q.first {
			e.next = pos
			q.first = e
		} else {
			e.next = pos
			last.next = e
		}
	}
	e.removed.Store(false)
	e.queue.Store(q.tag)
	q.count++
}

// unlink splices the event out of the chain. Returns false if it was not
// linked.
func (q *EventQueue) unlink(e *TimeEvent) bool {
	pos := q.first
	last := q.first
	for pos != nil && pos != e {
		last = pos
		pos = pos.next
	}
	if pos == nil {
		return false
	}
	if pos == q.first {
		q.first = pos.next
	} else {
		last.next = pos.next
	}
	pos.next = nil
	e.queue.Store(0)
	q.count--
	return true
}

// PopFirst merges pending events, then unlinks and returns the earliest live
// event. Tombstoned events are consumed without being returned. Returns nil
// when no live event remains.
//
// Must run on the simulation goroutine.
func (q *EventQueue) PopFirst() *TimeEvent {
	if q.hasPending.Load() {
		q.mergePending()
	}

	for {
		e := q.first
		if e == nil {
			return nil
		}
		q.first = e.next
		e.next = nil
		e.queue.Store(0)
		q.count--

		if e.removed.Load() {
			continue
		}
		return e
	}
}

// PeekFirst merges pending events and returns the head without unlinking it.
// The head may be tombstoned.
//
// Must run on the simulation goroutine.
func (q *EventQueue) PeekFirst() *TimeEvent {
	if q.hasPending.Load() {
		q.mergePending()
	}
	return q.first
}

// RemoveIf tombstones every linked event matching pred. Events stay linked
// until popped.
//
// Must run on the simulation goroutine.
func (q *EventQueue) RemoveIf(pred func(*TimeEvent) bool) {
	if q.hasPending.Load() {
		q.mergePending()
	}
	for e := q.first; e != nil; e = e.next {
		if pred(e) {
			e.removed.Store(true)
		}
	}
}

// Clear drains the queue, pending entries included.
//
// Must run on the simulation goroutine.
func (q *EventQueue) Clear() {
	for q.PopFirst() != nil {
	}
}

// IsEmpty reports whether no event is linked or pending.
func (q *EventQueue) IsEmpty() bool {
	return q.count == 0 && !q.hasPending.Load()
}

func (q *EventQueue) String() string {
	q.mu.Lock()
	npending := len(q.pending)
	q.mu.Unlock()
	return fmt.Sprintf("EventQueue with %d events", q.count+npending)
}
