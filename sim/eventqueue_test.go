package sim

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopEvent(label string) *TimeEvent {
	return NewTimeEvent(label, func(t int64) error { return nil })
}

func TestEventQueue_PopOrder_SortedByTime(t *testing.T) {
	// GIVEN events inserted at random times
	q := NewEventQueue()
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		q.ScheduleInThread(noopEvent("e"), rng.Int63n(1000))
	}

	// WHEN all events are popped
	// THEN times are non-decreasing
	prev := int64(-1)
	n := 0
	for e := q.PopFirst(); e != nil; e = q.PopFirst() {
		if e.Time() < prev {
			t.Fatalf("pop order regressed: %d after %d", e.Time(), prev)
		}
		prev = e.Time()
		n++
	}
	assert.Equal(t, 200, n)
}

func TestEventQueue_EqualTimes_FIFO(t *testing.T) {
	// GIVEN events scheduled at 1000, 500, 1000 in that order
	q := NewEventQueue()
	first1000 := noopEvent("first1000")
	at500 := noopEvent("at500")
	second1000 := noopEvent("second1000")
	q.ScheduleInThread(first1000, 1000)
	q.ScheduleInThread(at500, 500)
	q.ScheduleInThread(second1000, 1000)

	// THEN pop order is 500, 1000(first), 1000(second)
	assert.Same(t, at500, q.PopFirst())
	assert.Same(t, first1000, q.PopFirst())
	assert.Same(t, second1000, q.PopFirst())
	assert.Nil(t, q.PopFirst())
}

func TestEventQueue_Tombstone_ConsumedWithoutReturn(t *testing.T) {
	q := NewEventQueue()
	doomed := noopEvent("doomed")
	keeper := noopEvent("keeper")
	q.ScheduleInThread(doomed, 10)
	q.ScheduleInThread(keeper, 20)

	doomed.Remove()

	// Tombstoned head is consumed silently; the live event comes out.
	got := q.PopFirst()
	require.Same(t, keeper, got)
	assert.Nil(t, q.PopFirst())
	assert.False(t, doomed.Scheduled())
}

func TestEventQueue_RescheduleLinkedEvent_MovesIt(t *testing.T) {
	q := NewEventQueue()
	e := noopEvent("e")
	other := noopEvent("other")
	q.ScheduleInThread(e, 100)
	q.ScheduleInThread(other, 200)

	// Rescheduling unlinks first: the event must not dispatch twice.
	q.ScheduleInThread(e, 300)

	assert.Same(t, other, q.PopFirst())
	assert.Same(t, e, q.PopFirst())
	assert.Nil(t, q.PopFirst())
}

func TestEventQueue_ScheduleExternal_VisibleAfterMerge(t *testing.T) {
	q := NewEventQueue()
	e := noopEvent("e")

	done := make(chan struct{})
	go func() {
		q.ScheduleExternal(e, 42)
		close(done)
	}()
	<-done

	got := q.PopFirst()
	require.Same(t, e, got)
	assert.Equal(t, int64(42), got.Time())
}

func TestEventQueue_ScheduleExternal_PreservesSubmissionOrderForEqualTimes(t *testing.T) {
	q := NewEventQueue()
	a := noopEvent("a")
	b := noopEvent("b")
	c := noopEvent("c")
	q.ScheduleExternal(a, 7)
	q.ScheduleExternal(b, 7)
	q.ScheduleExternal(c, 7)

	assert.Same(t, a, q.PopFirst())
	assert.Same(t, b, q.PopFirst())
	assert.Same(t, c, q.PopFirst())
}

func TestEventQueue_ScheduleExternal_RelinksLinkedEvent(t *testing.T) {
	// GIVEN an event linked at time 100
	q := NewEventQueue()
	e := noopEvent("e")
	q.ScheduleInThread(e, 100)

	// WHEN it is rescheduled externally for time 500
	q.ScheduleExternal(e, 500)

	// THEN it dispatches exactly once, at the new time
	got := q.PopFirst()
	require.Same(t, e, got)
	assert.Equal(t, int64(500), got.Time())
	assert.Nil(t, q.PopFirst())
}

func TestEventQueue_CrossQueueScheduling_Panics(t *testing.T) {
	q1 := NewEventQueue()
	q2 := NewEventQueue()
	e := noopEvent("e")
	q1.ScheduleInThread(e, 10)

	require.Panics(t, func() {
		q2.ScheduleInThread(e, 20)
	})
}

func TestEventQueue_RemoveIf_TombstonesMatches(t *testing.T) {
	q := NewEventQueue()
	m := &BasicMote{id: 1}
	moteEvent := NewMoteTimeEvent(m, "mote", func(t int64) error { return nil })
	plain := noopEvent("plain")
	q.ScheduleInThread(moteEvent, 10)
	q.ScheduleInThread(plain, 20)

	q.RemoveIf(func(ev *TimeEvent) bool { return ev.Mote() == m })

	assert.Same(t, plain, q.PopFirst())
	assert.Nil(t, q.PopFirst())
}

func TestEventQueue_Clear_DrainsLinkedAndPending(t *testing.T) {
	q := NewEventQueue()
	q.ScheduleInThread(noopEvent("a"), 1)
	q.ScheduleExternal(noopEvent("b"), 2)

	q.Clear()

	assert.True(t, q.IsEmpty())
	assert.Nil(t, q.PopFirst())
}

func TestEventQueue_PeekFirst_MergesWithoutUnlinking(t *testing.T) {
	q := NewEventQueue()
	e := noopEvent("e")
	q.ScheduleExternal(e, 5)

	peeked := q.PeekFirst()
	require.Same(t, e, peeked)
	assert.True(t, e.Scheduled())
	assert.Same(t, e, q.PopFirst())
}
