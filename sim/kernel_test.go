package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects dispatch labels and times on the simulation goroutine.
// Read it only after the loop has stopped.
type recorder struct {
	labels []string
	times  []int64
}

func (r *recorder) event(label string) *TimeEvent {
	return NewTimeEvent(label, func(t int64) error {
		r.labels = append(r.labels, label)
		r.times = append(r.times, t)
		return nil
	})
}

// newTicker returns a self-rescheduling event firing every period µs. A
// negative count means forever.
func newTicker(s *Simulation, period int64, count int) *TimeEvent {
	var ev *TimeEvent
	remaining := count
	ev = NewTimeEvent("tick", func(t int64) error {
		remaining--
		if remaining != 0 {
			s.ScheduleEvent(ev, t+period)
		}
		return nil
	})
	return ev
}

func TestKernelLoop_DispatchesSortedWithMonotoneClock(t *testing.T) {
	// GIVEN events scheduled out of submission order
	s := NewSimulation(nil)
	rec := &recorder{}
	s.ScheduleEvent(rec.event("late"), 900)
	s.ScheduleEvent(rec.event("early"), 100)
	s.ScheduleEvent(rec.event("mid"), 500)

	// WHEN the simulation steps one millisecond
	s.StepMillisecond()
	<-s.Done()

	// THEN dispatch order follows simulated time and the clock never regresses
	assert.Equal(t, []string{"early", "mid", "late"}, rec.labels)
	for i := 1; i < len(rec.times); i++ {
		assert.LessOrEqual(t, rec.times[i-1], rec.times[i])
	}
	assert.Equal(t, MILLISECOND, s.Time())
	assert.False(t, s.Running())
}

func TestStepMillisecond_RunsExactlyOneMillisecond(t *testing.T) {
	// GIVEN events inside and outside the (C, C+1000] window
	s := NewSimulation(nil)
	rec := &recorder{}
	s.ScheduleEvent(rec.event("in100"), 100)
	s.ScheduleEvent(rec.event("in500"), 500)
	s.ScheduleEvent(rec.event("in1000"), 1000)
	s.ScheduleEvent(rec.event("out1500"), 1500)

	s.StepMillisecond()
	<-s.Done()

	assert.Equal(t, []string{"in100", "in500", "in1000"}, rec.labels)
	assert.Equal(t, int64(1000), s.Time())
	// The out-of-window event is still pending for the next run.
	assert.True(t, s.Runnable())
}

func TestKernelLoop_PollActionsRunBeforeNextEvent(t *testing.T) {
	// GIVEN a queued event and a poll action submitted before start
	s := NewSimulation(nil)
	var order []string
	rec := NewTimeEvent("e", func(t int64) error {
		order = append(order, "event")
		return nil
	})
	s.ScheduleEvent(rec, 10)
	s.InvokeSimulationThread(func() { order = append(order, "poll") })

	s.StepMillisecond()
	<-s.Done()

	// THEN the poll action ran before the event dispatched
	require.Equal(t, []string{"poll", "event"}, order)
}

func TestScheduleExternal_DispatchedAfterNextLoopIteration(t *testing.T) {
	// GIVEN a running simulation whose first event waits for the test
	s := NewSimulation(nil)
	submitted := make(chan struct{})
	blocker := NewTimeEvent("blocker", func(t int64) error {
		<-submitted
		return nil
	})
	s.ScheduleEvent(blocker, 0)

	var fired int64 = -1
	external := NewTimeEvent("external", func(t int64) error {
		fired = t
		s.Stop(false)
		return nil
	})
	s.Start()

	// WHEN a foreign goroutine schedules an event, then the loop resumes
	s.eventQueue.ScheduleExternal(external, 500)
	close(submitted)

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("externally scheduled event never dispatched")
	}

	// THEN the very next iteration merged and dispatched it at its time
	assert.Equal(t, int64(500), fired)
	assert.Equal(t, int64(500), s.Time())
}

func TestStop_Block_JoinsLoop(t *testing.T) {
	s := NewSimulation(nil)
	s.ScheduleEvent(newTicker(s, 10, -1), 0)
	s.Start()
	require.True(t, s.Running())

	s.Stop(true)

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not exit after blocking stop")
	}
	assert.False(t, s.Running())
}

func TestStop_WhileStopped_IsNoOp(t *testing.T) {
	s := NewSimulation(nil)
	s.Stop(true)
	assert.False(t, s.Running())
}

func TestScheduleEvent_FromForeignGoroutineWhileRunning_Panics(t *testing.T) {
	s := NewSimulation(nil)
	s.ScheduleEvent(newTicker(s, 10, -1), 0)
	s.Start()
	defer func() {
		s.Stop(true)
		<-s.Done()
	}()

	require.Panics(t, func() {
		s.ScheduleEvent(noopEvent("intruder"), 100)
	})
}

func TestRemoveMote_CancelsFutureMoteEvents(t *testing.T) {
	// GIVEN a mote with an event queued at t=2000
	s := NewSimulation(nil)
	moteType, err := s.CreateMoteType(BasicMoteTypeTag)
	require.NoError(t, err)
	moteType.(*BasicMoteType).SetIdentifier("basic1")
	s.AddMoteType(moteType)
	mote, err := moteType.NewMote(s)
	require.NoError(t, err)
	s.AddMote(mote)

	moteFired := false
	moteEvent := NewMoteTimeEvent(mote, "moteEvent", func(t int64) error {
		moteFired = true
		return nil
	})
	s.ScheduleEvent(moteEvent, 2000)

	// WHEN the mote is removed at t=1000
	remover := NewTimeEvent("remove", func(t int64) error {
		s.RemoveMote(mote)
		return nil
	})
	s.ScheduleEvent(remover, 1000)
	stop := NewTimeEvent("STOP", func(t int64) error {
		s.Stop(false)
		return nil
	})
	s.ScheduleEvent(stop, 3000)
	s.Start()
	<-s.Done()

	// THEN the mote event never dispatched and the mote is gone
	assert.False(t, moteFired)
	assert.Equal(t, 0, s.MotesCount())
	assert.Nil(t, s.MoteWithID(mote.ID()))
}

func TestAddMote_WhileRunning_AppliedBetweenEvents(t *testing.T) {
	s := NewSimulation(nil)
	moteType := NewBasicMoteType("basic1")
	s.AddMoteType(moteType)
	mote, err := moteType.NewMote(s)
	require.NoError(t, err)

	added := make(chan struct{})
	sub := s.Observers.Add(func(u SimUpdate) {
		if u.Kind == MoteAdded {
			close(added)
		}
	})
	defer sub.Cancel()

	s.ScheduleEvent(newTicker(s, 10, -1), 0)
	s.Start()
	s.AddMote(mote)
	select {
	case <-added:
	case <-time.After(5 * time.Second):
		t.Fatal("mote was never added by the simulation goroutine")
	}
	s.Stop(true)
	<-s.Done()

	assert.Equal(t, 1, s.MotesCount())
	assert.Same(t, mote, s.MoteWithID(mote.ID()))
}

func TestAddMote_StaggersClockDrift(t *testing.T) {
	// GIVEN a startup delay window of 1000 ms
	s := NewSimulation(nil)
	moteType := NewBasicMoteType("basic1")
	s.AddMoteType(moteType)

	// WHEN motes are added while stopped
	for i := 0; i < 10; i++ {
		m, err := moteType.NewMote(s)
		require.NoError(t, err)
		s.AddMote(m)
	}

	// THEN every drift falls in (-maxStartupDelay, 0]
	for _, m := range s.Motes() {
		drift := m.(ClockMote).ClockDrift()
		assert.LessOrEqual(t, drift, int64(0))
		assert.Greater(t, drift, -s.MaxMoteStartupDelay())
	}
}

func TestEventError_StopsLoopWithMoteContext(t *testing.T) {
	s := NewSimulation(nil)
	moteType := NewBasicMoteType("basic1")
	mote, err := moteType.NewMote(s)
	require.NoError(t, err)
	s.AddMote(mote)

	var got *EventExecutionError
	s.SetEventErrorHandler(func(e *EventExecutionError) { got = e })

	failing := NewMoteTimeEvent(mote, "boom", func(t int64) error {
		panic("firmware fault")
	})
	s.ScheduleEvent(failing, 100)
	s.Start()
	<-s.Done()

	require.NotNil(t, got)
	assert.Same(t, mote, got.Mote)
	assert.Contains(t, got.Error(), "firmware fault")
	assert.False(t, s.Running())
}

func TestStopError_EndsLoopGracefully(t *testing.T) {
	s := NewSimulation(nil)
	handlerCalled := false
	s.SetEventErrorHandler(func(e *EventExecutionError) { handlerCalled = true })

	breakpoint := NewTimeEvent("breakpoint", func(t int64) error {
		return &StopError{Reason: "emulator breakpoint"}
	})
	s.ScheduleEvent(breakpoint, 100)
	s.Start()
	<-s.Done()

	assert.False(t, handlerCalled)
	assert.False(t, s.Running())
}

func TestRunnable_ReflectsQueueAndPolls(t *testing.T) {
	s := NewSimulation(nil)
	assert.False(t, s.Runnable())

	s.InvokeSimulationThread(func() {})
	assert.True(t, s.Runnable())
}

func TestObserverNotifications_StartStopAndMotes(t *testing.T) {
	s := NewSimulation(nil)
	var kinds []SimUpdateKind
	sub := s.Observers.Add(func(u SimUpdate) { kinds = append(kinds, u.Kind) })
	defer sub.Cancel()

	moteType := NewBasicMoteType("basic1")
	s.AddMoteType(moteType)
	mote, err := moteType.NewMote(s)
	require.NoError(t, err)
	s.AddMote(mote)
	s.RemoveMote(mote)

	s.ScheduleEvent(noopEvent("e"), 100)
	s.StepMillisecond()
	<-s.Done()

	assert.Equal(t, []SimUpdateKind{MoteTypeAdded, MoteAdded, MoteRemoved, SimStarted, SimStopped}, kinds)
}

func TestRemoveMoteType_RemovesItsMotes(t *testing.T) {
	s := NewSimulation(nil)
	moteType := NewBasicMoteType("basic1")
	s.AddMoteType(moteType)
	m1, _ := moteType.NewMote(s)
	s.AddMote(m1)
	m2, _ := moteType.NewMote(s)
	s.AddMote(m2)

	s.RemoveMoteType(moteType)

	assert.Equal(t, 0, s.MotesCount())
	assert.Empty(t, s.MoteTypes())
}

func TestSetRadioMedium_MigratesRegisteredMotes(t *testing.T) {
	s := NewSimulation(nil)
	moteType := NewBasicMoteType("basic1")
	s.AddMoteType(moteType)
	m, _ := moteType.NewMote(s)
	s.AddMote(m)

	first := NewNullRadioMedium(s)
	s.SetRadioMedium(first)
	require.Len(t, first.RegisteredMotes(), 1)

	second := NewNullRadioMedium(s)
	s.SetRadioMedium(second)

	assert.Empty(t, first.RegisteredMotes())
	assert.Len(t, second.RegisteredMotes(), 1)
}
