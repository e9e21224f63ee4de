package sim

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/petermattis/goid"
	"github.com/sirupsen/logrus"

	"github.com/wsn-sim/wsn-sim/sim/trace"
)

// Simulated time units, in microseconds.
const (
	MICROSECOND int64 = 1
	MILLISECOND int64 = 1000 * MICROSECOND
)

const defaultRandomSeed int64 = 123456

// stopJoinTimeout bounds how long a blocking Stop waits for the loop to
// finish; the kernel may be inside a long user callback.
const stopJoinTimeout = 100 * time.Millisecond

// runState is the per-run identity of the simulation goroutine. The kernel
// publishes it atomically so observers never see a running flag and a
// goroutine handle from different runs.
type runState struct {
	goroutineID atomic.Int64
	done        chan struct{}
}

// Simulation owns the simulated clock, the event queue, the poll channel, the
// speed governor, and the mote registries. One goroutine, spawned by Start,
// executes all events sequentially; everything reachable from event callbacks
// is exclusive to that goroutine.
type Simulation struct {
	eventQueue *EventQueue
	polls      pollChannel

	// currentSimulationTime is in microseconds, kernel-goroutine-exclusive
	// while running.
	currentSimulationTime int64

	state         atomic.Pointer[runState]
	stopRequested atomic.Bool

	lastStartRealTime       int64
	lastStartSimulationTime int64

	// Speed governor state, kernel-goroutine-exclusive while running.
	speedLimitNone         bool
	speedLimit             float64
	speedLimitLastSimtime  int64
	speedLimitLastRealtime int64
	delayEvent             *TimeEvent

	title string

	motes     []Mote
	moteTypes []MoteType

	radioMedium  RadioMedium
	eventCentral *EventCentral

	randomSeed          int64
	randomSeedGenerated bool
	maxMoteStartupDelay int64
	rand                *SafeRand

	registry        *Registry
	moteTypeTags    map[MoteType]string
	radioMediumTags map[RadioMedium]string

	// Observers receives lifecycle notifications.
	Observers Observers[SimUpdate]

	metrics   *Metrics
	traceSink *trace.SimulationTrace
	dispatchN int64

	eventErrorHandler func(err *EventExecutionError)
}

// NewSimulation creates a stopped simulation with default settings. A nil
// registry selects DefaultRegistry.
func NewSimulation(registry *Registry) *Simulation {
	if registry == nil {
		registry = DefaultRegistry()
	}
	s := &Simulation{
		eventQueue:          NewEventQueue(),
		speedLimitNone:      true,
		eventCentral:        newEventCentral(),
		randomSeed:          defaultRandomSeed,
		maxMoteStartupDelay: 1000 * MILLISECOND,
		registry:            registry,
		moteTypeTags:        make(map[MoteType]string),
		radioMediumTags:     make(map[RadioMedium]string),
	}
	s.rand = newSafeRand(s, s.randomSeed)
	s.delayEvent = NewTimeEvent("DELAY", s.governorTick)
	s.eventErrorHandler = func(err *EventExecutionError) {
		logrus.Errorf("simulation stopped due to error: %v", err)
	}
	return s
}

// Running reports whether the simulation loop is live.
func (s *Simulation) Running() bool {
	return s.state.Load() != nil
}

// Runnable reports whether starting the loop would make progress: it is
// already running, or an event or poll action is pending.
func (s *Simulation) Runnable() bool {
	if s.Running() || !s.eventQueue.IsEmpty() {
		return true
	}
	return !s.polls.isEmpty()
}

// IsSimulationThread reports whether the caller runs on the simulation
// goroutine.
func (s *Simulation) IsSimulationThread() bool {
	st := s.state.Load()
	return st != nil && st.goroutineID.Load() == goid.Get()
}

// assertSimulationContext panics unless the caller may touch kernel-owned
// state: on the simulation goroutine, or any goroutine while stopped.
func (s *Simulation) assertSimulationContext() {
	if s.Running() && !s.IsSimulationThread() {
		panic("kernel state accessed from non-simulation goroutine while running")
	}
}

// Start spawns the simulation goroutine. No-op if already running.
func (s *Simulation) Start() {
	if s.Running() {
		return
	}
	s.stopRequested.Store(false)
	st := &runState{done: make(chan struct{})}
	s.state.Store(st)
	go s.run(st)
}

// Stop requests the loop to exit after the current event. With block set, a
// caller off the simulation goroutine waits up to 100 ms for the loop to
// finish; the simulation goroutine itself returns immediately.
func (s *Simulation) Stop(block bool) {
	st := s.state.Load()
	if st == nil {
		return
	}
	s.stopRequested.Store(true)

	if block {
		if s.IsSimulationThread() {
			return
		}
		select {
		case <-st.done:
		case <-time.After(stopJoinTimeout):
		}
	}
}

// Done returns a channel closed when the current run's loop exits. Returns a
// closed channel while stopped.
func (s *Simulation) Done() <-chan struct{} {
	st := s.state.Load()
	if st == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return st.done
}

// StepMillisecond runs the stopped simulation for exactly one simulated
// millisecond: a stop sentinel is scheduled at clock+1 ms, after all events
// already queued for that instant, and the loop is started.
func (s *Simulation) StepMillisecond() {
	if s.Running() {
		return
	}
	stopEvent := NewTimeEvent("STOP", func(t int64) error {
		s.Stop(true)
		return nil
	})
	s.ScheduleEvent(stopEvent, s.Time()+MILLISECOND)
	s.Start()
}

// ScheduleEvent schedules the event for simulated time t. While running it
// may only be called from the simulation goroutine; foreign goroutines hand
// work over via InvokeSimulationThread instead.
func (s *Simulation) ScheduleEvent(e *TimeEvent, t int64) {
	if s.Running() && !s.IsSimulationThread() {
		panic(fmt.Sprintf("scheduling event from non-simulation goroutine: %s", e))
	}
	s.eventQueue.ScheduleInThread(e, t)
}

// InvokeSimulationThread queues an action to run on the simulation goroutine
// between events. Poll actions are prioritized over simulation events. Safe
// from any goroutine.
func (s *Simulation) InvokeSimulationThread(fn func()) {
	s.polls.submit(fn)
}

// run is the kernel loop. It executes on the simulation goroutine only.
func (s *Simulation) run(st *runState) {
	st.goroutineID.Store(goid.Get())
	defer close(st.done)

	now := time.Now().UnixMilli()
	s.lastStartRealTime = now
	s.lastStartSimulationTime = s.TimeMillis()
	s.speedLimitLastRealtime = now
	s.speedLimitLastSimtime = s.TimeMillis()
	logrus.Debugf("simulation started, system time: %d", now)

	s.Observers.Notify(SimUpdate{Kind: SimStarted})

	var failure *EventExecutionError
	for {
		s.polls.drain()

		ev := s.eventQueue.PopFirst()
		if ev == nil {
			panic("ran out of events in event queue")
		}
		if ev.time < s.currentSimulationTime {
			panic(fmt.Sprintf("event from the past: %s, clock %d", ev, s.currentSimulationTime))
		}
		s.currentSimulationTime = ev.time

		err := s.dispatch(ev)
		if err != nil {
			if stop, ok := asStopError(err); ok {
				logrus.Infof("simulation stopped by event %s: %s", ev, stop.Reason)
				break
			}
			failure = &EventExecutionError{Event: ev, Mote: ev.mote, Err: err}
			break
		}

		if s.stopRequested.Load() {
			realDuration := time.Now().UnixMilli() - s.lastStartRealTime
			simDuration := s.TimeMillis() - s.lastStartSimulationTime
			speedup := float64(simDuration) / float64(max(1, realDuration))
			logrus.Infof("runtime: %d ms, simulated time: %d ms, speedup: %.3f",
				realDuration, simDuration, speedup)
			if s.metrics != nil {
				s.metrics.Speedup.Set(speedup)
			}
			break
		}
	}

	s.stopRequested.Store(false)
	s.state.Store(nil)

	if failure != nil {
		s.eventErrorHandler(failure)
	}
	s.Observers.Notify(SimUpdate{Kind: SimStopped})
}

// dispatch fires one event, converting callback panics into errors so a
// misbehaving collaborator cannot take the process down in interactive use.
func (s *Simulation) dispatch(ev *TimeEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("event callback panic: %v", r)
			}
		}
	}()

	logrus.Debugf("[%10d us] executing %s", s.currentSimulationTime, ev)
	if s.traceSink != nil {
		moteID := -1
		if ev.mote != nil {
			moteID = ev.mote.ID()
		}
		s.traceSink.RecordDispatch(trace.DispatchRecord{
			Seq:    s.dispatchN,
			Time:   s.currentSimulationTime,
			Label:  ev.label,
			MoteID: moteID,
		})
	}
	s.dispatchN++
	if s.metrics != nil {
		s.metrics.EventsDispatched.Inc()
		s.metrics.SimulatedTime.Set(float64(s.currentSimulationTime))
	}

	return ev.fire(s.currentSimulationTime)
}

func asStopError(err error) (*StopError, bool) {
	var stop *StopError
	if errors.As(err, &stop) {
		return stop, true
	}
	return nil, false
}

// SetEventErrorHandler installs the policy for unhandled event-callback
// errors. The headless runner exits non-zero; interactive embedders surface
// the error to their UI sink. The handler runs on the simulation goroutine
// after the loop has wound down.
func (s *Simulation) SetEventErrorHandler(fn func(err *EventExecutionError)) {
	if fn != nil {
		s.eventErrorHandler = fn
	}
}

// SetTrace attaches a dispatch trace recording every executed event. Attach
// only while stopped.
func (s *Simulation) SetTrace(t *trace.SimulationTrace) {
	s.traceSink = t
}

// SetMetrics attaches a metrics collector. Attach only while stopped.
func (s *Simulation) SetMetrics(m *Metrics) {
	s.metrics = m
}

// Time returns the current simulated time in microseconds.
func (s *Simulation) Time() int64 {
	return s.currentSimulationTime
}

// TimeMillis returns the current simulated time rounded down to milliseconds.
func (s *Simulation) TimeMillis() int64 {
	return s.currentSimulationTime / MILLISECOND
}

// SetTime overrides the simulated clock. Only sensible while stopped.
func (s *Simulation) SetTime(t int64) {
	s.assertSimulationContext()
	s.currentSimulationTime = t
	s.Observers.Notify(SimUpdate{Kind: ConfigChanged})
}

// Title returns the simulation title.
func (s *Simulation) Title() string {
	return s.title
}

// SetTitle sets the simulation title.
func (s *Simulation) SetTitle(title string) {
	s.title = title
}

// RandomSeed returns the current seed.
func (s *Simulation) RandomSeed() int64 {
	return s.randomSeed
}

// SetRandomSeed reseeds the simulation's random source.
func (s *Simulation) SetRandomSeed(seed int64) {
	s.randomSeed = seed
	s.rand.SetSeed(seed)
	logrus.Infof("simulation random seed: %d", seed)
}

// SetRandomSeedGenerated records whether the seed was auto-generated at load.
func (s *Simulation) SetRandomSeedGenerated(generated bool) {
	s.randomSeedGenerated = generated
}

// RandomSeedGenerated reports whether the seed was auto-generated at load.
func (s *Simulation) RandomSeedGenerated() bool {
	return s.randomSeedGenerated
}

// Rand returns the simulation's deterministic random source.
func (s *Simulation) Rand() *SafeRand {
	return s.rand
}

// MaxMoteStartupDelay returns the upper bound on randomized mote startup
// drift, in microseconds.
func (s *Simulation) MaxMoteStartupDelay() int64 {
	return s.maxMoteStartupDelay
}

// SetMaxMoteStartupDelay sets the startup drift bound. Negative values clamp
// to zero.
func (s *Simulation) SetMaxMoteStartupDelay(d int64) {
	s.maxMoteStartupDelay = max(0, d)
}

// EventCentral returns the shared observation settings collaborator.
func (s *Simulation) EventCentral() *EventCentral {
	return s.eventCentral
}

// Registry returns the per-kernel collaborator registry.
func (s *Simulation) Registry() *Registry {
	return s.registry
}

// CreateMoteType constructs a mote type from its registered config tag,
// recording the tag for serialization. Legacy tags are rewritten first.
func (s *Simulation) CreateMoteType(tag string) (MoteType, error) {
	factory := s.registry.moteTypeFactory(tag)
	if factory == nil {
		return nil, fmt.Errorf("unknown mote type %q", tag)
	}
	t := factory()
	s.moteTypeTags[t] = rewriteLegacyTag(tag)
	return t, nil
}

// CreateRadioMedium constructs a radio medium from its registered config tag,
// recording the tag for serialization. Legacy tags are rewritten first.
func (s *Simulation) CreateRadioMedium(tag string) (RadioMedium, error) {
	factory := s.registry.radioMediumFactory(tag)
	if factory == nil {
		return nil, fmt.Errorf("unknown radio medium %q", tag)
	}
	medium := factory(s)
	s.radioMediumTags[medium] = rewriteLegacyTag(tag)
	return medium, nil
}

func (s *Simulation) moteTypeTag(t MoteType) string {
	return s.moteTypeTags[t]
}

func (s *Simulation) radioMediumTag(medium RadioMedium) string {
	return s.radioMediumTags[medium]
}

// AddMote registers the mote. When the simulation is stopped the mote is
// added inline; when running the addition executes between events on the
// simulation goroutine. Motes with a clock get a random negative drift so
// they do not all boot at the same instant.
func (s *Simulation) AddMote(m Mote) {
	add := func() {
		if cm, ok := m.(ClockMote); ok {
			if s.maxMoteStartupDelay > 0 {
				cm.SetClockDrift(-(s.Time() + s.rand.Int63n(s.maxMoteStartupDelay)))
			} else {
				cm.SetClockDrift(-s.Time())
			}
		}

		s.motes = append(s.motes, m)
		if s.radioMedium != nil {
			s.radioMedium.RegisterMote(m, s)
		}
		if s.metrics != nil {
			s.metrics.Motes.Set(float64(len(s.motes)))
		}
		s.Observers.Notify(SimUpdate{Kind: MoteAdded, Mote: m})
	}

	if !s.Running() {
		add()
	} else {
		s.InvokeSimulationThread(add)
	}
}

// RemoveMote unregisters the mote and cancels its queued events, so a removed
// mote receives no further dispatches. Runs inline when stopped, between
// events when running.
func (s *Simulation) RemoveMote(m Mote) {
	remove := func() {
		for i, mote := range s.motes {
			if mote == m {
				s.motes = append(s.motes[:i], s.motes[i+1:]...)
				break
			}
		}
		if s.radioMedium != nil {
			s.radioMedium.UnregisterMote(m, s)
		}
		m.Removed()
		if s.metrics != nil {
			s.metrics.Motes.Set(float64(len(s.motes)))
		}
		s.Observers.Notify(SimUpdate{Kind: MoteRemoved, Mote: m})

		s.eventQueue.RemoveIf(func(ev *TimeEvent) bool {
			return ev.mote == m
		})
	}

	if !s.Running() {
		remove()
	} else {
		s.InvokeSimulationThread(remove)
	}
}

// Motes returns a snapshot of the registered motes.
func (s *Simulation) Motes() []Mote {
	out := make([]Mote, len(s.motes))
	copy(out, s.motes)
	return out
}

// MotesCount returns the number of registered motes.
func (s *Simulation) MotesCount() int {
	return len(s.motes)
}

// MoteWithID returns the mote with the given ID, or nil.
func (s *Simulation) MoteWithID(id int) Mote {
	for _, m := range s.motes {
		if m.ID() == id {
			return m
		}
	}
	return nil
}

// nextMoteID returns the lowest ID above every registered mote's.
func (s *Simulation) nextMoteID() int {
	next := 1
	for _, m := range s.motes {
		if m.ID() >= next {
			next = m.ID() + 1
		}
	}
	return next
}

// AddMoteType registers a mote type.
func (s *Simulation) AddMoteType(t MoteType) {
	s.moteTypes = append(s.moteTypes, t)
	s.Observers.Notify(SimUpdate{Kind: MoteTypeAdded})
}

// RemoveMoteType removes the type and every mote generated from it.
func (s *Simulation) RemoveMoteType(t MoteType) {
	found := false
	for i, mt := range s.moteTypes {
		if mt == t {
			s.moteTypes = append(s.moteTypes[:i], s.moteTypes[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		logrus.Errorf("mote type is not registered: %s", t.Identifier())
		return
	}

	for _, m := range s.Motes() {
		if m.Type() == t {
			s.RemoveMote(m)
		}
	}
	s.Observers.Notify(SimUpdate{Kind: MoteTypeRemoved})
}

// MoteTypes returns a snapshot of the registered mote types.
func (s *Simulation) MoteTypes() []MoteType {
	out := make([]MoteType, len(s.moteTypes))
	copy(out, s.moteTypes)
	return out
}

// MoteType returns the registered type with the given identifier, or nil.
func (s *Simulation) MoteType(identifier string) MoteType {
	for _, t := range s.moteTypes {
		if t.Identifier() == identifier {
			return t
		}
	}
	return nil
}

// SetRadioMedium swaps the radio medium, migrating registered motes.
func (s *Simulation) SetRadioMedium(medium RadioMedium) {
	if medium == nil {
		logrus.Error("radio medium could not be created")
		return
	}
	if s.radioMedium != nil {
		for _, m := range s.motes {
			s.radioMedium.UnregisterMote(m, s)
		}
	}
	s.radioMedium = medium
	for _, m := range s.motes {
		s.radioMedium.RegisterMote(m, s)
	}
}

// RadioMedium returns the current radio medium, or nil.
func (s *Simulation) RadioMedium() RadioMedium {
	return s.radioMedium
}

// Removed frees resources held by the simulation: the radio medium first,
// then every mote. Called just before the simulation is discarded.
func (s *Simulation) Removed() {
	if s.radioMedium != nil {
		s.radioMedium.Removed()
	}
	for _, m := range s.Motes() {
		s.RemoveMote(m)
	}
}
