package sim

import (
	"time"

	"github.com/sirupsen/logrus"
)

// The speed governor is a self-rescheduling TimeEvent: it throttles the loop
// by sleeping on the simulation goroutine so that simulated time tracks
// wall-clock time at the configured ratio. It is part of the simulated-time
// fabric, not a wall-clock timer.

// governorTick fires every simulated millisecond while a limit is active and
// the simulation keeps pace, and less often while it lags behind wall-clock.
func (s *Simulation) governorTick(t int64) error {
	if s.speedLimitNone {
		// Running at full speed: no reschedule, the governor goes dormant.
		return nil
	}

	diffSimtime := s.TimeMillis() - s.speedLimitLastSimtime
	diffRealtime := time.Now().UnixMilli() - s.speedLimitLastRealtime
	expectedRealtime := int64(float64(diffSimtime) / s.speedLimit)
	sleep := expectedRealtime - diffRealtime
	if sleep >= 0 {
		time.Sleep(time.Duration(sleep) * time.Millisecond)
		s.eventQueue.ScheduleInThread(s.delayEvent, t+MILLISECOND)
	} else {
		// Behind wall-clock: fire less often to reduce governor overhead.
		s.eventQueue.ScheduleInThread(s.delayEvent, t-sleep*MILLISECOND)
	}

	// Reset anchors every real-time second so one long stall does not skew
	// the ratio forever.
	if diffRealtime > 1000 {
		s.speedLimitLastRealtime = time.Now().UnixMilli()
		s.speedLimitLastSimtime = s.TimeMillis()
	}
	return nil
}

// SetSpeedLimit limits simulation speed to the given ratio of real time
// (1.0 = real-time, nil = unlimited). May be called from any goroutine; a
// running simulation applies the change between events.
func (s *Simulation) SetSpeedLimit(ratio *float64) {
	apply := func() {
		if ratio == nil {
			s.speedLimitNone = true
			s.delayEvent.Remove()
			return
		}

		s.speedLimitNone = false
		s.speedLimit = *ratio
		s.speedLimitLastRealtime = time.Now().UnixMilli()
		s.speedLimitLastSimtime = s.TimeMillis()

		if s.delayEvent.Scheduled() {
			s.delayEvent.Remove()
		}
		s.eventQueue.ScheduleInThread(s.delayEvent, s.currentSimulationTime)
		logrus.Debugf("speed limit set to %.3f", *ratio)
		s.Observers.Notify(SimUpdate{Kind: ConfigChanged})
	}

	if !s.Running() {
		apply()
	} else {
		s.InvokeSimulationThread(apply)
	}
}

// SpeedLimit returns the current ratio, or nil when unlimited.
func (s *Simulation) SpeedLimit() *float64 {
	if s.speedLimitNone {
		return nil
	}
	limit := s.speedLimit
	return &limit
}
