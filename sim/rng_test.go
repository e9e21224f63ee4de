package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeRand_SameSeedSameStream(t *testing.T) {
	// BDD: Two stopped simulations with the same seed draw identically
	s1 := NewSimulation(nil)
	s2 := NewSimulation(nil)
	s1.SetRandomSeed(42)
	s2.SetRandomSeed(42)

	for i := 0; i < 10; i++ {
		assert.Equal(t, s1.Rand().Int63(), s2.Rand().Int63())
	}
}

func TestSafeRand_ReseedResetsStream(t *testing.T) {
	s := NewSimulation(nil)
	s.SetRandomSeed(7)
	first := []int64{s.Rand().Int63(), s.Rand().Int63(), s.Rand().Int63()}

	s.SetRandomSeed(7)
	second := []int64{s.Rand().Int63(), s.Rand().Int63(), s.Rand().Int63()}

	assert.Equal(t, first, second)
	assert.Equal(t, int64(7), s.Rand().Seed())
}

func TestSafeRand_ForeignGoroutineWhileRunning_Panics(t *testing.T) {
	s := NewSimulation(nil)
	s.ScheduleEvent(newTicker(s, 10, -1), 0)
	s.Start()
	defer func() {
		s.Stop(true)
		<-s.Done()
	}()

	require.Panics(t, func() {
		s.Rand().Intn(10)
	})
}

func TestSafeRand_SimulationGoroutineDraws_Allowed(t *testing.T) {
	s := NewSimulation(nil)
	drew := false
	draw := NewTimeEvent("draw", func(t int64) error {
		_ = s.Rand().Float64()
		drew = true
		return nil
	})
	s.ScheduleEvent(draw, 100)
	s.StepMillisecond()
	<-s.Done()

	assert.True(t, drew)
}
