package sim

import "math/rand"

// SafeRand is the simulation's deterministic random source. Two runs with the
// same seed and identical schedules MUST produce bit-for-bit identical draws,
// so every draw that affects simulated state has to happen on the simulation
// goroutine. Every draw method and SetSeed assert that, catching accidental non-determinism
// from foreign goroutines early.
type SafeRand struct {
	sim  *Simulation
	rand *rand.Rand
	seed int64
}

func newSafeRand(s *Simulation, seed int64) *SafeRand {
	return &SafeRand{
		sim:  s,
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// SetSeed resets the stream.
func (r *SafeRand) SetSeed(seed int64) {
	r.sim.assertSimulationContext()
	r.seed = seed
	r.rand = rand.New(rand.NewSource(seed))
}

// Seed returns the seed the current stream was created from.
func (r *SafeRand) Seed() int64 {
	return r.seed
}

// Int63 returns a non-negative 63-bit draw.
func (r *SafeRand) Int63() int64 {
	r.sim.assertSimulationContext()
	return r.rand.Int63()
}

// Int63n returns a uniform draw in [0, n).
func (r *SafeRand) Int63n(n int64) int64 {
	r.sim.assertSimulationContext()
	return r.rand.Int63n(n)
}

// Intn returns a uniform draw in [0, n).
func (r *SafeRand) Intn(n int) int {
	r.sim.assertSimulationContext()
	return r.rand.Intn(n)
}

// Float64 returns a uniform draw in [0.0, 1.0).
func (r *SafeRand) Float64() float64 {
	r.sim.assertSimulationContext()
	return r.rand.Float64()
}

// NormFloat64 returns a standard-normal draw.
func (r *SafeRand) NormFloat64() float64 {
	r.sim.assertSimulationContext()
	return r.rand.NormFloat64()
}
