package sim

import "github.com/beevik/etree"

// Mote is a simulated node. Implementations live outside the kernel; the
// kernel sees motes only through registration, config round-trips, and the
// mote context on queued events.
type Mote interface {
	// ID returns the mote's simulation-unique identifier.
	ID() int
	// Type returns the blueprint this mote was generated from.
	Type() MoteType
	// Removed releases the mote's resources. Called on the simulation
	// goroutine when the mote leaves the simulation.
	Removed()
	// ConfigXML returns the mote's config subtree.
	ConfigXML() []*etree.Element
	// SetConfigXML applies a previously serialized config subtree.
	SetConfigXML(s *Simulation, config []*etree.Element) error
}

// ClockMote is implemented by motes with an adjustable clock. The kernel uses
// it to stagger mote startup by a random drift.
type ClockMote interface {
	SetClockDrift(drift int64)
	ClockDrift() int64
}

// MoteType is a blueprint producing motes.
type MoteType interface {
	// Identifier returns the type's config-file identifier.
	Identifier() string
	// NewMote generates a fresh mote of this type.
	NewMote(s *Simulation) (Mote, error)
	// ConfigXML returns the type's config subtree.
	ConfigXML(s *Simulation) []*etree.Element
	// SetConfigXML applies a previously serialized config subtree.
	SetConfigXML(s *Simulation, config []*etree.Element) error
}

// RadioMedium distributes radio traffic between registered motes. The kernel
// is only aware of its register/unregister hooks and config round-trip.
type RadioMedium interface {
	RegisterMote(m Mote, s *Simulation)
	UnregisterMote(m Mote, s *Simulation)
	// SimulationFinishedLoading is signaled once after a config load, before
	// queued setup actions drain.
	SimulationFinishedLoading()
	// Removed releases the medium's resources at simulation teardown.
	Removed()
	ConfigXML() []*etree.Element
	SetConfigXML(config []*etree.Element) error
}
