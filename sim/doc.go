// Package sim provides the discrete-event simulation kernel for wsn-sim.
//
// # Reading Guide
//
// Start with these three files to understand the kernel:
//   - event.go: TimeEvent, the (time, callback) unit of work
//   - eventqueue.go: the sorted queue with the cross-goroutine deferred path
//   - kernel.go: the Simulation loop, lifecycle, and registries
//
// # Architecture
//
// A single dedicated goroutine executes all events sequentially. Foreign
// goroutines interact through exactly two monitored channels: the event
// queue's pending list (ScheduleExternal) and the poll channel
// (InvokeSimulationThread). Kernel-owned state -- the clock, the linked
// event chain, the mote and mote type registries, the RNG -- is touched
// only from the simulation goroutine.
//
// # Key Interfaces
//
// Collaborators plug in through small interfaces:
//   - Mote / MoteType: a simulated node and its blueprint
//   - ClockMote: optional per-mote clock drift, used for staggered startup
//   - RadioMedium: distributes radio traffic between registered motes
//
// Concrete mote emulators and radio models live outside this package; the
// built-in BasicMoteType and NullRadioMedium exist so configs load without
// external collaborators.
package sim
