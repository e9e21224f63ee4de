// Package trace provides dispatch-trace recording for determinism analysis.
// This package has no dependencies on sim/ -- it stores pure data types.
package trace

// DispatchRecord captures a single executed event.
type DispatchRecord struct {
	Seq    int64  // dispatch sequence number within the run
	Time   int64  // simulated time in microseconds
	Label  string // event debug label ("" if unlabeled)
	MoteID int    // mote context, -1 for kernel events
}
