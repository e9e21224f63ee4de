package trace

import (
	"fmt"
	"sort"
	"strings"
)

// Summary aggregates a trace for headless run reports.
type Summary struct {
	Events    int64
	FirstTime int64 // simulated µs of the first dispatch, 0 if none
	LastTime  int64 // simulated µs of the last dispatch, 0 if none
	ByLabel   map[string]int64
}

// Summarize folds a trace into a Summary.
func Summarize(st *SimulationTrace) Summary {
	s := Summary{ByLabel: make(map[string]int64)}
	for i, r := range st.Records {
		if i == 0 {
			s.FirstTime = r.Time
		}
		s.LastTime = r.Time
		s.Events++
		label := r.Label
		if label == "" {
			label = "(unlabeled)"
		}
		s.ByLabel[label]++
	}
	return s
}

func (s Summary) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d events, simulated %d..%d us", s.Events, s.FirstTime, s.LastTime)

	labels := make([]string, 0, len(s.ByLabel))
	for label := range s.ByLabel {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		fmt.Fprintf(&sb, "\n  %-16s %d", label, s.ByLabel[label])
	}
	return sb.String()
}
