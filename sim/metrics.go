package sim

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles Prometheus instruments for a single kernel instance.
// Attach with Simulation.SetMetrics; the kernel updates them from the
// simulation goroutine.
type Metrics struct {
	EventsDispatched prometheus.Counter
	SimulatedTime    prometheus.Gauge
	Motes            prometheus.Gauge
	Speedup          prometheus.Gauge
}

// NewMetrics registers kernel metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		EventsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sim_events_dispatched_total",
			Help: "Total number of simulation events executed by the kernel loop.",
		}),
		SimulatedTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sim_time_microseconds",
			Help: "Current simulated time in microseconds.",
		}),
		Motes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sim_motes",
			Help: "Current number of registered motes.",
		}),
		Speedup: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sim_speedup_ratio",
			Help: "Simulated over real elapsed time for the last run.",
		}),
	}

	for _, c := range []prometheus.Collector{m.EventsDispatched, m.SimulatedTime, m.Motes, m.Speedup} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
