package main

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/miretskiy/fitsim/simulator"
)

var (
	// Prometheus metrics (gauges)
	promMetrics = struct {
		usedMemory            prometheus.Gauge
		freeMemory            prometheus.Gauge
		utilization           prometheus.Gauge
		externalFragmentation prometheus.Gauge
		holes                 prometheus.Gauge
		largestHole           prometheus.Gauge
		processes             *prometheus.GaugeVec
		currentTick           prometheus.Gauge
		events                *prometheus.CounterVec
	}{
		usedMemory: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fitsim_used_memory_kb",
			Help: "Memory held by running processes in KB",
		}),
		freeMemory: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fitsim_free_memory_kb",
			Help: "Memory in holes in KB",
		}),
		utilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fitsim_utilization_percent",
			Help: "Percentage of memory in use",
		}),
		externalFragmentation: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fitsim_external_fragmentation_kb",
			Help: "Free memory split across more than one hole, in KB",
		}),
		holes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fitsim_holes",
			Help: "Number of holes",
		}),
		largestHole: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fitsim_largest_hole_kb",
			Help: "Size of the largest hole in KB",
		}),
		processes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fitsim_processes",
			Help: "Processes by status",
		}, []string{"status"}),
		currentTick: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fitsim_current_tick",
			Help: "Simulated time in ticks",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fitsim_events_total",
			Help: "Simulation events by type",
		}, []string{"type"}),
	}
)

func initPrometheusMetrics() {
	prometheus.MustRegister(
		promMetrics.usedMemory,
		promMetrics.freeMemory,
		promMetrics.utilization,
		promMetrics.externalFragmentation,
		promMetrics.holes,
		promMetrics.largestHole,
		promMetrics.processes,
		promMetrics.currentTick,
		promMetrics.events,
	)
}

func updatePrometheusMetrics(snap simulator.Snapshot) {
	stats := snap.Stats
	promMetrics.usedMemory.Set(float64(stats.UsedMemory))
	promMetrics.freeMemory.Set(float64(stats.FreeMemory))
	promMetrics.utilization.Set(stats.Utilization)
	promMetrics.externalFragmentation.Set(float64(stats.ExternalFragmentation))
	promMetrics.holes.Set(float64(stats.NumberOfHoles))
	promMetrics.largestHole.Set(float64(stats.LargestHole))
	promMetrics.currentTick.Set(float64(snap.State.CurrentTime))

	counts := map[simulator.ProcessStatus]int{}
	for _, p := range snap.Processes {
		counts[p.Status]++
	}
	for _, status := range []simulator.ProcessStatus{simulator.StatusWaiting, simulator.StatusRunning, simulator.StatusCompleted} {
		promMetrics.processes.WithLabelValues(status.String()).Set(float64(counts[status]))
	}
}

// eventCounter counts events as they are emitted
type eventCounter struct{}

func (eventCounter) OnReset() {}

func (eventCounter) OnEvent(event simulator.SimulationEvent) {
	promMetrics.events.WithLabelValues(event.Type.String()).Inc()
}

func (eventCounter) OnLog(simulator.LogEntry) {}
