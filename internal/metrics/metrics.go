// Package metrics exposes Prometheus collectors for the acoustic engine and
// its storage backends. A nil *Collectors is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "curle"

// Collectors holds every metric on a private registry
type Collectors struct {
	Registry *prometheus.Registry

	steps        *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	pressure     *prometheus.GaugeVec
	singular     *prometheus.CounterVec
	records      *prometheus.CounterVec
	writeErrors  *prometheus.CounterVec
}

// New creates and registers the collectors
func New() *Collectors {
	c := &Collectors{
		Registry: prometheus.NewRegistry(),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Time steps evaluated by each analysis.",
		}, []string{"analysis"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Wall time spent evaluating one time step.",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
		}, []string{"analysis"}),
		pressure: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "observer_pressure_pascals",
			Help:      "Latest predicted acoustic pressure at each observer.",
		}, []string{"analysis", "observer"}),
		singular: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "singular_samples_total",
			Help:      "Samples dropped because the observer is too close to the source.",
		}, []string{"analysis", "observer"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_written_total",
			Help:      "Records appended per storage backend.",
		}, []string{"backend"}),
		writeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_errors_total",
			Help:      "Failed appends per storage backend.",
		}, []string{"backend"}),
	}

	c.Registry.MustRegister(
		c.steps,
		c.stepDuration,
		c.pressure,
		c.singular,
		c.records,
		c.writeErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// ObserveStep records one evaluated step
func (c *Collectors) ObserveStep(analysis string, d time.Duration) {
	if c == nil {
		return
	}
	c.steps.WithLabelValues(analysis).Inc()
	c.stepDuration.WithLabelValues(analysis).Observe(d.Seconds())
}

// SetPressure records the latest sample of an observer
func (c *Collectors) SetPressure(analysis, observer string, p float64) {
	if c == nil {
		return
	}
	c.pressure.WithLabelValues(analysis, observer).Set(p)
}

// IncSingular counts a dropped sample
func (c *Collectors) IncSingular(analysis, observer string) {
	if c == nil {
		return
	}
	c.singular.WithLabelValues(analysis, observer).Inc()
}

// AddRecords counts appended records
func (c *Collectors) AddRecords(backend string, n int) {
	if c == nil {
		return
	}
	c.records.WithLabelValues(backend).Add(float64(n))
}

// IncWriteError counts a failed append
func (c *Collectors) IncWriteError(backend string) {
	if c == nil {
		return
	}
	c.writeErrors.WithLabelValues(backend).Inc()
}
