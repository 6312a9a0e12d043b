package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports an Engine's Stats as Prometheus metrics. Values are
// read at scrape time.
type Collector struct {
	engine *Engine

	requests       *prometheus.Desc
	coalesced      *prometheus.Desc
	rejected       *prometheus.Desc
	timeouts       *prometheus.Desc
	inFlight       *prometheus.Desc
	availableSlots *prometheus.Desc
	state          *prometheus.Desc
	avgLatency     *prometheus.Desc
	p95Latency     *prometheus.Desc
	breakerState   *prometheus.Desc
	breakerFails   *prometheus.Desc
	opTimeout      *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector for e. Register it with a
// prometheus.Registerer to expose it.
func NewCollector(e *Engine, namespace string) *Collector {
	if namespace == "" {
		namespace = "execkit"
	}
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &Collector{
		engine:         e,
		requests:       desc("requests_total", "Execute calls by outcome.", "outcome"),
		coalesced:      desc("coalesced_total", "Calls that joined an in-flight execution."),
		rejected:       desc("rejected_total", "Calls rejected by an open circuit breaker."),
		timeouts:       desc("timeouts_total", "Invocations that exceeded their timeout."),
		inFlight:       desc("in_flight", "Invocations currently holding a slot."),
		availableSlots: desc("available_slots", "Free concurrency slots."),
		state:          desc("state", "Engine state, 1 for the current state.", "state"),
		avgLatency:     desc("latency_avg_seconds", "Mean latency over recent invocations."),
		p95Latency:     desc("latency_p95_seconds", "95th percentile latency over recent invocations."),
		breakerState:   desc("breaker_state", "Circuit breaker state: 0 closed, 1 open, 2 half-open.", "operation"),
		breakerFails:   desc("breaker_failures", "Consecutive failures recorded by the breaker.", "operation"),
		opTimeout:      desc("operation_timeout_seconds", "Current timeout applied to an operation.", "operation"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.requests
	ch <- c.coalesced
	ch <- c.rejected
	ch <- c.timeouts
	ch <- c.inFlight
	ch <- c.availableSlots
	ch <- c.state
	ch <- c.avgLatency
	ch <- c.p95Latency
	ch <- c.breakerState
	ch <- c.breakerFails
	ch <- c.opTimeout
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.engine.Stats()

	ch <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(s.SuccessCount), "success")
	ch <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(s.FailureCount), "failure")
	ch <- prometheus.MustNewConstMetric(c.coalesced, prometheus.CounterValue, float64(s.CoalescedCount))
	ch <- prometheus.MustNewConstMetric(c.rejected, prometheus.CounterValue, float64(s.RejectedCount))
	ch <- prometheus.MustNewConstMetric(c.timeouts, prometheus.CounterValue, float64(s.TimeoutCount))
	ch <- prometheus.MustNewConstMetric(c.inFlight, prometheus.GaugeValue, float64(s.InFlight))
	ch <- prometheus.MustNewConstMetric(c.availableSlots, prometheus.GaugeValue, float64(s.AvailableSlots))

	for _, st := range allStates {
		v := 0.0
		if st == s.State {
			v = 1
		}
		ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, v, string(st))
	}

	ch <- prometheus.MustNewConstMetric(c.avgLatency, prometheus.GaugeValue, s.AvgLatency.Seconds())
	ch <- prometheus.MustNewConstMetric(c.p95Latency, prometheus.GaugeValue, s.P95Latency.Seconds())

	for _, b := range s.Breakers {
		ch <- prometheus.MustNewConstMetric(c.breakerState, prometheus.GaugeValue, float64(b.State), b.Name)
		ch <- prometheus.MustNewConstMetric(c.breakerFails, prometheus.GaugeValue, float64(b.Failures), b.Name)
	}
	for name, d := range s.Timeouts {
		ch <- prometheus.MustNewConstMetric(c.opTimeout, prometheus.GaugeValue, d.Seconds(), name)
	}
}
