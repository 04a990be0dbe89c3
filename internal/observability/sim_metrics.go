package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SimCollector exposes simulation loop metrics. It satisfies
// core.WorldMetricsRecorder and every method is safe on a nil receiver.
type SimCollector struct {
	gatherer prometheus.Gatherer

	TicksTotal         prometheus.Counter
	TickDuration       prometheus.Histogram
	PerceptionDuration prometheus.Histogram
	PerceivingAgents   prometheus.Gauge
	CullingResults     prometheus.Counter
	PerceptionFailures prometheus.Counter
	CommitDuration     prometheus.Histogram
	ActionsApplied     prometheus.Counter
	ActionsRejected    prometheus.Counter
	StaticEntities     prometheus.Gauge
	MobileEntities     prometheus.Gauge
}

var loopBuckets = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// NewSimCollector registers simulation metrics against the provided
// registerer, defaulting to the global registry when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	reg, gatherer := resolve(reg)
	c := &SimCollector{gatherer: gatherer}

	var err error
	counter := func(name, help string) prometheus.Counter {
		if err != nil {
			return nil
		}
		var got prometheus.Counter
		got, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help}), name)
		return got
	}
	gauge := func(name, help string) prometheus.Gauge {
		if err != nil {
			return nil
		}
		var got prometheus.Gauge
		got, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help}), name)
		return got
	}
	histogram := func(name, help string) prometheus.Histogram {
		if err != nil {
			return nil
		}
		var got prometheus.Histogram
		got, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: name, Help: help, Buckets: loopBuckets,
		}), name)
		return got
	}

	c.TicksTotal = counter("roadsim_ticks_total", "Number of completed simulation ticks.")
	c.TickDuration = histogram("roadsim_tick_duration_seconds", "Wall-clock duration of a simulation tick.")
	c.PerceptionDuration = histogram("roadsim_perception_duration_seconds", "Duration of the agent perception pass.")
	c.PerceivingAgents = gauge("roadsim_perceiving_agents", "Number of agent bodies processed by the last perception pass.")
	c.CullingResults = counter("roadsim_culling_results_total", "Number of culling results produced by perception passes.")
	c.PerceptionFailures = counter("roadsim_perception_failures_total", "Number of agents whose perception failed.")
	c.CommitDuration = histogram("roadsim_commit_duration_seconds", "Duration of the action commit.")
	c.ActionsApplied = counter("roadsim_actions_applied_total", "Number of environmental actions applied.")
	c.ActionsRejected = counter("roadsim_actions_rejected_total", "Number of environmental actions rejected.")
	c.StaticEntities = gauge("roadsim_static_entities", "Current number of static entities in the world model.")
	c.MobileEntities = gauge("roadsim_mobile_entities", "Current number of mobile entities in the world model.")
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SimCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveTick records one completed tick.
func (c *SimCollector) ObserveTick(d time.Duration) {
	if c == nil {
		return
	}
	c.TicksTotal.Inc()
	c.TickDuration.Observe(d.Seconds())
}

// ObservePerception records a perception pass.
func (c *SimCollector) ObservePerception(agents, results, failures int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.PerceptionDuration.Observe(elapsed.Seconds())
	c.PerceivingAgents.Set(float64(agents))
	c.CullingResults.Add(float64(results))
	c.PerceptionFailures.Add(float64(failures))
}

// ObserveCommit records a commit.
func (c *SimCollector) ObserveCommit(applied, rejected int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.CommitDuration.Observe(elapsed.Seconds())
	c.ActionsApplied.Add(float64(applied))
	c.ActionsRejected.Add(float64(rejected))
}

// SetEntityCounts updates the population gauges.
func (c *SimCollector) SetEntityCounts(static, mobile int) {
	if c == nil {
		return
	}
	c.StaticEntities.Set(float64(static))
	c.MobileEntities.Set(float64(mobile))
}
