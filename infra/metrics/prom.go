package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/orplan/core/metrics"
)

// PromSink records solve outcomes and schedule KPIs in Prometheus metrics.
type PromSink struct {
	solves      *prometheus.CounterVec
	elapsed     *prometheus.HistogramVec
	objective   prometheus.Gauge
	nodes       prometheus.Histogram
	utilization *prometheus.GaugeVec
	overtime    prometheus.Gauge
	meanWait    prometheus.Gauge
	makespan    prometheus.Gauge
	fallbacks   prometheus.Counter
}

// NewPromSink registers schedule metrics on the default Prometheus registerer.
// The Prometheus server should be started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		solves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orplan_solves_total",
			Help: "Total number of re-plans by trigger and outcome",
		}, []string{"trigger", "accepted"}),
		elapsed: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orplan_solve_duration_seconds",
			Help:    "Wall time spent in the solver",
			Buckets: prometheus.DefBuckets,
		}, []string{"trigger"}),
		objective: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orplan_schedule_objective",
			Help: "Objective value of the accepted schedule",
		}),
		nodes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "orplan_solve_nodes",
			Help:    "Search nodes expanded per solve",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
		utilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "orplan_room_utilization_ratio",
			Help: "Share of the regular day a room spends operating",
		}, []string{"room"}),
		overtime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orplan_overtime_minutes",
			Help: "Operating minutes past the end of the regular day",
		}),
		meanWait: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orplan_mean_wait_minutes",
			Help: "Severity-weighted mean wait between readiness and start",
		}),
		makespan: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orplan_makespan_minute",
			Help: "Minute of day at which the last case ends",
		}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orplan_prediction_fallbacks_total",
			Help: "Cases scheduled with the fallback duration",
		}),
	}

	var err error
	if s.solves, err = register(reg, s.solves); err != nil {
		return nil, err
	}
	if s.elapsed, err = register(reg, s.elapsed); err != nil {
		return nil, err
	}
	if s.objective, err = register(reg, s.objective); err != nil {
		return nil, err
	}
	if s.nodes, err = register(reg, s.nodes); err != nil {
		return nil, err
	}
	if s.utilization, err = register(reg, s.utilization); err != nil {
		return nil, err
	}
	if s.overtime, err = register(reg, s.overtime); err != nil {
		return nil, err
	}
	if s.meanWait, err = register(reg, s.meanWait); err != nil {
		return nil, err
	}
	if s.makespan, err = register(reg, s.makespan); err != nil {
		return nil, err
	}
	if s.fallbacks, err = register(reg, s.fallbacks); err != nil {
		return nil, err
	}
	return s, nil
}

// register adds c to reg, reusing an identical collector registered earlier.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordSolve counts the solve and, for accepted schedules, records its
// search statistics.
func (s *PromSink) RecordSolve(ev coremetrics.SolveEvent) error {
	s.solves.WithLabelValues(ev.Trigger, strconv.FormatBool(ev.Accepted)).Inc()
	s.elapsed.WithLabelValues(ev.Trigger).Observe(ev.Elapsed.Seconds())
	if ev.Accepted {
		s.objective.Set(float64(ev.Objective))
		s.nodes.Observe(float64(ev.Nodes))
	}
	return nil
}

// RecordKPIs exports the KPIs of the accepted schedule.
func (s *PromSink) RecordKPIs(ev coremetrics.KPIEvent) error {
	s.utilization.Reset()
	for _, r := range ev.KPIs.Rooms {
		s.utilization.WithLabelValues(r.Room).Set(r.Utilization)
	}
	s.overtime.Set(float64(ev.KPIs.OvertimeMinutes))
	s.meanWait.Set(ev.KPIs.MeanWait)
	s.makespan.Set(float64(ev.KPIs.Makespan))
	return nil
}

// RecordPrediction counts cases that fell back to the default duration.
func (s *PromSink) RecordPrediction(ev coremetrics.PredictionEvent) error {
	if ev.Degraded {
		s.fallbacks.Inc()
	}
	return nil
}
