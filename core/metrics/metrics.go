package metrics

import (
	"time"

	"github.com/kilianp07/orplan/core/report"
)

// SolveEvent describes one solve, accepted or rejected.
type SolveEvent struct {
	Trigger   string
	CaseID    string
	Accepted  bool
	Cases     int
	Objective int64
	Optimal   bool
	Nodes     int
	Elapsed   time.Duration
	Time      time.Time
}

// MetricsSink records solve outcomes for observability purposes.
type MetricsSink interface {
	RecordSolve(ev SolveEvent) error
}

// KPIEvent carries the KPIs of an accepted schedule.
type KPIEvent struct {
	Revision string
	KPIs     report.KPIs
	Time     time.Time
}

// KPIRecorder records schedule KPIs.
type KPIRecorder interface {
	RecordKPIs(ev KPIEvent) error
}

// PredictionEvent records the duration assigned to one ingested case.
type PredictionEvent struct {
	CaseID   string
	Minutes  int
	Degraded bool
	Time     time.Time
}

// PredictionRecorder records duration predictions.
type PredictionRecorder interface {
	RecordPrediction(ev PredictionEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordSolve(SolveEvent) error           { return nil }
func (NopSink) RecordKPIs(KPIEvent) error              { return nil }
func (NopSink) RecordPrediction(PredictionEvent) error { return nil }
