package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/orplan/core/metrics"
	"github.com/kilianp07/orplan/core/report"
)

func TestPromSink_RecordSolve(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordSolve(coremetrics.SolveEvent{
		Trigger:   "ingest",
		Accepted:  true,
		Objective: 900,
		Nodes:     12,
		Elapsed:   20 * time.Millisecond,
	}))
	require.NoError(t, sink.RecordSolve(coremetrics.SolveEvent{Trigger: "delay"}))

	expected := `
# HELP orplan_solves_total Total number of re-plans by trigger and outcome
# TYPE orplan_solves_total counter
orplan_solves_total{accepted="false",trigger="delay"} 1
orplan_solves_total{accepted="true",trigger="ingest"} 1
`
	assert.NoError(t, testutil.CollectAndCompare(sink.solves, strings.NewReader(expected)))
	assert.Equal(t, 900.0, testutil.ToFloat64(sink.objective))
}

func TestPromSink_RecordKPIs(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordKPIs(coremetrics.KPIEvent{KPIs: report.KPIs{
		Makespan:        1000,
		OvertimeMinutes: 40,
		MeanWait:        25,
		Rooms: []report.RoomUtilization{
			{Room: "OR-1", Utilization: 0.75},
			{Room: "OR-2"},
		},
	}}))

	assert.Equal(t, 0.75, testutil.ToFloat64(sink.utilization.WithLabelValues("OR-1")))
	assert.Equal(t, 40.0, testutil.ToFloat64(sink.overtime))
	assert.Equal(t, 25.0, testutil.ToFloat64(sink.meanWait))
	assert.Equal(t, 1000.0, testutil.ToFloat64(sink.makespan))
	assert.Equal(t, 2, testutil.CollectAndCount(sink.utilization))
}

func TestPromSink_RecordPrediction(t *testing.T) {
	sink, err := NewPromSinkWithRegistry(prometheus.NewRegistry())
	require.NoError(t, err)

	require.NoError(t, sink.RecordPrediction(coremetrics.PredictionEvent{CaseID: "a", Minutes: 90}))
	require.NoError(t, sink.RecordPrediction(coremetrics.PredictionEvent{CaseID: "b", Minutes: 120, Degraded: true}))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.fallbacks))
}

func TestPromSink_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	second, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, first.RecordPrediction(coremetrics.PredictionEvent{Degraded: true}))
	assert.Equal(t, 1.0, testutil.ToFloat64(second.fallbacks))
}
