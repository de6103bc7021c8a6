package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/orplan/core/metrics"
	"github.com/kilianp07/orplan/core/report"
)

type influxRecorder struct {
	mu     sync.Mutex
	bodies []string
}

func (r *influxRecorder) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		data, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.bodies = append(r.bodies, strings.TrimSpace(string(data)))
		r.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
}

func (r *influxRecorder) lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, b := range r.bodies {
		out = append(out, strings.Split(b, "\n")...)
	}
	return out
}

func lineOf(p *write.Point) string {
	return strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
}

func TestInfluxSink_RecordSolve(t *testing.T) {
	rec := &influxRecorder{}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()
	now := time.Now()
	err := sink.RecordSolve(coremetrics.SolveEvent{
		Trigger:   "delay",
		CaseID:    "P-1",
		Accepted:  true,
		Cases:     3,
		Objective: 4200,
		Optimal:   true,
		Nodes:     17,
		Elapsed:   1500 * time.Microsecond,
		Time:      now,
	})
	require.NoError(t, err)

	p := write.NewPointWithMeasurement("schedule_solve").
		AddTag("trigger", "delay").
		AddTag("accepted", "true").
		AddTag("case_id", "P-1").
		AddField("cases", 3).
		AddField("objective", int64(4200)).
		AddField("optimal", true).
		AddField("nodes", 17).
		AddField("elapsed_ms", 1.5).
		SetTime(now)
	assert.Equal(t, []string{lineOf(p)}, rec.lines())
}

func TestInfluxSink_RecordKPIs(t *testing.T) {
	rec := &influxRecorder{}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	sink := NewInfluxSink(srv.URL+"/api/v2/write", "token", "org", "bucket")
	defer sink.Close()
	now := time.Now()
	kpis := report.KPIs{
		Cases:           2,
		Makespan:        720,
		OvertimeMinutes: 15,
		MeanWait:        12.34567,
		WaitStdDev:      3,
		Rooms: []report.RoomUtilization{{
			Room:        "OR-1",
			BusyMinutes: 240,
			Utilization: 0.5,
		}},
	}
	require.NoError(t, sink.RecordKPIs(coremetrics.KPIEvent{Revision: "rev-1", KPIs: kpis, Time: now}))

	summary := write.NewPointWithMeasurement("schedule_kpi").
		AddTag("revision", "rev-1").
		AddField("cases", 2).
		AddField("makespan", 720).
		AddField("overtime_minutes", 15).
		AddField("mean_wait", 12.346).
		AddField("wait_stddev", 3.0).
		SetTime(now)
	room := write.NewPointWithMeasurement("room_utilization").
		AddTag("revision", "rev-1").
		AddTag("room", "OR-1").
		AddField("busy_minutes", 240).
		AddField("utilization", 0.5).
		SetTime(now)
	assert.Equal(t, []string{lineOf(summary), lineOf(room)}, rec.lines())
}

func TestInfluxSink_RecordPrediction(t *testing.T) {
	rec := &influxRecorder{}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()
	now := time.Now()
	ev := coremetrics.PredictionEvent{CaseID: "P-7", Minutes: 120, Degraded: true, Time: now}
	require.NoError(t, sink.RecordPrediction(ev))

	p := write.NewPointWithMeasurement("prediction").
		AddTag("case_id", "P-7").
		AddTag("degraded", "true").
		AddField("minutes", 120).
		SetTime(now)
	assert.Equal(t, []string{lineOf(p)}, rec.lines())
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	_, isInflux := sink.(*InfluxSink)
	assert.False(t, isInflux, "expected NopSink on failing health check")
	assert.True(t, called, "health endpoint not called")
}
