package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/orplan/core/metrics"
	"github.com/kilianp07/orplan/infra/logger"
)

// InfluxSink writes solve outcomes and KPIs to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

// RecordSolve writes one schedule_solve point.
func (s *InfluxSink) RecordSolve(ev coremetrics.SolveEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("schedule_solve").
		AddTag("trigger", ev.Trigger).
		AddTag("accepted", strconv.FormatBool(ev.Accepted))
	if ev.CaseID != "" {
		p = p.AddTag("case_id", ev.CaseID)
	}
	p = p.AddField("cases", ev.Cases).
		AddField("objective", ev.Objective).
		AddField("optimal", ev.Optimal).
		AddField("nodes", ev.Nodes).
		AddField("elapsed_ms", round3(ev.Elapsed.Seconds()*1000)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordKPIs writes a schedule_kpi point followed by one room_utilization
// point per room.
func (s *InfluxSink) RecordKPIs(ev coremetrics.KPIEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	k := ev.KPIs
	points := make([]*write.Point, 0, len(k.Rooms)+1)
	points = append(points, write.NewPointWithMeasurement("schedule_kpi").
		AddTag("revision", ev.Revision).
		AddField("cases", k.Cases).
		AddField("makespan", int(k.Makespan)).
		AddField("overtime_minutes", k.OvertimeMinutes).
		AddField("mean_wait", round3(k.MeanWait)).
		AddField("wait_stddev", round3(k.WaitStdDev)).
		SetTime(ev.Time))
	for _, r := range k.Rooms {
		points = append(points, write.NewPointWithMeasurement("room_utilization").
			AddTag("revision", ev.Revision).
			AddTag("room", r.Room).
			AddField("busy_minutes", r.BusyMinutes).
			AddField("utilization", round3(r.Utilization)).
			SetTime(ev.Time))
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordPrediction writes the duration assigned to an ingested case.
func (s *InfluxSink) RecordPrediction(ev coremetrics.PredictionEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("prediction").
		AddTag("case_id", ev.CaseID).
		AddTag("degraded", strconv.FormatBool(ev.Degraded)).
		AddField("minutes", ev.Minutes).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
