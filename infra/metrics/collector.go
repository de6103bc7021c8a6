package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/orplan/core/events"
	coremetrics "github.com/kilianp07/orplan/core/metrics"
	"github.com/kilianp07/orplan/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for
// planning events. The returned channel is closed once the collector stops,
// which happens when ctx is canceled or the bus is closed.
func StartEventCollector(ctx context.Context, bus *eventbus.Bus[events.Event], sink coremetrics.MetricsSink) <-chan struct{} {
	if bus == nil || sink == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return bus.Listen(ctx, func(ev events.Event) {
		now := time.Now()
		switch e := ev.(type) {
		case events.ScheduleAccepted:
			st := e.Schedule.Stats
			_ = sink.RecordSolve(coremetrics.SolveEvent{
				Trigger:   string(e.Trigger),
				CaseID:    e.CaseID,
				Accepted:  true,
				Cases:     len(e.Schedule.Rows),
				Objective: st.Objective,
				Optimal:   st.Optimal,
				Nodes:     st.Nodes,
				Elapsed:   st.Elapsed,
				Time:      now,
			})
			if r, ok := sink.(coremetrics.KPIRecorder); ok {
				_ = r.RecordKPIs(coremetrics.KPIEvent{Revision: e.Schedule.Revision, KPIs: e.KPIs, Time: now})
			}
		case events.ReplanRejected:
			_ = sink.RecordSolve(coremetrics.SolveEvent{
				Trigger: string(e.Trigger),
				CaseID:  e.CaseID,
				Time:    now,
			})
		case events.PredictionDegraded:
			if r, ok := sink.(coremetrics.PredictionRecorder); ok {
				_ = r.RecordPrediction(coremetrics.PredictionEvent{
					CaseID:   e.CaseID,
					Minutes:  e.Fallback,
					Degraded: true,
					Time:     now,
				})
			}
		}
	})
}
