package replan

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kilianp07/orplan/core/events"
	"github.com/kilianp07/orplan/core/history"
	"github.com/kilianp07/orplan/core/model"
	"github.com/kilianp07/orplan/core/report"
	"github.com/kilianp07/orplan/core/scheduler"
)

// pinAll recomputes the pin of every case against the accepted schedule.
// A case that started before now is locked to its solved room and start;
// every other case floats and may not start before now. Emergencies stay
// bound to their room from their arrival and are held once started. The
// target of a delay is forced to float.
func (p *Planner) pinAll(roster []model.Case, now model.Minute, unpin string) {
	for i := range roster {
		c := &roster[i]
		row, solved := p.accepted.Row(c.ID)
		started := solved && row.Start < now
		switch {
		case c.Emergency:
			room, _ := c.Pin.FixedRoom()
			c.Pin = model.ExplicitIn(room, c.Ready)
			c.MinStart = now
			if started && c.ID != unpin {
				c.Pin = c.Pin.Hold(row.Start)
				c.MinStart = 0
			}
		case c.ID == unpin:
			c.Pin = model.Floating()
			c.MinStart = now
		case started:
			c.Pin = model.LockedAt(row.Room, row.Start)
			c.MinStart = 0
		default:
			c.Pin = model.Floating()
			c.MinStart = now
		}
	}
}

// replan runs the shared cycle for an operational event.
func (p *Planner) replan(ctx context.Context, trig events.Trigger, caseID string, now model.Minute, roster []model.Case, unpin string) (model.Schedule, error) {
	p.pinAll(roster, now, unpin)
	return p.solveAndAccept(ctx, trig, caseID, now, roster)
}

// solveAndAccept solves roster and, on success, makes it the active roster
// with its schedule. On failure nothing changes.
func (p *Planner) solveAndAccept(ctx context.Context, trig events.Trigger, caseID string, now model.Minute, roster []model.Case) (model.Schedule, error) {
	sched, err := p.solver.Solve(ctx, roster)
	if err == nil {
		if verr := scheduler.Verify(p.topo, roster, sched); verr != nil {
			err = fmt.Errorf("solver produced an invalid schedule: %w", verr)
		}
	}
	if err != nil {
		p.reject(ctx, trig, caseID, now, err)
		return model.Schedule{}, fmt.Errorf("%s rejected: %w", trig, err)
	}

	sched.SolvedAt = now
	p.cases = roster
	p.index = indexCases(roster)
	p.accepted = sched
	kpis := report.Compute(p.topo, roster, sched)

	p.log.Infow("schedule accepted", map[string]any{
		"trigger":   string(trig),
		"case_id":   caseID,
		"now":       now.String(),
		"revision":  sched.Revision,
		"cases":     len(sched.Rows),
		"makespan":  sched.Makespan().String(),
		"objective": sched.Stats.Objective,
		"optimal":   sched.Stats.Optimal,
	})
	p.publish(events.ScheduleAccepted{Trigger: trig, CaseID: caseID, Now: now, Schedule: sched.Clone(), KPIs: kpis})
	p.record(ctx, history.Revision{
		ID:        sched.Revision,
		Timestamp: p.clock(),
		Trigger:   string(trig),
		CaseID:    caseID,
		Now:       now,
		Accepted:  true,
		Objective: sched.Stats.Objective,
		Rows:      sched.Rows,
	})
	return sched.Clone(), nil
}

func (p *Planner) reject(ctx context.Context, trig events.Trigger, caseID string, now model.Minute, err error) {
	p.log.Warnf("%s for %q at %s rejected, keeping previous schedule: %v", trig, caseID, now, err)
	tags := map[string]string{"trigger": string(trig), "case_id": caseID}
	if !errors.Is(err, scheduler.ErrInfeasible) {
		tags["kind"] = "internal"
	}
	p.monitor.CaptureException(err, tags)
	p.publish(events.ReplanRejected{Trigger: trig, CaseID: caseID, Now: now, Err: err})
	p.record(ctx, history.Revision{
		ID:        uuid.NewString(),
		Timestamp: p.clock(),
		Trigger:   string(trig),
		CaseID:    caseID,
		Now:       now,
		Error:     err.Error(),
	})
}

func (p *Planner) record(ctx context.Context, rev history.Revision) {
	if err := p.history.Append(ctx, rev); err != nil {
		p.log.Errorf("history append failed: %v", err)
	}
}
