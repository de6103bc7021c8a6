package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/orplan/core/logger"
	"github.com/kilianp07/orplan/core/model"
)

// ErrInfeasible indicates no assignment satisfies every constraint.
var ErrInfeasible = errors.New("schedule infeasible")

// Solver produces a schedule for a roster.
type Solver interface {
	Solve(ctx context.Context, cases []model.Case) (model.Schedule, error)
}

// Scheduler solves rosters against a fixed topology.
type Scheduler struct {
	topo model.Topology
	cfg  Config
	log  logger.Logger
}

// New returns a Scheduler. Zero config fields take their defaults.
func New(topo model.Topology, cfg Config, log logger.Logger) *Scheduler {
	cfg.SetDefaults()
	return &Scheduler{topo: topo, cfg: cfg, log: logger.OrNop(log)}
}

// Config returns the effective solver configuration.
func (s *Scheduler) Config() Config { return s.cfg }

// Solve assigns a room and start to every case. It returns ErrInfeasible,
// wrapped with the reason, when no complete assignment exists or none was
// found within the solver limits. When the caller's context ends before any
// assignment was found, its error is returned instead.
func (s *Scheduler) Solve(ctx context.Context, cases []model.Case) (model.Schedule, error) {
	started := time.Now()
	if err := ctx.Err(); err != nil {
		return model.Schedule{}, fmt.Errorf("solve aborted: %w", err)
	}
	p, err := compile(s.topo, s.cfg, cases)
	if err != nil {
		return model.Schedule{}, err
	}
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, s.cfg.TimeLimit())
	defer cancel()

	srch := newSearch(ctx, p, len(s.topo.Clinicians), s.cfg.NodeLimit)
	if j, ok := srch.pin(); !ok {
		c := p.jobs[j].c
		return model.Schedule{}, fmt.Errorf("%w: pinned case %s conflicts with another pinned case in %s at %s",
			ErrInfeasible, c.ID, c.Pin.Room, c.Pin.Start)
	}
	srch.run()
	elapsed := time.Since(started)
	if !srch.found {
		if err := parent.Err(); err != nil && srch.stopped {
			return model.Schedule{}, fmt.Errorf("solve aborted after %s: %w", elapsed.Round(time.Millisecond), err)
		}
		if ctx.Err() != nil && srch.stopped {
			return model.Schedule{}, fmt.Errorf("%w: no placement found within %s", ErrInfeasible, s.cfg.TimeLimit())
		}
		return model.Schedule{}, fmt.Errorf("%w: cases do not fit within the %d minute horizon", ErrInfeasible, p.horizon)
	}

	sched, err := s.assemble(p, srch)
	if err != nil {
		return model.Schedule{}, err
	}
	sched.Stats = model.SolveStats{
		Objective: srch.bestCost,
		Optimal:   !srch.stopped,
		Nodes:     srch.nodes,
		Elapsed:   elapsed,
	}
	s.log.Debugw("solve finished", map[string]any{
		"cases":     len(cases),
		"objective": srch.bestCost,
		"optimal":   !srch.stopped,
		"nodes":     srch.nodes,
		"elapsed":   elapsed.String(),
	})
	return sched, nil
}

// assemble reads the best placement back into schedule rows.
func (s *Scheduler) assemble(p *problem, srch *search) (model.Schedule, error) {
	rows := make([]model.Assignment, 0, len(p.jobs))
	for i := range p.jobs {
		jb := &p.jobs[i]
		r := srch.bestRoom[i]
		if r < 0 {
			return model.Schedule{}, fmt.Errorf("%w: case %s is unroutable", ErrInfeasible, jb.c.ID)
		}
		start := model.Minute(srch.bestAt[i])
		rows = append(rows, model.Assignment{
			CaseID:    jb.c.ID,
			Procedure: jb.c.Procedure,
			Clinician: jb.c.Clinician,
			Room:      p.rooms[r].ID,
			Start:     start,
			End:       start + model.Minute(jb.dur),
			Duration:  jb.dur,
			Severity:  jb.c.Severity,
		})
	}
	model.SortRows(rows)
	return model.Schedule{Revision: uuid.NewString(), Rows: rows}, nil
}
