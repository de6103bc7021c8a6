package replan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/orplan/core/events"
	"github.com/kilianp07/orplan/core/history"
	"github.com/kilianp07/orplan/core/logger"
	"github.com/kilianp07/orplan/core/model"
	"github.com/kilianp07/orplan/core/monitoring"
	"github.com/kilianp07/orplan/core/prediction"
	"github.com/kilianp07/orplan/core/scheduler"
	"github.com/kilianp07/orplan/internal/eventbus"
)

var (
	// ErrCaseNotFound is returned when an event references an unknown case.
	ErrCaseNotFound = errors.New("case not found")
	// ErrDuplicateCase is returned when ingested records repeat an id.
	ErrDuplicateCase = errors.New("duplicate case id")
	// ErrInvalidEvent is returned for events whose arguments are unusable.
	ErrInvalidEvent = errors.New("invalid event")
)

// DefaultMinDuration is the floor applied to case durations.
const DefaultMinDuration = 30

// Planner is the scheduling session: the active roster, the last accepted
// schedule and the collaborators used to produce the next one.
type Planner struct {
	mu sync.Mutex

	topo        model.Topology
	solver      scheduler.Solver
	predictor   prediction.DurationPredictor
	fallback    int
	minDuration int
	log         logger.Logger
	bus         *eventbus.Bus[events.Event]
	history     history.Store
	monitor     monitoring.Monitor
	clock       func() time.Time

	cases    []model.Case
	index    map[string]int
	accepted model.Schedule
}

// NewPlanner creates a planner. A nil predictor selects the fixed fallback
// for every case.
func NewPlanner(topo model.Topology, solver scheduler.Solver, pred prediction.DurationPredictor, log logger.Logger) (*Planner, error) {
	if solver == nil {
		return nil, fmt.Errorf("replan: nil solver provided to NewPlanner")
	}
	if pred == nil {
		pred = prediction.FixedPredictor{}
	}
	return &Planner{
		topo:        topo,
		solver:      solver,
		predictor:   pred,
		fallback:    120,
		minDuration: DefaultMinDuration,
		log:         logger.OrNop(log),
		history:     history.NopStore{},
		monitor:     monitoring.NopMonitor{},
		clock:       time.Now,
		index:       make(map[string]int),
	}, nil
}

// SetFallback configures the duration used when prediction fails and the
// floor applied to every duration.
func (p *Planner) SetFallback(fallbackMinutes, minMinutes int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if fallbackMinutes > 0 {
		p.fallback = fallbackMinutes
	}
	if minMinutes > 0 {
		p.minDuration = minMinutes
	}
}

// SetBus configures the bus receiving planning events.
func (p *Planner) SetBus(bus *eventbus.Bus[events.Event]) {
	p.mu.Lock()
	p.bus = bus
	p.mu.Unlock()
}

// SetHistory configures the store used to persist re-plan outcomes.
func (p *Planner) SetHistory(store history.Store) {
	p.mu.Lock()
	if store == nil {
		store = history.NopStore{}
	}
	p.history = store
	p.mu.Unlock()
}

// SetMonitor configures error reporting.
func (p *Planner) SetMonitor(m monitoring.Monitor) {
	p.mu.Lock()
	p.monitor = monitoring.OrNop(m)
	p.mu.Unlock()
}

// Topology returns the resource topology the planner schedules against.
func (p *Planner) Topology() model.Topology { return p.topo }

// Schedule returns a copy of the accepted schedule.
func (p *Planner) Schedule() model.Schedule {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.accepted.Clone()
}

// Cases returns a copy of the active roster.
func (p *Planner) Cases() []model.Case {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneCases(p.cases)
}

// Case returns one case of the roster.
func (p *Planner) Case(id string) (model.Case, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i, ok := p.index[id]
	if !ok {
		return model.Case{}, false
	}
	return p.cases[i].Clone(), true
}

// Ingest replaces the roster with the given records and solves it. Every
// case starts Floating and ready at the start of the day. Durations come
// from the predictor; a failed prediction is replaced by the fallback
// duration and reported as degraded without stopping the ingestion.
func (p *Planner) Ingest(ctx context.Context, records []model.CaseRecord) (model.Schedule, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		if rec.ID == "" {
			return model.Schedule{}, fmt.Errorf("%w: record without id", ErrInvalidEvent)
		}
		if seen[rec.ID] {
			return model.Schedule{}, fmt.Errorf("%w: %s", ErrDuplicateCase, rec.ID)
		}
		seen[rec.ID] = true
	}

	roster := make([]model.Case, 0, len(records))
	degraded := 0
	for _, rec := range records {
		minutes, fellBack := p.predict(rec)
		if fellBack {
			degraded++
		}
		roster = append(roster, model.Case{
			ID:        rec.ID,
			Procedure: rec.Procedure,
			Clinician: rec.Clinician,
			Duration:  max(minutes, p.minDuration),
			Severity:  rec.Severity,
			Equipment: rec.EquipmentNames(),
			Ready:     p.topo.Constants.DayStart,
			Pin:       model.Floating(),
		})
	}
	p.log.Infow("ingesting roster", map[string]any{"cases": len(roster), "degraded_predictions": degraded})
	return p.solveAndAccept(ctx, events.TriggerIngest, "", p.topo.Constants.DayStart, roster)
}

// predict asks the predictor for a duration and substitutes the fallback
// when it fails.
func (p *Planner) predict(rec model.CaseRecord) (int, bool) {
	res := p.predictor.Predict(rec)
	minutes, degraded := prediction.Resolve(res, p.fallback)
	if degraded {
		p.log.Warnf("prediction failed for %s, using fallback of %d minutes: %v", rec.ID, p.fallback, res.Err)
		p.monitor.CaptureMessage("duration prediction degraded", map[string]string{"case_id": rec.ID})
		p.publish(events.PredictionDegraded{CaseID: rec.ID, Fallback: p.fallback, Err: res.Err})
	}
	return minutes, degraded
}

func (p *Planner) publish(ev events.Event) {
	if p.bus != nil {
		p.bus.Publish(ev)
	}
}

func cloneCases(cases []model.Case) []model.Case {
	out := make([]model.Case, len(cases))
	for i, c := range cases {
		out[i] = c.Clone()
	}
	return out
}

func indexCases(cases []model.Case) map[string]int {
	idx := make(map[string]int, len(cases))
	for i, c := range cases {
		idx[c.ID] = i
	}
	return idx
}

// lookup returns the roster position of id.
func (p *Planner) lookup(id string) (int, error) {
	i, ok := p.index[id]
	if !ok {
		return -1, fmt.Errorf("%w: %s", ErrCaseNotFound, id)
	}
	return i, nil
}
