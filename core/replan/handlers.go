package replan

import (
	"context"
	"fmt"

	"github.com/kilianp07/orplan/core/events"
	"github.com/kilianp07/orplan/core/model"
)

// checkNow rejects event times outside the planning day.
func checkNow(now model.Minute) error {
	if now < 0 || now >= model.MinutesPerDay {
		return fmt.Errorf("%w: now %d is outside the planning day", ErrInvalidEvent, int(now))
	}
	return nil
}

// DelayStart moves a case's readiness to the previously solved start plus
// added, and never earlier than now. A negative added pulls the case
// forward. For this cycle it floats even if it had already started.
func (p *Planner) DelayStart(ctx context.Context, id string, added int, now model.Minute) (model.Schedule, error) {
	if err := checkNow(now); err != nil {
		return model.Schedule{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	i, err := p.lookup(id)
	if err != nil {
		return model.Schedule{}, err
	}

	roster := cloneCases(p.cases)
	prev := p.topo.Constants.DayStart
	if row, ok := p.accepted.Row(id); ok {
		prev = row.Start
	}
	roster[i].Ready = max(prev+model.Minute(added), now)
	p.log.Infof("delaying %s by %d minutes, ready at %s", id, added, roster[i].Ready)
	return p.replan(ctx, events.TriggerDelay, id, now, roster, id)
}

// ChangeDuration adjusts a case's duration by delta minutes, never below
// the minimum duration. A started case keeps its room and start.
func (p *Planner) ChangeDuration(ctx context.Context, id string, delta int, now model.Minute) (model.Schedule, error) {
	if err := checkNow(now); err != nil {
		return model.Schedule{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	i, err := p.lookup(id)
	if err != nil {
		return model.Schedule{}, err
	}

	roster := cloneCases(p.cases)
	roster[i].Duration = max(p.minDuration, roster[i].Duration+delta)
	p.log.Infof("duration of %s changed by %d to %d minutes", id, delta, roster[i].Duration)
	return p.replan(ctx, events.TriggerDuration, id, now, roster, "")
}

// AdmitEmergency appends an emergency case for the given procedure, bound
// to the emergency room from now on, and re-plans. It returns the id of the
// new case with the accepted schedule.
func (p *Planner) AdmitEmergency(ctx context.Context, procedure string, now model.Minute) (string, model.Schedule, error) {
	if procedure == "" {
		return "", model.Schedule{}, fmt.Errorf("%w: emergency without procedure", ErrInvalidEvent)
	}
	if err := checkNow(now); err != nil {
		return "", model.Schedule{}, err
	}
	if p.topo.Emergency.Room == "" {
		return "", model.Schedule{}, fmt.Errorf("%w: no emergency room configured", ErrInvalidEvent)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	policy := p.topo.Emergency
	c := model.Case{
		ID:        p.emergencyID(),
		Procedure: procedure,
		Clinician: p.emergencyClinician(procedure, now),
		Duration:  policy.DurationMinutes,
		Severity:  policy.Severity,
		Ready:     now,
		MinStart:  now,
		Pin:       model.ExplicitIn(policy.Room, now),
		Emergency: true,
	}
	roster := append(cloneCases(p.cases), c)
	p.log.Infof("admitting emergency %s (%s) with %s in %s", c.ID, procedure, c.Clinician, policy.Room)
	sched, err := p.replan(ctx, events.TriggerEmergency, c.ID, now, roster, "")
	if err != nil {
		return "", model.Schedule{}, err
	}
	return c.ID, sched, nil
}

// emergencyID numbers emergencies after the roster size, skipping ids
// already taken.
func (p *Planner) emergencyID() string {
	for n := len(p.cases) + 1; ; n++ {
		id := fmt.Sprintf("EMERG-%d", n)
		if _, taken := p.index[id]; !taken {
			return id
		}
	}
}

// emergencyClinician returns the primary clinician for the procedure, or
// its backup when the primary is operating or on break at now according
// to the accepted schedule.
func (p *Planner) emergencyClinician(procedure string, now model.Minute) string {
	primary := p.topo.PrimaryFor(procedure)
	if !p.busy(primary, now) {
		return primary
	}
	backup, ok := p.topo.BackupFor(procedure)
	if !ok {
		p.log.Warnf("%s is busy at %s and no backup covers %s", primary, now, procedure)
		return primary
	}
	p.log.Infof("%s is busy at %s, assigning backup %s", primary, now, backup.Name)
	return backup.Name
}

func (p *Planner) busy(clinician string, now model.Minute) bool {
	brk := model.Minute(p.topo.Constants.BreakMinutes)
	for _, r := range p.accepted.Rows {
		if r.Clinician == clinician && r.Start <= now && now < r.End+brk {
			return true
		}
	}
	return false
}

// Refresh re-plans the unchanged roster at now. Cases that started since
// the last cycle become locked.
func (p *Planner) Refresh(ctx context.Context, now model.Minute) (model.Schedule, error) {
	if err := checkNow(now); err != nil {
		return model.Schedule{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.replan(ctx, events.TriggerRefresh, "", now, cloneCases(p.cases), "")
}
