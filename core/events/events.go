package events

import (
	"github.com/kilianp07/orplan/core/model"
	"github.com/kilianp07/orplan/core/report"
)

// Trigger names the operation that started a re-plan.
type Trigger string

const (
	TriggerIngest    Trigger = "ingest"
	TriggerDelay     Trigger = "delay"
	TriggerDuration  Trigger = "duration"
	TriggerEmergency Trigger = "emergency"
	TriggerRefresh   Trigger = "refresh"
)

// Event is anything published on the planning bus.
type Event interface {
	Kind() string
}

// ScheduleAccepted is published after a re-plan replaced the accepted
// schedule.
type ScheduleAccepted struct {
	Trigger  Trigger
	CaseID   string
	Now      model.Minute
	Schedule model.Schedule
	KPIs     report.KPIs
}

// Kind implements Event.
func (ScheduleAccepted) Kind() string { return "schedule_accepted" }

// ReplanRejected is published when a re-plan was infeasible and the
// previous schedule was retained.
type ReplanRejected struct {
	Trigger Trigger
	CaseID  string
	Now     model.Minute
	Err     error
}

// Kind implements Event.
func (ReplanRejected) Kind() string { return "replan_rejected" }

// PredictionDegraded is published when the duration predictor failed and
// the fallback duration was used.
type PredictionDegraded struct {
	CaseID   string
	Fallback int
	Err      error
}

// Kind implements Event.
func (PredictionDegraded) Kind() string { return "prediction_degraded" }
