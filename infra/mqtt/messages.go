package mqtt

import (
	"github.com/kilianp07/orplan/core/model"
	"github.com/kilianp07/orplan/core/report"
)

// DelayMessage is the payload of {prefix}/events/delay. Now is an HH:MM
// clock time and is required on every inbound event.
type DelayMessage struct {
	CaseID  string `json:"case_id"`
	Minutes int    `json:"minutes"`
	Now     string `json:"now"`
}

// DurationMessage is the payload of {prefix}/events/duration.
type DurationMessage struct {
	CaseID string `json:"case_id"`
	Delta  int    `json:"delta"`
	Now    string `json:"now"`
}

// EmergencyMessage is the payload of {prefix}/events/emergency.
type EmergencyMessage struct {
	Procedure string `json:"procedure"`
	Now       string `json:"now"`
}

// ScheduleMessage is published, retained, whenever a schedule is accepted.
type ScheduleMessage struct {
	Revision string             `json:"revision"`
	Trigger  string             `json:"trigger"`
	CaseID   string             `json:"case_id,omitempty"`
	Now      model.Minute       `json:"now"`
	Rows     []model.Assignment `json:"rows"`
	KPIs     report.KPIs        `json:"kpis"`
}

// RejectionMessage is published when a re-plan was refused.
type RejectionMessage struct {
	Trigger string       `json:"trigger"`
	CaseID  string       `json:"case_id,omitempty"`
	Now     model.Minute `json:"now"`
	Error   string       `json:"error"`
}
