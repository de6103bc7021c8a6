package model

import (
	"cmp"
	"slices"
	"time"
)

// Assignment is one solved row of a schedule.
type Assignment struct {
	CaseID    string `json:"case_id"`
	Procedure string `json:"procedure"`
	Clinician string `json:"clinician"`
	Room      string `json:"room"`
	Start     Minute `json:"start"`
	End       Minute `json:"end"`
	Duration  int    `json:"duration"`
	Severity  int    `json:"severity"`
}

// SolveStats describes how a schedule was obtained.
type SolveStats struct {
	Objective int64         `json:"objective"`
	Optimal   bool          `json:"optimal"`
	Nodes     int           `json:"nodes"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Schedule is the output of one solve. Rows are ordered by start.
type Schedule struct {
	Revision string       `json:"revision"`
	SolvedAt Minute       `json:"solved_at"`
	Rows     []Assignment `json:"rows"`
	Stats    SolveStats   `json:"stats"`
}

// Empty reports whether the schedule has no rows.
func (s Schedule) Empty() bool { return len(s.Rows) == 0 }

// Row returns the assignment of the given case.
func (s Schedule) Row(caseID string) (Assignment, bool) {
	for _, r := range s.Rows {
		if r.CaseID == caseID {
			return r, true
		}
	}
	return Assignment{}, false
}

// Makespan is the latest end among all rows.
func (s Schedule) Makespan() Minute {
	var out Minute
	for _, r := range s.Rows {
		out = max(out, r.End)
	}
	return out
}

// Clone returns a copy safe to hand to read-only consumers.
func (s Schedule) Clone() Schedule {
	s.Rows = slices.Clone(s.Rows)
	return s
}

// SortRows orders rows by start, then room, then case id.
func SortRows(rows []Assignment) {
	slices.SortStableFunc(rows, func(a, b Assignment) int {
		if c := cmp.Compare(a.Start, b.Start); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Room, b.Room); c != 0 {
			return c
		}
		return cmp.Compare(a.CaseID, b.CaseID)
	})
}
