// Package history persists every re-plan outcome, accepted or rejected, so
// schedule revisions can be audited after the fact.
package history

import (
	"context"
	"slices"
	"time"

	"github.com/kilianp07/orplan/core/model"
)

// Revision is one re-plan outcome.
type Revision struct {
	ID        string             `json:"id"`
	Timestamp time.Time          `json:"timestamp"`
	Trigger   string             `json:"trigger"`
	CaseID    string             `json:"case_id,omitempty"`
	Now       model.Minute       `json:"now"`
	Accepted  bool               `json:"accepted"`
	Error     string             `json:"error,omitempty"`
	Objective int64              `json:"objective,omitempty"`
	Rows      []model.Assignment `json:"rows,omitempty"`
}

// Query filters revisions. Zero fields match everything.
type Query struct {
	Start   time.Time
	End     time.Time
	CaseID  string
	Trigger string
	// Accepted restricts results to accepted revisions.
	Accepted bool
	// Limit keeps only the most recent matches when positive.
	Limit int
}

// Store persists Revisions and supports querying.
type Store interface {
	Append(ctx context.Context, rev Revision) error
	Query(ctx context.Context, q Query) ([]Revision, error)
	Close() error
}

// Match reports whether r satisfies the query filters.
func (q Query) Match(r Revision) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Trigger != "" && r.Trigger != q.Trigger {
		return false
	}
	if q.Accepted && !r.Accepted {
		return false
	}
	if q.CaseID != "" && r.CaseID != q.CaseID {
		return slices.ContainsFunc(r.Rows, func(a model.Assignment) bool { return a.CaseID == q.CaseID })
	}
	return true
}

func (q Query) limit(res []Revision) []Revision {
	if q.Limit > 0 && len(res) > q.Limit {
		return res[len(res)-q.Limit:]
	}
	return res
}

// NopStore discards revisions.
type NopStore struct{}

func (NopStore) Append(context.Context, Revision) error           { return nil }
func (NopStore) Query(context.Context, Query) ([]Revision, error) { return nil, nil }
func (NopStore) Close() error                                     { return nil }
