package scheduler

import (
	"errors"
	"fmt"

	"github.com/kilianp07/orplan/core/model"
)

// Verify re-checks every hard constraint of a schedule against the roster
// and topology it was solved for. It returns all violations joined.
func Verify(topo model.Topology, cases []model.Case, sched model.Schedule) error {
	var errs []error
	rows := make(map[string]model.Assignment, len(sched.Rows))
	for _, r := range sched.Rows {
		if _, dup := rows[r.CaseID]; dup {
			errs = append(errs, fmt.Errorf("case %s scheduled twice", r.CaseID))
		}
		rows[r.CaseID] = r
	}
	if len(sched.Rows) != len(cases) {
		errs = append(errs, fmt.Errorf("%d rows for %d cases", len(sched.Rows), len(cases)))
	}

	c := topo.Constants
	for _, cs := range cases {
		r, ok := rows[cs.ID]
		if !ok {
			errs = append(errs, fmt.Errorf("case %s missing", cs.ID))
			continue
		}
		if r.End-r.Start != model.Minute(cs.Duration) {
			errs = append(errs, fmt.Errorf("case %s spans %d minutes, expected %d", cs.ID, r.End-r.Start, cs.Duration))
		}
		if r.Start < c.DayStart || r.Start < cs.Ready {
			errs = append(errs, fmt.Errorf("case %s starts at %s before readiness", cs.ID, r.Start))
		}
		if fixed, ok := cs.Pin.FixedStart(); ok && r.Start != fixed {
			errs = append(errs, fmt.Errorf("case %s moved from pinned start %s to %s", cs.ID, fixed, r.Start))
		}
		if _, ok := cs.Pin.FixedStart(); !ok {
			floor := cs.MinStart
			if cs.Pin.State == model.PinExplicit {
				floor = max(floor, cs.Pin.Start)
			}
			if r.Start < floor {
				errs = append(errs, fmt.Errorf("case %s starts at %s before %s", cs.ID, r.Start, floor))
			}
		}
		if room, ok := cs.Pin.FixedRoom(); ok {
			if r.Room != room {
				errs = append(errs, fmt.Errorf("case %s moved from pinned room %s to %s", cs.ID, room, r.Room))
			}
		} else if room, ok := topo.Room(r.Room); !ok || !room.Hosts(cs.Procedure) {
			errs = append(errs, fmt.Errorf("case %s placed in incompatible room %s", cs.ID, r.Room))
		}
	}

	for i := range sched.Rows {
		a := sched.Rows[i]
		for j := i + 1; j < len(sched.Rows); j++ {
			b := sched.Rows[j]
			if a.Room == b.Room && a.Start < b.End+model.Minute(c.TurnoverMinutes) && b.Start < a.End+model.Minute(c.TurnoverMinutes) {
				errs = append(errs, fmt.Errorf("room %s double-booked by %s and %s", a.Room, a.CaseID, b.CaseID))
			}
			if _, tracked := topo.Clinician(a.Clinician); tracked && a.Clinician == b.Clinician &&
				a.Start < b.End+model.Minute(c.BreakMinutes) && b.Start < a.End+model.Minute(c.BreakMinutes) {
				errs = append(errs, fmt.Errorf("clinician %s double-booked by %s and %s", a.Clinician, a.CaseID, b.CaseID))
			}
		}
	}

	for _, pool := range topo.Equipment {
		var users []model.Assignment
		for _, cs := range cases {
			if cs.Needs(pool.Name) {
				if r, ok := rows[cs.ID]; ok {
					users = append(users, r)
				}
			}
		}
		for _, u := range users {
			n := 0
			for _, v := range users {
				if v.Start <= u.Start && u.Start < v.End {
					n++
				}
			}
			if n > pool.Capacity {
				errs = append(errs, fmt.Errorf("equipment %s over capacity at %s: %d > %d", pool.Name, u.Start, n, pool.Capacity))
			}
		}
	}
	return errors.Join(errs...)
}
