package scheduler

import (
	"fmt"
	"slices"

	"github.com/kilianp07/orplan/core/model"
)

// job is a case compiled against the topology.
type job struct {
	c      model.Case
	dur    int
	lb     int
	weight int64
	// rooms holds the indexes of the rooms the case may occupy.
	rooms []int
	// clinician is the roster index, or -1 when the clinician is not tracked.
	clinician int
	pools     []int
	fixed     bool
	start     int
	// tail is how far past its end the case keeps some resource busy.
	tail int
}

type problem struct {
	jobs     []job
	rooms    []model.Room
	poolCap  []int
	turnover int
	brk      int
	horizon  int
}

// compile turns the roster into solver jobs. Any case that can never be
// placed makes the roster infeasible.
func compile(topo model.Topology, cfg Config, cases []model.Case) (*problem, error) {
	p := &problem{
		rooms:    topo.Rooms,
		turnover: topo.Constants.TurnoverMinutes,
		brk:      topo.Constants.BreakMinutes,
		horizon:  cfg.HorizonMinutes,
	}
	roomIdx := make(map[string]int, len(topo.Rooms))
	for i, r := range topo.Rooms {
		roomIdx[r.ID] = i
	}
	clinIdx := make(map[string]int, len(topo.Clinicians))
	for i, c := range topo.Clinicians {
		clinIdx[c.Name] = i
	}
	poolIdx := make(map[string]int, len(topo.Equipment))
	p.poolCap = make([]int, len(topo.Equipment))
	for i, e := range topo.Equipment {
		poolIdx[e.Name] = i
		p.poolCap[i] = e.Capacity
	}

	seen := make(map[string]bool, len(cases))
	dayStart := int(topo.Constants.DayStart)
	for _, c := range cases {
		if seen[c.ID] {
			return nil, fmt.Errorf("%w: duplicate case %s", ErrInfeasible, c.ID)
		}
		seen[c.ID] = true
		if c.Duration <= 0 {
			return nil, fmt.Errorf("%w: case %s has non-positive duration %d", ErrInfeasible, c.ID, c.Duration)
		}
		j := job{
			c:         c,
			dur:       c.Duration,
			weight:    int64(max(c.Severity, 1)) * int64(cfg.SeverityWeightFactor),
			clinician: -1,
			tail:      p.turnover,
		}
		if idx, ok := clinIdx[c.Clinician]; ok {
			j.clinician = idx
			j.tail = max(j.tail, p.brk)
		}

		if room, ok := c.Pin.FixedRoom(); ok {
			idx, known := roomIdx[room]
			if !known {
				return nil, fmt.Errorf("%w: case %s pinned to unknown room %s", ErrInfeasible, c.ID, room)
			}
			j.rooms = []int{idx}
		} else {
			for i, r := range topo.Rooms {
				if r.Hosts(c.Procedure) {
					j.rooms = append(j.rooms, i)
				}
			}
			if len(j.rooms) == 0 {
				return nil, fmt.Errorf("%w: no room hosts %s for case %s", ErrInfeasible, c.Procedure, c.ID)
			}
		}

		for _, name := range c.Equipment {
			idx, ok := poolIdx[name]
			if !ok {
				return nil, fmt.Errorf("%w: case %s needs unknown equipment %s", ErrInfeasible, c.ID, name)
			}
			if !slices.Contains(j.pools, idx) {
				j.pools = append(j.pools, idx)
			}
		}

		j.lb = max(dayStart, int(c.Ready))
		if start, ok := c.Pin.FixedStart(); ok {
			j.fixed = true
			j.start = int(start)
			if j.start < j.lb {
				return nil, fmt.Errorf("%w: case %s pinned at %s before its readiness %s",
					ErrInfeasible, c.ID, start, model.Minute(j.lb))
			}
		} else {
			j.lb = max(j.lb, int(c.MinStart))
			if c.Pin.State == model.PinExplicit {
				j.lb = max(j.lb, int(c.Pin.Start))
			}
		}
		if first := j.earliestCandidate(); first+j.dur+j.tail > p.horizon {
			return nil, fmt.Errorf("%w: case %s cannot finish within the %d minute horizon",
				ErrInfeasible, c.ID, p.horizon)
		}
		p.jobs = append(p.jobs, j)
	}
	return p, nil
}

func (j *job) earliestCandidate() int {
	if j.fixed {
		return j.start
	}
	return j.lb
}
