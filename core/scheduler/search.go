package scheduler

import (
	"cmp"
	"context"
	"slices"
)

// checkEvery is how many nodes are expanded between context checks.
const checkEvery = 64

type child struct {
	job, room, start int
}

type search struct {
	ctx       context.Context
	p         *problem
	tl        *timeline
	rank      []int
	floating  []int
	nodeLimit int

	nodes    int
	stopped  bool
	found    bool
	bestCost int64
	bestRoom []int
	bestAt   []int
}

func newSearch(ctx context.Context, p *problem, clinicians, nodeLimit int) *search {
	s := &search{
		ctx:       ctx,
		p:         p,
		tl:        newTimeline(p, clinicians),
		nodeLimit: nodeLimit,
		rank:      make([]int, len(p.jobs)),
	}
	for i := range p.jobs {
		if !p.jobs[i].fixed {
			s.floating = append(s.floating, i)
		}
	}
	// Weighted-shortest-first priority, then readiness, then id. The first
	// descent of the search is therefore the classic greedy dispatch.
	slices.SortStableFunc(s.floating, func(a, b int) int {
		ja, jb := &p.jobs[a], &p.jobs[b]
		if c := cmp.Compare(jb.weight*int64(ja.dur), ja.weight*int64(jb.dur)); c != 0 {
			return c
		}
		if c := cmp.Compare(ja.lb, jb.lb); c != 0 {
			return c
		}
		return cmp.Compare(ja.c.ID, jb.c.ID)
	})
	for pos, j := range s.floating {
		s.rank[j] = pos
	}
	return s
}

// pin places every fixed job. It fails when pinned jobs contradict each
// other, which no search can repair.
func (s *search) pin() (int, bool) {
	for i := range s.p.jobs {
		jb := &s.p.jobs[i]
		if !jb.fixed {
			continue
		}
		r := jb.rooms[0]
		if !s.tl.fits(i, r, jb.start) {
			return i, false
		}
		s.tl.place(i, r, jb.start)
	}
	return -1, true
}

func (s *search) run() {
	s.dfs()
}

func (s *search) limitHit() bool {
	if s.stopped {
		return true
	}
	// The node budget only applies once an incumbent exists.
	if s.found && s.nodes >= s.nodeLimit {
		s.stopped = true
		return true
	}
	if s.nodes%checkEvery == 0 && s.ctx.Err() != nil {
		s.stopped = true
		return true
	}
	return false
}

func (s *search) dfs() {
	if s.limitHit() {
		return
	}
	s.nodes++
	if s.tl.placed == len(s.p.jobs) {
		if cost := s.tl.cost(); !s.found || cost < s.bestCost {
			s.record(cost)
		}
		return
	}
	if s.found && s.lowerBound() >= s.bestCost {
		return
	}
	for _, ch := range s.children() {
		s.tl.place(ch.job, ch.room, ch.start)
		s.dfs()
		s.tl.unplace(ch.job)
		if s.stopped {
			return
		}
	}
}

// children lists every (job, room) extension of the current partial
// schedule, each at its earliest feasible start. A job that fits nowhere
// makes the node a dead end.
func (s *search) children() []child {
	var out []child
	for _, j := range s.floating {
		if s.tl.room[j] >= 0 {
			continue
		}
		placed := false
		for _, r := range s.p.jobs[j].rooms {
			t := s.tl.earliest(j, r)
			if t < 0 {
				continue
			}
			placed = true
			out = append(out, child{job: j, room: r, start: t})
		}
		if !placed {
			return nil
		}
	}
	slices.SortStableFunc(out, func(a, b child) int {
		if c := cmp.Compare(s.rank[a.job], s.rank[b.job]); c != 0 {
			return c
		}
		if c := cmp.Compare(a.start, b.start); c != 0 {
			return c
		}
		return cmp.Compare(a.room, b.room)
	})
	return out
}

// lowerBound never overestimates the cost of any completion: unplaced jobs
// cannot start before their lower bound.
func (s *search) lowerBound() int64 {
	bound := s.tl.weighted
	makespan := s.tl.makespan
	for _, j := range s.floating {
		if s.tl.room[j] >= 0 {
			continue
		}
		jb := &s.p.jobs[j]
		bound += jb.weight * int64(jb.lb)
		makespan = max(makespan, jb.lb+jb.dur)
	}
	return bound + int64(makespan)
}

func (s *search) record(cost int64) {
	s.found = true
	s.bestCost = cost
	s.bestRoom = slices.Clone(s.tl.room)
	s.bestAt = slices.Clone(s.tl.start)
}
