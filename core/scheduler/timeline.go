package scheduler

import "slices"

// span is a half-open busy interval [start, end) owned by a job.
type span struct {
	start, end int
	job        int
}

func overlaps(s span, from, to int) bool {
	return s.start < to && from < s.end
}

// timeline tracks the resource usage of a partial schedule. Jobs are removed
// in the reverse order they were placed, so each job's spans are always the
// last entries of their resource lists when it is unplaced.
type timeline struct {
	p        *problem
	rooms    [][]span
	clin     [][]span
	pools    [][]span
	start    []int
	room     []int
	weighted int64
	makespan int
	// history stacks the makespan before each placement.
	history []int
	placed  int
}

func newTimeline(p *problem, clinicians int) *timeline {
	tl := &timeline{
		p:     p,
		rooms: make([][]span, len(p.rooms)),
		clin:  make([][]span, clinicians),
		pools: make([][]span, len(p.poolCap)),
		start: make([]int, len(p.jobs)),
		room:  make([]int, len(p.jobs)),
	}
	for i := range tl.room {
		tl.room[i] = -1
	}
	return tl
}

// fits reports whether job j can start at t in room r without violating any
// exclusivity or capacity constraint.
func (tl *timeline) fits(j, r, t int) bool {
	jb := &tl.p.jobs[j]
	end := t + jb.dur
	if end+jb.tail > tl.p.horizon {
		return false
	}
	for _, s := range tl.rooms[r] {
		if overlaps(s, t, end+tl.p.turnover) {
			return false
		}
	}
	if jb.clinician >= 0 {
		for _, s := range tl.clin[jb.clinician] {
			if overlaps(s, t, end+tl.p.brk) {
				return false
			}
		}
	}
	for _, k := range jb.pools {
		if tl.peak(k, t, end) >= tl.p.poolCap[k] {
			return false
		}
	}
	return true
}

// peak is the highest number of units of pool k in use at any minute of
// [from, to). Usage only increases at span starts, so it is enough to
// sample from and every start inside the window.
func (tl *timeline) peak(k, from, to int) int {
	usage := func(at int) int {
		n := 0
		for _, s := range tl.pools[k] {
			if s.start <= at && at < s.end {
				n++
			}
		}
		return n
	}
	best := usage(from)
	for _, s := range tl.pools[k] {
		if s.start > from && s.start < to {
			best = max(best, usage(s.start))
		}
	}
	return best
}

// earliest returns the first start >= lb at which job j fits in room r, or
// -1 when it does not fit anywhere on the horizon. A job blocked at t-1 but
// free at t is always freed by some span ending at t, so only lb and span
// ends need to be tried.
func (tl *timeline) earliest(j, r int) int {
	jb := &tl.p.jobs[j]
	cands := []int{jb.lb}
	collect := func(spans []span) {
		for _, s := range spans {
			if s.end > jb.lb {
				cands = append(cands, s.end)
			}
		}
	}
	collect(tl.rooms[r])
	if jb.clinician >= 0 {
		collect(tl.clin[jb.clinician])
	}
	for _, k := range jb.pools {
		collect(tl.pools[k])
	}
	slices.Sort(cands)
	cands = slices.Compact(cands)
	for _, t := range cands {
		if t+jb.dur+jb.tail > tl.p.horizon {
			return -1
		}
		if tl.fits(j, r, t) {
			return t
		}
	}
	return -1
}

// place books job j in room r at t.
func (tl *timeline) place(j, r, t int) {
	jb := &tl.p.jobs[j]
	end := t + jb.dur
	tl.rooms[r] = append(tl.rooms[r], span{start: t, end: end + tl.p.turnover, job: j})
	if jb.clinician >= 0 {
		tl.clin[jb.clinician] = append(tl.clin[jb.clinician], span{start: t, end: end + tl.p.brk, job: j})
	}
	for _, k := range jb.pools {
		tl.pools[k] = append(tl.pools[k], span{start: t, end: end, job: j})
	}
	tl.start[j] = t
	tl.room[j] = r
	tl.weighted += jb.weight * int64(t)
	tl.history = append(tl.history, tl.makespan)
	tl.makespan = max(tl.makespan, end)
	tl.placed++
}

// unplace reverts the most recent placement, which must be job j.
func (tl *timeline) unplace(j int) {
	jb := &tl.p.jobs[j]
	r := tl.room[j]
	tl.rooms[r] = tl.rooms[r][:len(tl.rooms[r])-1]
	if jb.clinician >= 0 {
		tl.clin[jb.clinician] = tl.clin[jb.clinician][:len(tl.clin[jb.clinician])-1]
	}
	for _, k := range jb.pools {
		tl.pools[k] = tl.pools[k][:len(tl.pools[k])-1]
	}
	tl.weighted -= jb.weight * int64(tl.start[j])
	tl.makespan = tl.history[len(tl.history)-1]
	tl.history = tl.history[:len(tl.history)-1]
	tl.room[j] = -1
	tl.placed--
}

// cost is the objective of the placed jobs.
func (tl *timeline) cost() int64 {
	return int64(tl.makespan) + tl.weighted
}
