// Package scheduler assigns rooms and start times to surgical cases.
//
// A solve places every case on an integer-minute horizon subject to room
// compatibility, room and clinician exclusivity (with turnover and break
// buffers), cumulative equipment capacity and the pin state carried by each
// case. Among feasible placements it minimizes the makespan plus the
// severity-weighted sum of start times. The search is a deterministic
// branch-and-bound over serial schedule generation, bounded by a node limit
// and a wall-clock limit; when a limit is hit the best schedule found so far
// is returned. A solve never returns a partial schedule: any case that cannot
// be placed makes the whole solve infeasible.
package scheduler
