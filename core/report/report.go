// Package report derives operating-room KPIs from an accepted schedule.
package report

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/orplan/core/model"
)

// RoomUtilization is the share of the regular day a room spends operating.
type RoomUtilization struct {
	Room        string  `json:"room"`
	BusyMinutes int     `json:"busy_minutes"`
	Utilization float64 `json:"utilization"`
}

// KPIs summarizes a schedule.
type KPIs struct {
	Cases    int          `json:"cases"`
	Makespan model.Minute `json:"makespan"`
	// OvertimeMinutes sums the operating minutes past the end of the day.
	OvertimeMinutes int `json:"overtime_minutes"`
	// MeanWait and WaitStdDev describe start minus readiness, weighted by
	// severity.
	MeanWait   float64           `json:"mean_wait"`
	WaitStdDev float64           `json:"wait_stddev"`
	Rooms      []RoomUtilization `json:"rooms"`
}

// Compute returns the KPIs of sched. Rooms follow topology order; idle
// rooms are reported with zero utilization.
func Compute(topo model.Topology, cases []model.Case, sched model.Schedule) KPIs {
	dayStart, dayEnd := int(topo.Constants.DayStart), int(topo.Constants.DayEnd)
	k := KPIs{Cases: len(sched.Rows), Makespan: sched.Makespan()}

	ready := make(map[string]model.Case, len(cases))
	for _, c := range cases {
		ready[c.ID] = c
	}
	busy := make(map[string]int, len(topo.Rooms))
	var waits, weights []float64
	for _, r := range sched.Rows {
		start, end := int(r.Start), int(r.End)
		busy[r.Room] += max(0, min(end, dayEnd)-max(start, dayStart))
		k.OvertimeMinutes += max(0, end-max(start, dayEnd))
		if c, ok := ready[r.CaseID]; ok {
			waits = append(waits, float64(r.Start-c.Ready))
			weights = append(weights, float64(max(c.Severity, 1)))
		}
	}
	if len(waits) > 0 {
		k.MeanWait, k.WaitStdDev = stat.MeanStdDev(waits, weights)
		if math.IsNaN(k.WaitStdDev) {
			k.WaitStdDev = 0
		}
	}

	day := float64(dayEnd - dayStart)
	for _, room := range topo.Rooms {
		u := RoomUtilization{Room: room.ID, BusyMinutes: busy[room.ID]}
		if day > 0 {
			u.Utilization = float64(u.BusyMinutes) / day
		}
		k.Rooms = append(k.Rooms, u)
	}
	return k
}

// MeanUtilization averages room utilization across all rooms.
func (k KPIs) MeanUtilization() float64 {
	if len(k.Rooms) == 0 {
		return 0
	}
	u := make([]float64, len(k.Rooms))
	for i, r := range k.Rooms {
		u[i] = r.Utilization
	}
	return stat.Mean(u, nil)
}
