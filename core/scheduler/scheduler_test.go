package scheduler

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/orplan/core/model"
)

func testTopology() model.Topology {
	topo := model.Topology{
		Rooms: []model.Room{
			{ID: "OR-1", Supports: []string{"Neurological"}},
			{ID: "OR-2", Supports: []string{"Neurological"}},
			{ID: "OR-3", Supports: []string{"Cardiovascular"}},
			{ID: "OR-4", Supports: []string{"General", "Orthopedic"}},
			{ID: "OR-11", Supports: []string{"General", "Orthopedic", "Cardiovascular"}},
		},
		Clinicians: []model.Clinician{
			{Name: "Dr. Strange", Specialties: []string{"Neurological"}},
			{Name: "Dr. Shepherd", Specialties: []string{"Neurological"}},
			{Name: "Dr. Yang", Specialties: []string{"Cardiovascular"}},
			{Name: "Dr. House", Specialties: []string{"General", "Orthopedic"}},
		},
		Equipment: []model.EquipmentPool{
			{Name: "C-Arm", Capacity: 4},
			{Name: "Robot", Capacity: 1},
		},
		Emergency: model.EmergencyPolicy{Room: "OR-11", DefaultPrimary: "Dr. House"},
	}
	topo.SetDefaults()
	return topo
}

func floating(id, proc, clin string, dur, sev int, equip ...string) model.Case {
	return model.Case{
		ID:        id,
		Procedure: proc,
		Clinician: clin,
		Duration:  dur,
		Severity:  sev,
		Equipment: equip,
		Ready:     480,
		Pin:       model.Floating(),
	}
}

func solve(t *testing.T, cases ...model.Case) (model.Schedule, error) {
	t.Helper()
	s := New(testTopology(), Config{}, nil)
	return s.Solve(context.Background(), cases)
}

func TestSolve_ParallelNeuroRooms(t *testing.T) {
	sched, err := solve(t,
		floating("c1", "Neurological", "Dr. Strange", 120, 2),
		floating("c2", "Neurological", "Dr. Shepherd", 120, 2),
	)
	require.NoError(t, err)
	require.Len(t, sched.Rows, 2)

	a, _ := sched.Row("c1")
	b, _ := sched.Row("c2")
	assert.Equal(t, model.Minute(480), a.Start)
	assert.Equal(t, model.Minute(480), b.Start)
	assert.NotEqual(t, a.Room, b.Room)
	assert.ElementsMatch(t, []string{"OR-1", "OR-2"}, []string{a.Room, b.Room})
	assert.True(t, sched.Stats.Optimal)
	assert.NotEmpty(t, sched.Revision)
}

func TestSolve_ClinicianBreak(t *testing.T) {
	sched, err := solve(t,
		floating("c1", "Neurological", "Dr. Strange", 90, 3),
		floating("c2", "Neurological", "Dr. Strange", 60, 1),
	)
	require.NoError(t, err)

	first, _ := sched.Row("c1")
	second, _ := sched.Row("c2")
	assert.Equal(t, model.Minute(480), first.Start)
	assert.GreaterOrEqual(t, int(second.Start), int(first.Start)+120)
}

func TestSolve_EquipmentCapacity(t *testing.T) {
	sched, err := solve(t,
		floating("c1", "Neurological", "Dr. Strange", 60, 2, "Robot"),
		floating("c2", "General", "Dr. House", 60, 2, "Robot"),
	)
	require.NoError(t, err)
	a, _ := sched.Row("c1")
	b, _ := sched.Row("c2")
	assert.True(t, a.End <= b.Start || b.End <= a.Start, "robot used twice at once: %+v %+v", a, b)
}

func TestSolve_SeverityFrontLoads(t *testing.T) {
	sched, err := solve(t,
		floating("low", "Cardiovascular", "Dr. Yang", 60, 1),
		floating("high", "Cardiovascular", "Dr. Yang", 60, 5),
	)
	require.NoError(t, err)
	high, _ := sched.Row("high")
	assert.Equal(t, model.Minute(480), high.Start)
	assert.Equal(t, "high", sched.Rows[0].CaseID)
}

func TestSolve_LockedCasesKeepPlacement(t *testing.T) {
	locked := floating("c1", "Neurological", "Dr. Strange", 200, 2)
	locked.Pin = model.LockedAt("OR-2", 500)
	sched, err := solve(t, locked, floating("c2", "Neurological", "Dr. Shepherd", 60, 2))
	require.NoError(t, err)

	row, _ := sched.Row("c1")
	assert.Equal(t, "OR-2", row.Room)
	assert.Equal(t, model.Minute(500), row.Start)
	assert.Equal(t, model.Minute(700), row.End)
}

func TestSolve_LockedConflictInfeasible(t *testing.T) {
	a := floating("c1", "Neurological", "Dr. Strange", 120, 2)
	a.Pin = model.LockedAt("OR-1", 480)
	b := floating("c2", "Neurological", "Dr. Shepherd", 120, 2)
	b.Pin = model.LockedAt("OR-1", 540)
	_, err := solve(t, a, b)
	require.ErrorIs(t, err, ErrInfeasible)
	assert.Contains(t, err.Error(), "pinned")
}

func TestSolve_NoCompatibleRoom(t *testing.T) {
	_, err := solve(t, floating("c1", "Dental", "Dr. House", 60, 1))
	require.ErrorIs(t, err, ErrInfeasible)
}

func TestSolve_UnknownEquipment(t *testing.T) {
	_, err := solve(t, floating("c1", "General", "Dr. House", 60, 1, "Laser"))
	require.ErrorIs(t, err, ErrInfeasible)
}

func TestSolve_HorizonOverflow(t *testing.T) {
	s := New(testTopology(), Config{HorizonMinutes: 700}, nil)
	_, err := s.Solve(context.Background(), []model.Case{
		floating("c1", "Cardiovascular", "Dr. Yang", 100, 1),
		floating("c2", "Cardiovascular", "Dr. Yang", 100, 1),
	})
	require.ErrorIs(t, err, ErrInfeasible)
	assert.True(t, strings.Contains(err.Error(), "horizon"))
}

func TestSolve_ExplicitEmergencyRoom(t *testing.T) {
	em := floating("EMERG-1", "Neurological", "Dr. Strange", 120, 4)
	em.Emergency = true
	em.Pin = model.ExplicitIn("OR-11", 600)
	em.Ready = 600
	sched, err := solve(t, em, floating("c1", "Neurological", "Dr. Shepherd", 60, 1))
	require.NoError(t, err)

	row, _ := sched.Row("EMERG-1")
	assert.Equal(t, "OR-11", row.Room)
	assert.GreaterOrEqual(t, int(row.Start), 600)
}

func TestSolve_EmptyRoster(t *testing.T) {
	sched, err := solve(t)
	require.NoError(t, err)
	assert.True(t, sched.Empty())
}

func TestSolve_CallerContextEnded(t *testing.T) {
	s := New(testTopology(), Config{}, nil)
	roster := []model.Case{floating("c1", "General", "Dr. House", 60, 1)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Solve(ctx, roster)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrInfeasible)

	expired, cancelExpired := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancelExpired()
	_, err = s.Solve(expired, roster)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrInfeasible)
}

func TestSolve_Deterministic(t *testing.T) {
	cases := []model.Case{
		floating("c1", "Neurological", "Dr. Strange", 90, 2),
		floating("c2", "Neurological", "Dr. Strange", 45, 4),
		floating("c3", "General", "Dr. House", 60, 1, "C-Arm"),
		floating("c4", "Orthopedic", "Dr. House", 30, 3, "C-Arm"),
	}
	first, err := solve(t, cases...)
	require.NoError(t, err)
	second, err := solve(t, cases...)
	require.NoError(t, err)
	assert.Equal(t, first.Rows, second.Rows)
	assert.NoError(t, Verify(testTopology(), cases, first))
}

func TestSolve_DuplicateCase(t *testing.T) {
	c := floating("c1", "General", "Dr. House", 60, 1)
	_, err := solve(t, c, c)
	require.ErrorIs(t, err, ErrInfeasible)
}

func TestVerify_DetectsViolations(t *testing.T) {
	topo := testTopology()
	cases := []model.Case{
		floating("c1", "Neurological", "Dr. Strange", 60, 1),
		floating("c2", "Neurological", "Dr. Strange", 60, 1),
	}
	sched := model.Schedule{Rows: []model.Assignment{
		{CaseID: "c1", Clinician: "Dr. Strange", Room: "OR-1", Start: 480, End: 540},
		{CaseID: "c2", Clinician: "Dr. Strange", Room: "OR-1", Start: 550, End: 610},
	}}
	err := Verify(topo, cases, sched)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "room OR-1 double-booked")
	assert.Contains(t, err.Error(), "clinician Dr. Strange double-booked")
}

func TestDecodeConfig(t *testing.T) {
	cfg, err := DecodeConfig(strings.NewReader("horizon_minutes: 1440\nnode_limit: 500\n"), "yaml")
	require.NoError(t, err)
	assert.Equal(t, 1440, cfg.HorizonMinutes)
	assert.Equal(t, 500, cfg.NodeLimit)
	assert.Equal(t, 2, cfg.SeverityWeightFactor)

	cfg, err = DecodeConfig(strings.NewReader(`{"time_limit_ms": 50}`), "json")
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.TimeLimitMS)

	_, err = DecodeConfig(strings.NewReader(`{}`), "toml")
	assert.Error(t, err)

	_, err = DecodeConfig(strings.NewReader("horizon_minutes: -1\n"), "yaml")
	assert.Error(t, err)
}
