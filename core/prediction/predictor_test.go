package prediction

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/orplan/core/model"
)

func TestLinearPredictor(t *testing.T) {
	p := NewLinearPredictor(LinearModel{
		Intercept:  40,
		Procedures: map[string]float64{"Cardiovascular": 60},
		Severity:   5,
		Equipment:  map[string]float64{"Robot": 15},
		Features:   map[string]float64{"age": 0.5, "bmi": 1},
	}, 30)

	rec := model.CaseRecord{
		ID:        "p1",
		Procedure: "Cardiovascular",
		Severity:  3,
		Equipment: map[string]bool{"Robot": true, "C-Arm": false},
		Features:  map[string]float64{"age": 60, "bmi": 25},
	}
	res := p.Predict(rec)
	require.True(t, res.OK())
	// 40 + 60 + 15 + 15 + 30 + 25
	assert.Equal(t, 185, res.Minutes)
}

func TestLinearPredictor_Minimum(t *testing.T) {
	p := NewLinearPredictor(LinearModel{Intercept: -100}, 30)
	res := p.Predict(model.CaseRecord{ID: "p1"})
	require.True(t, res.OK())
	assert.Equal(t, 30, res.Minutes)
}

func TestLinearPredictor_MissingFeature(t *testing.T) {
	p := NewLinearPredictor(LinearModel{Features: map[string]float64{"age": 1}}, 30)
	res := p.Predict(model.CaseRecord{ID: "p1"})
	assert.False(t, res.OK())
	assert.ErrorIs(t, res.Err, ErrPredictionFailed)
}

func TestLinearPredictor_NotFinite(t *testing.T) {
	p := NewLinearPredictor(LinearModel{Features: map[string]float64{"x": 1}}, 30)
	res := p.Predict(model.CaseRecord{ID: "p1", Features: map[string]float64{"x": math.Inf(1)}})
	assert.ErrorIs(t, res.Err, ErrPredictionFailed)
}

func TestFixedPredictor(t *testing.T) {
	res := FixedPredictor{}.Predict(model.CaseRecord{ID: "p1"})
	assert.ErrorIs(t, res.Err, ErrPredictionFailed)
	m, degraded := Resolve(res, 120)
	assert.True(t, degraded)
	assert.Equal(t, 120, m)
}

func TestResolve(t *testing.T) {
	m, degraded := Resolve(Prediction{Minutes: 75}, 120)
	assert.False(t, degraded)
	assert.Equal(t, 75, m)
}

func TestMockPredictor(t *testing.T) {
	m := MockPredictor{Minutes: map[string]int{"a": 90}, Fail: map[string]bool{"b": true}}
	assert.Equal(t, 90, m.Predict(model.CaseRecord{ID: "a"}).Minutes)
	assert.False(t, m.Predict(model.CaseRecord{ID: "b"}).OK())
	assert.False(t, m.Predict(model.CaseRecord{ID: "c"}).OK())
	m.Default = 45
	assert.Equal(t, 45, m.Predict(model.CaseRecord{ID: "c"}).Minutes)
}

func TestNew(t *testing.T) {
	p, err := New(Config{Mode: "fixed"})
	require.NoError(t, err)
	assert.IsType(t, FixedPredictor{}, p)

	p, err = New(Config{})
	require.NoError(t, err)
	assert.IsType(t, &LinearPredictor{}, p)

	_, err = New(Config{Mode: "xgboost"})
	assert.Error(t, err)
}

func TestRegisterMode(t *testing.T) {
	require.NoError(t, Register("constant-test", func(cfg Config) (DurationPredictor, error) {
		return MockPredictor{Default: cfg.MinMinutes}, nil
	}))
	assert.Error(t, Register("constant-test", nil))
	assert.Error(t, Register("linear", nil))
	assert.Contains(t, Modes(), "constant-test")

	p, err := New(Config{Mode: "constant-test", MinMinutes: 45})
	require.NoError(t, err)
	assert.Equal(t, 45, p.Predict(model.CaseRecord{ID: "x"}).Minutes)
}
