package prediction

import "github.com/kilianp07/orplan/core/model"

// MockPredictor returns configured durations per case id.
type MockPredictor struct {
	Minutes map[string]int
	// Fail lists case ids whose prediction fails.
	Fail map[string]bool
	// Default is used for unknown ids; zero means failure.
	Default int
}

// Predict returns the configured duration for the record.
func (m MockPredictor) Predict(rec model.CaseRecord) Prediction {
	if m.Fail[rec.ID] {
		return Failed("mock failure for %s", rec.ID)
	}
	if v, ok := m.Minutes[rec.ID]; ok {
		return Prediction{Minutes: v}
	}
	if m.Default > 0 {
		return Prediction{Minutes: m.Default}
	}
	return Failed("no mock duration for %s", rec.ID)
}
