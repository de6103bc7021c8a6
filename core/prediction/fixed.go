package prediction

import "github.com/kilianp07/orplan/core/model"

// FixedPredictor is the degraded mode: it never produces an estimate.
type FixedPredictor struct{}

// Predict always fails.
func (FixedPredictor) Predict(rec model.CaseRecord) Prediction {
	return Failed("fixed mode, no model for %s", rec.ID)
}
