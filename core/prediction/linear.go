package prediction

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/orplan/core/model"
)

// LinearModel holds the coefficients of a linear duration regression.
type LinearModel struct {
	Intercept float64 `json:"intercept"`
	// Procedures adds a per-procedure offset in minutes. Unknown procedures
	// contribute nothing.
	Procedures map[string]float64 `json:"procedures"`
	Severity   float64            `json:"severity"`
	Equipment  map[string]float64 `json:"equipment"`
	// Features weights numeric case features. Every weighted feature must be
	// present on the record.
	Features map[string]float64 `json:"features"`
}

// LinearPredictor evaluates a LinearModel.
type LinearPredictor struct {
	model LinearModel
	names []string
	coefs []float64
	min   int
}

// NewLinearPredictor prepares m for evaluation. Estimates below minMinutes
// are raised to it.
func NewLinearPredictor(m LinearModel, minMinutes int) *LinearPredictor {
	p := &LinearPredictor{model: m, min: minMinutes}
	for name := range m.Features {
		p.names = append(p.names, name)
	}
	slices.Sort(p.names)
	p.coefs = make([]float64, len(p.names))
	for i, name := range p.names {
		p.coefs[i] = m.Features[name]
	}
	return p
}

// Predict returns the regression estimate in whole minutes.
func (p *LinearPredictor) Predict(rec model.CaseRecord) Prediction {
	values := make([]float64, len(p.names))
	for i, name := range p.names {
		v, ok := rec.Features[name]
		if !ok {
			return Failed("case %s lacks feature %q", rec.ID, name)
		}
		values[i] = v
	}
	est := p.model.Intercept + p.model.Procedures[rec.Procedure] + p.model.Severity*float64(rec.Severity)
	for _, name := range rec.EquipmentNames() {
		est += p.model.Equipment[name]
	}
	if len(values) > 0 {
		est += floats.Dot(p.coefs, values)
	}
	if math.IsNaN(est) || math.IsInf(est, 0) {
		return Failed("case %s: estimate is not finite", rec.ID)
	}
	return Prediction{Minutes: max(p.min, int(math.Round(est)))}
}
