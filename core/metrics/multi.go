package metrics

import "errors"

// MultiSink fans events out to multiple sinks. Every sink is attempted;
// the errors are joined.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordSolve forwards the event to all sinks.
func (m *MultiSink) RecordSolve(ev SolveEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordSolve(ev))
	}
	return errors.Join(errs...)
}

// RecordKPIs forwards KPIs to the sinks that record them.
func (m *MultiSink) RecordKPIs(ev KPIEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(KPIRecorder); ok {
			errs = append(errs, rec.RecordKPIs(ev))
		}
	}
	return errors.Join(errs...)
}

// RecordPrediction forwards predictions to the sinks that record them.
func (m *MultiSink) RecordPrediction(ev PredictionEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(PredictionRecorder); ok {
			errs = append(errs, rec.RecordPrediction(ev))
		}
	}
	return errors.Join(errs...)
}
