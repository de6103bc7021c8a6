// Package metrics defines the sinks that record planning outcomes: one
// SolveEvent per re-plan, schedule KPIs and duration predictions. Sinks are
// built from configuration through a factory registry; when several are
// configured they are combined in a MultiSink. Optional capabilities are
// expressed as separate recorder interfaces that a sink may implement.
package metrics
