// Package events defines the planning events emitted on the event bus.
//
// Available event types:
//   - ScheduleAccepted: a re-plan produced a new accepted schedule
//   - ReplanRejected: an operational event could not be honored
//   - PredictionDegraded: a case received the fallback duration
package events
