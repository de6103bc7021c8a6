// Package infra holds the adapters of the planner: the MQTT bridge, metrics
// sinks, Sentry reporting and remote duration prediction. They depend only on
// interfaces defined in the core packages.
package infra
