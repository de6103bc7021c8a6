// Package prediction estimates surgical case durations from case features.
// Predictors never substitute a fallback themselves: a failed estimate is
// returned as such and the caller decides what duration to use.
package prediction
