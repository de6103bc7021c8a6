// Package replan holds the case registry of one scheduling session and
// re-plans it on every operational event.
//
// Every handler follows the same cycle under a single lock: mutate the
// roster, recompute each case's pin against the last accepted schedule and
// the current minute, solve, then either accept the new schedule or keep
// the previous one and roll the mutation back.
package replan
