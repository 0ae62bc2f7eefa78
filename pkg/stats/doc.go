// Package stats records minute-bucketed build activity for the ops history
// endpoint.
//
// A Collector subscribes to queue events and accumulates terminal-outcome
// counters in memory, flushing them into one row per minute. On the same
// cadence it snapshots current queue depth and prunes rows past the
// retention window. Counters are event-sourced, so the collector belongs in
// the process that performs the transitions it counts.
package stats
