// Package queue provides the BuildQueue orchestrator coordinating build jobs
// between the API, workers and storage.
//
// All job state transitions flow through this package: enqueueing, atomic
// claims under a lease, guarded completion and requeue, and expired-lease
// reclamation. The queue also fans out lifecycle events to subscribers and
// fires registered hooks, and nudges idle workers through an optional
// notifier after new work is committed.
//
// Most users should import the root package
// github.com/techwithparamesh/applyn-sub004 which re-exports the queue API.
package queue
