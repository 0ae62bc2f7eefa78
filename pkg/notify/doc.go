// Package notify carries the optional wake signal between enqueuers and
// workers.
//
// The database remains the single source of truth for claims; a notifier
// only shortens the idle poll wait when new work arrives. RedisNotifier keeps
// a single coalesced token on a Redis list so any number of enqueues while
// all workers are busy cost one wake-up. NopNotifier degrades to plain
// interval polling when no Redis is configured.
package notify
