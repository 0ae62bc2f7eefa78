// Package lease implements the time-bounded lock arithmetic behind build job
// claims.
//
// A lease is a (token, lockedAt) pair stored on the job row. The Manager
// decides when a lease has gone stale relative to its TTL and produces the
// cutoff timestamps the storage layer compares against. Tokens come from
// NewToken, which prefixes cryptographically random bytes with the worker id
// so a token in a log line can be traced back to its holder.
package lease
