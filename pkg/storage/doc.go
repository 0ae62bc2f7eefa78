// Package storage provides the GORM-backed persistence layer for build
// coordination.
//
// This package includes:
//   - GormStorage, implementing core.Storage for SQLite and PostgreSQL
//   - The claim transaction that leases jobs to workers exactly once
//   - Token-guarded conditional updates for completion, requeue and leases
//   - Connection pool configuration helpers
//
// On PostgreSQL the claim path uses FOR UPDATE SKIP LOCKED so concurrent
// workers never contend on the same row. On SQLite, where row locking is
// unavailable, the guarded update re-checks the job's observed state and the
// loser of a race retries against a fresh snapshot.
//
// Most users should import the root package
// github.com/techwithparamesh/applyn-sub004 which re-exports the constructors.
package storage
