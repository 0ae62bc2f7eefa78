// Package worker provides the polling build worker.
//
// This package includes:
//   - Worker: claims build jobs and runs them through a Builder
//   - Builder: the toolchain interface a build runs behind
//   - Lease heartbeat, storage retry/backoff and janitor sweep plumbing
//
// Most users should import the root package github.com/techwithparamesh/applyn-sub004
// which wires a worker through applyn.NewWorker().
package worker
