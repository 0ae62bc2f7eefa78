// Package schedule provides scheduling implementations for recurring
// maintenance work such as lease reclamation sweeps.
//
// This package includes:
//   - Schedule interface for computing run times
//   - Every() for fixed-interval schedules
//   - Daily() for daily schedules at a specific time
//   - Cron() for cron expression-based schedules
//
// Most users should import the root package
// github.com/techwithparamesh/applyn-sub004 which re-exports these functions.
package schedule
