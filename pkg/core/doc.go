// Package core provides the fundamental types and interfaces for applyn's
// build coordination.
//
// This package contains:
//   - BuildJob, App and Payment data models with GORM annotations
//   - The Storage interface defining the persistence contract
//   - Event types for queue monitoring
//   - Error types shared across the module
//
// Most users should import the root package
// github.com/techwithparamesh/applyn-sub004 instead of this package directly.
package core
