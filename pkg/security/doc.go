// Package security provides validation, sanitization, and limits for build
// coordination.
//
// This package includes:
//   - Input validation for identifiers and Android package names
//   - Error message and build log sanitization before storage
//   - Clamping functions to enforce safe limits on attempts and concurrency
//   - Security-related constants defining maximum sizes and counts
//
// Most users should import the root package
// github.com/techwithparamesh/applyn-sub004 which re-exports these functions.
package security
