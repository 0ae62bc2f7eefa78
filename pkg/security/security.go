// Package security provides validation, sanitization, and limits for build coordination.
package security

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/techwithparamesh/applyn-sub004/pkg/core"
)

// Security limits and configuration
const (
	// MaxIDLength is the maximum length for job, app and payment identifiers
	MaxIDLength = 64

	// MaxAttempts is the hard limit for build attempts
	MaxAttempts = 100

	// MaxConcurrency is the hard limit for worker concurrency
	MaxConcurrency = 1000

	// MaxErrorMessageLength is the maximum length for stored error messages
	MaxErrorMessageLength = 4096

	// MaxBuildLogBytes is the maximum size for stored build logs (64KB)
	MaxBuildLogBytes = 64 << 10

	// MaxPackageNameLength follows the Android manifest limit
	MaxPackageNameLength = 255
)

// validID matches alphanumeric, hyphens and underscores
var validID = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_\-]*$`)

// validPackageName matches reverse-DNS names like com.example.app
var validPackageName = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)+$`)

// ValidateID validates an entity identifier
func ValidateID(id string) error {
	if id == "" {
		return core.ErrInvalidID
	}
	if len(id) > MaxIDLength {
		return core.ErrInvalidID
	}
	if !validID.MatchString(id) {
		return core.ErrInvalidID
	}
	return nil
}

// ValidatePackageName validates an Android application id
func ValidatePackageName(name string) error {
	if name == "" {
		return core.ErrInvalidPackageName
	}
	if len(name) > MaxPackageNameLength {
		return core.ErrInvalidPackageName
	}
	if !validPackageName.MatchString(name) {
		return core.ErrInvalidPackageName
	}
	return nil
}

// SanitizeErrorMessage truncates and sanitizes error messages for storage
func SanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	// Remove any null bytes or control characters (except newlines)
	var sanitized strings.Builder
	sanitized.Grow(len(msg))

	for _, r := range msg {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			sanitized.WriteRune(r)
		}
	}

	result := sanitized.String()

	// Truncate if too long
	if utf8.RuneCountInString(result) > MaxErrorMessageLength {
		runes := []rune(result)
		result = string(runes[:MaxErrorMessageLength-3]) + "..."
	}

	return result
}

// TruncateBuildLogs keeps the tail of oversized build output. The end of a
// toolchain log carries the failure, so the head is what gets dropped.
func TruncateBuildLogs(logs string) string {
	if len(logs) <= MaxBuildLogBytes {
		return logs
	}
	tail := logs[len(logs)-MaxBuildLogBytes:]
	// Avoid splitting a multi-byte rune at the cut point.
	for len(tail) > 0 && !utf8.RuneStart(tail[0]) {
		tail = tail[1:]
	}
	if i := strings.IndexByte(tail, '\n'); i >= 0 && i < len(tail)-1 {
		tail = tail[i+1:]
	}
	return "...(truncated)...\n" + tail
}

// ClampAttempts ensures the attempt budget is within limits
func ClampAttempts(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxAttempts {
		return MaxAttempts
	}
	return n
}

// ClampConcurrency ensures concurrency is within limits
func ClampConcurrency(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxConcurrency {
		return MaxConcurrency
	}
	return n
}
