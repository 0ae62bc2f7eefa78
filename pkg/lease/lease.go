package lease

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"
)

// DefaultTTL is the lease duration used when none is configured. A build that
// holds a lease longer than this without extending it is presumed dead.
const DefaultTTL = 30 * time.Minute

// Manager computes lease staleness for a fixed TTL.
type Manager struct {
	ttl time.Duration
}

// NewManager returns a Manager with the given TTL, falling back to DefaultTTL
// when ttl is zero or negative.
func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{ttl: ttl}
}

// TTL returns the configured lease duration.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// StaleBefore returns the cutoff timestamp for the given instant. Leases
// stamped strictly before the cutoff are expired.
func (m *Manager) StaleBefore(now time.Time) time.Time {
	return now.Add(-m.ttl)
}

// ExpiresAt returns when a lease stamped at lockedAt stops being live.
func (m *Manager) ExpiresAt(lockedAt time.Time) time.Time {
	return lockedAt.Add(m.ttl)
}

// Expired reports whether a lease stamped at lockedAt has gone stale as of
// now. A nil lockedAt means no lease was ever taken.
func (m *Manager) Expired(lockedAt *time.Time, now time.Time) bool {
	if lockedAt == nil {
		return false
	}
	return lockedAt.Before(m.StaleBefore(now))
}

// NewToken generates an opaque lease token for the given worker. The worker
// id is kept as a prefix for log traceability; the random suffix makes the
// token unguessable across claims by the same worker.
func NewToken(workerID string) string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand only fails when the OS entropy source is broken.
		// Fall back to a timestamp so claims still make progress.
		return sanitizeWorkerID(workerID) + "." + hex.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano)))
	}
	return sanitizeWorkerID(workerID) + "." + hex.EncodeToString(b)
}

// sanitizeWorkerID strips characters that would make tokens awkward in logs
// or query strings and bounds the prefix length.
func sanitizeWorkerID(id string) string {
	var sb strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('-')
		}
	}
	out := sb.String()
	if out == "" {
		out = "worker"
	}
	if len(out) > 40 {
		out = out[:40]
	}
	return out
}
