// Package billing settles payments and applies plan entitlements.
//
// A payment leaves pending exactly once: settlement is a conditional update
// guarded on the current status, so a replayed provider webhook reports
// updated=false and leaves the record alone. Entitlement application is a
// separate idempotent step gated by the EntitlementsAppliedAt marker, which
// keeps the pipeline safe when either half is retried on its own.
package billing
