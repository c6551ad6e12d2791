// Package session provides the durable, single-writer session state for one
// tenant: queued extraction jobs, the pending-validation shadow list, the
// bounded recent-claims dedup cache, the error log, and running metrics.
//
// State persists as a versioned JSON document. Loads that find a missing,
// corrupt, wrong-version, or foreign-tenant document keep a fresh session
// instead of failing; saves serialize then atomically replace the file so a
// partial write is never observable.
package session
