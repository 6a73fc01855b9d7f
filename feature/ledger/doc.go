// Package ledger holds the audit trail and the per-hotel sync state.
//
// # Audit
//
// The audit trail is append-only. Begin writes a "running" record and
// Entry.Finish writes the terminal one (success, partial, failed) under the
// same trace id, so a crash mid-operation leaves a visible running record
// without a terminal sibling. An audit write that fails is logged and never
// fails the audited operation.
//
// # Sync state
//
// SyncState gates scheduled syncs (Enabled) and carries the date cursors used
// as the default pull window. All writes upsert the row, so concurrent
// bootstrap and pull runs of one hotel interleave safely.
//
// # HTTP Endpoints
//
//   - GET /sync/:hotelID/audit
//   - GET /sync/:hotelID/state
//   - PUT /sync/:hotelID/enabled
package ledger
