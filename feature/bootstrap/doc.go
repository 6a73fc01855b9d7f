// Package bootstrap performs the initial import of a provider property.
//
// # Phases
//
//  1. Hotel: fetch the property and upsert the hotel record plus its
//     bidirectional mapping. A failure here aborts the whole bootstrap.
//  2. Room types: only when phase 1 returned rooms. Each room type is created
//     or updated through its mapping and its physical rooms are topped up to
//     the provider quantity.
//  3. Calendar: fetch a 90-day window from today, group it by provider room,
//     resolve each room through the mapping store and upsert inventory days.
//     Rooms without a mapping are skipped with a warning.
//
// Every phase is an upsert, so re-running a bootstrap is safe. A failing
// phase never rolls back earlier ones: the result is returned together with
// *PartialImportError listing the failed phases.
//
// Each run is audited under one trace id (a running record, then a terminal
// one) and raw provider payloads are archived to object storage when enabled.
// A panic is audited as failed before it propagates.
//
// # HTTP Endpoints
//
//   - POST /bootstrap
package bootstrap
