// Package mapping stores the translation between provider-side and internal
// entity identifiers.
//
// Rows are keyed on (provider, entity_type, external_id) and every write is an
// upsert: writing the same key with a different internal id overwrites it, which
// tolerates the provider renumbering its entities.
//
// Hotels, room types and guests additionally get a reverse row under the entity
// type "internal_"+type, keyed by the internal id. The reverse write is not part
// of the forward write: when it fails the forward row stays and the failure is
// only logged.
package mapping
