// Package storage provides the object storage used to archive raw provider payloads.
//
// It wraps the MinIO Go client behind a small Client interface (mocked in
// core/storage/mocks), and builds an Archiver on top of it. Bootstrap and pull
// runs archive what the provider returned under a key derived from the hotel,
// the operation and the audit trace id, so an audit record can be matched to
// the exact payload it processed. Archiving is best effort: callers log and
// continue when it fails.
//
// # Usage
//
//	client, err := storage.NewClient(cfg.Storage)
//	archiver := storage.NewArchiver(client, cfg.Storage.Bucket, cfg.Storage.Region)
//	key, err := archiver.Archive(ctx, hotelID, "bootstrap", traceID, "property", payload)
package storage
