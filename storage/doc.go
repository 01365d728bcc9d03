// Package storage provides content-addressed persistence for registry
// snapshots and archived upgrade payloads.
//
// Backends are created from location URIs by StorageBackendFactory:
//
//   - file:///var/lib/registry            local filesystem
//   - s3://bucket/prefix?region=us-east-1 Amazon S3 or compatible
//   - ipfs://127.0.0.1:5001               IPFS node API
//   - vault://addr/mount/path             HashiCorp Vault KV v2
//
// Content is addressed by its SHA-256 hash, so a snapshot reference printed
// in the server log is sufficient to restore from any backend holding it.
// CreateMultiBackend aggregates several backends: stores go to every
// available backend, fetches return from the first one that has the content.
package storage
