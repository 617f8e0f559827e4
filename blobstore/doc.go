// Package blobstore abstracts where dataset snapshots live.
//
// A snapshot is written once and read back whole, so the interface is a
// small immutable-blob contract: Open/Create/Put/Delete/List. Backends:
//
//   - MemoryStore: in-process, for tests and ephemeral services
//   - LocalStore: local file system with atomic rename commits
//   - s3.Store: Amazon S3 (plus s3.CommitStore for coordinated pointers)
//   - minio.Store: MinIO and other S3-compatible object stores
package blobstore
