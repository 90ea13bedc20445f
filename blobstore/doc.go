// Package blobstore provides whole-object blob storage used by the
// object-store row backend.
//
// Implementations:
//
//   - [MemoryStore]: in-memory, for tests
//   - [LocalStore]: files under a root directory, atomic via rename
//   - blobstore/minio: MinIO and other S3-compatible services
//   - blobstore/s3: Amazon S3 through aws-sdk-go-v2
package blobstore
