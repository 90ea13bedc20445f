// Package minio provides a MinIO implementation of blobstore.Store.
//
// It works with any S3-compatible service reachable through minio-go:
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds: credentials.NewStaticV4(accessKey, secretKey, ""),
//	})
//	store := minio.NewStore(client, "embeddings", "prod/")
package minio
