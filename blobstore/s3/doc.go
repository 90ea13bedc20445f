// Package s3 provides an Amazon S3 implementation of blobstore.Store.
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("embeddings/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
// Uploads go through the s3 transfer manager, listing is paginated, and
// both NoSuchKey and NotFound map to blobstore.ErrNotFound.
package s3
