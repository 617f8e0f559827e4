// Package s3 provides an Amazon S3 implementation of blobstore.BlobStore.
//
//	client, ddb, err := s3.NewClients(ctx, "us-east-1")
//	store := s3.NewStore(client, "my-bucket", "vectora/")
//
// Snapshots stream through multipart uploads; listings paginate
// automatically. For deployments with multiple writers, CommitStore layers
// DynamoDB conditional writes on top so snapshot-pointer updates are atomic.
package s3
