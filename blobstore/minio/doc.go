// Package minio provides a blobstore.BlobStore backed by the official MinIO
// Go client. It works with MinIO itself and any S3-compatible store (Ceph,
// Garage, SeaweedFS) without pulling in the AWS SDK.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
//	    Secure: false,
//	})
//	store := minioblob.NewStore(client, "my-bucket", "vectora/")
package minio
