// Package s3 provides an S3-backed blobstore.BlobStore for chunk and
// manifest objects, plus a DynamoDB-assisted commit store that gives the
// CURRENT manifest pointer compare-and-swap semantics.
package s3
