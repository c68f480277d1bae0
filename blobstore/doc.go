// Package blobstore defines the durable object store boundary of the
// cold tier and provides in-memory and local-filesystem implementations.
// S3 and MinIO backed implementations live in the s3 and minio
// subpackages.
package blobstore
