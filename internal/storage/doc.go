// Package storage stores chat and request images in an S3-compatible
// bucket and builds their public URLs.
package storage
