// Package objstore provides byte-object storage for intermediate pipeline
// artifacts (per-tile polygon sets, rasters, task manifests). Locations are
// plain directory paths or s3://bucket/prefix URLs; Open picks the
// implementation from the scheme.
package objstore

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by Get for a key that has no object.
var ErrNotFound = errors.New("objstore: object not found")

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, body []byte) error
	Exists(ctx context.Context, key string) (bool, error)
	// List returns the keys under the prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Open returns an S3-backed store for s3:// locations and a filesystem
// store for anything else.
func Open(ctx context.Context, location string) (Store, error) {
	if IsS3(location) {
		bucket, prefix, err := splitS3(location)
		if err != nil {
			return nil, err
		}
		return NewS3(ctx, bucket, prefix)
	}
	return NewFS(location), nil
}

// IsS3 reports whether the location names an S3 bucket.
func IsS3(location string) bool {
	return strings.HasPrefix(location, "s3://")
}

func splitS3(location string) (bucket, prefix string, err error) {
	rest := strings.TrimPrefix(location, "s3://")
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", errors.New("objstore: empty bucket in " + location)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}
