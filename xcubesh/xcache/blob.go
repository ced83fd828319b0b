package xcache

import (
	"context"
	"fmt"
	"log"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/dcs4cop/xcube-sh/xcubesh"
)

// BlobCache wraps a KeyValueStore with a gocloud blob bucket (file, S3,
// GCS, Azure; selected by URL scheme), so a chunk fetched once survives
// process restarts. Callers must link the scheme drivers they need, e.g.
// _ "gocloud.dev/blob/fileblob".
type BlobCache struct {
	inner  xcubesh.KeyValueStore
	bucket *blob.Bucket
	prefix string
	logger *log.Logger
}

// OpenBlobCache opens bucketURL and wraps inner with it. prefix is
// prepended to every blob key, so several cubes can share one bucket.
func OpenBlobCache(ctx context.Context, inner xcubesh.KeyValueStore, bucketURL, prefix string, logger *log.Logger) (*BlobCache, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open blob cache bucket: %w", err)
	}
	return &BlobCache{inner: inner, bucket: bucket, prefix: prefix, logger: logger}, nil
}

// Close releases the bucket.
func (c *BlobCache) Close() error { return c.bucket.Close() }

func (c *BlobCache) blobKey(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + "/" + key
}

// ListKeys delegates to the wrapped store.
func (c *BlobCache) ListKeys() []string { return c.inner.ListKeys() }

// Contains delegates to the wrapped store.
func (c *BlobCache) Contains(key string) bool { return c.inner.Contains(key) }

// Get returns bucket-cached bytes when present, otherwise fetches
// through the wrapped store and writes the result back to the bucket. A
// write-back failure is logged and the fetched bytes are still returned;
// the cache must never turn a successful fetch into an error.
func (c *BlobCache) Get(ctx context.Context, key string) ([]byte, error) {
	bytes, err := c.bucket.ReadAll(ctx, c.blobKey(key))
	if err == nil {
		return bytes, nil
	}
	if gcerrors.Code(err) != gcerrors.NotFound {
		return nil, fmt.Errorf("blob cache read %s: %w", key, err)
	}

	bytes, err = c.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := c.bucket.WriteAll(ctx, c.blobKey(key), bytes, nil); err != nil {
		c.logger.Printf("blob cache write %s failed: %v", key, err)
	}
	return bytes, nil
}

var _ xcubesh.KeyValueStore = (*BlobCache)(nil)
