package store

import (
	"bytes"
	"context"
	"io"
	"path"

	"github.com/samber/mo"
	"github.com/thanos-io/objstore"

	"github.com/deploystore/deploystore-go/internal"
)

// Kind identifies one of the physical storage locations.
type Kind int

const (
	// KindPersistent is the project's bundled-resource directory; files saved
	// here ship inside packaged builds.
	KindPersistent Kind = iota + 1
	// KindDeveloper is an authoring-only directory that never ships.
	KindDeveloper
	// KindRuntime is the writable per-installation data directory.
	KindRuntime
	// KindBundle is the read-only copy of KindPersistent inside a packaged build.
	KindBundle
)

func (k Kind) String() string {
	switch k {
	case KindPersistent:
		return "persistent"
	case KindDeveloper:
		return "developer"
	case KindRuntime:
		return "runtime"
	case KindBundle:
		return "bundle"
	default:
		return "unknown"
	}
}

// Reader looks up whole files by name. A missing file is mo.None, not an error.
type Reader interface {
	Get(ctx context.Context, file string) (mo.Option[[]byte], error)

	// Location is the full path of file, used in messages and as a lock key.
	Location(file string) string
}

// Backend is a Reader that can also replace whole files. Put either fully
// replaces the previous contents of file or leaves them untouched.
type Backend interface {
	Reader

	Put(ctx context.Context, file string, data []byte) error
}

// ------------------------------------------------
// BucketBackend
// ------------------------------------------------

// BucketBackend stores files under rootPath inside an objstore bucket.
type BucketBackend struct {
	rootPath string
	bucket   objstore.Bucket
}

var _ Backend = (*BucketBackend)(nil)

func NewBucketBackend(rootPath string, bucket objstore.Bucket) *BucketBackend {
	return &BucketBackend{rootPath: rootPath, bucket: bucket}
}

func (b *BucketBackend) Location(file string) string {
	return path.Join(b.rootPath, file)
}

func (b *BucketBackend) Put(ctx context.Context, file string, data []byte) error {
	fullPath := b.Location(file)
	if err := b.bucket.Upload(ctx, fullPath, bytes.NewReader(data)); err != nil {
		return internal.ErrRetryable(err, "during bucket upload of %s", fullPath)
	}
	return nil
}

func (b *BucketBackend) Get(ctx context.Context, file string) (mo.Option[[]byte], error) {
	return getFromBucket(ctx, b.bucket, b.Location(file))
}

// ------------------------------------------------
// bucketReader
// ------------------------------------------------

type bucketReader struct {
	rootPath string
	bucket   objstore.BucketReader
}

// NewBucketReader exposes rootPath inside a read-only bucket, typically the
// resources bundled with a packaged build.
func NewBucketReader(rootPath string, bucket objstore.BucketReader) Reader {
	return &bucketReader{rootPath: rootPath, bucket: bucket}
}

func (r *bucketReader) Location(file string) string {
	return path.Join(r.rootPath, file)
}

func (r *bucketReader) Get(ctx context.Context, file string) (mo.Option[[]byte], error) {
	return getFromBucket(ctx, r.bucket, r.Location(file))
}

func getFromBucket(ctx context.Context, bucket objstore.BucketReader, fullPath string) (mo.Option[[]byte], error) {
	reader, err := bucket.Get(ctx, fullPath)
	if err != nil {
		if bucket.IsObjNotFoundErr(err) {
			return mo.None[[]byte](), nil
		}
		return mo.None[[]byte](), internal.ErrRetryable(err, "during bucket get of %s", fullPath)
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		return mo.None[[]byte](), internal.ErrRetryable(err, "while reading %s from bucket", fullPath)
	}
	return mo.Some(data), nil
}
