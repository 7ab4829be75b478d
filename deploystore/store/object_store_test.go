package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thanos-io/objstore"

	"github.com/deploystore/deploystore-go/internal"
)

var rootPath = "/root/path"

func TestBucketShouldGetPut(t *testing.T) {
	ctx := context.Background()
	bucket := objstore.NewInMemBucket()
	store := NewBucketBackend(rootPath, bucket)

	err := store.Put(ctx, "obj", []byte("data1"))
	assert.NoError(t, err)

	data, err := store.Get(ctx, "obj")
	assert.NoError(t, err)
	assert.Equal(t, []byte("data1"), data.MustGet())
}

func TestBucketShouldOverwrite(t *testing.T) {
	ctx := context.Background()
	bucket := objstore.NewInMemBucket()
	store := NewBucketBackend(rootPath, bucket)

	require.NoError(t, store.Put(ctx, "obj", []byte("data1")))
	require.NoError(t, store.Put(ctx, "obj", []byte("data2")))

	data, err := store.Get(ctx, "obj")
	assert.NoError(t, err)
	assert.Equal(t, []byte("data2"), data.MustGet())
}

func TestBucketMissingIsAbsent(t *testing.T) {
	store := NewBucketBackend(rootPath, objstore.NewInMemBucket())

	data, err := store.Get(context.Background(), "missing")
	assert.NoError(t, err)
	assert.True(t, data.IsAbsent())
}

func TestBucketShouldPutWithPrefix(t *testing.T) {
	bucket := objstore.NewInMemBucket()
	store := NewBucketBackend(rootPath, bucket)

	err := store.Put(context.Background(), "obj", []byte("data1"))
	assert.NoError(t, err)

	result, err := bucket.Get(context.Background(), path.Join(rootPath, "obj"))
	assert.NoError(t, err)
	data, _ := io.ReadAll(result)
	assert.Equal(t, []byte("data1"), data)
	assert.Equal(t, path.Join(rootPath, "obj"), store.Location("obj"))
}

func TestBucketReaderIsReadOnlyView(t *testing.T) {
	ctx := context.Background()
	bucket := objstore.NewInMemBucket()
	require.NoError(t, bucket.Upload(ctx, "bundle/DS_A.bytes", bytes.NewReader([]byte("a"))))

	reader := NewBucketReader("bundle", bucket)
	data, err := reader.Get(ctx, "DS_A.bytes")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), data.MustGet())

	data, err = reader.Get(ctx, "DS_B.bytes")
	require.NoError(t, err)
	assert.True(t, data.IsAbsent())
}

func TestDirShouldCreateRootOnce(t *testing.T) {
	root := filepath.Join(t.TempDir(), "Resources")
	store := NewDirBackend(root, nil)

	created, err := store.EnsureRoot()
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.EnsureRoot()
	require.NoError(t, err)
	assert.False(t, created)
}

func TestDirShouldReportCreationToOneRacer(t *testing.T) {
	root := filepath.Join(t.TempDir(), "project", "Resources")
	store := NewDirBackend(root, nil)

	var created atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.EnsureRoot()
			assert.NoError(t, err)
			if ok {
				created.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), created.Load())
}

func TestDirShouldGetPut(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "data")
	store := NewDirBackend(root, nil)

	data, err := store.Get(ctx, "DS_A.bytes")
	require.NoError(t, err)
	assert.True(t, data.IsAbsent())

	require.NoError(t, store.Put(ctx, "DS_A.bytes", []byte("first")))
	require.NoError(t, store.Put(ctx, "DS_A.bytes", []byte("second")))

	data, err = store.Get(ctx, "DS_A.bytes")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data.MustGet())

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files must not be left behind")
	assert.Equal(t, "DS_A.bytes", entries[0].Name())
}

func TestDirRootIsAFile(t *testing.T) {
	root := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(root, []byte("x"), 0644))

	err := NewDirBackend(root, nil).Put(context.Background(), "DS_A.bytes", []byte("a"))
	var invalid *internal.InvalidArgumentError
	assert.True(t, errors.As(err, &invalid))
}

func TestDirFailedRenameKeepsPreviousBytes(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store := NewDirBackend(root, nil)
	require.NoError(t, store.Put(ctx, "DS_A.bytes", []byte("old")))

	// a directory in place of the target makes the final rename fail
	require.NoError(t, os.Mkdir(filepath.Join(root, "DS_B.bytes"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "DS_B.bytes", "keep"), nil, 0644))
	err := store.Put(ctx, "DS_B.bytes", []byte("new"))
	assert.True(t, internal.IsRetryable(err))

	data, err := store.Get(ctx, "DS_A.bytes")
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), data.MustGet())

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "persistent", KindPersistent.String())
	assert.Equal(t, "developer", KindDeveloper.String())
	assert.Equal(t, "runtime", KindRuntime.String())
	assert.Equal(t, "bundle", KindBundle.String())
	assert.Equal(t, "unknown", Kind(0).String())
}
