package manifest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thanos-io/objstore"

	"github.com/deploystore/deploystore-go/deploystore/store"
	"github.com/deploystore/deploystore-go/internal"
)

const trackerFile = "DeploymentSaveTracker.bytes"

func newTestStore(t *testing.T) (*Store, store.Backend) {
	t.Helper()
	backend := store.NewBucketBackend(t.Name(), objstore.NewInMemBucket())
	return NewStore(backend, trackerFile, nil), backend
}

func TestShouldCreateEmptyManifestWhenMissing(t *testing.T) {
	ms, _ := newTestStore(t)

	m, err := ms.LoadOrCreate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
}

func TestShouldRecordInCallOrder(t *testing.T) {
	ctx := context.Background()
	ms, _ := newTestStore(t)

	for _, name := range []string{"C", "A", "B"} {
		require.NoError(t, ms.Record(ctx, name))
	}

	m, err := ms.LoadOrCreate(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "B"}, m.Names())
}

func TestShouldKeepDuplicates(t *testing.T) {
	ctx := context.Background()
	ms, _ := newTestStore(t)

	require.NoError(t, ms.Record(ctx, "A"))
	require.NoError(t, ms.Record(ctx, "A"))

	m, err := ms.LoadOrCreate(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "A"}, m.Names())
	assert.Equal(t, []string{"A"}, m.Unique())
}

func TestShouldFailOnCorruptTracker(t *testing.T) {
	ctx := context.Background()
	ms, backend := newTestStore(t)
	require.NoError(t, ms.Record(ctx, "A"))
	require.NoError(t, backend.Put(ctx, trackerFile, []byte("garbage that is not a tracker")))

	_, err := ms.LoadOrCreate(ctx)
	assert.True(t, internal.IsCorruption(err))

	err = ms.Record(ctx, "B")
	assert.True(t, internal.IsCorruption(err))

	// the corrupt tracker must not have been replaced by a fresh manifest
	data, err := backend.Get(ctx, trackerFile)
	require.NoError(t, err)
	assert.Equal(t, []byte("garbage that is not a tracker"), data.MustGet())
}

func TestUpdateErrorWritesNothing(t *testing.T) {
	ctx := context.Background()
	ms, backend := newTestStore(t)

	err := ms.Update(ctx, func(m *Manifest) error {
		m.Append("A")
		return fmt.Errorf("object write failed")
	})
	assert.Error(t, err)

	data, err := backend.Get(ctx, trackerFile)
	require.NoError(t, err)
	assert.True(t, data.IsAbsent())
}

func TestConcurrentRecordsAreSerialized(t *testing.T) {
	ctx := context.Background()
	bucket := objstore.NewInMemBucket()

	const writers = 32
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// separate Store values on the same location share the lock
			ms := NewStore(store.NewBucketBackend("root", bucket), trackerFile, nil)
			assert.NoError(t, ms.Record(ctx, fmt.Sprintf("obj-%02d", i)))
		}(i)
	}
	wg.Wait()

	m, err := NewStore(store.NewBucketBackend("root", bucket), trackerFile, nil).LoadOrCreate(ctx)
	require.NoError(t, err)
	assert.Equal(t, writers, m.Len())
	for i := 0; i < writers; i++ {
		assert.True(t, m.Contains(fmt.Sprintf("obj-%02d", i)))
	}
}

func TestCheckReportsCorruption(t *testing.T) {
	ctx := context.Background()
	ms, backend := newTestStore(t)
	require.NoError(t, ms.Check(ctx))

	require.NoError(t, backend.Put(ctx, trackerFile, nil))
	assert.Error(t, ms.Check(ctx))
}

func TestReadThroughReader(t *testing.T) {
	ctx := context.Background()
	ms, backend := newTestStore(t)

	stored, err := Read(ctx, backend, trackerFile, FlatBufferCodec{})
	require.NoError(t, err)
	assert.True(t, stored.IsAbsent())

	require.NoError(t, ms.Record(ctx, "A", "B"))
	stored, err = Read(ctx, backend, trackerFile, FlatBufferCodec{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, stored.MustGet().Names())
}
