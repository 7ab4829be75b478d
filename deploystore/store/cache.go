package store

import (
	"context"
	"slices"

	"github.com/maypok86/otter"
	"github.com/samber/mo"

	"github.com/deploystore/deploystore-go/internal"
)

// Cache keeps recently read or written file contents in memory, keyed by
// Location. Capacity is measured in bytes.
type Cache struct {
	files otter.Cache[string, []byte]
}

func NewCache(capacity int) (*Cache, error) {
	if capacity <= 0 {
		return nil, internal.ErrInvalidArgument("cache capacity must be positive; got %d", capacity)
	}
	files, err := otter.MustBuilder[string, []byte](capacity).
		Cost(func(_ string, data []byte) uint32 {
			return uint32(len(data)) + 1
		}).
		Build()
	if err != nil {
		return nil, err
	}
	return &Cache{files: files}, nil
}

// Wrap returns a Backend that reads through and writes through the cache.
func (c *Cache) Wrap(b Backend) Backend {
	return &cachedBackend{Backend: b, cache: c}
}

// WrapReader is Wrap for read-only sources.
func (c *Cache) WrapReader(r Reader) Reader {
	return &cachedReader{Reader: r, cache: c}
}

func (c *Cache) Close() {
	c.files.Close()
}

func (c *Cache) get(ctx context.Context, r Reader, file string) (mo.Option[[]byte], error) {
	loc := r.Location(file)
	if data, ok := c.files.Get(loc); ok {
		return mo.Some(slices.Clone(data)), nil
	}
	data, err := r.Get(ctx, file)
	if err != nil {
		return data, err
	}
	if v, ok := data.Get(); ok {
		c.files.Set(loc, slices.Clone(v))
	}
	return data, nil
}

type cachedBackend struct {
	Backend
	cache *Cache
}

func (b *cachedBackend) Get(ctx context.Context, file string) (mo.Option[[]byte], error) {
	return b.cache.get(ctx, b.Backend, file)
}

func (b *cachedBackend) Put(ctx context.Context, file string, data []byte) error {
	loc := b.Location(file)
	if err := b.Backend.Put(ctx, file, data); err != nil {
		b.cache.files.Delete(loc)
		return err
	}
	b.cache.files.Set(loc, slices.Clone(data))
	return nil
}

type cachedReader struct {
	Reader
	cache *Cache
}

func (r *cachedReader) Get(ctx context.Context, file string) (mo.Option[[]byte], error) {
	return r.cache.get(ctx, r.Reader, file)
}
