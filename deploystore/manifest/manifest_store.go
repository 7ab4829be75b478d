package manifest

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kapetan-io/tackle/set"
	"github.com/samber/mo"

	"github.com/deploystore/deploystore-go/deploystore/store"
	"github.com/deploystore/deploystore-go/internal"
)

// ------------------------------------------------
// lockTable
// ------------------------------------------------

// Every Store pointing at the same tracker location shares one mutex, so
// read-modify-write cycles from different Store values never interleave.
var locks = &lockTable{locks: make(map[string]*sync.Mutex)}

type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (t *lockTable) get(location string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[location]
	if !ok {
		l = &sync.Mutex{}
		t.locks[location] = l
	}
	return l
}

// ------------------------------------------------
// Store
// ------------------------------------------------

// Store reads and rewrites the tracker file that holds a Manifest.
type Store struct {
	backend store.Backend
	file    string
	codec   Codec
	log     *slog.Logger
	mu      *sync.Mutex
}

func NewStore(backend store.Backend, file string, log *slog.Logger) *Store {
	set.Default(&log, slog.Default())
	return &Store{
		backend: backend,
		file:    file,
		codec:   FlatBufferCodec{},
		log:     log,
		mu:      locks.get(backend.Location(file)),
	}
}

func (s *Store) Location() string {
	return s.backend.Location(s.file)
}

// LoadOrCreate decodes the tracker file, or returns an empty Manifest when
// there is none yet. A tracker that exists but cannot be read or decoded is
// an error; it is never replaced by an empty Manifest.
func (s *Store) LoadOrCreate(ctx context.Context) (*Manifest, error) {
	stored, err := Read(ctx, s.backend, s.file, s.codec)
	if err != nil {
		return nil, err
	}
	m, ok := stored.Get()
	if !ok {
		s.log.Debug("no tracker found; starting an empty manifest", "path", s.Location())
		return New(), nil
	}
	return m, nil
}

// Persist replaces the whole tracker file with the encoded Manifest.
func (s *Store) Persist(ctx context.Context, m *Manifest) error {
	return s.backend.Put(ctx, s.file, s.codec.Encode(m))
}

// Update runs one load, mutate, persist cycle while holding the tracker lock.
// Nothing is written when fn returns an error.
func (s *Store) Update(ctx context.Context, fn func(m *Manifest) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.LoadOrCreate(ctx)
	if err != nil {
		return err
	}
	if err := fn(m); err != nil {
		return err
	}
	return s.Persist(ctx, m)
}

// Record appends names to the tracker.
func (s *Store) Record(ctx context.Context, names ...string) error {
	return s.Update(ctx, func(m *Manifest) error {
		for _, n := range names {
			m.Append(n)
		}
		return nil
	})
}

// Check loads the tracker under the lock without changing it, so callers can
// refuse to start work that would later fail to be recorded.
func (s *Store) Check(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.LoadOrCreate(ctx)
	return err
}

// Read decodes the tracker file through any Reader; a missing file is mo.None.
func Read(ctx context.Context, r store.Reader, file string, codec Codec) (mo.Option[*Manifest], error) {
	data, err := r.Get(ctx, file)
	if err != nil {
		return mo.None[*Manifest](), err
	}
	raw, ok := data.Get()
	if !ok {
		return mo.None[*Manifest](), nil
	}
	m, err := codec.Decode(raw)
	if err != nil {
		return mo.None[*Manifest](), internal.ErrCorruption(internal.KindManifest, r.Location(file), err)
	}
	return mo.Some(m), nil
}
