package deploystore

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kapetan-io/tackle/set"
	"github.com/samber/mo"

	"github.com/deploystore/deploystore-go/deploystore/codec"
	"github.com/deploystore/deploystore-go/deploystore/diaglog"
	"github.com/deploystore/deploystore-go/deploystore/env"
	"github.com/deploystore/deploystore-go/deploystore/logger"
	"github.com/deploystore/deploystore-go/deploystore/manifest"
	"github.com/deploystore/deploystore-go/deploystore/store"
	"github.com/deploystore/deploystore-go/internal"
)

// Store saves and loads named objects, routing each request to the
// persistent, developer or runtime location depending on the environment.
type Store struct {
	resolver env.Resolver
	opts     Options
	codec    codec.Codec
	log      *slog.Logger
	diag     *diaglog.Log
	cache    *store.Cache

	unpackOnce sync.Once
	unpacked   bool
}

func Open(resolver env.Resolver) (*Store, error) {
	return OpenWithOptions(resolver, DefaultOptions())
}

func OpenWithOptions(resolver env.Resolver, opts Options) (*Store, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	set.Default(&opts.Codec, codec.Codec(codec.Gob{}))
	set.Default(&opts.Log, slog.Default())

	diag := opts.Diag
	if diag == nil && (opts.DiagToFile || opts.DiagToConsole) {
		console := opts.Console
		if console == nil {
			console = logger.Nop()
		}
		diag = diaglog.New(diaglog.Config{
			Path:          diaglog.DefaultPath(resolver.WritableDataRoot(), opts.LogFileName),
			EchoToConsole: opts.DiagToConsole,
			WriteToFile:   opts.DiagToFile,
			Console:       console,
		})
	}

	s := &Store{
		resolver: resolver,
		opts:     opts,
		codec:    codec.Compressed(opts.Codec, opts.Compression),
		log:      withDiag(opts.Log, diag),
		diag:     diag,
	}
	if opts.CacheCapacity > 0 {
		cache, err := store.NewCache(opts.CacheCapacity)
		if err != nil {
			return nil, err
		}
		s.cache = cache
	}
	return s, nil
}

// Diag returns the diagnostic log receiving status reports, or nil.
func (s *Store) Diag() *diaglog.Log {
	return s.diag
}

func (s *Store) Close() error {
	if s.cache != nil {
		s.cache.Close()
	}
	return nil
}

// Save encodes obj and writes it under name. In authoring mode a
// persistentInBuild save goes to the bundled-resource directory and is
// recorded in the tracker; otherwise it goes to the developer directory. In
// packaged mode every save goes to the writable data root.
//
// Every failure is reported through the log before it is returned; none
// leaves the tracker naming an object whose bytes were not written.
func (s *Store) Save(ctx context.Context, obj any, name string, persistentInBuild bool) error {
	typeName := codec.TypeName(obj)
	if !codec.Eligible(obj) {
		s.log.Warn(fmt.Sprintf("unable to save %q: type %s is not encodable", name, typeName),
			"name", name, "type", typeName)
		return fmt.Errorf("%w: %s", ErrNotEncodable, typeName)
	}
	if err := s.validateName(name); err != nil {
		s.log.Warn(fmt.Sprintf("unable to save %s object: %s", typeName, err), "type", typeName)
		return err
	}
	s.maybeUnpack(ctx)

	kind := s.route(persistentInBuild)
	data, err := s.codec.Encode(obj)
	if err != nil {
		s.log.Error(fmt.Sprintf("unable to encode %s object %q", typeName, name), "error", err)
		return fmt.Errorf("while encoding %s: %w", typeName, err)
	}

	backend := s.backend(kind)
	file := s.objectFile(name)

	var tracker *manifest.Store
	if kind == store.KindPersistent {
		tracker = manifest.NewStore(s.uncached(kind), s.trackerFile(), s.log)
		if err := tracker.Check(ctx); err != nil {
			s.log.Error(fmt.Sprintf("unable to save %s object %q: tracker is unreadable", typeName, name),
				"path", tracker.Location(), "error", err)
			return fmt.Errorf("while reading tracker: %w", trackerError(err))
		}
	}

	err = s.retry(ctx, func() error { return backend.Put(ctx, file, data) })
	if err != nil {
		s.log.Error(fmt.Sprintf("unable to write %s object %q", typeName, name),
			"backend", kind.String(), "path", backend.Location(file), "error", err)
		return fmt.Errorf("while writing %s object %q: %w", typeName, name, err)
	}

	if tracker != nil {
		err = s.retry(ctx, func() error { return tracker.Record(ctx, name) })
		if err != nil {
			s.log.Error(fmt.Sprintf("%s object %q was written but could not be recorded in the tracker; "+
				"it will not be unpacked in builds", typeName, name),
				"path", tracker.Location(), "error", err)
			return fmt.Errorf("while recording %q in tracker: %w", name, trackerError(err))
		}
	}

	s.log.Info(fmt.Sprintf("saved %s object %q", typeName, name),
		"backend", kind.String(), "path", backend.Location(file))
	return nil
}

// Load returns the object saved under name, or mo.None when it is missing or
// cannot be decoded. Both cases are reported through the log; use TryLoad to
// tell them apart.
func Load[T any](ctx context.Context, s *Store, name string, persistent bool) mo.Option[T] {
	v, _ := TryLoad[T](ctx, s, name, persistent)
	return v
}

// TryLoad returns the object saved under name. A missing object is
// (mo.None, nil); unreadable or undecodable bytes return an error.
func TryLoad[T any](ctx context.Context, s *Store, name string, persistent bool) (mo.Option[T], error) {
	var v T
	typeName := codec.TypeName(v)
	if err := s.validateName(name); err != nil {
		s.log.Warn(fmt.Sprintf("unable to load %s object: %s", typeName, err), "type", typeName)
		return mo.None[T](), err
	}
	s.maybeUnpack(ctx)

	kind := s.route(persistent)
	backend := s.backend(kind)
	file := s.objectFile(name)

	data, err := backend.Get(ctx, file)
	if err != nil {
		s.log.Error(fmt.Sprintf("unable to read %s object %q", typeName, name),
			"backend", kind.String(), "path", backend.Location(file), "error", err)
		return mo.None[T](), fmt.Errorf("while reading %s object %q: %w", typeName, name, err)
	}
	raw, ok := data.Get()
	if !ok {
		s.log.Warn(fmt.Sprintf("no saved %s object named %q", typeName, name),
			"backend", kind.String(), "path", backend.Location(file))
		return mo.None[T](), nil
	}

	if err := s.codec.Decode(raw, &v); err != nil {
		s.log.Error(fmt.Sprintf("unable to decode %s object %q", typeName, name),
			"backend", kind.String(), "path", backend.Location(file), "error", err)
		return mo.None[T](), fmt.Errorf("%w: %w", ErrObjectCorrupt,
			internal.ErrCorruption(internal.KindObject, backend.Location(file), err))
	}
	return mo.Some(v), nil
}

// PersistentNames returns the tracker contents: the project tracker in
// authoring mode, the bundled tracker in packaged mode.
func (s *Store) PersistentNames(ctx context.Context) ([]string, error) {
	var r store.Reader = s.bundle()
	if s.resolver.IsAuthoringMode() {
		r = s.uncached(store.KindPersistent)
	}
	stored, err := manifest.Read(ctx, r, s.trackerFile(), manifest.FlatBufferCodec{})
	if err != nil {
		return nil, fmt.Errorf("while reading tracker: %w", trackerError(err))
	}
	if m, ok := stored.Get(); ok {
		return m.Names(), nil
	}
	return []string{}, nil
}

func (s *Store) route(persistent bool) store.Kind {
	if !s.resolver.IsAuthoringMode() {
		return store.KindRuntime
	}
	if persistent {
		return store.KindPersistent
	}
	return store.KindDeveloper
}

func (s *Store) root(kind store.Kind) string {
	switch kind {
	case store.KindPersistent, store.KindBundle:
		return filepath.Join(s.resolver.ProjectRoot(), s.opts.ResourcesDir)
	case store.KindDeveloper:
		return filepath.Join(s.resolver.ProjectRoot(), s.opts.DeveloperDir)
	default:
		return s.resolver.WritableDataRoot()
	}
}

func (s *Store) backend(kind store.Kind) store.Backend {
	b := s.uncached(kind)
	if s.cache != nil {
		return s.cache.Wrap(b)
	}
	return b
}

// uncached is used for the tracker, which other Store values may rewrite.
func (s *Store) uncached(kind store.Kind) store.Backend {
	if s.opts.Bucket != nil {
		return store.NewBucketBackend(filepath.ToSlash(s.root(kind)), s.opts.Bucket)
	}
	return store.NewDirBackend(s.root(kind), s.log)
}

func (s *Store) bundle() store.Reader {
	var r store.Reader
	if s.opts.Bucket != nil {
		r = store.NewBucketReader(filepath.ToSlash(s.root(store.KindBundle)), s.opts.Bucket)
	} else {
		r = store.NewDirBackend(s.root(store.KindBundle), s.log)
	}
	if s.cache != nil {
		r = s.cache.WrapReader(r)
	}
	return r
}

func (s *Store) objectFile(name string) string {
	return s.opts.FilePrefix + name + s.opts.FileExt
}

func (s *Store) trackerFile() string {
	return s.opts.TrackerName + s.opts.FileExt
}

func (s *Store) validateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	case strings.ContainsAny(name, `/\`), strings.Contains(name, ".."):
		return fmt.Errorf("%w: %q must not contain a path separator or \"..\"", ErrInvalidName, name)
	case s.objectFile(name) == s.trackerFile():
		return fmt.Errorf("%w: %q collides with the tracker file", ErrInvalidName, name)
	}
	return nil
}

func trackerError(err error) error {
	if internal.IsCorruption(err) {
		return fmt.Errorf("%w: %w", ErrManifestCorrupt, err)
	}
	return err
}

// retry runs fn until it succeeds, fails with a non-retryable error, or the
// configured number of extra attempts is used up.
func (s *Store) retry(ctx context.Context, fn func() error) error {
	err := fn()
	for attempt := 1; attempt <= s.opts.SaveRetries && err != nil && internal.IsRetryable(err); attempt++ {
		s.log.Debug("retrying after IO failure", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return err
		case <-time.After(s.opts.RetryBackoff):
		}
		err = fn()
	}
	return err
}
