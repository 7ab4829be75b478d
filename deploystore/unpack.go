package deploystore

import (
	"context"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/deploystore/deploystore-go/deploystore/manifest"
	"github.com/deploystore/deploystore-go/deploystore/store"
	"github.com/deploystore/deploystore-go/internal"
)

// UnpackReport describes one unpack run.
type UnpackReport struct {
	RunID ulid.ULID
	// Copied lists the names whose bundled bytes were written to the runtime root.
	Copied []string
	// Kept lists names left alone because a runtime copy already existed and
	// Options.PreserveRuntimeCopies is set.
	Kept []string
	// Warnings holds one message per name that could not be unpacked, or nil.
	Warnings error
}

// Unpack copies every object named by the bundled tracker from the read-only
// bundle into the writable data root. It fails only when the tracker itself
// is missing or unreadable; names that cannot be copied are reported in
// UnpackReport.Warnings and skipped.
func (s *Store) Unpack(ctx context.Context) (UnpackReport, error) {
	report := UnpackReport{RunID: ulid.Make()}
	log := s.log.With("run", report.RunID.String())

	if s.resolver.IsAuthoringMode() {
		log.Info("unpack skipped; authoring mode reads the project tree directly")
		return report, ErrAuthoringMode
	}

	bundle := s.bundle()
	stored, err := manifest.Read(ctx, bundle, s.trackerFile(), manifest.FlatBufferCodec{})
	if err != nil {
		log.Error("unable to read bundled tracker", "path", bundle.Location(s.trackerFile()), "error", err)
		return report, fmt.Errorf("while reading bundled tracker: %w", trackerError(err))
	}
	m, ok := stored.Get()
	if !ok {
		log.Warn("no bundled tracker; nothing to unpack yet", "path", bundle.Location(s.trackerFile()))
		return report, ErrNothingToUnpack
	}

	runtime := s.backend(store.KindRuntime)
	names := m.Unique()
	var warn internal.Warnings
	for _, name := range names {
		if err := s.validateName(name); err != nil {
			warn.Add("skipped %q: %s", name, err)
			log.Warn(fmt.Sprintf("skipped bundled name %q", name), "error", err)
			continue
		}
		file := s.objectFile(name)

		if s.opts.PreserveRuntimeCopies {
			existing, err := runtime.Get(ctx, file)
			if err == nil && existing.IsPresent() {
				report.Kept = append(report.Kept, name)
				continue
			}
		}

		if err := s.unpackOne(ctx, bundle, runtime, file); err != nil {
			warn.Add("unable to unpack %q: %s", name, err)
			log.Error(fmt.Sprintf("unable to unpack %q", name), "error", err)
			continue
		}
		report.Copied = append(report.Copied, name)
	}

	report.Warnings = warn.If()
	log.Info(fmt.Sprintf("unpacked %d of %d persistent saves", len(report.Copied), len(names)),
		"kept", len(report.Kept), "failed", warn.Len())
	return report, nil
}

func (s *Store) unpackOne(ctx context.Context, bundle store.Reader, runtime store.Backend, file string) error {
	data, err := bundle.Get(ctx, file)
	if err != nil {
		return err
	}
	raw, ok := data.Get()
	if !ok {
		return internal.ErrCorruption(internal.KindBundle, bundle.Location(file),
			errors.New("listed in tracker but missing from bundle"))
	}
	return s.retry(ctx, func() error { return runtime.Put(ctx, file, raw) })
}

// UnpackPersistentSaves runs Unpack and reports whether the bundled tracker
// was read. A partial unpack still returns true.
func (s *Store) UnpackPersistentSaves(ctx context.Context) bool {
	_, err := s.Unpack(ctx)
	return err == nil
}

// EnsureUnpacked runs UnpackPersistentSaves at most once for this Store and
// returns the result of that run. The run ignores cancellation of ctx, since
// its result is kept for the life of the Store.
func (s *Store) EnsureUnpacked(ctx context.Context) bool {
	s.unpackOnce.Do(func() {
		s.unpacked = s.UnpackPersistentSaves(context.WithoutCancel(ctx))
	})
	return s.unpacked
}

func (s *Store) maybeUnpack(ctx context.Context) {
	if s.opts.AutoUnpack && !s.resolver.IsAuthoringMode() {
		s.EnsureUnpacked(ctx)
	}
}
