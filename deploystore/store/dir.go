package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kapetan-io/tackle/set"
	"github.com/oklog/ulid/v2"
	"github.com/samber/mo"

	"github.com/deploystore/deploystore-go/internal"
)

// DirBackend stores each file directly in a local directory. Writes go to a
// temporary sibling which is synced and renamed over the target.
type DirBackend struct {
	root string
	log  *slog.Logger
}

var _ Backend = (*DirBackend)(nil)

func NewDirBackend(root string, log *slog.Logger) *DirBackend {
	set.Default(&log, slog.Default())
	return &DirBackend{root: root, log: log}
}

func (d *DirBackend) Root() string {
	return d.root
}

func (d *DirBackend) Location(file string) string {
	loc := filepath.Join(d.root, file)
	if abs, err := filepath.Abs(loc); err == nil {
		return abs
	}
	return loc
}

// EnsureRoot creates the root directory if it is missing and reports whether
// it did so. When callers race, only the one whose Mkdir succeeds reports
// creation.
func (d *DirBackend) EnsureRoot() (bool, error) {
	info, err := os.Stat(d.root)
	if err == nil {
		return false, d.checkRoot(info)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return false, internal.ErrRetryable(err, "while checking directory %s", d.root)
	}
	if err := os.MkdirAll(filepath.Dir(d.root), 0755); err != nil {
		return false, internal.ErrRetryable(err, "while creating directory %s", filepath.Dir(d.root))
	}
	err = os.Mkdir(d.root, 0755)
	if errors.Is(err, fs.ErrExist) {
		info, err := os.Stat(d.root)
		if err != nil {
			return false, internal.ErrRetryable(err, "while checking directory %s", d.root)
		}
		return false, d.checkRoot(info)
	}
	if err != nil {
		return false, internal.ErrRetryable(err, "while creating directory %s", d.root)
	}
	d.log.Info("created directory", "path", d.root)
	return true, nil
}

func (d *DirBackend) checkRoot(info fs.FileInfo) error {
	if !info.IsDir() {
		return internal.ErrInvalidArgument("%s exists and is not a directory", d.root)
	}
	return nil
}

func (d *DirBackend) Put(ctx context.Context, file string, data []byte) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := d.EnsureRoot(); err != nil {
		return err
	}

	target := filepath.Join(d.root, file)
	tmp := fmt.Sprintf("%s.%s.tmp", target, ulid.Make())
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return internal.ErrRetryable(err, "while creating %s", tmp)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		return internal.ErrRetryable(err, "while writing %s", tmp)
	}
	if err = f.Sync(); err != nil {
		_ = f.Close()
		return internal.ErrRetryable(err, "while syncing %s", tmp)
	}
	if err = f.Close(); err != nil {
		return internal.ErrRetryable(err, "while closing %s", tmp)
	}
	if err = os.Rename(tmp, target); err != nil {
		return internal.ErrRetryable(err, "while replacing %s", target)
	}
	return nil
}

func (d *DirBackend) Get(ctx context.Context, file string) (mo.Option[[]byte], error) {
	if err := ctx.Err(); err != nil {
		return mo.None[[]byte](), err
	}
	data, err := os.ReadFile(filepath.Join(d.root, file))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return mo.None[[]byte](), nil
		}
		return mo.None[[]byte](), internal.ErrRetryable(err, "while reading %s", d.Location(file))
	}
	return mo.Some(data), nil
}
