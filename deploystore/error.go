package deploystore

import (
	"errors"

	"github.com/deploystore/deploystore-go/internal"
)

var (
	// ErrNotEncodable is returned by Save for values that do not implement
	// codec.Encodable.
	ErrNotEncodable = errors.New("object does not implement codec.Encodable")

	// ErrInvalidName is returned for empty names, names containing a path
	// separator or "..", and names that would collide with the tracker file.
	ErrInvalidName = errors.New("invalid object name")

	// ErrManifestCorrupt is returned by Save and Unpack when a tracker file
	// exists but cannot be decoded.
	ErrManifestCorrupt = errors.New("tracker could not be decoded")

	// ErrObjectCorrupt is returned by TryLoad when stored bytes cannot be decoded.
	ErrObjectCorrupt = errors.New("stored object could not be decoded")

	// ErrNothingToUnpack is returned by Unpack when the bundle has no tracker.
	ErrNothingToUnpack = errors.New("no bundled tracker; nothing to unpack yet")

	// ErrAuthoringMode is returned by Unpack in authoring mode, where the
	// project tree is read directly.
	ErrAuthoringMode = errors.New("unpack skipped in authoring mode")

	// ErrClosed is returned by a Saver after Close.
	ErrClosed = internal.ErrAlreadyClosed
)

// IsCorruption reports whether err was caused by a tracker or object file
// that exists but cannot be decoded.
func IsCorruption(err error) bool {
	return internal.IsCorruption(err)
}

// IsRetryable reports whether err was caused by an IO failure that left the
// target file intact.
func IsRetryable(err error) bool {
	return internal.IsRetryable(err)
}
