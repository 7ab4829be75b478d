package internal

import (
	"errors"
	"fmt"
)

type CorruptionKind int

// String returns the kind as a string
func (k CorruptionKind) String() string {
	switch k {
	case KindManifest:
		return "Manifest"
	case KindObject:
		return "Object"
	case KindBundle:
		return "Bundle"
	default:
		return "Unknown"
	}
}

// A list of all the possible kinds of corruption
const (
	KindManifest CorruptionKind = iota
	KindObject
	KindBundle
)

// CorruptionError is returned when bytes were found but could not be decoded.
type CorruptionError struct {
	// Kind is the kind of file that was corrupted
	Kind CorruptionKind
	// Path to the file which is corrupted
	Path string
	// Err is the decode error reported when corruption was detected
	Err error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("corruption detected: kind=%s, path=%s: %v", e.Kind, e.Path, e.Err)
}

func (e *CorruptionError) Unwrap() error {
	return e.Err
}

func ErrCorruption(kind CorruptionKind, path string, err error) error {
	return &CorruptionError{Kind: kind, Path: path, Err: err}
}

// IsCorruption returns true if err carries a CorruptionError of any kind.
func IsCorruption(err error) bool {
	var c *CorruptionError
	return errors.As(err, &c)
}
