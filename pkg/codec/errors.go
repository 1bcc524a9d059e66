package codec

import "errors"

// Codec errors
var (
	// ErrInvalidMagic indicates the file does not start with the vault magic number.
	ErrInvalidMagic = errors.New("codec: invalid vault file: magic number mismatch")

	// ErrUnsupportedVersion indicates the vault format version is newer than
	// this build understands.
	ErrUnsupportedVersion = errors.New("codec: unsupported vault format version")

	// ErrTruncated indicates the envelope ends before a required section.
	ErrTruncated = errors.New("codec: vault file truncated")
)
