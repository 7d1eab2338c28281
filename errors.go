package sacd

import "errors"

// Sentinel errors returned by the public API. Structural errors (bad
// container, truncated read, invalid configuration) propagate to the
// caller; per-frame decode and sector errors are absorbed internally and
// only ever reach a Logger.
var (
	// ErrUnsupportedContainer is returned by Open when the input matches
	// none of the three recognized container magics.
	ErrUnsupportedContainer = errors.New("sacd: unsupported or unrecognized container format")

	// ErrNoTracks is returned when a container parses successfully but
	// exposes no tracks under the requested Mode.
	ErrNoTracks = errors.New("sacd: no tracks available for the requested area mode")

	// ErrTrackNotFound is returned by Decoder.Track when the requested
	// 1-based track number has no corresponding entry.
	ErrTrackNotFound = errors.New("sacd: track not found")

	// ErrConfigInvalid is returned by Engine construction when the
	// Config is structurally invalid. ConverterUser without UserFIRCoefs
	// falls back to Direct rather than erroring; ErrConfigInvalid covers
	// the cases that cannot be repaired automatically, such as a
	// non-power-of-two decimation.
	ErrConfigInvalid = errors.New("sacd: invalid configuration")
)
