// Package container parses the three SACD source formats — the Scarlet
// Book ISO disc image, DSDIFF (.dff), and DSF (.dsf) — and exposes a
// uniform track list plus a frame iterator that yields raw DST or DSD
// frame payloads for the DST decoder pool / DSD→PCM engine to consume.
//
// The package separates static format constants, the per-format
// chunk/sector walkers (iso.go, dsdiff.go, dsf.go), and the uniform
// surface they all feed (Disc, Track, FrameSource); the three walkers are
// siblings because the SACD domain really does have three container
// shapes in the wild.
package container

import "errors"

// Errors surfaced from container parsing. All of these propagate to the
// caller: open fails rather than silently producing an empty track list.
var (
	ErrBadMagic             = errors.New("container: bad magic bytes")
	ErrUnsupportedVersion   = errors.New("container: unsupported format version")
	ErrTruncated            = errors.New("container: truncated read")
	ErrChunkSize            = errors.New("container: chunk size violation")
	ErrNoMasterTOC          = errors.New("container: SACD master TOC not found")
	ErrNoArea               = errors.New("container: requested area not present on disc")
	ErrTrackRange           = errors.New("container: track number out of range")
	ErrUnknownChannelConfig = errors.New("container: unrecognized channel/loudspeaker configuration")
)

// SampleRate and FrameRate are fixed by the Scarlet Book / DSDIFF / DSF
// specifications for standard-rate (DSD64) SACD content.
const (
	SampleRate = 2822400
	FrameRate  = 75
)

// AreaKind distinguishes the two program areas an SACD disc may carry.
type AreaKind int

const (
	AreaTwoChannel AreaKind = iota
	AreaMultiChannel
)

func (k AreaKind) String() string {
	if k == AreaTwoChannel {
		return "two-channel"
	}
	return "multi-channel"
}

// Mode is the area-mode bitmask: which tracks are exposed to the caller
// and whether areas are concatenated.
type Mode int

const (
	ModeTwoChannel Mode = 1 << iota
	ModeMultiChannel
	ModeSingleTrack
	ModeFullPlayback

	ModeBoth = ModeTwoChannel | ModeMultiChannel
)

// Sentinel track numbers.
const (
	TrackSelected = -1 // use the currently selected track
	TrackCuesheet = -2 // use the area as a whole
)

// Track describes one playable program on the disc. StartLSN/LengthLSN are
// meaningful only for ISO-backed tracks; DSDIFF/DSF tracks carry their
// bounds in StartFrames/DurationFrames.
type Track struct {
	Number            int // 1-based, as exposed to callers (ResolveTrack's inverse)
	Area              AreaKind
	StartLSN          uint32
	LengthLSN         uint32
	Channels          int
	LoudspeakerConfig int
	SampleRate        int
	FrameRate         int
	DSTEncoded        bool

	// StartFrames and DurationFrames express the track's bounds in
	// FrameRate units: for ISO tracks StartFrames is left at zero and
	// DurationFrames comes from SACDTRL2 (LengthLSN when that chunk is
	// absent), for DSDIFF they are marker-derived, for DSF DurationFrames is
	// SampleCount/SampleRate scaled to frames.
	StartFrames    uint32
	DurationFrames uint32

	// TitleRaw is the opaque, not-decoded SACDTTxt/title payload.
	TitleRaw []byte
}

// DurationSeconds returns the track's playback length in seconds.
func (t *Track) DurationSeconds() float64 {
	return float64(t.DurationFrames) / float64(t.FrameRate)
}

// FrameByteLength returns the number of interleaved DSD bytes one decoded
// audio frame of this track occupies: samplerate/8/framerate * channels.
func (t *Track) FrameByteLength() int {
	return t.SampleRate / 8 / t.FrameRate * t.Channels
}

// Frame is one extracted audio frame, still encoded, as returned by a
// FrameSource. Invalid marks a frame that the extractor could not
// recover cleanly; the caller skips it and continues with the next frame.
type Frame struct {
	Data    []byte
	DST     bool
	Invalid bool
}

// FrameSource is the minimal iteration contract all three container
// formats satisfy, letting the DST pool / PCM engine drive any of them
// identically.
type FrameSource interface {
	// NextFrame returns the next audio frame for the track this source was
	// opened against, or io.EOF once the track's bounds are exhausted.
	NextFrame() (Frame, error)
	// SeekSeconds repositions the frame cursor to the given offset from
	// the start of the track.
	SeekSeconds(seconds float64) error
	// Track returns the track this source iterates.
	Track() *Track
}

// Mono handling: loudspeaker-config 5 is treated as the canonical "mono
// via LSCO/channel_type table" mapping in DSDIFF/DSF (see the per-format
// tables in channelconfig.go); the ISO parser additionally treats
// channel_count==1 as mono regardless of the loudspeaker_config byte it
// carries, since area TOCs observed in the wild sometimes leave
// loudspeaker_config at its two-channel default for a mono area. Both
// checks are applied; they never disagree in practice because a genuinely
// mono area always has channel_count==1.
