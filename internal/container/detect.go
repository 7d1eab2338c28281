package container

import (
	"io"

	"github.com/deepteams/sacd/internal/sacdlog"
)

// Container is the uniform surface Open returns regardless of which of the
// three source formats was detected, letting the root package drive any of
// them identically (mirrors FrameSource's role at the track level).
type Container interface {
	Disc() *Disc
	OpenFrameSource(t *Track) (FrameSource, error)
}

// OpenFrameSource adapts ISOReader's constructor to the Container
// interface.
func (r *ISOReader) OpenFrameSource(t *Track) (FrameSource, error) {
	return r.NewISOFrameSource(t), nil
}

// OpenFrameSource adapts DSDIFFReader's constructor to the Container
// interface, sizing its raw-DSD read granularity to exactly one audio
// frame so each NextFrame yields one converter-engine frame.
func (r *DSDIFFReader) OpenFrameSource(t *Track) (FrameSource, error) {
	return r.NewFrameSource(t, t.FrameByteLength()), nil
}

// OpenFrameSource adapts DSFReader's constructor to the Container
// interface.
func (r *DSFReader) OpenFrameSource(t *Track) (FrameSource, error) {
	return r.NewFrameSource(t), nil
}

// sniffLen is enough to read every format's leading magic: ISO probes
// sector 510 at two possible sector strides, so detection needs a seek,
// not just a short header read.
const sniffLen = 12

// Open detects which of the three supported container formats ra holds
// and parses it. size is the total byte length of ra, required by
// DSDIFF's FRM8 64-bit size field validation.
func Open(ra io.ReaderAt, size int64, log sacdlog.Logger) (Container, error) {
	head := make([]byte, sniffLen)
	if _, err := ra.ReadAt(head, 0); err != nil && err != io.EOF {
		return nil, err
	}

	switch {
	case string(head[0:4]) == "FRM8":
		return OpenDSDIFF(ra, size, log)
	case string(head[0:4]) == "DSD ":
		// DSDIFF's top-level chunk ID is "FRM8", not "DSD ", so reaching
		// this case unambiguously means the 28-byte DSF header.
		return OpenDSF(ra, log)
	default:
		return OpenISO(ra, log)
	}
}
