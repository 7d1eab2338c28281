package container

import (
	"fmt"
	"io"
	"math"

	"github.com/deepteams/sacd/internal/sacdlog"
)

// DSDIFF chunk IDs.
const (
	idFRM8 = "FRM8"
	idDSD  = "DSD "
	idFVER = "FVER"
	idPROP = "PROP"
	idSND  = "SND "
	idFS   = "FS  "
	idCHNL = "CHNL"
	idCMPR = "CMPR"
	idLSCO = "LSCO"
	idDST  = "DST "
	idFRTE = "FRTE"
	idDSTF = "DSTF"
	idDSTC = "DSTC"
	idDSTI = "DSTI"
	idDIIN = "DIIN"
	idMARK = "MARK"
	idID3  = "ID3 "
)

// dsdiffChunkHeader is the 4-byte tag + 8-byte big-endian size every DSDIFF
// chunk carries.
type dsdiffChunkHeader struct {
	id   string
	size int64
}

func readDSDIFFChunkHeader(b []byte) dsdiffChunkHeader {
	return dsdiffChunkHeader{id: string(b[0:4]), size: int64(be64(b[4:12]))}
}

func be64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// dsdiffMarker is one DIIN/MARK entry.
type dsdiffMarker struct {
	markType int16
	hours    int16
	minutes  int8
	seconds  int8
	samples  uint32
	offset   int32
}

const (
	markTrackStart = 0
	markTrackStop  = 1
)

// DSDIFFReader parses a FRM8/DSD container: the FVER/PROP/SND property
// chunk, the raw-DSD or DST payload, the optional DSTI frame index, and
// DIIN/MARK track boundaries.
type DSDIFFReader struct {
	ra  io.ReaderAt
	log sacdlog.Logger

	channels          int
	sampleRate        int
	dstEncoded        bool
	loudspeakerConfig int

	dataStart int64 // byte offset of the DSD/DST payload chunk's data
	dataSize  int64

	frameRate  int   // FRTE frame rate (DST only)
	frameCount int   // FRTE frame count (DST only)
	dsti       []dstiEntry

	disc Disc
}

type dstiEntry struct {
	offset int64
	length int64
}

// OpenDSDIFF parses the top-level FRM8/DSD container and every sub-chunk
// needed to resolve a single implicit track spanning the whole file, plus
// DIIN/MARK track boundaries when present.
func OpenDSDIFF(ra io.ReaderAt, size int64, log sacdlog.Logger) (*DSDIFFReader, error) {
	if log == nil {
		log = sacdlog.Discard
	}
	r := &DSDIFFReader{ra: ra, log: log}

	hdrBuf := make([]byte, 12)
	if _, err := ra.ReadAt(hdrBuf, 0); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	top := readDSDIFFChunkHeader(hdrBuf)
	if top.id != idFRM8 {
		return nil, fmt.Errorf("%w: top-level id %q", ErrBadMagic, top.id)
	}
	formBuf := make([]byte, 4)
	if _, err := ra.ReadAt(formBuf, 12); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	if string(formBuf) != "DSD " {
		return nil, fmt.Errorf("%w: form type %q", ErrBadMagic, string(formBuf))
	}

	var markers []dsdiffMarker
	pos := int64(16)
	end := 12 + top.size
	if end > size {
		end = size
	}

	for pos+12 <= end {
		hb := make([]byte, 12)
		if _, err := ra.ReadAt(hb, pos); err != nil {
			break
		}
		ch := readDSDIFFChunkHeader(hb)
		dataOff := pos + 12

		switch ch.id {
		case idPROP:
			if err := r.readPROP(dataOff, ch.size); err != nil {
				return nil, err
			}
		case idDSD:
			r.dataStart = dataOff
			r.dataSize = ch.size
		case idDST:
			if err := r.readDSTContainer(dataOff, ch.size); err != nil {
				return nil, err
			}
		case idDIIN:
			ms, err := r.readDIIN(dataOff, ch.size)
			if err != nil {
				r.log.Warnf("container: DIIN/MARK: %v", err)
			} else {
				markers = ms
			}
		}

		pos = dataOff + ch.size
		if ch.size%2 != 0 {
			pos++ // odd-sized chunks carry one trailing pad byte
		}
	}

	r.buildTracks(markers)
	return r, nil
}

func (r *DSDIFFReader) readPROP(off, size int64) error {
	buf := make([]byte, size)
	if _, err := r.ra.ReadAt(buf, off); err != nil {
		return fmt.Errorf("%w: PROP: %v", ErrTruncated, err)
	}
	if len(buf) < 4 || string(buf[:4]) != "SND " {
		return fmt.Errorf("%w: PROP type %q", ErrBadMagic, string(buf[:min(4, len(buf))]))
	}
	pos := 4
	for pos+12 <= len(buf) {
		id := string(buf[pos : pos+4])
		sz := int64(be64(buf[pos+4 : pos+12]))
		data := buf[pos+12:]
		if int64(len(data)) > sz {
			data = data[:sz]
		}
		switch id {
		case idFS:
			if len(data) >= 4 {
				r.sampleRate = int(be32(data))
			}
		case idCHNL:
			if len(data) >= 2 {
				r.channels = int(be16(data[:2]))
			}
		case idCMPR:
			if len(data) >= 4 {
				r.dstEncoded = string(data[:4]) == "DST "
			}
		case idLSCO:
			if len(data) >= 2 {
				r.loudspeakerConfig = int(be16(data[:2]))
			} else {
				r.loudspeakerConfig = resolveDSDIFFLoudspeakerConfig(r.channels)
			}
		}
		pos += 12 + int(sz)
		if sz%2 != 0 {
			pos++
		}
	}
	if r.loudspeakerConfig == 0 && r.channels != 2 {
		r.loudspeakerConfig = resolveDSDIFFLoudspeakerConfig(r.channels)
	}
	return nil
}

func (r *DSDIFFReader) readDSTContainer(off, size int64) error {
	buf := make([]byte, size)
	if _, err := r.ra.ReadAt(buf, off); err != nil {
		return fmt.Errorf("%w: DST: %v", ErrTruncated, err)
	}
	pos := 0
	r.dataStart = off
	r.dataSize = size
	for pos+12 <= len(buf) {
		id := string(buf[pos : pos+4])
		sz := int64(be64(buf[pos+4 : pos+12]))
		data := buf[pos+12:]
		if int64(len(data)) > sz {
			data = data[:sz]
		}
		switch id {
		case idFRTE:
			if len(data) >= 6 {
				r.frameCount = int(be32(data[:4]))
				r.frameRate = int(be16(data[4:6]))
			}
		case idDSTI:
			r.dsti = parseDSTI(data)
		}
		pos += 12 + int(sz)
		if sz%2 != 0 {
			pos++
		}
	}
	return nil
}

func parseDSTI(b []byte) []dstiEntry {
	n := len(b) / 9 // offset: u8[5] (40-bit big-endian), length: u32
	out := make([]dstiEntry, 0, n)
	for i := 0; i+9 <= len(b); i += 9 {
		var off int64
		for j := 0; j < 5; j++ {
			off = off<<8 | int64(b[i+j])
		}
		length := int64(be32(b[i+5 : i+9]))
		out = append(out, dstiEntry{offset: off, length: length})
	}
	return out
}

// readDIIN walks DIIN's nested MARK chunks.
func (r *DSDIFFReader) readDIIN(off, size int64) ([]dsdiffMarker, error) {
	buf := make([]byte, size)
	if _, err := r.ra.ReadAt(buf, off); err != nil {
		return nil, fmt.Errorf("%w: DIIN: %v", ErrTruncated, err)
	}
	var markers []dsdiffMarker
	pos := 0
	for pos+12 <= len(buf) {
		id := string(buf[pos : pos+4])
		sz := int64(be64(buf[pos+4 : pos+12]))
		data := buf[pos+12:]
		if int64(len(data)) > sz {
			data = data[:sz]
		}
		if id == idMARK && len(data) >= 14 {
			markers = append(markers, dsdiffMarker{
				markType: int16(be16(data[0:2])),
				hours:    int16(be16(data[2:4])),
				minutes:  int8(data[4]),
				seconds:  int8(data[5]),
				samples:  be32(data[6:10]),
				offset:   int32(be32(data[10:14])),
			})
		}
		pos += 12 + int(sz)
		if sz%2 != 0 {
			pos++
		}
	}
	return markers, nil
}

// markerSeconds converts a MARK entry's hours:minutes:seconds:(samples+offset)
// encoding to an absolute time offset.
func (r *DSDIFFReader) markerSeconds(m dsdiffMarker) float64 {
	base := float64(int(m.hours)*3600+int(m.minutes)*60+int(m.seconds))
	if r.sampleRate > 0 {
		base += float64(int64(m.samples)+int64(m.offset)) / float64(r.sampleRate)
	}
	return base
}

// buildTracks derives a track list from paired TrackStart/TrackStop
// markers, clamping silently-overlapping stop/start times but logging a
// diagnostic. With no markers, the whole file is exposed as a single
// track.
func (r *DSDIFFReader) buildTracks(markers []dsdiffMarker) {
	kind := classifyArea(r.channels, r.loudspeakerConfig)
	mk := func(startSec, endSec float64, idx int) Track {
		dur := endSec - startSec
		if dur < 0 {
			r.log.Warnf("container: DSDIFF track %d: clamping overlapping stop (%.3fs) before start (%.3fs)", idx+1, endSec, startSec)
			dur = 0
		}
		return Track{
			Number:            idx + 1,
			Area:              kind,
			Channels:          r.channels,
			LoudspeakerConfig: r.loudspeakerConfig,
			SampleRate:        r.sampleRate,
			FrameRate:         FrameRate,
			DSTEncoded:        r.dstEncoded,
			StartFrames:       uint32(math.Round(startSec * FrameRate)),
			DurationFrames:    uint32(math.Round(dur * FrameRate)),
		}
	}

	if len(markers) == 0 {
		total := 0.0
		if r.dstEncoded && r.frameRate > 0 && r.frameCount > 0 {
			total = float64(r.frameCount) / float64(r.frameRate)
		} else if r.sampleRate > 0 && r.channels > 0 {
			total = float64(r.dataSize) / float64(r.channels) * 8 / float64(r.sampleRate)
		}
		tracks := []Track{mk(0, total, 0)}
		r.assign(kind, tracks)
		return
	}

	var tracks []Track
	var startSec float64
	open := false
	for _, m := range markers {
		switch m.markType {
		case markTrackStart:
			// A TrackStart while a track is still open closes it at the new
			// start time; that is the overlap clamp the diagnostic in mk
			// reports when the times are inverted.
			if open {
				tracks = append(tracks, mk(startSec, r.markerSeconds(m), len(tracks)))
			}
			startSec = r.markerSeconds(m)
			open = true
		case markTrackStop:
			if !open {
				continue
			}
			tracks = append(tracks, mk(startSec, r.markerSeconds(m), len(tracks)))
			open = false
		}
	}
	r.assign(kind, tracks)
}

func (r *DSDIFFReader) assign(kind AreaKind, tracks []Track) {
	if kind == AreaTwoChannel {
		r.disc.TwoChannel = tracks
	} else {
		r.disc.MultiChannel = tracks
	}
}

// Disc returns the parsed (single-area, since DSDIFF has no notion of two
// distinct areas in one file) track list.
func (r *DSDIFFReader) Disc() *Disc { return &r.disc }

// DSDIFFFrameSource iterates DSTF chunks (DST) or raw byte runs (DSD)
// within a track's bounds. DST tracks are bounded by a frame budget;
// raw-DSD tracks by a byte range.
type DSDIFFFrameSource struct {
	r          *DSDIFFReader
	track      *Track
	pos        int64
	endPos     int64
	bufSize    int
	framesLeft int // DST only; -1 means unbounded
}

func (r *DSDIFFReader) NewFrameSource(t *Track, bufSize int) *DSDIFFFrameSource {
	s := &DSDIFFFrameSource{r: r, track: t, pos: r.dataStart, endPos: r.dataStart + r.dataSize, bufSize: bufSize, framesLeft: -1}
	if t.DurationFrames > 0 {
		s.framesLeft = int(t.DurationFrames)
	}
	if !r.dstEncoded {
		bytesPerFrame := int64(t.FrameByteLength())
		start := r.dataStart + int64(t.StartFrames)*bytesPerFrame
		end := start + int64(t.DurationFrames)*bytesPerFrame
		if t.DurationFrames > 0 && end < s.endPos {
			s.endPos = end
		}
		if start < s.endPos {
			s.pos = start
		}
	} else if t.StartFrames > 0 {
		s.seekFrame(int(t.StartFrames))
	}
	return s
}

func (s *DSDIFFFrameSource) Track() *Track { return s.track }

// seekFrame positions the cursor at the given absolute frame index,
// consulting DSTI for the exact DSTF offset when present;
// otherwise it scales linearly within the data region.
func (s *DSDIFFFrameSource) seekFrame(idx int) {
	if idx < 0 {
		idx = 0
	}
	if len(s.r.dsti) > 0 {
		if idx >= len(s.r.dsti) {
			idx = len(s.r.dsti) - 1
		}
		s.pos = s.r.dsti[idx].offset
		return
	}
	if s.r.frameCount > 0 {
		s.pos = s.r.dataStart + int64(float64(idx)/float64(s.r.frameCount)*float64(s.r.dataSize))
		return
	}
	s.pos = s.r.dataStart
}

// SeekSeconds repositions within the track. The offset
// is measured from the track's own start, not the data region's.
func (s *DSDIFFFrameSource) SeekSeconds(seconds float64) error {
	if s.r.dstEncoded {
		rate := s.r.frameRate
		if rate == 0 {
			rate = FrameRate
		}
		frame := int(s.track.StartFrames) + int(seconds*float64(rate))
		s.seekFrame(frame)
		if s.framesLeft >= 0 {
			s.framesLeft = int(s.track.DurationFrames) - int(seconds*float64(rate))
			if s.framesLeft < 0 {
				s.framesLeft = 0
			}
		}
		return nil
	}
	bytesPerFrame := int64(s.track.FrameByteLength())
	frac := int64(seconds*float64(s.track.SampleRate)/8) * int64(s.track.Channels)
	frac -= frac % bytesPerFrame
	s.pos = s.r.dataStart + int64(s.track.StartFrames)*bytesPerFrame + frac
	if s.pos > s.endPos {
		s.pos = s.endPos
	}
	return nil
}

func (s *DSDIFFFrameSource) NextFrame() (Frame, error) {
	if s.pos >= s.endPos {
		return Frame{}, io.EOF
	}
	if s.r.dstEncoded && s.framesLeft == 0 {
		return Frame{}, io.EOF
	}

	if s.r.dstEncoded {
		hb := make([]byte, 12)
		if _, err := s.r.ra.ReadAt(hb, s.pos); err != nil {
			return Frame{}, io.EOF
		}
		ch := readDSDIFFChunkHeader(hb)
		dataOff := s.pos + 12
		switch ch.id {
		case idDSTF:
			data := make([]byte, ch.size)
			if _, err := s.r.ra.ReadAt(data, dataOff); err != nil {
				return Frame{Invalid: true}, nil
			}
			s.pos = dataOff + ch.size
			if ch.size%2 != 0 {
				s.pos++
			}
			if s.framesLeft > 0 {
				s.framesLeft--
			}
			return Frame{Data: data, DST: true}, nil
		case idDSTC, idFRTE, idDSTI:
			// DSTC is a skippable per-frame CRC record; FRTE and DSTI are
			// the DST container's own metadata chunks, already consumed at
			// open time.
			s.pos = dataOff + ch.size
			if ch.size%2 != 0 {
				s.pos++
			}
			return s.NextFrame()
		default:
			return Frame{}, io.EOF
		}
	}

	n := s.bufSize
	remaining := s.endPos - s.pos
	if int64(n) > remaining {
		n = int(remaining)
	}
	n -= n % s.track.Channels
	if n <= 0 {
		return Frame{}, io.EOF
	}
	data := make([]byte, n)
	if _, err := s.r.ra.ReadAt(data, s.pos); err != nil {
		return Frame{Invalid: true}, nil
	}
	s.pos += int64(n)
	return Frame{Data: data, DST: false}, nil
}
