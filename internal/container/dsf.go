package container

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/deepteams/sacd/internal/sacdlog"
)

// DSF chunk layout: header "DSD " (28 bytes), "fmt " (52 bytes),
// "data" (sample_count/8 * channel_count + padding to block_size). All
// integers are little-endian, unlike ISO/DSDIFF.
const (
	dsfHeaderChunkSize = 28
	dsfFmtChunkSize    = 52
)

// DSFReader parses a single-file DSF stream: the DSD header, fmt chunk, and
// data chunk.
type DSFReader struct {
	ra  io.ReaderAt
	log sacdlog.Logger

	channels          int
	channelType       int
	loudspeakerConfig int
	sampleRate        int
	bitsPerSample     int
	sampleCount       int64
	blockSize         int

	dataStart int64
	dataSize  int64

	disc Disc
}

// OpenDSF parses the DSD/fmt/data chunk sequence.
func OpenDSF(ra io.ReaderAt, log sacdlog.Logger) (*DSFReader, error) {
	if log == nil {
		log = sacdlog.Discard
	}
	r := &DSFReader{ra: ra, log: log}

	hdr := make([]byte, dsfHeaderChunkSize)
	if _, err := ra.ReadAt(hdr, 0); err != nil {
		return nil, fmt.Errorf("%w: DSD header: %v", ErrTruncated, err)
	}
	if string(hdr[:4]) != "DSD " {
		return nil, fmt.Errorf("%w: %q", ErrBadMagic, string(hdr[:4]))
	}
	chunkSize := int64(binary.LittleEndian.Uint64(hdr[4:12]))
	if chunkSize != dsfHeaderChunkSize {
		return nil, fmt.Errorf("%w: DSD header size %d", ErrChunkSize, chunkSize)
	}

	fmtBuf := make([]byte, dsfFmtChunkSize)
	if _, err := ra.ReadAt(fmtBuf, dsfHeaderChunkSize); err != nil {
		return nil, fmt.Errorf("%w: fmt chunk: %v", ErrTruncated, err)
	}
	if string(fmtBuf[:4]) != "fmt " {
		return nil, fmt.Errorf("%w: %q", ErrBadMagic, string(fmtBuf[:4]))
	}
	fmtSize := int64(binary.LittleEndian.Uint64(fmtBuf[4:12]))
	if fmtSize != dsfFmtChunkSize {
		return nil, fmt.Errorf("%w: fmt chunk size %d", ErrChunkSize, fmtSize)
	}

	formatVersion := binary.LittleEndian.Uint32(fmtBuf[12:16])
	formatID := binary.LittleEndian.Uint32(fmtBuf[16:20])
	if formatID != 0 {
		return nil, fmt.Errorf("%w: fmt format id %d", ErrUnsupportedVersion, formatID)
	}
	_ = formatVersion

	r.channelType = int(binary.LittleEndian.Uint32(fmtBuf[20:24]))
	r.channels = int(binary.LittleEndian.Uint32(fmtBuf[24:28]))
	r.sampleRate = int(binary.LittleEndian.Uint32(fmtBuf[28:32]))
	r.bitsPerSample = int(binary.LittleEndian.Uint32(fmtBuf[32:36]))
	if r.bitsPerSample != 1 && r.bitsPerSample != 8 {
		return nil, fmt.Errorf("%w: bits_per_sample %d", ErrUnsupportedVersion, r.bitsPerSample)
	}
	r.sampleCount = int64(binary.LittleEndian.Uint64(fmtBuf[36:44]))
	r.blockSize = int(binary.LittleEndian.Uint32(fmtBuf[44:48]))
	r.loudspeakerConfig = resolveDSFLoudspeakerConfig(r.channelType)

	dataHdr := make([]byte, 12)
	if _, err := ra.ReadAt(dataHdr, dsfHeaderChunkSize+dsfFmtChunkSize); err != nil {
		return nil, fmt.Errorf("%w: data chunk: %v", ErrTruncated, err)
	}
	if string(dataHdr[:4]) != "data" {
		return nil, fmt.Errorf("%w: %q", ErrBadMagic, string(dataHdr[:4]))
	}
	r.dataSize = int64(binary.LittleEndian.Uint64(dataHdr[4:12])) - 12
	r.dataStart = dsfHeaderChunkSize + dsfFmtChunkSize + 12

	kind := classifyArea(r.channels, r.loudspeakerConfig)
	durationFrames := uint32(float64(r.sampleCount) / float64(r.sampleRate) * FrameRate)
	track := Track{
		Number:            1,
		Area:              kind,
		Channels:          r.channels,
		LoudspeakerConfig: r.loudspeakerConfig,
		SampleRate:        r.sampleRate,
		FrameRate:         FrameRate,
		DSTEncoded:        false,
		DurationFrames:    durationFrames,
	}
	if kind == AreaTwoChannel {
		r.disc.TwoChannel = []Track{track}
	} else {
		r.disc.MultiChannel = []Track{track}
	}

	return r, nil
}

func (r *DSFReader) Disc() *Disc { return &r.disc }

// DSFFrameSource iterates a DSF file's non-interleaved, per-channel block
// layout, de-interleaving blocks into the channel-interleaved-per-sample
// shape the rest of this module expects. When bits_per_sample==1 every
// read byte is LSB-first and must be bit-reversed.
type DSFFrameSource struct {
	r         *DSFReader
	track     *Track
	blockPos  int64 // byte offset, within the data region, of the next block group
	frameLen  int   // bytes of one decoded audio frame (all channels)
}

func (r *DSFReader) NewFrameSource(t *Track) *DSFFrameSource {
	return &DSFFrameSource{r: r, track: t, frameLen: t.FrameByteLength()}
}

func (s *DSFFrameSource) Track() *Track { return s.track }

func (s *DSFFrameSource) SeekSeconds(seconds float64) error {
	byteOffset := int64(seconds*float64(s.track.SampleRate)/8) * int64(s.track.Channels)
	// Round down to a frame boundary so de-interleaving stays aligned.
	byteOffset -= byteOffset % int64(s.frameLen)
	if byteOffset < 0 {
		byteOffset = 0
	}
	s.blockPos = byteOffset
	return nil
}

// NextFrame reads one frame's worth of bytes from each channel's block and
// interleaves them sample-by-sample (one bit per sample per channel,
// matching the Audio frame layout the rest of the pipeline expects).
func (s *DSFFrameSource) NextFrame() (Frame, error) {
	blockSize := s.r.blockSize
	channels := s.r.channels
	bytesPerChannelPerFrame := s.frameLen / channels

	out := make([]byte, s.frameLen)
	anyRead := false

	for b := 0; b < bytesPerChannelPerFrame; b++ {
		// Absolute byte position within channel ch's block stream.
		absByte := s.blockPos/int64(channels) + int64(b)
		blockIdx := absByte / int64(blockSize)
		withinBlock := absByte % int64(blockSize)

		for ch := 0; ch < channels; ch++ {
			off := s.r.dataStart + blockIdx*int64(blockSize)*int64(channels) + int64(ch)*int64(blockSize) + withinBlock
			if off >= s.r.dataStart+s.r.dataSize {
				continue
			}
			var buf [1]byte
			if _, err := s.r.ra.ReadAt(buf[:], off); err != nil {
				continue
			}
			v := buf[0]
			if s.r.bitsPerSample == 1 {
				v = SwapBits[v]
			}
			out[b*channels+ch] = v
			anyRead = true
		}
	}

	if !anyRead {
		return Frame{}, io.EOF
	}
	s.blockPos += int64(s.frameLen)
	return Frame{Data: out, DST: false}, nil
}
