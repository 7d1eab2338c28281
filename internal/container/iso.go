package container

import (
	"fmt"
	"io"

	"github.com/deepteams/sacd/internal/pool"
	"github.com/deepteams/sacd/internal/sacdlog"
)

// Scarlet Book sector/TOC constants.
const (
	lsnSize          = 2048
	psnSize          = 2064
	psnHeaderLen     = 12
	masterTOCLSN     = 510
	masterTOCLenLSNs = 10

	areaTOCHeaderLen = 8 // "TWOCHTOC" / "MULCHTOC"
)

var masterTOCMagic = [8]byte{'S', 'A', 'C', 'D', 'M', 'T', 'O', 'C'}

// Audio sector packet data types.
const (
	dataTypeAudio         = 0
	dataTypeSupplementary = 1
	dataTypePadding       = 7
)

// ISOReader parses a Scarlet Book SACD disc image: it locates and walks
// the Master TOC and both area TOCs, then iterates audio sectors to
// extract DST/DSD frames for a selected track.
type ISOReader struct {
	ra     io.ReaderAt
	log    sacdlog.Logger
	stride int // sector stride in bytes: lsnSize or psnSize
	disc   Disc
}

// OpenISO probes sector 510 at both the LSN and PSN stride to locate the
// Master TOC, then parses both area TOCs present on the disc.
func OpenISO(ra io.ReaderAt, log sacdlog.Logger) (*ISOReader, error) {
	if log == nil {
		log = sacdlog.Discard
	}
	r := &ISOReader{ra: ra, log: log}

	for _, stride := range []int{lsnSize, psnSize} {
		buf := make([]byte, 8)
		off := int64(masterTOCLSN) * int64(stride)
		if stride == psnSize {
			off += psnHeaderLen
		}
		if _, err := ra.ReadAt(buf, off); err != nil {
			continue
		}
		if string(buf) == string(masterTOCMagic[:]) {
			r.stride = stride
			break
		}
	}
	if r.stride == 0 {
		return nil, ErrNoMasterTOC
	}

	mtoc, err := r.readSectorRange(masterTOCLSN, masterTOCLenLSNs)
	if err != nil {
		return nil, fmt.Errorf("container: reading master toc: %w", err)
	}

	area1Start := be32(mtoc[96:100])
	area1Size := be32(mtoc[100:104])
	area2Start := be32(mtoc[104:108])
	area2Size := be32(mtoc[112:116])

	if area1Start != 0 && area1Size != 0 {
		area, err := r.readAreaTOC(area1Start, area1Size)
		if err != nil {
			r.log.Warnf("container: area 1 toc: %v", err)
		} else {
			r.assignArea(area)
		}
	}
	if area2Start != 0 && area2Size != 0 {
		area, err := r.readAreaTOC(area2Start, area2Size)
		if err != nil {
			r.log.Warnf("container: area 2 toc: %v", err)
		} else {
			r.assignArea(area)
		}
	}

	return r, nil
}

type areaTOC struct {
	kind              AreaKind
	channelCount      int
	loudspeakerConfig int
	trackStartLSN     []uint32
	trackLengthLSN    []uint32
	trackDurationFrm  []uint32
	trackTitle        [][]byte
}

func (r *ISOReader) assignArea(a *areaTOC) {
	tracks := make([]Track, len(a.trackStartLSN))
	for i := range tracks {
		tracks[i] = Track{
			Number:            i + 1,
			Area:              a.kind,
			StartLSN:          a.trackStartLSN[i],
			LengthLSN:         a.trackLengthLSN[i],
			Channels:          a.channelCount,
			LoudspeakerConfig: a.loudspeakerConfig,
			SampleRate:        SampleRate,
			FrameRate:         FrameRate,
		}
		if i < len(a.trackDurationFrm) {
			tracks[i].DurationFrames = a.trackDurationFrm[i]
		} else {
			tracks[i].DurationFrames = a.trackLengthLSN[i]
		}
		if i < len(a.trackTitle) {
			tracks[i].TitleRaw = a.trackTitle[i]
		}
	}
	if a.kind == AreaTwoChannel {
		r.disc.TwoChannel = tracks
	} else {
		r.disc.MultiChannel = tracks
	}
}

// classifyArea marks an area two-channel when channel_count==2 and
// loudspeaker_config==0, multi-channel otherwise.
func classifyArea(channelCount, loudspeakerConfig int) AreaKind {
	if channelCount == 2 && loudspeakerConfig == 0 {
		return AreaTwoChannel
	}
	return AreaMultiChannel
}

func (r *ISOReader) readAreaTOC(startLSN, sizeLSNs uint32) (*areaTOC, error) {
	buf, err := r.readSectorRange(int(startLSN), int(sizeLSNs))
	if err != nil {
		return nil, fmt.Errorf("reading area toc sectors: %w", err)
	}
	if len(buf) < areaTOCHeaderLen {
		return nil, ErrTruncated
	}

	magic := string(buf[:areaTOCHeaderLen])
	if magic != "TWOCHTOC" && magic != "MULCHTOC" {
		return nil, fmt.Errorf("%w: %q", ErrBadMagic, magic)
	}

	channelCount := int(buf[40])
	loudspeakerConfig := int(buf[41])
	// channel_count==1 is always treated as the mono loudspeaker config
	// regardless of the byte actually stored in loudspeaker_config (see
	// the mono-handling note in container.go).
	if channelCount == 1 {
		loudspeakerConfig = loudspeakerConfigMono
	}

	a := &areaTOC{
		kind:              classifyArea(channelCount, loudspeakerConfig),
		channelCount:      channelCount,
		loudspeakerConfig: loudspeakerConfig,
	}

	// Sub-chunk walk: each sub-chunk is an 8-byte ASCII tag followed by
	// format-specific data. Offsets beyond the fixed area TOC header are
	// scanned for recognized tags; unknown tags are skipped by continuing
	// the scan at the next 4-byte-aligned position, the same tolerant
	// posture the sector iterator takes toward damaged sectors.
	pos := areaTOCHeaderLen + 64
	for pos+4 <= len(buf) {
		tag8 := ""
		if pos+8 <= len(buf) {
			tag8 = string(buf[pos : pos+8])
		}
		switch tag8 {
		case "SACDTTxt":
			title, n := readTrackTitles(buf[pos+8:])
			a.trackTitle = title
			pos += 8 + n
			continue
		case "SACD_IGL":
			n := readChunkLen(buf[pos+8:])
			pos += 8 + n
			continue
		case "SACD_ACC":
			n := readChunkLen(buf[pos+8:])
			pos += 8 + n
			continue
		case "SACDTRL1":
			starts, lengths, n := readTRL1(buf[pos+8:])
			a.trackStartLSN = starts
			a.trackLengthLSN = lengths
			pos += 8 + n
			continue
		case "SACDTRL2":
			durations, n := readTRL2(buf[pos+8:], len(a.trackStartLSN))
			a.trackDurationFrm = durations
			pos += 8 + n
			continue
		}
		pos += 4
	}

	if a.trackStartLSN == nil {
		return nil, fmt.Errorf("container: area toc missing SACDTRL1 track list")
	}
	return a, nil
}

// readChunkLen reads a big-endian 32-bit chunk byte length prefix, the
// convention shared by the SACD_IGL/SACD_ACC sub-chunks this parser skips
// without decoding; their payload is character-set-dependent text and ISRC
// data this module deliberately leaves opaque.
func readChunkLen(b []byte) int {
	if len(b) < 4 {
		return len(b)
	}
	n := int(be32(b))
	if n < 4 || 4+n > len(b) {
		return len(b)
	}
	return 4 + n
}

func readTrackTitles(b []byte) ([][]byte, int) {
	if len(b) < 4 {
		return nil, len(b)
	}
	count := int(be16(b[2:4]))
	titles := make([][]byte, count)
	pos := 4
	for i := 0; i < count && pos+4 <= len(b); i++ {
		if pos+4 > len(b) {
			break
		}
		tlen := int(be16(b[pos+2 : pos+4]))
		start := pos + 4
		end := start + tlen
		if end > len(b) {
			end = len(b)
		}
		titles[i] = append([]byte(nil), b[start:end]...)
		pos = end
	}
	return titles, pos
}

func readTRL1(b []byte) (starts, lengths []uint32, consumed int) {
	if len(b) < 2 {
		return nil, nil, len(b)
	}
	count := int(be16(b[:2]))
	pos := 2
	starts = make([]uint32, count)
	lengths = make([]uint32, count)
	for i := 0; i < count; i++ {
		if pos+8 > len(b) {
			break
		}
		starts[i] = be32(b[pos : pos+4])
		lengths[i] = be32(b[pos+4 : pos+8])
		pos += 8
	}
	return starts, lengths, pos
}

// readTRL2 reads per-track duration expressed as hours:minutes:seconds:frames
// and converts to a flat frame count.
func readTRL2(b []byte, trackCount int) ([]uint32, int) {
	pos := 0
	durations := make([]uint32, 0, trackCount)
	for i := 0; i < trackCount && pos+4 <= len(b); i++ {
		hours := int(b[pos])
		minutes := int(b[pos+1])
		seconds := int(b[pos+2])
		frames := int(b[pos+3])
		total := uint32(((hours*60+minutes)*60+seconds)*FrameRate + frames)
		durations = append(durations, total)
		pos += 4
	}
	return durations, pos
}

// readSectorRange reads n consecutive LSNs starting at lsn, stripping the
// PSN prefix per sector when the disc image uses the PSN stride, and
// returns the concatenated LSN-sized payload.
func (r *ISOReader) readSectorRange(lsn, n int) ([]byte, error) {
	out := make([]byte, n*lsnSize)
	return r.readSectorsInto(lsn, n, out)
}

// readSectorInto reads a single LSN into buf[:lsnSize], a pooled
// scratch buffer reused across NextFrame calls to avoid a per-sector
// allocation in the frame-extraction hot path.
func (r *ISOReader) readSectorInto(lsn int, buf []byte) ([]byte, error) {
	return r.readSectorsInto(lsn, 1, buf)
}

func (r *ISOReader) readSectorsInto(lsn, n int, buf []byte) ([]byte, error) {
	out := buf[:n*lsnSize]
	for i := 0; i < n; i++ {
		off := int64(lsn+i) * int64(r.stride)
		if r.stride == psnSize {
			off += psnHeaderLen
		}
		if _, err := r.ra.ReadAt(out[i*lsnSize:(i+1)*lsnSize], off); err != nil {
			return nil, fmt.Errorf("%w: lsn %d: %v", ErrTruncated, lsn+i, err)
		}
	}
	return out, nil
}

// Disc returns the parsed track lists for both areas.
func (r *ISOReader) Disc() *Disc { return &r.disc }

// audio sector header layout:
//
//	byte 0: dst_encoded:1, reserved:7
//	byte 1: packet_info_count:u8
//	byte 2: frame_info_count:u8
const (
	audioSectorHeaderLen = 3
	packetDescriptorLen  = 3
	frameDescriptorLen   = 5 // 4 when the sector is not DST-encoded
)

type packetDescriptor struct {
	frameStart bool
	dataType   int
	length     int
}

func readPacketDescriptor(b []byte) packetDescriptor {
	v := uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
	return packetDescriptor{
		frameStart: v&(1<<23) != 0,
		dataType:   int(v>>20) & 0x7,
		length:     int(v & 0xFFF),
	}
}

// ISOFrameSource iterates audio sectors of a single ISO track, reassembling
// DST/DSD frames from the packet stream. Sector parse state persists across
// NextFrame calls: a frame boundary mid-sector leaves the remaining packets
// in place, and the next call resumes at the packet that opened the new
// frame.
type ISOFrameSource struct {
	r      *ISOReader
	track  *Track
	curLSN uint32
	endLSN uint32
	log    sacdlog.Logger

	sector     []byte // current sector payload, nil when a fresh sector is needed
	packets    []packetDescriptor
	packetIdx  int
	dataPos    int // byte offset of packets[packetIdx]'s payload within sector
	dstEncoded bool

	pending []byte // bytes accumulated for the frame currently being built
	started bool
}

// NewISOFrameSource opens a frame iterator over t, starting at its first
// sector.
func (r *ISOReader) NewISOFrameSource(t *Track) *ISOFrameSource {
	return &ISOFrameSource{
		r:      r,
		track:  t,
		curLSN: t.StartLSN,
		endLSN: t.StartLSN + t.LengthLSN,
		log:    r.log,
	}
}

func (s *ISOFrameSource) Track() *Track { return s.track }

// SeekSeconds scales a time offset linearly across the track's LSN range;
// one LSN equals one frame at FrameRate==75.
func (s *ISOFrameSource) SeekSeconds(seconds float64) error {
	frameOffset := uint32(seconds * float64(s.track.FrameRate))
	if frameOffset > s.track.LengthLSN {
		frameOffset = s.track.LengthLSN
	}
	s.curLSN = s.track.StartLSN + frameOffset
	s.resetSector()
	s.pending = nil
	s.started = false
	return nil
}

func (s *ISOFrameSource) resetSector() {
	if s.sector != nil {
		pool.Put(s.sector)
		s.sector = nil
	}
	s.packets = s.packets[:0]
	s.packetIdx = 0
	s.dataPos = 0
}

// loadSector reads the next audio sector and parses its header, packet
// descriptor table, and (skipping over it) the frame descriptor table, so
// dataPos lands on the first packet's payload.
func (s *ISOFrameSource) loadSector() error {
	buf := pool.Get(lsnSize)
	sector, err := s.r.readSectorInto(int(s.curLSN), buf)
	s.curLSN++
	if err != nil {
		pool.Put(buf)
		return err
	}
	if len(sector) < audioSectorHeaderLen {
		pool.Put(buf)
		return ErrTruncated
	}

	s.dstEncoded = sector[0]&0x80 != 0
	packetCount := int(sector[1])
	frameCount := int(sector[2])

	pos := audioSectorHeaderLen
	if pos+packetCount*packetDescriptorLen > len(sector) {
		pool.Put(buf)
		return ErrTruncated
	}
	s.packets = s.packets[:0]
	for p := 0; p < packetCount; p++ {
		s.packets = append(s.packets, readPacketDescriptor(sector[pos:pos+packetDescriptorLen]))
		pos += packetDescriptorLen
	}

	// The frame descriptor table sits between the packet descriptors and
	// the packet payload bytes; its entries are 5 bytes on DST-encoded
	// sectors and 4 otherwise.
	fdLen := frameDescriptorLen
	if !s.dstEncoded {
		fdLen = frameDescriptorLen - 1
	}
	pos += frameCount * fdLen
	if pos > len(sector) {
		pool.Put(buf)
		return ErrTruncated
	}

	s.sector = buf
	s.packetIdx = 0
	s.dataPos = pos
	return nil
}

// NextFrame walks packets forward from the cursor, concatenating
// DATA_TYPE_AUDIO packet bytes from one frame_start packet up to (but not
// including) the next, and returns the assembled frame. On a short sector
// read the in-progress frame is dropped, per-sector state resets, and an
// invalid frame is reported so iteration resumes at the next sector.
func (s *ISOFrameSource) NextFrame() (Frame, error) {
	for {
		if s.sector == nil || s.packetIdx >= len(s.packets) {
			s.resetSector()
			if s.curLSN >= s.endLSN {
				break
			}
			if err := s.loadSector(); err != nil {
				s.log.Warnf("container: sector bad read at lsn %d: %v", s.curLSN-1, err)
				s.pending = nil
				s.started = false
				return Frame{Invalid: true}, nil
			}
		}

		for s.packetIdx < len(s.packets) {
			pd := s.packets[s.packetIdx]

			if pd.dataType == dataTypeAudio && pd.frameStart && s.started && len(s.pending) > 0 {
				// This packet opens the next frame; leave it unconsumed so the
				// next call starts the new frame from it.
				out := s.pending
				s.pending = nil
				s.started = false
				return Frame{Data: out, DST: s.dstEncoded}, nil
			}

			end := s.dataPos + pd.length
			if end > len(s.sector) {
				s.log.Warnf("container: packet overruns sector at lsn %d", s.curLSN-1)
				s.resetSector()
				s.pending = nil
				s.started = false
				return Frame{Invalid: true}, nil
			}
			if pd.dataType == dataTypeAudio {
				if pd.frameStart {
					s.started = true
					s.pending = s.pending[:0]
				}
				if s.started {
					s.pending = append(s.pending, s.sector[s.dataPos:end]...)
				}
			}
			s.dataPos = end
			s.packetIdx++
		}
	}

	if s.started && len(s.pending) > 0 {
		out := s.pending
		s.pending = nil
		s.started = false
		return Frame{Data: out, DST: s.track.DSTEncoded}, nil
	}
	return Frame{}, io.EOF
}
