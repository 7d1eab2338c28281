package container

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// dffBuilder assembles a DSDIFF file chunk by chunk, handling the 12-byte
// tag+size headers and odd-size padding.
type dffBuilder struct {
	body bytes.Buffer
}

func (b *dffBuilder) chunk(id string, data []byte) {
	b.body.WriteString(id)
	var sz [8]byte
	binary.BigEndian.PutUint64(sz[:], uint64(len(data)))
	b.body.Write(sz[:])
	b.body.Write(data)
	if len(data)%2 != 0 {
		b.body.WriteByte(0)
	}
}

func (b *dffBuilder) bytes() []byte {
	var out bytes.Buffer
	out.WriteString("FRM8")
	var sz [8]byte
	binary.BigEndian.PutUint64(sz[:], uint64(4+b.body.Len()))
	out.Write(sz[:])
	out.WriteString("DSD ")
	out.Write(b.body.Bytes())
	return out.Bytes()
}

func propChunk(sampleRate uint32, channels uint16, cmpr string) []byte {
	var p dffBuilder
	var fs [4]byte
	binary.BigEndian.PutUint32(fs[:], sampleRate)
	p.chunk("FS  ", fs[:])
	chnl := make([]byte, 2+4*int(channels))
	binary.BigEndian.PutUint16(chnl, channels)
	p.chunk("CHNL", chnl)
	p.chunk("CMPR", append([]byte(cmpr), 0))
	var body bytes.Buffer
	body.WriteString("SND ")
	body.Write(p.body.Bytes())
	return body.Bytes()
}

func markChunk(markType uint16, hours uint16, minutes, seconds byte, samples uint32) []byte {
	data := make([]byte, 14)
	binary.BigEndian.PutUint16(data[0:2], markType)
	binary.BigEndian.PutUint16(data[2:4], hours)
	data[4] = minutes
	data[5] = seconds
	binary.BigEndian.PutUint32(data[6:10], samples)
	return data
}

func TestOpenDSDIFF_RawDSDSingleTrack(t *testing.T) {
	const channels = 2
	frameBytes := SampleRate / 8 / FrameRate * channels
	data := bytes.Repeat([]byte{0x69}, frameBytes*2)

	var b dffBuilder
	b.chunk("FVER", []byte{1, 5, 0, 0})
	b.chunk("PROP", propChunk(SampleRate, channels, "DSD "))
	b.chunk("DSD ", data)
	img := b.bytes()

	r, err := OpenDSDIFF(bytes.NewReader(img), int64(len(img)), nil)
	require.NoError(t, err)

	disc := r.Disc()
	require.Len(t, disc.TwoChannel, 1)
	tr := disc.TwoChannel[0]
	require.Equal(t, channels, tr.Channels)
	require.False(t, tr.DSTEncoded)
	require.InDelta(t, 2.0/75.0, tr.DurationSeconds(), 1e-9)

	fs, err := r.OpenFrameSource(&disc.TwoChannel[0])
	require.NoError(t, err)

	fr, err := fs.NextFrame()
	require.NoError(t, err)
	require.False(t, fr.DST)
	require.Len(t, fr.Data, frameBytes)

	fr, err = fs.NextFrame()
	require.NoError(t, err)
	require.Len(t, fr.Data, frameBytes)

	_, err = fs.NextFrame()
	require.ErrorIs(t, err, io.EOF)
}

func TestOpenDSDIFF_BadMagicFails(t *testing.T) {
	img := append([]byte("JUNK"), make([]byte, 32)...)
	_, err := OpenDSDIFF(bytes.NewReader(img), int64(len(img)), nil)
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestOpenDSDIFF_MarkTracksWithImplicitStop(t *testing.T) {
	// TrackStart at 0.0s and 1.0s, TrackStop at 2.0s: the second start
	// implicitly closes track 1 at 1.0s; track 2 runs 1.0s..2.0s.
	var diin dffBuilder
	diin.chunk("MARK", markChunk(markTrackStart, 0, 0, 0, 0))
	diin.chunk("MARK", markChunk(markTrackStart, 0, 0, 1, 0))
	diin.chunk("MARK", markChunk(markTrackStop, 0, 0, 2, 0))

	const channels = 2
	frameBytes := SampleRate / 8 / FrameRate * channels
	var b dffBuilder
	b.chunk("FVER", []byte{1, 5, 0, 0})
	b.chunk("PROP", propChunk(SampleRate, channels, "DSD "))
	b.chunk("DSD ", make([]byte, frameBytes*150)) // 2 seconds
	b.chunk("DIIN", diin.body.Bytes())
	img := b.bytes()

	r, err := OpenDSDIFF(bytes.NewReader(img), int64(len(img)), nil)
	require.NoError(t, err)

	tracks := r.Disc().TwoChannel
	require.Len(t, tracks, 2)
	require.InDelta(t, 1.0, tracks[0].DurationSeconds(), 1e-9)
	require.InDelta(t, 1.0, tracks[1].DurationSeconds(), 1e-9)
	require.Equal(t, uint32(75), tracks[1].StartFrames)

	// Track 2's frame source starts at its own boundary, not the data
	// region's.
	fs, err := r.OpenFrameSource(&tracks[1])
	require.NoError(t, err)
	n := 0
	for {
		_, err := fs.NextFrame()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		n++
	}
	require.Equal(t, 75, n)
}

func TestOpenDSDIFF_OverlappingStopClampsToZero(t *testing.T) {
	var diin dffBuilder
	diin.chunk("MARK", markChunk(markTrackStart, 0, 0, 2, 0))
	diin.chunk("MARK", markChunk(markTrackStop, 0, 0, 1, 0))

	const channels = 2
	frameBytes := SampleRate / 8 / FrameRate * channels
	var b dffBuilder
	b.chunk("FVER", []byte{1, 5, 0, 0})
	b.chunk("PROP", propChunk(SampleRate, channels, "DSD "))
	b.chunk("DSD ", make([]byte, frameBytes*150))
	b.chunk("DIIN", diin.body.Bytes())
	img := b.bytes()

	r, err := OpenDSDIFF(bytes.NewReader(img), int64(len(img)), nil)
	require.NoError(t, err)
	tracks := r.Disc().TwoChannel
	require.Len(t, tracks, 1)
	require.Equal(t, 0.0, tracks[0].DurationSeconds())
}

func TestOpenDSDIFF_DSTFramesIterate(t *testing.T) {
	const channels = 2
	frameA := bytes.Repeat([]byte{0xA1}, 100)
	frameB := bytes.Repeat([]byte{0xB2}, 101) // odd size exercises pad byte

	var dst dffBuilder
	frte := make([]byte, 6)
	binary.BigEndian.PutUint32(frte[0:4], 2)
	binary.BigEndian.PutUint16(frte[4:6], FrameRate)
	dst.chunk("FRTE", frte)
	dst.chunk("DSTF", frameA)
	dst.chunk("DSTF", frameB)

	var b dffBuilder
	b.chunk("FVER", []byte{1, 5, 0, 0})
	b.chunk("PROP", propChunk(SampleRate, channels, "DST "))
	b.chunk("DST ", dst.body.Bytes())
	img := b.bytes()

	r, err := OpenDSDIFF(bytes.NewReader(img), int64(len(img)), nil)
	require.NoError(t, err)
	tracks := r.Disc().TwoChannel
	require.Len(t, tracks, 1)
	require.True(t, tracks[0].DSTEncoded)
	require.InDelta(t, 2.0/75.0, tracks[0].DurationSeconds(), 1e-9)

	fs, err := r.OpenFrameSource(&tracks[0])
	require.NoError(t, err)

	fr, err := fs.NextFrame()
	require.NoError(t, err)
	require.True(t, fr.DST)
	require.Equal(t, frameA, fr.Data)

	fr, err = fs.NextFrame()
	require.NoError(t, err)
	require.Equal(t, frameB, fr.Data)

	_, err = fs.NextFrame()
	require.ErrorIs(t, err, io.EOF)
}

func TestMarkerSeconds_SampleOffsetEncoding(t *testing.T) {
	r := &DSDIFFReader{sampleRate: SampleRate}
	m := dsdiffMarker{hours: 1, minutes: 2, seconds: 3, samples: SampleRate / 2}
	require.InDelta(t, 3723.5, r.markerSeconds(m), 1e-9)
}
