package container

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildTestISO assembles a minimal Scarlet Book image: master TOC at LSN
// 510 pointing at a TWOCHTOC area whose SACDTRL1 lists one track with one
// audio sector per entry of packets.
func buildTestISO(t *testing.T, packets [][]packetDescriptor, payloads [][][]byte) []byte {
	t.Helper()

	const (
		areaTOCLSN = 540
		trackLSN   = 560
		totalLSNs  = 570
	)
	img := make([]byte, totalLSNs*lsnSize)

	// Master TOC.
	mtoc := img[masterTOCLSN*lsnSize:]
	copy(mtoc, masterTOCMagic[:])
	binary.BigEndian.PutUint32(mtoc[96:100], areaTOCLSN) // area_1_toc_1_start
	binary.BigEndian.PutUint32(mtoc[100:104], 1)         // area_1_toc_size

	// Area TOC.
	atoc := img[areaTOCLSN*lsnSize:]
	copy(atoc, "TWOCHTOC")
	atoc[40] = 2 // channel_count
	atoc[41] = 0 // loudspeaker_config
	pos := areaTOCHeaderLen + 64
	copy(atoc[pos:], "SACDTRL1")
	pos += 8
	binary.BigEndian.PutUint16(atoc[pos:], 1) // track count
	pos += 2
	binary.BigEndian.PutUint32(atoc[pos:], trackLSN)
	binary.BigEndian.PutUint32(atoc[pos+4:], uint32(len(packets)))

	// Audio sectors.
	for i, pds := range packets {
		sector := img[(trackLSN+i)*lsnSize:]
		sector[0] = 0 // not DST encoded
		sector[1] = byte(len(pds))
		sector[2] = 0 // no frame descriptors
		p := audioSectorHeaderLen
		for _, pd := range pds {
			v := uint32(pd.length) & 0xFFF
			v |= uint32(pd.dataType&0x7) << 20
			if pd.frameStart {
				v |= 1 << 23
			}
			sector[p] = byte(v >> 16)
			sector[p+1] = byte(v >> 8)
			sector[p+2] = byte(v)
			p += packetDescriptorLen
		}
		for j, pd := range pds {
			copy(sector[p:p+pd.length], payloads[i][j])
			p += pd.length
		}
	}
	return img
}

func TestOpenISO_ParsesTrackList(t *testing.T) {
	img := buildTestISO(t,
		[][]packetDescriptor{{{frameStart: true, dataType: dataTypeAudio, length: 8}}},
		[][][]byte{{bytes.Repeat([]byte{0xAA}, 8)}},
	)
	r, err := OpenISO(bytes.NewReader(img), nil)
	require.NoError(t, err)

	disc := r.Disc()
	require.Len(t, disc.TwoChannel, 1)
	require.Empty(t, disc.MultiChannel)

	tr := disc.TwoChannel[0]
	require.Equal(t, 2, tr.Channels)
	require.Equal(t, uint32(560), tr.StartLSN)
	require.Equal(t, SampleRate, tr.SampleRate)
}

func TestOpenISO_NoMagicFails(t *testing.T) {
	img := make([]byte, 520*lsnSize)
	_, err := OpenISO(bytes.NewReader(img), nil)
	require.ErrorIs(t, err, ErrNoMasterTOC)
}

func TestISOFrameSource_SplitsFramesAtFrameStart(t *testing.T) {
	first := bytes.Repeat([]byte{0x11}, 10)
	second := bytes.Repeat([]byte{0x22}, 6)
	third := bytes.Repeat([]byte{0x33}, 5)

	// Sector 0 carries the whole first frame plus the start of the second;
	// the second frame finishes in sector 1. The frame boundary falls
	// mid-sector, so NextFrame must resume at the unconsumed packet.
	img := buildTestISO(t,
		[][]packetDescriptor{
			{
				{frameStart: true, dataType: dataTypeAudio, length: 10},
				{frameStart: true, dataType: dataTypeAudio, length: 6},
			},
			{
				{dataType: dataTypePadding, length: 4},
				{frameStart: true, dataType: dataTypeAudio, length: 5},
			},
		},
		[][][]byte{
			{first, second},
			{{9, 9, 9, 9}, third},
		},
	)

	r, err := OpenISO(bytes.NewReader(img), nil)
	require.NoError(t, err)
	fs, err := r.OpenFrameSource(&r.Disc().TwoChannel[0])
	require.NoError(t, err)

	fr, err := fs.NextFrame()
	require.NoError(t, err)
	require.Equal(t, first, fr.Data)

	fr, err = fs.NextFrame()
	require.NoError(t, err)
	require.Equal(t, second, fr.Data)

	fr, err = fs.NextFrame()
	require.NoError(t, err)
	require.Equal(t, third, fr.Data)

	_, err = fs.NextFrame()
	require.ErrorIs(t, err, io.EOF)
}

func TestISOFrameSource_SkipsFrameDescriptorTable(t *testing.T) {
	payload := bytes.Repeat([]byte{0x5A}, 12)
	img := buildTestISO(t,
		[][]packetDescriptor{{{frameStart: true, dataType: dataTypeAudio, length: 12}}},
		[][][]byte{{payload}},
	)
	// Rewrite sector 0 to carry two 4-byte frame descriptors between the
	// packet table and the payload.
	sector := img[560*lsnSize:]
	sector[2] = 2
	p := audioSectorHeaderLen
	v := uint32(12) | 1<<23
	sector[p] = byte(v >> 16)
	sector[p+1] = byte(v >> 8)
	sector[p+2] = byte(v)
	p += packetDescriptorLen
	for i := 0; i < 2*(frameDescriptorLen-1); i++ {
		sector[p+i] = 0xEE
	}
	p += 2 * (frameDescriptorLen - 1)
	copy(sector[p:], payload)

	r, err := OpenISO(bytes.NewReader(img), nil)
	require.NoError(t, err)
	fs := r.NewISOFrameSource(&r.Disc().TwoChannel[0])

	fr, err := fs.NextFrame()
	require.NoError(t, err)
	require.Equal(t, payload, fr.Data)
}

func TestSwapBits_Involution(t *testing.T) {
	for b := 0; b < 256; b++ {
		require.Equalf(t, byte(b), SwapBits[SwapBits[b]], "b=%#02x", b)
	}
	require.Equal(t, byte(0x80), SwapBits[0x01])
	require.Equal(t, byte(0x96), SwapBits[0x69])
}
