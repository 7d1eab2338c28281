package container

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildTestDSF assembles a DSF file: 28-byte DSD header, 52-byte fmt chunk,
// and a data chunk holding channel-blocked sample bytes.
func buildTestDSF(t *testing.T, channelType, channels, bitsPerSample, blockSize int, blocks []byte) []byte {
	t.Helper()
	var out bytes.Buffer

	sampleCount := int64(len(blocks)) / int64(channels) * 8

	hdr := make([]byte, dsfHeaderChunkSize)
	copy(hdr, "DSD ")
	binary.LittleEndian.PutUint64(hdr[4:12], dsfHeaderChunkSize)
	out.Write(hdr)

	fmtBuf := make([]byte, dsfFmtChunkSize)
	copy(fmtBuf, "fmt ")
	binary.LittleEndian.PutUint64(fmtBuf[4:12], dsfFmtChunkSize)
	binary.LittleEndian.PutUint32(fmtBuf[12:16], 1) // format_version
	binary.LittleEndian.PutUint32(fmtBuf[16:20], 0) // format_id
	binary.LittleEndian.PutUint32(fmtBuf[20:24], uint32(channelType))
	binary.LittleEndian.PutUint32(fmtBuf[24:28], uint32(channels))
	binary.LittleEndian.PutUint32(fmtBuf[28:32], SampleRate)
	binary.LittleEndian.PutUint32(fmtBuf[32:36], uint32(bitsPerSample))
	binary.LittleEndian.PutUint64(fmtBuf[36:44], uint64(sampleCount))
	binary.LittleEndian.PutUint32(fmtBuf[44:48], uint32(blockSize))
	out.Write(fmtBuf)

	dataHdr := make([]byte, 12)
	copy(dataHdr, "data")
	binary.LittleEndian.PutUint64(dataHdr[4:12], uint64(12+len(blocks)))
	out.Write(dataHdr)
	out.Write(blocks)
	return out.Bytes()
}

func TestOpenDSF_ParsesFmtChunk(t *testing.T) {
	const blockSize = 32
	blocks := make([]byte, blockSize*2)
	img := buildTestDSF(t, 2, 2, 8, blockSize, blocks)

	r, err := OpenDSF(bytes.NewReader(img), nil)
	require.NoError(t, err)
	require.Len(t, r.Disc().TwoChannel, 1)

	tr := r.Disc().TwoChannel[0]
	require.Equal(t, 2, tr.Channels)
	require.Equal(t, 0, tr.LoudspeakerConfig)
	require.Equal(t, SampleRate, tr.SampleRate)
}

func TestOpenDSF_RejectsBadBitsPerSample(t *testing.T) {
	img := buildTestDSF(t, 2, 2, 4, 32, make([]byte, 64))
	_, err := OpenDSF(bytes.NewReader(img), nil)
	require.ErrorIs(t, err, ErrUnsupportedVersion)
}

// bits_per_sample==1 content bit-reversed on disk must decode
// identically to the same material stored at bits_per_sample==8.
func TestDSFFrameSource_BitsPerSample1MatchesBitReversed8(t *testing.T) {
	const (
		channels  = 2
		blockSize = 32
	)
	msbData := make([]byte, blockSize*channels)
	for i := range msbData {
		msbData[i] = byte(i*37 + 11)
	}
	lsbData := make([]byte, len(msbData))
	for i, b := range msbData {
		lsbData[i] = SwapBits[b]
	}

	img8 := buildTestDSF(t, 2, channels, 8, blockSize, msbData)
	img1 := buildTestDSF(t, 2, channels, 1, blockSize, lsbData)

	r8, err := OpenDSF(bytes.NewReader(img8), nil)
	require.NoError(t, err)
	r1, err := OpenDSF(bytes.NewReader(img1), nil)
	require.NoError(t, err)

	fs8 := r8.NewFrameSource(&r8.Disc().TwoChannel[0])
	fs1 := r1.NewFrameSource(&r1.Disc().TwoChannel[0])

	fr8, err := fs8.NextFrame()
	require.NoError(t, err)
	fr1, err := fs1.NextFrame()
	require.NoError(t, err)
	require.Equal(t, fr8.Data, fr1.Data)
}

func TestDSFFrameSource_InterleavesChannelBlocks(t *testing.T) {
	const (
		channels  = 2
		blockSize = 16
	)
	// Channel 0's block holds 0x10.., channel 1's 0x20..; interleaved
	// output must alternate them sample-byte by sample-byte.
	blocks := make([]byte, blockSize*channels)
	for i := 0; i < blockSize; i++ {
		blocks[i] = 0x10
		blocks[blockSize+i] = 0x20
	}
	img := buildTestDSF(t, 2, channels, 8, blockSize, blocks)

	r, err := OpenDSF(bytes.NewReader(img), nil)
	require.NoError(t, err)
	fs := r.NewFrameSource(&r.Disc().TwoChannel[0])

	fr, err := fs.NextFrame()
	require.NoError(t, err)
	for i := 0; i < blockSize; i++ {
		require.Equal(t, byte(0x10), fr.Data[i*channels])
		require.Equal(t, byte(0x20), fr.Data[i*channels+1])
	}
}
