package dstframe

import (
	"github.com/deepteams/sacd/internal/bitio"
)

// SilenceByte is written across a frame's DSD output when decoding fails:
// 0x69 has equal one and zero bit populations, so it converts to analog
// silence rather than a DC step.
const SilenceByte = 0x69

// Decoder holds the channel count and per-channel frame length a DST pool
// slot decodes with. Each Decode call allocates a fresh Header and fresh
// prediction tables for its frame; no table buffers are kept between
// frames.
type Decoder struct {
	channels    int
	maxFrameLen int // bytes per channel
}

// NewDecoder creates a Decoder sized for the given channel count and
// per-channel frame byte length.
func NewDecoder(channels, maxFrameLen int) *Decoder {
	return &Decoder{channels: channels, maxFrameLen: maxFrameLen}
}

// Decode decodes one DST frame of dstBits bits from dstData, writing
// channels*maxFrameLen interleaved DSD bytes into dsdData (which must be at
// least that long). On any validation failure it returns a non-nil error;
// the caller is responsible for the silence-substitution policy —
// this function leaves dsdData in whatever partially-decoded state it was
// in rather than silencing it itself, so pool callers can choose where the
// silence write happens exactly once.
func (d *Decoder) Decode(dstData []byte, dstBits int, dsdData []byte) error {
	h := newHeader(d.channels, d.maxFrameLen)

	calcNrOfBytes := dstBits / 8
	calcNrOfBits := calcNrOfBytes * 8
	r := bitio.NewMSBReader(dstData[:calcNrOfBytes])

	_, err := unpack(r, h, dsdData, calcNrOfBits)
	if err != nil {
		return err
	}
	if !h.dstCoded {
		return nil
	}

	fillTable4Bit(h.fSegment, h.filter4Bit, h.nrOfBitsPerCh)
	fillTable4Bit(h.pSegment, h.ptable4Bit, h.nrOfBitsPerCh)

	luts := buildFilterLUTs(h)
	status := make([][16]byte, h.channels)
	for ch := range status {
		for i := range status[ch] {
			status[ch][i] = 0xaa
		}
	}

	ac := bitio.NewRangeDecoder(r)
	_ = ac.DecodeBit(uint32(reverse7LSBs(h.icoefA[0][0])))

	for i := range dsdData[:(h.nrOfBitsPerCh*h.channels+7)/8] {
		dsdData[i] = 0
	}

	for bitNr := 0; bitNr < h.nrOfBitsPerCh; bitNr++ {
		for ch := 0; ch < h.channels; ch++ {
			filterNr := getNibble(h.filter4Bit[ch], bitNr)
			predict := runFilter(&luts[filterNr], &status[ch])

			var residual int
			if h.halfProb[ch] && bitNr < h.nrOfHalfBits[ch] {
				residual = ac.DecodeBit(128)
			} else {
				ptableNr := getNibble(h.ptable4Bit[ch], bitNr)
				idx := getPtableIndex(int(predict), h.ptableLen[ptableNr])
				residual = ac.DecodeBit(uint32(h.pOne[ptableNr][idx]))
			}

			bitVal := (uint16(predict) >> 15) ^ uint16(residual) & 1
			dsdData[(bitNr>>3)*h.channels+ch] |= byte(bitVal&1) << uint(7-(bitNr&7))

			// 128-bit left shift of the tap history, LSB-first, with the new
			// bit entering at st[0] bit 0 and the oldest bit (st[15] bit 7)
			// falling off the end.
			st := &status[ch]
			for i := 15; i > 0; i-- {
				st[i] = (st[i] << 1) | (st[i-1] >> 7)
			}
			st[0] = (st[0] << 1) | byte(bitVal&1)
		}
	}

	if err := ac.Flush(); err != nil {
		return err
	}
	return nil
}

// getPtableIndex quantizes a predicted magnitude down to a Ptable entry
// index: shift out the low prediction bits and clip to the table's length.
func getPtableIndex(predictVal, ptableLen int) int {
	j := predictVal
	if j < 0 {
		j = -j
	}
	j >>= acQStep
	if j >= ptableLen {
		j = ptableLen - 1
	}
	return j
}

// reverse7LSBs takes the 7 low bits of a coefficient-width two's-complement
// number, reverses their bit order, and adds 1. The result parametrizes the
// arithmetic decoder's first (discarded) decode call, derived from the
// first filter's first coefficient.
func reverse7LSBs(c int16) int16 {
	return reverse7LSBsTable[(int(c)+(1<<sizePredCoef))&127]
}

var reverse7LSBsTable = [128]int16{
	1, 65, 33, 97, 17, 81, 49, 113, 9, 73, 41, 105, 25, 89, 57, 121,
	5, 69, 37, 101, 21, 85, 53, 117, 13, 77, 45, 109, 29, 93, 61, 125,
	3, 67, 35, 99, 19, 83, 51, 115, 11, 75, 43, 107, 27, 91, 59, 123,
	7, 71, 39, 103, 23, 87, 55, 119, 15, 79, 47, 111, 31, 95, 63, 127,
	2, 66, 34, 98, 18, 82, 50, 114, 10, 74, 42, 106, 26, 90, 58, 122,
	6, 70, 38, 102, 22, 86, 54, 118, 14, 78, 46, 110, 30, 94, 62, 126,
	4, 68, 36, 100, 20, 84, 52, 116, 12, 76, 44, 108, 28, 92, 60, 124,
	8, 72, 40, 104, 24, 88, 56, 120, 16, 80, 48, 112, 32, 96, 64, 128,
}

// unpack reads the frame header (processing-mode bit, segmentation, mapping,
// filter/Ptable coefficient sets) or, for an uncompressed frame, copies the
// raw DSD payload directly. It returns the bit offset at which the
// arithmetic-coded data begins (only meaningful when DSTCoded).
func unpack(r *bitio.MSBReader, h *Header, dsdData []byte, calcNrOfBits int) (int, error) {
	h.dstCoded = r.GetBit() != 0
	if !h.dstCoded {
		if r.GetUint(1) != 0 || r.GetUint(6) != 0 {
			return 0, ErrIllegalStuffing
		}
		n := h.maxFrameLen * h.channels
		for i := 0; i < n; i++ {
			dsdData[i] = byte(r.GetUint(8))
		}
		if r.Overrun() {
			return 0, ErrFrameTruncated
		}
		return r.Offset(), nil
	}

	if err := readSegmentation(r, h); err != nil {
		return 0, err
	}
	if err := readMapping(r, h); err != nil {
		return 0, err
	}
	if err := readFilterCoefSets(r, h); err != nil {
		return 0, err
	}
	if err := readProbabilityTables(r, h); err != nil {
		return 0, err
	}

	// Header reads past the end of the frame surface as an overrun rather
	// than a panic; reject the frame here, before the arithmetic region,
	// where reading past the end is legitimate (zero-fill renormalization).
	if r.Overrun() {
		return 0, ErrFrameTruncated
	}

	offset := r.Offset()
	adataLen := calcNrOfBits - offset
	if adataLen > 0 && r.GetBit() != 0 {
		return 0, ErrIllegalFirstACBit
	}
	// The validation bit just consumed is arithmetic-data bit 0; the cursor
	// is left at bit 1, exactly where the range decoder's init resumes.
	return offset, nil
}
