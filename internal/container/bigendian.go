package container

import "encoding/binary"

// All integers in SACD ISO and DSDIFF are big-endian; DSF is
// little-endian and uses the standard library's binary.LittleEndian
// directly at its call sites instead of wrapping it here.

func be16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }
func be32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }

// SwapBits is the 256-entry bit-reversal lookup table shared by the DSF
// bits_per_sample==1 LSB-reversal requirement and the DSD→PCM engine's
// lead-in/tail reverse passes.
var SwapBits = func() (t [256]byte) {
	for i := 0; i < 256; i++ {
		var v byte
		for j := 0; j < 8; j++ {
			v |= byte((i>>uint(j))&1) << uint(7-j)
		}
		t[i] = v
	}
	return t
}()
