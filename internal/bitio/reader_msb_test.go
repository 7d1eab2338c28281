package bitio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// writeBitsMSB packs v's low n bits into a byte slice, MSB first, matching
// the encoding GetUint/GetSint are specified to read.
func writeBitsMSB(v uint32, n int) []byte {
	total := n
	buf := make([]byte, (total+7)/8)
	pos := 0
	for i := n - 1; i >= 0; i-- {
		bit := (v >> uint(i)) & 1
		if bit != 0 {
			buf[pos/8] |= 1 << uint(7-(pos%8))
		}
		pos++
	}
	return buf
}

func TestGetUint_RoundTrip(t *testing.T) {
	for n := 1; n <= 32; n++ {
		var maxVal uint64 = (uint64(1) << uint(n)) - 1
		for _, v := range []uint64{0, 1, maxVal, maxVal / 2, maxVal/3 + 1} {
			v := uint32(v & maxVal)
			buf := writeBitsMSB(v, n)
			r := NewMSBReader(buf)
			got := r.GetUint(n)
			require.Equalf(t, v, got, "n=%d v=%d", n, v)
			require.False(t, r.Overrun())
		}
	}
}

func TestGetSint_SignExtends(t *testing.T) {
	tests := []struct {
		n int
		v int32
	}{
		{4, -8}, {4, 7}, {4, -1}, {4, 0},
		{9, -256}, {9, 255}, {9, -1},
		{32, -1}, {32, 1<<31 - 1},
	}
	for _, tt := range tests {
		buf := writeBitsMSB(uint32(tt.v), tt.n)
		r := NewMSBReader(buf)
		got := r.GetSint(tt.n)
		require.Equalf(t, tt.v, got, "n=%d v=%d", tt.n, tt.v)
	}
}

func TestGetBit_PastEndReturnsZeroAndSetsOverrun(t *testing.T) {
	r := NewMSBReader([]byte{0xFF})
	for i := 0; i < 8; i++ {
		require.Equal(t, 1, r.GetBit())
	}
	require.False(t, r.Overrun())
	require.Equal(t, 0, r.GetBit())
	require.True(t, r.Overrun())
	// Further reads keep returning zero, never panicking.
	require.Equal(t, uint32(0), r.GetUint(16))
}

func TestOffsetAdvancesByBitsConsumed(t *testing.T) {
	r := NewMSBReader([]byte{0xAB, 0xCD})
	require.Equal(t, 0, r.Offset())
	r.GetUint(5)
	require.Equal(t, 5, r.Offset())
	r.GetBit()
	require.Equal(t, 6, r.Offset())
}
