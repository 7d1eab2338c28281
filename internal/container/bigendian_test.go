package container

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSwapBits_IsAnInvolution(t *testing.T) {
	for i := 0; i < 256; i++ {
		require.Equalf(t, byte(i), SwapBits[SwapBits[i]], "i=%d", i)
	}
}

func TestSwapBits_ReversesBitOrder(t *testing.T) {
	require.Equal(t, byte(0x00), SwapBits[0x00])
	require.Equal(t, byte(0xFF), SwapBits[0xFF])
	require.Equal(t, byte(0x80), SwapBits[0x01])
	require.Equal(t, byte(0x01), SwapBits[0x80])
	require.Equal(t, byte(0xC0), SwapBits[0x03])
}

func TestBE16AndBE32(t *testing.T) {
	require.Equal(t, uint16(0x0102), be16([]byte{0x01, 0x02}))
	require.Equal(t, uint32(0x01020304), be32([]byte{0x01, 0x02, 0x03, 0x04}))
}
