package dstframe

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitGrayTables_IndexIsLog2OfSingleBitDelta(t *testing.T) {
	grayTableOnce.Do(initGrayTables)

	for i := 1; i < 256; i++ {
		g := i ^ (i >> 1)
		prevG := (i - 1) ^ ((i - 1) >> 1)
		delta := g - prevG

		// Adjacent Gray codes differ in exactly one bit, so the delta must
		// be a signed power of two.
		abs := delta
		if abs < 0 {
			abs = -abs
		}
		require.Equalf(t, 1, popcount(abs), "i=%d delta=%d not a single bit", i, delta)

		want := intLog2(abs)
		require.Equalf(t, want, grayCoefIndex[i], "i=%d", i)
		if delta > 0 {
			require.Equalf(t, 1, grayCoefSign[i], "i=%d", i)
		} else {
			require.Equalf(t, -1, grayCoefSign[i], "i=%d", i)
		}
	}
}

func popcount(n int) int {
	c := 0
	for n != 0 {
		c += n & 1
		n >>= 1
	}
	return c
}

// TestBuildFilterLUTs_MatchesDirectSum checks the Gray-coded incremental LUT
// construction against a brute-force direct recomputation of the 8-tap
// partial sum for every group and every possible Status history byte, for a
// filter of order 113, which leaves group 14 partly filled and group 15
// empty.
func TestBuildFilterLUTs_MatchesDirectSum(t *testing.T) {
	h := newHeader(1, 4)
	h.nrOfFilters = 1
	h.predOrder[0] = 113
	coef := h.icoefA[0]
	for i := range coef {
		coef[i] = int16((i*37+5)%61 - 30)
	}

	luts := buildFilterLUTs(h)
	require.Len(t, luts, 1)

	filterLength := h.predOrder[0]
	for g := 0; g < 16; g++ {
		k := filterLength - g*8
		if k > 8 {
			k = 8
		} else if k < 0 {
			k = 0
		}
		for status := 0; status < 256; status++ {
			want := 0
			for j := 0; j < k; j++ {
				bit := (status >> uint(j)) & 1
				sign := 2*bit - 1
				want += sign * int(coef[g*8+j])
			}
			require.Equalf(t, int16(want), luts[0][g][status], "g=%d status=%d", g, status)
		}
	}
}
