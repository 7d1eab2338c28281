package dstframe

import "sync"

// grayCoefSign/grayCoefIndex encode, for each byte i compared to i-1, which
// single coefficient tap changed sign and in which direction when the
// *natural* binary counter i is mapped through the Gray code (i ^ (i>>1)).
// Because adjacent Gray codes differ in exactly one bit, walking i in
// natural order and re-deriving the Gray-indexed table entry from the
// previous entry touches one coefficient addition instead of recomputing
// the full 8-tap sum.
//
// These tables depend only on the byte value, never on filter coefficients,
// so they are built once per process via sync.Once.
var (
	grayCoefSign  [256]int
	grayCoefIndex [256]int
	grayTableOnce sync.Once
)

func initGrayTables() {
	grayCoefIndex[0] = -1
	for i := 1; i < 256; i++ {
		delta := (i ^ (i >> 1)) - ((i - 1) ^ ((i - 1) >> 1))
		absDelta := delta
		if absDelta < 0 {
			absDelta = -absDelta
		}
		grayCoefIndex[i] = intLog2(absDelta)
		if delta > 0 {
			grayCoefSign[i] = 1
		} else if delta < 0 {
			grayCoefSign[i] = -1
		}
	}
}

func intLog2(n int) int {
	k := 0
	for n > 1 {
		n >>= 1
		k++
	}
	return k
}

// filterLUT holds, for one filter and each of 16 tap groups of up to 8
// taps, a 256-entry table mapping an 8-bit Status history byte to the
// signed partial FIR sum for that group.
type filterLUT [16][256]int16

// buildFilterLUTs constructs the prediction tables for every active
// filter. table[g][h] equals the partial sum of (2*bit_j(h) - 1) *
// coef[8g+j] over the group's taps for history byte h, letting runFilter
// address it directly with the raw Status byte. The entries are filled by
// walking i in natural order and writing position h = gray(i): adjacent
// Gray codes differ in one bit, so each step adjusts the running sum by a
// single coefficient.
func buildFilterLUTs(h *Header) []filterLUT {
	grayTableOnce.Do(initGrayTables)

	luts := make([]filterLUT, h.nrOfFilters)
	for f := 0; f < h.nrOfFilters; f++ {
		filterLength := h.predOrder[f]
		for g := 0; g < 16; g++ {
			k := filterLength - g*8
			if k > 8 {
				k = 8
			} else if k < 0 {
				k = 0
			}

			cvalue := 0
			for j := 0; j < k; j++ {
				cvalue -= int(h.icoefA[f][g*8+j])
			}
			luts[f][g][0] = int16(cvalue)

			for i := 1; i < 256; i++ {
				iGray := i ^ (i >> 1)
				jGray := grayCoefIndex[i]
				if jGray < k {
					cvalue += grayCoefSign[i] * (int(h.icoefA[f][g*8+jGray]) << 1)
				}
				luts[f][g][iGray] = int16(cvalue)
			}
		}
	}
	return luts
}

// runFilter sums the 16 per-group table lookups addressed by the channel's
// current status bytes, one lookup per 8-tap group.
func runFilter(lut *filterLUT, status *[16]byte) int16 {
	var predict int
	for g := 0; g < 16; g++ {
		predict += int(lut[g][status[g]])
	}
	return int16(predict)
}
