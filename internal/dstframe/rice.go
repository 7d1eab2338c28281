package dstframe

import "github.com/deepteams/sacd/internal/bitio"

// log2RoundUp returns the minimum number of bits needed to represent values
// in [0, x], i.e. the smallest y such that x < 1<<y. Used throughout
// segmentation/mapping to size variable-width fields.
func log2RoundUp(x int) int {
	y := 0
	for x >= (1 << uint(y)) {
		y++
	}
	return y
}

// riceDecode reads one Rice-coded residual with parameter m: a unary run of
// zero-bits terminated by a 1 (each zero-bit contributing 1 to the run
// length), m literal LSBs, and (when the magnitude is non-zero) a sign bit.
func riceDecode(r *bitio.MSBReader, m int) int {
	runLength := 0
	for r.GetBit() == 0 {
		runLength++
		if r.Overrun() {
			// A truncated stream reads as endless zero bits; bail out and
			// let the caller's overrun check reject the frame.
			return 0
		}
	}
	lsbs := int(r.GetUint(m))
	nr := (runLength << uint(m)) + lsbs
	if nr != 0 && r.GetBit() != 0 {
		nr = -nr
	}
	return nr
}
