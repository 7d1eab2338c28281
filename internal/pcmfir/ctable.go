package pcmfir

import "math"

// CTable is the stage-1 8-bit-window lookup table: for each of CEIL(L/8)
// tap groups and each possible 8-bit history byte, the precomputed partial
// FIR sum for that byte's 8 bits against that group's 8 taps.
type CTable [][256]float64

// BuildCTable expands a stage-1 coefficient set into its 256-entry-per-byte
// lookup table. Each bit of a DSD byte contributes ±1 (MSB first) scaled by
// its coefficient; the 256 table rows precompute every possible combination
// once so the hot per-sample loop (stage1.go) is a table lookup and add per
// byte instead of 8 branches and multiplies.
//
// gain is the linear gain (10^(dB/20)) applied uniformly across the table.
// Coefficients are float64 throughout, so no fixed-point NORM_I rescale is
// involved; CoefSet.NormS survives only to describe a set's provenance.
func BuildCTable(set CoefSet, gain float64) CTable {
	n := len(set.Coefs)
	groups := (n + 7) / 8
	t := make(CTable, groups)
	for g := 0; g < groups; g++ {
		base := g * 8
		k := n - base
		if k > 8 {
			k = 8
		}
		for h := 0; h < 256; h++ {
			var sum float64
			for j := 0; j < k; j++ {
				bit := (h >> uint(7-j)) & 1
				sign := float64(2*bit - 1)
				sum += sign * set.Coefs[base+j]
			}
			t[g][h] = sum * gain
		}
	}
	return t
}

// LinearGain converts a decibel gain to a linear multiplier.
func LinearGain(db float64) float64 {
	return math.Pow(10, db/20)
}
