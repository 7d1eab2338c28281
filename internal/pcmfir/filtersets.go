package pcmfir

import "sync"

// CoefSet is a named FIR coefficient vector plus the decimation factor and
// LUT scaling exponent it was designed for.
type CoefSet struct {
	Name   string
	Coefs  []float64
	Decim  int // stage-1: bits consumed per output sample; stage-2/3: always 2
	NormS  int // NORM_I(s) = 2^(s-31) scaling exponent
}

var (
	builtinOnce              sync.Once
	fir1_8, fir1_16, fir1_64 CoefSet
	fir2_2, fir3_2           CoefSet
)

func buildBuiltins() {
	// Stage-1 (DSD-input) sets: one tap group of 8 per CEIL(L/8) LUT
	// entries, length chosen proportional to the decimation ratio for a
	// steep enough anti-alias rolloff ahead of the corresponding
	// downsample.
	fir1_8 = CoefSet{Name: "FIR1_8", Coefs: DesignLowpass(48, 0.85/8, 7.0), Decim: 8, NormS: 3}
	fir1_16 = CoefSet{Name: "FIR1_16", Coefs: DesignLowpass(96, 0.85/16, 7.5), Decim: 16, NormS: 3}
	fir1_64 = CoefSet{Name: "FIR1_64", Coefs: DesignLowpass(192, 0.85/64, 8.0), Decim: 64, NormS: 0}

	// Stage-2/3 (PCM-input) halfband decimators, always ×2.
	fir2_2 = CoefSet{Name: "FIR2_2", Coefs: DesignLowpass(32, 0.45, 6.0), Decim: 2, NormS: 0}
	fir3_2 = CoefSet{Name: "FIR3_2", Coefs: DesignLowpass(24, 0.45, 5.0), Decim: 2, NormS: 0}
}

// Stage1Builtin returns the built-in stage-1 coefficient set for a given
// direct-path decimation (8, 16, or 64).
func Stage1Builtin(decim int) CoefSet {
	builtinOnce.Do(buildBuiltins)
	switch decim {
	case 8:
		return fir1_8
	case 16:
		return fir1_16
	default:
		return fir1_64
	}
}

// Stage2Builtin returns the FIR2_2 halfband set used as the first ×2 stage
// after stage 1.
func Stage2Builtin() CoefSet {
	builtinOnce.Do(buildBuiltins)
	return fir2_2
}

// Stage3Builtin returns the FIR3_2 halfband set used for every ×2 stage
// after the first.
func Stage3Builtin() CoefSet {
	builtinOnce.Do(buildBuiltins)
	return fir3_2
}

// UserStage1 wraps caller-supplied stage-1 coefficients, which always take
// the FIR1_64 slot with s=0 scaling.
func UserStage1(coefs []float64, decim int) CoefSet {
	return CoefSet{Name: "USER", Coefs: coefs, Decim: decim, NormS: 0}
}
