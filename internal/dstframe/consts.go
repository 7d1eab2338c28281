// Package dstframe decodes a single DST-coded audio frame into interleaved
// DSD bytes: segmentation and table mapping, Gray-coded FIR prediction
// tables, the arithmetic/Rice entropy layer, and the per-bit
// predict-decode-reconstruct loop.
//
// The package splits table construction from bitstream-driven decoding:
// segmentation.go and filtercoef.go build the frame's decode tables,
// decode.go drives the bit loop that consumes them.
package dstframe

// Bitstream field widths and codec constants (ISO/IEC 14496-3 subpart 10;
// its table 10.x numbering is kept in comments).
const (
	sizeCodedPredOrder = 7         // Coded_Pred_Order field width (table 10.13)
	maxPredOrder       = 1 << sizeCodedPredOrder
	sizePredCoef       = 9 // signed coefficient field width (table 10.13)

	sizeCodedPtableLen = 6 // Coded_Ptable_Len field width (table 10.14)
	maxPtableLen       = 1 << sizeCodedPtableLen

	acBits    = 8 // probability scale: P_one in [1, 1<<(acBits-1)]
	acHisBits = 6 // predictor-magnitude histogram index width
	acHisMax  = 1 << acHisBits
	acQStep   = sizePredCoef - acHisBits // quantization shift for getPtableIndex

	nrOfRiceMethods = 3 // number of built-in Rice prediction seed methods
	sizeRiceMethod  = 2 // CC_Method / PC_Method field width
	sizeRiceM       = 3 // Rice parameter m field width
	maxCPredOrder   = 3

	maxNrOfFSegs  = 4
	maxNrOfPSegs  = 8
	minFSegLen    = 1024 // bits
	minPSegLen    = 32   // bits
	maxNrOfSegs   = 8
)

// builtinFilterPredOrder/builtinFilterPredCoef are the CPredOrder/CPredCoef
// seed tables for Rice-coded filter coefficients.
var (
	builtinFilterPredOrder = [nrOfRiceMethods]int{1, 2, 3}
	builtinFilterPredCoef  = [nrOfRiceMethods][maxCPredOrder]int{
		{-8, 0, 0},
		{-16, 8, 0},
		{-9, -5, 6},
	}
)

// builtinPtablePredOrder/builtinPtablePredCoef are the same seed tables for
// Rice-coded Ptable entries.
var (
	builtinPtablePredOrder = [nrOfRiceMethods]int{1, 2, 3}
	builtinPtablePredCoef  = [nrOfRiceMethods][maxCPredOrder]int{
		{-8, 0, 0},
		{-16, 8, 0},
		{-24, 24, -8},
	}
)
