package dstframe

import "github.com/deepteams/sacd/internal/bitio"

// readFilterCoefSets reads the prediction order and coefficients of every
// filter used by this frame (table 10.13): each
// filter's coefficients are either sent verbatim or Rice-coded relative to a
// built-in linear-prediction seed over the already-decoded coefficients.
func readFilterCoefSets(r *bitio.MSBReader, h *Header) error {
	ct := newFilterCoefTable(h.nrOfFilters)
	for f := 0; f < h.nrOfFilters; f++ {
		predOrder := int(r.GetUint(sizeCodedPredOrder)) + 1
		h.predOrder[f] = predOrder
		coded := r.GetBit() != 0
		ct.coded[f] = coded

		if !coded {
			ct.bestMethod[f] = -1
			for c := 0; c < predOrder; c++ {
				h.icoefA[f][c] = int16(r.GetSint(sizePredCoef))
			}
			continue
		}

		method := int(r.GetUint(sizeRiceMethod))
		ct.bestMethod[f] = method
		if method >= nrOfRiceMethods || ct.predOrder[method] >= predOrder {
			return ErrBadCodingMethod
		}
		for c := 0; c < ct.predOrder[method]; c++ {
			h.icoefA[f][c] = int16(r.GetSint(sizePredCoef))
		}
		m := int(r.GetUint(sizeRiceM))
		ct.m[f] = m
		for c := ct.predOrder[method]; c < predOrder; c++ {
			x := 0
			for tap := 0; tap < ct.predOrder[method]; tap++ {
				x += ct.predCoef[method][tap] * int(h.icoefA[f][c-tap-1])
			}
			var coef int
			if x >= 0 {
				coef = riceDecode(r, m) - (x+4)/8
			} else {
				coef = riceDecode(r, m) + (-x+3)/8
			}
			if coef < -(1<<(sizePredCoef-1)) || coef >= (1<<(sizePredCoef-1)) {
				return ErrCoefOutOfRange
			}
			h.icoefA[f][c] = int16(coef)
		}
	}

	for ch := 0; ch < h.channels; ch++ {
		h.nrOfHalfBits[ch] = h.predOrder[h.fSegment.table4Segment[ch][0]]
	}
	return nil
}

// readProbabilityTables reads each Ptable's entries (table 10.14),
// analogous to readFilterCoefSets but with narrower entries and a
// single-entry fast path (P_one = 128) when PtableLen == 1.
func readProbabilityTables(r *bitio.MSBReader, h *Header) error {
	ct := newPtableCoefTable(h.nrOfPtables)
	for p := 0; p < h.nrOfPtables; p++ {
		ptableLen := int(r.GetUint(acHisBits)) + 1
		h.ptableLen[p] = ptableLen

		if ptableLen <= 1 {
			h.pOne[p][0] = 128
			ct.bestMethod[p] = -1
			continue
		}

		coded := r.GetBit() != 0
		ct.coded[p] = coded

		if !coded {
			ct.bestMethod[p] = -1
			for e := 0; e < ptableLen; e++ {
				h.pOne[p][e] = int(r.GetUint(acBits-1)) + 1
			}
			continue
		}

		method := int(r.GetUint(sizeRiceMethod))
		ct.bestMethod[p] = method
		if method >= nrOfRiceMethods || ct.predOrder[method] >= ptableLen {
			return ErrBadCodingMethod
		}
		for e := 0; e < ct.predOrder[method]; e++ {
			h.pOne[p][e] = int(r.GetUint(acBits-1)) + 1
		}
		m := int(r.GetUint(sizeRiceM))
		ct.m[p] = m
		for e := ct.predOrder[method]; e < ptableLen; e++ {
			x := 0
			for tap := 0; tap < ct.predOrder[method]; tap++ {
				x += ct.predCoef[method][tap] * h.pOne[p][e-tap-1]
			}
			var coef int
			if x >= 0 {
				coef = riceDecode(r, m) - (x+4)/8
			} else {
				coef = riceDecode(r, m) + (-x+3)/8
			}
			if coef < 1 || coef > (1<<(acBits-1)) {
				return ErrPtableOutOfRange
			}
			h.pOne[p][e] = coef
		}
	}
	return nil
}

// fillTable4Bit expands a segment's per-segment table mapping into a
// per-bit nibble map, one nibble per bit position. The result lets the
// hot per-bit loop look up "which filter/Ptable applies to this bit" with
// a single table index instead of a binary search over segment
// boundaries.
func fillTable4Bit(s *segment, dst [][]byte, nrOfBitsPerCh int) {
	for ch := range dst {
		start := 0
		segNr := 0
		n := s.nrOfSegments[ch]
		for ; segNr < n-1; segNr++ {
			val := s.table4Segment[ch][segNr]
			end := start + s.resolution*8*s.segmentLength[ch][segNr]
			for bit := start; bit < end; bit++ {
				setNibble(dst[ch], bit, val)
			}
			start = end
		}
		val := s.table4Segment[ch][segNr]
		for bit := start; bit < nrOfBitsPerCh; bit++ {
			setNibble(dst[ch], bit, val)
		}
	}
}
