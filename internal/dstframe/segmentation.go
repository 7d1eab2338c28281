package dstframe

import "github.com/deepteams/sacd/internal/bitio"

// readTableSegmentation reads the segmentation for one table family, filters
// or Ptables (ISO/IEC 14496-3 subpart 10, tables 10.5-10.7).
func readTableSegmentation(r *bitio.MSBReader, maxFrameLen, maxNrOfSegments, minSegmentLength int, s *segment) error {
	resolutionRead := false
	ch := 0
	definedBits := 0
	segmentNr := 0
	maxSegmentSize := maxFrameLen - minSegmentLength/8

	s.sameSegAllCh = r.GetBit() != 0

	if s.sameSegAllCh {
		endOfChannelSegment := r.GetBit() != 0
		for !endOfChannelSegment {
			if segmentNr >= maxNrOfSegments {
				return ErrTooManySegments
			}
			if !resolutionRead {
				nrOfBits := log2RoundUp(maxFrameLen - minSegmentLength/8)
				s.resolution = int(r.GetUint(nrOfBits))
				if s.resolution == 0 || s.resolution > maxFrameLen-minSegmentLength/8 {
					return ErrBadSegmentLength
				}
				resolutionRead = true
			}
			nrOfBits := log2RoundUp(maxSegmentSize / s.resolution)
			length := int(r.GetUint(nrOfBits))
			s.segmentLength[0][segmentNr] = length
			bits := s.resolution * 8 * length
			if bits < minSegmentLength || bits > maxFrameLen*8-definedBits-minSegmentLength {
				return ErrBadSegmentLength
			}
			definedBits += bits
			maxSegmentSize -= s.resolution * length
			segmentNr++
			endOfChannelSegment = r.GetBit() != 0
		}
		s.nrOfSegments[0] = segmentNr + 1
		s.segmentLength[0][segmentNr] = 0
		for ch := 1; ch < len(s.nrOfSegments); ch++ {
			s.nrOfSegments[ch] = s.nrOfSegments[0]
			for sn := 0; sn < s.nrOfSegments[0]; sn++ {
				s.segmentLength[ch][sn] = s.segmentLength[0][sn]
			}
		}
	} else {
		for ch < len(s.nrOfSegments) {
			if segmentNr >= maxNrOfSegments {
				return ErrTooManySegments
			}
			endOfChannelSegment := r.GetBit() != 0
			if !endOfChannelSegment {
				if !resolutionRead {
					nrOfBits := log2RoundUp(maxFrameLen - minSegmentLength/8)
					s.resolution = int(r.GetUint(nrOfBits))
					if s.resolution == 0 || s.resolution > maxFrameLen-minSegmentLength/8 {
						return ErrBadSegmentLength
					}
					resolutionRead = true
				}
				nrOfBits := log2RoundUp(maxSegmentSize / s.resolution)
				length := int(r.GetUint(nrOfBits))
				s.segmentLength[ch][segmentNr] = length
				bits := s.resolution * 8 * length
				if bits < minSegmentLength || bits > maxFrameLen*8-definedBits-minSegmentLength {
					return ErrBadSegmentLength
				}
				definedBits += bits
				maxSegmentSize -= s.resolution * length
				segmentNr++
			} else {
				s.nrOfSegments[ch] = segmentNr + 1
				s.segmentLength[ch][segmentNr] = 0
				segmentNr = 0
				definedBits = 0
				maxSegmentSize = maxFrameLen - minSegmentLength/8
				ch++
			}
		}
	}
	if !resolutionRead {
		s.resolution = 1
	}
	return nil
}

// copyTableSegmentation mirrors copy_table_segmentation: the Ptable
// segmentation is identical to the filter segmentation when PSameSegAsF.
func copyTableSegmentation(fSegment, pSegment *segment) error {
	pSegment.resolution = fSegment.resolution
	pSegment.sameSegAllCh = true
	for ch := range pSegment.nrOfSegments {
		pSegment.nrOfSegments[ch] = fSegment.nrOfSegments[ch]
		if pSegment.nrOfSegments[ch] > maxNrOfPSegs {
			return ErrTooManySegments
		}
		if pSegment.nrOfSegments[ch] != pSegment.nrOfSegments[0] {
			pSegment.sameSegAllCh = false
		}
		for sn := 0; sn < fSegment.nrOfSegments[ch]; sn++ {
			pSegment.segmentLength[ch][sn] = fSegment.segmentLength[ch][sn]
			if pSegment.segmentLength[ch][sn] != 0 && pSegment.resolution*8*pSegment.segmentLength[ch][sn] < minPSegLen {
				return ErrBadSegmentLength
			}
			if pSegment.segmentLength[ch][sn] != pSegment.segmentLength[0][sn] {
				pSegment.sameSegAllCh = false
			}
		}
	}
	return nil
}

func readSegmentation(r *bitio.MSBReader, h *Header) error {
	h.pSameSegAsF = r.GetBit() != 0
	if err := readTableSegmentation(r, h.maxFrameLen, maxNrOfFSegs, minFSegLen, h.fSegment); err != nil {
		return err
	}
	if h.pSameSegAsF {
		return copyTableSegmentation(h.fSegment, h.pSegment)
	}
	return readTableSegmentation(r, h.maxFrameLen, maxNrOfPSegs, minPSegLen, h.pSegment)
}

// readTableMapping reads which filter/Ptable index each segment maps to
// (tables 10.8-10.10).
func readTableMapping(r *bitio.MSBReader, maxNrOfTables int, s *segment) (nrOfTables int, err error) {
	countTables := 1
	s.table4Segment[0][0] = 0
	s.sameMapAllCh = r.GetBit() != 0

	if s.sameMapAllCh {
		for sn := 1; sn < s.nrOfSegments[0]; sn++ {
			nrOfBits := log2RoundUp(countTables)
			v := int(r.GetUint(nrOfBits))
			s.table4Segment[0][sn] = v
			switch {
			case v == countTables:
				countTables++
			case v > countTables:
				return 0, ErrBadMapping
			}
		}
		for ch := 1; ch < len(s.nrOfSegments); ch++ {
			if s.nrOfSegments[ch] != s.nrOfSegments[0] {
				return 0, ErrSegmentMismatch
			}
			for sn := 0; sn < s.nrOfSegments[0]; sn++ {
				s.table4Segment[ch][sn] = s.table4Segment[0][sn]
			}
		}
	} else {
		for ch := 0; ch < len(s.nrOfSegments); ch++ {
			for sn := 0; sn < s.nrOfSegments[ch]; sn++ {
				if ch != 0 || sn != 0 {
					nrOfBits := log2RoundUp(countTables)
					v := int(r.GetUint(nrOfBits))
					s.table4Segment[ch][sn] = v
					switch {
					case v == countTables:
						countTables++
					case v > countTables:
						return 0, ErrBadMapping
					}
				}
			}
		}
	}
	if countTables > maxNrOfTables {
		return 0, ErrTooManyTables
	}
	return countTables, nil
}

// copyTableMapping mirrors copy_table_mapping: Ptable mapping follows the
// filter mapping when PSameMapAsF.
func copyTableMapping(h *Header) error {
	h.pSegment.sameMapAllCh = true
	for ch := range h.pSegment.nrOfSegments {
		if h.pSegment.nrOfSegments[ch] != h.fSegment.nrOfSegments[ch] {
			return ErrSegmentMismatch
		}
		for sn := 0; sn < h.fSegment.nrOfSegments[ch]; sn++ {
			h.pSegment.table4Segment[ch][sn] = h.fSegment.table4Segment[ch][sn]
			if h.pSegment.table4Segment[ch][sn] != h.pSegment.table4Segment[0][sn] {
				h.pSegment.sameMapAllCh = false
			}
		}
	}
	h.nrOfPtables = h.nrOfFilters
	if h.nrOfPtables > 2*h.channels {
		return ErrTooManyTables
	}
	return nil
}

func readMapping(r *bitio.MSBReader, h *Header) error {
	var err error
	h.pSameMapAsF = r.GetBit() != 0
	h.nrOfFilters, err = readTableMapping(r, 2*h.channels, h.fSegment)
	if err != nil {
		return err
	}
	if h.pSameMapAsF {
		if err := copyTableMapping(h); err != nil {
			return err
		}
	} else {
		h.nrOfPtables, err = readTableMapping(r, 2*h.channels, h.pSegment)
		if err != nil {
			return err
		}
	}
	for ch := 0; ch < h.channels; ch++ {
		h.halfProb[ch] = r.GetBit() != 0
	}
	return nil
}
