package pcmfir

// Stage1 is the DSD-input table-lookup FIR decimator. It
// maintains a circular byte buffer of length 2*T (T = CEIL(L/8)),
// duplicated so any T consecutive bytes are contiguous without wraparound
// checks in the hot loop, and consumes decimBits/8 input bytes per output
// sample.
type Stage1 struct {
	ctable   CTable
	t        int // number of tap groups == len(ctable)
	order    int // filter length in bits
	decBytes int // bytes consumed per output sample (decimBits / 8)
	history  []byte
	idx      int
}

// NewStage1 creates a Stage1 converter for the given coefficient set and
// gain. decimBits must be a multiple of 8: 8, 16, 32, or 64.
func NewStage1(set CoefSet, gain float64, decimBits int) *Stage1 {
	ct := BuildCTable(set, gain)
	t := len(ct)
	return &Stage1{
		ctable:   ct,
		t:        t,
		order:    len(set.Coefs),
		decBytes: decimBits / 8,
		history:  make([]byte, 2*t),
	}
}

// TapGroups returns T = CEIL(L/8), the number of bytes of DSD history one
// output sample depends on.
func (s *Stage1) TapGroups() int { return s.t }

// Order returns the filter's tap count, used for delay accumulation.
func (s *Stage1) Order() int { return s.order }

// DecimBits returns the number of input bits consumed per output sample.
func (s *Stage1) DecimBits() int { return s.decBytes * 8 }

// Run consumes len(in) bytes of DSD (MSB-first packed), producing
// len(in)/decBytes output samples into out (which must be sized
// accordingly), and returns the number of samples written.
func (s *Stage1) Run(in []byte, out []float64) int {
	n := 0
	for i := 0; i+s.decBytes <= len(in); i += s.decBytes {
		for j := 0; j < s.decBytes; j++ {
			b := in[i+j]
			s.history[s.idx] = b
			s.history[s.idx+s.t] = b
			s.idx++
			if s.idx >= s.t {
				s.idx = 0
			}
		}
		var y float64
		for g := 0; g < s.t; g++ {
			y += s.ctable[g][s.history[s.idx+g]]
		}
		out[n] = y
		n++
	}
	return n
}

// Reset clears the circular history buffer.
func (s *Stage1) Reset() {
	for i := range s.history {
		s.history[i] = 0
	}
	s.idx = 0
}
