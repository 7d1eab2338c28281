package pcmfir

// Stage23 is a PCM-input linear-convolution halfband decimator, used for
// every stage-2/3 ×2 downsample after stage 1. It keeps a ring buffer of
// the L most recent input samples and, per D=2 input samples consumed,
// emits one convolved output.
type Stage23 struct {
	coefs []float64
	l     int
	ring  []float64
	idx   int
	decim int
}

// NewStage23 builds a Stage23 decimator for the given coefficient set.
// set.Decim is always 2 for the stage-2/3 family.
func NewStage23(set CoefSet) *Stage23 {
	l := len(set.Coefs)
	decim := set.Decim
	if decim == 0 {
		decim = 2
	}
	return &Stage23{
		coefs: append([]float64(nil), set.Coefs...),
		l:     l,
		ring:  make([]float64, 2*l),
		decim: decim,
	}
}

// Order returns the filter length, used for delay accumulation.
func (s *Stage23) Order() int { return s.l }

// Decim returns the stage's decimation factor (always 2).
func (s *Stage23) Decim() int { return s.decim }

// Run consumes len(in) samples (a multiple of Decim), producing
// len(in)/Decim outputs into out, and returns the number of samples
// written.
func (s *Stage23) Run(in []float64, out []float64) int {
	n := 0
	for i := 0; i+s.decim <= len(in); i += s.decim {
		for j := 0; j < s.decim; j++ {
			v := in[i+j]
			s.ring[s.idx] = v
			s.ring[s.idx+s.l] = v
			s.idx++
			if s.idx >= s.l {
				s.idx = 0
			}
		}
		var y float64
		for j := 0; j < s.l; j++ {
			y += s.coefs[j] * s.ring[s.idx+j]
		}
		out[n] = y
		n++
	}
	return n
}

// Reset clears the ring buffer.
func (s *Stage23) Reset() {
	for i := range s.ring {
		s.ring[i] = 0
	}
	s.idx = 0
}
