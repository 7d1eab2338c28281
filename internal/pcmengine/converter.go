package pcmengine

import "github.com/deepteams/sacd/internal/pcmfir"

// byteStage adapts Stage1 (which consumes bytes, not floats) to the same
// shape so Converter can treat every stage uniformly after the first.
type byteStage struct {
	s1 *pcmfir.Stage1
}

func (b *byteStage) RunBytes(in []byte, out []float64) int { return b.s1.Run(in, out) }
func (b *byteStage) Reset()                                { b.s1.Reset() }
func (b *byteStage) Order() int                             { return b.s1.Order() }
func (b *byteStage) Decim() int                             { return b.s1.DecimBits() / 8 }

// Converter chains one DSD-input stage-1 kernel with zero or more
// PCM-input stage-2/3 halfband decimators.
type Converter struct {
	stage1Set   pcmfir.CoefSet
	stage1Decim int
	gain        float64

	stage1  *byteStage
	stage23 []*Stage23Adapter
	delay   Delay
}

// Stage23Adapter exposes pcmfir.Stage23 through the stage interface.
type Stage23Adapter struct{ s *pcmfir.Stage23 }

func (a *Stage23Adapter) Run(in, out []float64) int { return a.s.Run(in, out) }
func (a *Stage23Adapter) Reset()                    { a.s.Reset() }
func (a *Stage23Adapter) Order() int                { return a.s.Order() }
func (a *Stage23Adapter) Decim() int                { return a.s.Decim() }

// NewConverter builds a Converter for the given plan, topology-selected
// coefficient sets, and gain.
func NewConverter(plan Plan, stage1Set pcmfir.CoefSet, gain float64, stage2Set, stage3Set pcmfir.CoefSet) *Converter {
	c := &Converter{
		stage1Set:   stage1Set,
		stage1Decim: plan.Stage1Decim,
		gain:        gain,
		stage1:      &byteStage{s1: pcmfir.NewStage1(stage1Set, gain, plan.Stage1Decim)},
	}
	c.delay.Accumulate(c.stage1.Order(), plan.Stage1Decim)
	for i, d := range plan.Stage23 {
		set := stage3Set
		if i == 0 {
			set = stage2Set
		}
		set.Decim = d
		st := &Stage23Adapter{s: pcmfir.NewStage23(set)}
		c.stage23 = append(c.stage23, st)
		c.delay.Accumulate(st.Order(), d)
	}
	return c
}

// Delay returns the converter's total accumulated group delay in output
// samples.
func (c *Converter) Delay() float64 { return c.delay.Total() }

// Run decodes one frame's worth of DSD bytes for this channel into pcm,
// returning the number of PCM samples produced.
func (c *Converter) Run(dsd []byte, pcm []float64) int {
	n := len(dsd) / (c.stage1.Decim())
	buf := pcm
	if len(c.stage23) > 0 {
		buf = make([]float64, n)
	}
	n = c.stage1.RunBytes(dsd, buf)
	cur := buf
	for i, st := range c.stage23 {
		outN := len(cur) / st.Decim()
		var out []float64
		if i == len(c.stage23)-1 {
			out = pcm
		} else {
			out = make([]float64, outN)
		}
		n = st.Run(cur, out)
		cur = out[:n]
	}
	return n
}

// Reset clears all stage history.
func (c *Converter) Reset() {
	c.stage1.Reset()
	for _, st := range c.stage23 {
		st.Reset()
	}
}

// SetGain rebuilds the stage-1 ctable at a new linear gain without
// touching stage-2/3 state or re-running init.
func (c *Converter) SetGain(gain float64) {
	c.gain = gain
	c.stage1 = &byteStage{s1: pcmfir.NewStage1(c.stage1Set, gain, c.stage1Decim)}
}
