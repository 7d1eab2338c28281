package pcmengine

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/deepteams/sacd/internal/container"
)

// slot owns one channel's converter, buffers, and worker goroutine. Its
// buffers are written only by the owning worker between input.wait() and
// output.post(), and only by the caller otherwise — no slot is ever
// touched by two goroutines at once.
type slot struct {
	conv *Converter

	dsdIn  []byte
	pcmOut []float64
	n      int // samples produced by the last run

	input  chan struct{} // binary counting semaphore: post=send, wait=receive
	output chan struct{}

	alive bool
}

func newSlot(conv *Converter, dsdBytes, pcmSamples int) *slot {
	return &slot{
		conv:   conv,
		dsdIn:  make([]byte, dsdBytes),
		pcmOut: make([]float64, pcmSamples),
		input:  make(chan struct{}, 1),
		output: make(chan struct{}, 1),
		alive:  true,
	}
}

func (s *slot) post(c chan struct{}) { c <- struct{}{} }
func (s *slot) wait(c chan struct{}) { <-c }

// run is the slot's dedicated worker loop: wait on input, run the
// converter if still alive, post output. It suspends only in
// input.wait(); the FIR loops themselves never yield.
func (s *slot) run() {
	for {
		s.wait(s.input)
		if !s.alive {
			s.n = 0
			s.post(s.output)
			return
		}
		s.n = s.conv.Run(s.dsdIn, s.pcmOut)
		s.post(s.output)
	}
}

// Engine orchestrates one converter slot per channel, a fixed worker pool
// sized exactly to the channel count.
type Engine struct {
	channels    int
	slots       []*slot
	firstFrame  bool
	lfeChannel  int // -1 when no channel carries the LFE adjustment
	lfeAdjust   float64
}

// NewEngine allocates one slot per channel, each with a converter built
// from plan/coefficient parameters shared across channels.
func NewEngine(channels int, dsdBytesPerFrame, pcmSamplesPerFrame int, newConverter func() *Converter) *Engine {
	e := &Engine{channels: channels, firstFrame: true, lfeChannel: -1, lfeAdjust: 1.0}
	e.slots = make([]*slot, channels)
	for ch := 0; ch < channels; ch++ {
		e.slots[ch] = newSlot(newConverter(), dsdBytesPerFrame, pcmSamplesPerFrame)
		go e.slots[ch].run()
	}
	return e
}

// SetLFE configures which channel index carries the LFE adjustment and
// its linear gain multiplier; the caller resolves the LFE position from
// the loudspeaker configuration. Pass channel -1 to disable adjustment.
func (e *Engine) SetLFE(channel int, adjust float64) {
	e.lfeChannel = channel
	if adjust == 0 {
		adjust = 1.0
	}
	e.lfeAdjust = adjust
}

// SetGain recomputes every slot's stage-1 ctable at a new linear gain
// (see pcmfir.LinearGain) without disrupting channel/rate configuration.
// Callers must not call Convert concurrently with SetGain on the same
// Engine; both are caller-goroutine-only operations.
func (e *Engine) SetGain(linearGain float64) {
	for _, s := range e.slots {
		s.conv.SetGain(linearGain)
	}
}

func (e *Engine) applyLFE(pcmOut []float64, total int) {
	if e.lfeChannel < 0 || e.lfeAdjust == 1.0 {
		return
	}
	ch := e.channels
	for i := 0; i < total; i++ {
		pcmOut[i*ch+e.lfeChannel] *= e.lfeAdjust
	}
}

// Delay returns the per-channel converter delay (identical across
// channels since all slots share the same topology).
func (e *Engine) Delay() float64 {
	if len(e.slots) == 0 {
		return 0
	}
	return e.slots[0].conv.Delay()
}

// Convert de-interleaves dsdInterleaved across channels, runs every slot's
// converter in parallel, and re-interleaves the resulting PCM into
// pcmOut[sample*channels+ch]. dsdBytesPerChannel is the per-channel byte
// count within dsdInterleaved.
func (e *Engine) Convert(dsdInterleaved []byte, dsdBytesPerChannel int, pcmOut []float64) (int, error) {
	ch := e.channels
	for c := 0; c < ch; c++ {
		s := e.slots[c]
		for i := 0; i < dsdBytesPerChannel; i++ {
			s.dsdIn[i] = dsdInterleaved[i*ch+c]
		}
		s.post(s.input)
	}
	total := 0
	for c := 0; c < ch; c++ {
		s := e.slots[c]
		s.wait(s.output)
		for i := 0; i < s.n; i++ {
			pcmOut[i*ch+c] = s.pcmOut[i]
		}
		total = s.n
	}
	if e.firstFrame {
		e.firstFrame = false
		e.applyLeadIn(pcmOut, total)
	}
	e.applyLFE(pcmOut, total)
	return total, nil
}

// ConvertParallel is equivalent to Convert but fans the per-channel
// de-interleave/post and wait/re-interleave work itself out over an
// errgroup, one goroutine per channel, instead of looping serially over
// channels. It returns once every channel's output is interleaved.
func (e *Engine) ConvertParallel(ctx context.Context, dsdInterleaved []byte, dsdBytesPerChannel int, pcmOut []float64) (int, error) {
	ch := e.channels
	g, _ := errgroup.WithContext(ctx)
	for c := 0; c < ch; c++ {
		c := c
		g.Go(func() error {
			s := e.slots[c]
			for i := 0; i < dsdBytesPerChannel; i++ {
				s.dsdIn[i] = dsdInterleaved[i*ch+c]
			}
			s.post(s.input)
			s.wait(s.output)
			for i := 0; i < s.n; i++ {
				pcmOut[i*ch+c] = s.pcmOut[i]
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	total := 0
	if ch > 0 {
		total = e.slots[0].n
	}
	if e.firstFrame {
		e.firstFrame = false
		e.applyLeadIn(pcmOut, total)
	}
	e.applyLFE(pcmOut, total)
	return total, nil
}

// LeadIn primes every slot's filter state with a reverse-run pass before
// the first real frame: bit-reverse the frame's DSD bytes via SwapBits,
// run the converter on the reversed bytes to prime history, discard the
// output, then reset nothing else (the primed history is kept for the
// following forward pass).
func (e *Engine) LeadIn(dsdInterleaved []byte, dsdBytesPerChannel int) {
	ch := e.channels
	scratch := make([]byte, dsdBytesPerChannel)
	discard := make([]float64, len(e.slots[0].pcmOut))
	for c := 0; c < ch; c++ {
		s := e.slots[c]
		for i := 0; i < dsdBytesPerChannel; i++ {
			b := dsdInterleaved[(dsdBytesPerChannel-1-i)*ch+c]
			scratch[i] = container.SwapBits[b]
		}
		s.conv.Run(scratch, discard)
	}
}

// applyLeadIn smooths the leading t0 = round(2*delay) samples of the first
// forward pass to mask filter transient ripple:
// data[(t0-1-s)*ch+c] = ((t0-1-s)/t0)^1.25 * (d0 + (d0 - data[(t0+1+s)*ch+c]))
// where d0 = data[t0*ch+c].
func (e *Engine) applyLeadIn(pcmOut []float64, total int) {
	ch := e.channels
	t0 := int(math.Round(2 * e.Delay()))
	if t0 <= 0 || 2*t0+1 >= total {
		return
	}
	for c := 0; c < ch; c++ {
		d0 := pcmOut[t0*ch+c]
		for s := 0; s < t0; s++ {
			frac := float64(t0-1-s) / float64(t0)
			weight := math.Pow(frac, 1.25)
			mirror := pcmOut[(t0+1+s)*ch+c]
			pcmOut[(t0-1-s)*ch+c] = weight * (d0 + (d0 - mirror))
		}
	}
}

// TailFlush runs a reverse-tail pass over each slot's currently-loaded
// input buffer to drain filter state at end-of-stream, returning the
// final PCM samples.
func (e *Engine) TailFlush(pcmOut []float64) int {
	ch := e.channels
	total := 0
	for c := 0; c < ch; c++ {
		s := e.slots[c]
		reversed := make([]byte, len(s.dsdIn))
		for i, b := range s.dsdIn {
			reversed[len(s.dsdIn)-1-i] = container.SwapBits[b]
		}
		n := s.conv.Run(reversed, s.pcmOut)
		for i := 0; i < n; i++ {
			pcmOut[i*ch+c] = s.pcmOut[i]
		}
		total = n
	}
	e.applyLFE(pcmOut, total)
	return total
}

// Close marks every slot dead and unblocks its worker, then waits for each
// to exit via the output semaphore.
func (e *Engine) Close() {
	for _, s := range e.slots {
		s.alive = false
		s.post(s.input)
		s.wait(s.output)
	}
}
