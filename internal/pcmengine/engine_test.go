package pcmengine

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deepteams/sacd/internal/pcmfir"
)

const (
	testDSDRate  = 2822400
	testPCMRate  = 44100
	testFrames   = 75
	testDSDBytes = testDSDRate / 8 / testFrames
	testPCMPer   = testPCMRate / testFrames
)

func newTestEngine(t *testing.T, channels int) *Engine {
	t.Helper()
	plan, err := PlanFor(64, Multistage)
	require.NoError(t, err)
	newConv := func() *Converter {
		return NewConverter(plan, pcmfir.Stage1Builtin(plan.Stage1Decim), 1.0, pcmfir.Stage2Builtin(), pcmfir.Stage3Builtin())
	}
	return NewEngine(channels, testDSDBytes, testPCMPer, newConv)
}

// Silence invariant: all-0x69 DSD input (a zero-DC bit pattern) must
// convert to PCM within filter-ripple epsilon of zero.
func TestEngine_SilenceInvariant(t *testing.T) {
	const channels = 2
	e := newTestEngine(t, channels)
	defer e.Close()

	dsd := bytes.Repeat([]byte{0x69}, testDSDBytes*channels)
	pcm := make([]float64, testPCMPer*channels)

	e.LeadIn(dsd, testDSDBytes)
	for frame := 0; frame < 3; frame++ {
		n, err := e.Convert(dsd, testDSDBytes, pcm)
		require.NoError(t, err)
		require.Equal(t, testPCMPer, n)
	}
	for i, s := range pcm {
		require.LessOrEqualf(t, math.Abs(s), 1e-3, "sample %d", i)
	}
}

// All-zero DSD carries a strong negative DC offset after the transient
// settles.
func TestEngine_AllZeroDSDIsNegativeDC(t *testing.T) {
	const channels = 2
	e := newTestEngine(t, channels)
	defer e.Close()

	dsd := make([]byte, testDSDBytes*channels)
	pcm := make([]float64, testPCMPer*channels)

	e.LeadIn(dsd, testDSDBytes)
	for frame := 0; frame < 3; frame++ {
		n, err := e.Convert(dsd, testDSDBytes, pcm)
		require.NoError(t, err)
		require.Equal(t, testPCMPer, n)
	}
	for i, s := range pcm {
		require.InDeltaf(t, -1.0, s, 1e-6, "sample %d", i)
	}
}

func TestEngine_LFEAdjustScalesOneChannel(t *testing.T) {
	const channels = 2
	plain := newTestEngine(t, channels)
	defer plain.Close()
	scaled := newTestEngine(t, channels)
	defer scaled.Close()
	scaled.SetLFE(1, 0.5)

	dsd := make([]byte, testDSDBytes*channels)
	for i := range dsd {
		dsd[i] = byte(i * 31)
	}
	pcmPlain := make([]float64, testPCMPer*channels)
	pcmScaled := make([]float64, testPCMPer*channels)

	for frame := 0; frame < 2; frame++ {
		_, err := plain.Convert(dsd, testDSDBytes, pcmPlain)
		require.NoError(t, err)
		_, err = scaled.Convert(dsd, testDSDBytes, pcmScaled)
		require.NoError(t, err)
	}
	for i := 0; i < testPCMPer; i++ {
		require.InDelta(t, pcmPlain[i*channels], pcmScaled[i*channels], 1e-12)
		require.InDelta(t, 0.5*pcmPlain[i*channels+1], pcmScaled[i*channels+1], 1e-12)
	}
}

// The end-of-stream flush emits samples not present in the forward pass.
func TestEngine_TailFlushEmitsSamples(t *testing.T) {
	const channels = 1
	e := newTestEngine(t, channels)
	defer e.Close()

	dsd := bytes.Repeat([]byte{0x69}, testDSDBytes)
	pcm := make([]float64, testPCMPer)
	_, err := e.Convert(dsd, testDSDBytes, pcm)
	require.NoError(t, err)

	n := e.TailFlush(pcm)
	require.GreaterOrEqual(t, n, int(math.Round(2*e.Delay())))
}

func TestEngine_CloseJoinsWorkers(t *testing.T) {
	e := newTestEngine(t, 6)
	dsd := make([]byte, testDSDBytes*6)
	pcm := make([]float64, testPCMPer*6)
	_, err := e.Convert(dsd, testDSDBytes, pcm)
	require.NoError(t, err)
	e.Close() // must not deadlock with a frame already processed
}

func TestConverter_RunProducesExpectedSampleCount(t *testing.T) {
	for _, ratio := range []int{8, 16, 32, 64, 128, 256, 512, 1024} {
		for _, topo := range []Topology{Direct, Multistage} {
			plan, err := PlanFor(ratio, topo)
			require.NoError(t, err)
			c := NewConverter(plan, pcmfir.Stage1Builtin(plan.Stage1Decim), 1.0, pcmfir.Stage2Builtin(), pcmfir.Stage3Builtin())

			dsd := make([]byte, testDSDBytes)
			pcm := make([]float64, testDSDBytes*8/ratio)
			n := c.Run(dsd, pcm)
			require.Equalf(t, testDSDBytes*8/ratio, n, "ratio %d topo %v", ratio, topo)
		}
	}
}
