package pcmengine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlanFor_AllSupportedRatios(t *testing.T) {
	ratios := []int{8, 16, 32, 64, 128, 256, 512, 1024}
	for _, topo := range []Topology{Direct, Multistage} {
		for _, r := range ratios {
			p, err := PlanFor(r, topo)
			require.NoErrorf(t, err, "ratio=%d topo=%v", r, topo)

			total := p.Stage1Decim
			for _, s := range p.Stage23 {
				require.Equal(t, 2, s)
				total *= s
			}
			require.Equalf(t, r, total, "ratio=%d topo=%v", r, topo)
		}
	}
}

func TestPlanFor_UnsupportedRatio(t *testing.T) {
	_, err := PlanFor(3, Direct)
	require.ErrorIs(t, err, ErrUnsupportedRatio)
}

func TestRatio_ComputesAndValidates(t *testing.T) {
	r, err := Ratio(2822400, 44100)
	require.NoError(t, err)
	require.Equal(t, 64, r)

	_, err = Ratio(2822400, 0)
	require.ErrorIs(t, err, ErrUnsupportedRatio)

	_, err = Ratio(2822400, 44101) // not an integer divisor
	require.ErrorIs(t, err, ErrUnsupportedRatio)

	_, err = Ratio(2822400, 2822400/3) // integer divisor but unsupported ratio (3)
	require.ErrorIs(t, err, ErrUnsupportedRatio)
}

func TestDelay_AccumulatesChainedStages(t *testing.T) {
	var d Delay
	d.Accumulate(96, 8) // stage 1
	require.InDelta(t, 96.0/2/8, d.Total(), 1e-9)

	before := d.Total()
	d.Accumulate(24, 2) // stage 2
	want := before/2 + 24.0/2/2
	require.InDelta(t, want, d.Total(), 1e-9)
}

func TestDelay_ZeroValueIsZero(t *testing.T) {
	var d Delay
	require.Equal(t, 0.0, d.Total())
}
