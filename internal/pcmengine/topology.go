// Package pcmengine orchestrates the per-channel DSD→PCM converter slots:
// decimation topology selection, delay accumulation, lead-in/tail-flush
// handling, and the semaphore-synchronized worker pool that runs one
// converter per channel in parallel.
package pcmengine

import "fmt"

// Topology selects which decimation-stage family converts a given ratio.
type Topology int

const (
	// Direct uses one large stage-1 decimation (8…64) followed by chained
	// ×2 stage-2/3 stages. Used for user-supplied filters and the
	// simplest path.
	Direct Topology = iota
	// Multistage uses a stage-1 of 8 or 16 followed by many ×2 stages;
	// better numeric behavior with the built-in filter set.
	Multistage
)

// Plan describes one channel's decimation ladder: Stage1Decim bits for the
// DSD-input stage, followed by a sequence of ×2 PCM-input stages.
type Plan struct {
	Stage1Decim int
	Stage23     []int // always 2s, length = number of halfband stages
}

// directPlans and multistagePlans map each supported overall decimation
// ratio to its stage ladder.
var directPlans = map[int]Plan{
	8:    {8, nil},
	16:   {16, nil},
	32:   {32, nil},
	64:   {32, []int{2}},
	128:  {64, []int{2}},
	256:  {64, []int{2, 2}},
	512:  {64, []int{2, 2, 2}},
	1024: {64, []int{2, 2, 2, 2}},
}

var multistagePlans = map[int]Plan{
	8:    {8, nil},
	16:   {8, []int{2}},
	32:   {8, []int{2, 2}},
	64:   {16, []int{2, 2}},
	128:  {16, []int{2, 2, 2}},
	256:  {16, []int{2, 2, 2, 2}},
	512:  {16, []int{2, 2, 2, 2, 2}},
	1024: {16, []int{2, 2, 2, 2, 2, 2}},
}

// ErrUnsupportedRatio is returned when a requested decimation ratio is not
// one of the eight supported powers of two.
var ErrUnsupportedRatio = fmt.Errorf("pcmengine: decimation ratio must be one of 8,16,32,64,128,256,512,1024")

// PlanFor returns the decimation ladder for a given ratio and topology
// family.
func PlanFor(ratio int, topo Topology) (Plan, error) {
	table := multistagePlans
	if topo == Direct {
		table = directPlans
	}
	p, ok := table[ratio]
	if !ok {
		return Plan{}, ErrUnsupportedRatio
	}
	return p, nil
}

// Ratio computes dsdRate/pcmRate and validates it against the supported
// set.
func Ratio(dsdRate, pcmRate int) (int, error) {
	if pcmRate <= 0 || dsdRate%pcmRate != 0 {
		return 0, ErrUnsupportedRatio
	}
	r := dsdRate / pcmRate
	switch r {
	case 8, 16, 32, 64, 128, 256, 512, 1024:
		return r, nil
	default:
		return 0, ErrUnsupportedRatio
	}
}

// Delay accumulates the chained-stage group delay
// delay_total = (((d1/dec2) + d2)/dec3 + d3) …, where d_i = order_i/2/decim_i.
type Delay struct {
	total float64
}

// Accumulate folds one stage's order/decimation into the running delay.
func (d *Delay) Accumulate(order, decim int) {
	stageDelay := float64(order) / 2 / float64(decim)
	d.total = d.total/float64(decim) + stageDelay
}

// Total returns the accumulated delay in output samples.
func (d *Delay) Total() float64 { return d.total }
