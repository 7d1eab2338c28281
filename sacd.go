package sacd

import (
	"fmt"
	"io"

	"github.com/deepteams/sacd/internal/container"
	"github.com/deepteams/sacd/internal/dstpool"
	"github.com/deepteams/sacd/internal/pcmengine"
	"github.com/deepteams/sacd/internal/pcmfir"
	"github.com/deepteams/sacd/internal/sacdlog"
)

// Decoder owns a detected container (ISO, DSDIFF, or DSF) and the
// configuration used to build per-track decode pipelines.
type Decoder struct {
	cont container.Container
	cfg  Config
	log  Logger
}

// Open detects and parses ra as an SACD ISO image, DSDIFF file, or DSF
// file, and returns a Decoder ready to enumerate and decode its tracks.
// size is ra's total byte length (required by DSDIFF's size validation).
func Open(ra io.ReaderAt, size int64, cfg Config) (*Decoder, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cont, err := container.Open(ra, size, toInternal(cfg.Logger))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedContainer, err)
	}
	return &Decoder{cont: cont, cfg: cfg, log: cfg.Logger}, nil
}

// TrackInfo summarizes one selectable track without committing to
// decoding it.
type TrackInfo struct {
	Number          int
	Area            string
	Channels        int
	SampleRate      int
	DurationSeconds float64
}

// Tracks enumerates every track reachable under the Decoder's configured
// AreaMode.
func (d *Decoder) Tracks() ([]TrackInfo, error) {
	mode := container.Mode(d.cfg.AreaMode)
	var out []TrackInfo
	for n := 1; ; n++ {
		area, idx, err := d.cont.Disc().ResolveTrack(mode, n)
		if err != nil {
			if n == 1 {
				return nil, ErrNoTracks
			}
			break
		}
		t := d.trackAt(area, idx)
		out = append(out, TrackInfo{
			Number:          t.Number,
			Area:            area.String(),
			Channels:        t.Channels,
			SampleRate:      t.SampleRate,
			DurationSeconds: t.DurationSeconds(),
		})
	}
	return out, nil
}

func (d *Decoder) trackAt(area container.AreaKind, idx int) *container.Track {
	disc := d.cont.Disc()
	if area == container.AreaTwoChannel {
		return &disc.TwoChannel[idx]
	}
	return &disc.MultiChannel[idx]
}

// Track opens track number n (1-based, per the Decoder's AreaMode
// numbering) for decoding.
func (d *Decoder) Track(n int) (*Track, error) {
	mode := container.Mode(d.cfg.AreaMode)
	area, idx, err := d.cont.Disc().ResolveTrack(mode, n)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTrackNotFound, err)
	}
	ct := d.trackAt(area, idx)
	fs, err := d.cont.OpenFrameSource(ct)
	if err != nil {
		return nil, err
	}
	return &Track{track: ct, fs: fs, cfg: d.cfg, log: toInternal(d.cfg.Logger)}, nil
}

// Track is one opened, decodable program: it wires the container's frame
// source through the DST decoder pool and the DSD→PCM converter engine.
type Track struct {
	track *container.Track
	fs    container.FrameSource
	cfg   Config
	log   sacdlog.Logger
}

// Info returns the track's metadata.
func (t *Track) Info() TrackInfo {
	return TrackInfo{
		Number:          t.track.Number,
		Area:            t.track.Area.String(),
		Channels:        t.track.Channels,
		SampleRate:      t.cfg.PCMSampleRate,
		DurationSeconds: t.track.DurationSeconds(),
	}
}

// buildEngine constructs the DST pool and PCM engine for this track's
// channel count and the Decoder's configured topology/gain.
func (t *Track) buildEngine() (*dstpool.Pool, *pcmengine.Engine, error) {
	channels := t.track.Channels
	dsdBytesPerChannel := t.track.SampleRate / 8 / t.track.FrameRate

	ratio, err := pcmengine.Ratio(t.track.SampleRate, t.cfg.PCMSampleRate)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}

	topo := pcmengine.Multistage
	if t.cfg.ConverterType == ConverterDirect || t.cfg.ConverterType == ConverterUser {
		topo = pcmengine.Direct
	}
	plan, err := pcmengine.PlanFor(ratio, topo)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}

	gain := pcmfir.LinearGain(t.cfg.GainDB)
	var stage1Set pcmfir.CoefSet
	if t.cfg.ConverterType == ConverterUser && len(t.cfg.UserFIRCoefs) > 0 {
		stage1Set = pcmfir.UserStage1(t.cfg.UserFIRCoefs, plan.Stage1Decim)
	} else {
		stage1Set = pcmfir.Stage1Builtin(plan.Stage1Decim)
	}
	stage2Set := pcmfir.Stage2Builtin()
	stage3Set := pcmfir.Stage3Builtin()

	newConverter := func() *pcmengine.Converter {
		return pcmengine.NewConverter(plan, stage1Set, gain, stage2Set, stage3Set)
	}

	pcmSamplesPerFrame := t.cfg.PCMSampleRate / t.track.FrameRate
	pool := dstpool.New(t.cfg.DSTPoolThreads, channels, dsdBytesPerChannel, t.log)
	engine := pcmengine.NewEngine(channels, dsdBytesPerChannel, pcmSamplesPerFrame, newConverter)

	if lfe := lfeChannelIndex(t.track.LoudspeakerConfig, channels); lfe >= 0 {
		engine.SetLFE(lfe, t.cfg.LFEAdjust)
	}
	return pool, engine, nil
}

// lfeChannelIndex resolves the LFE channel's position from the
// loudspeaker configuration rather than hardcoding "the fourth channel"
// unconditionally. Config 4 (5.1) is the only layout carrying
// an LFE channel, at interleave position 3.
func lfeChannelIndex(loudspeakerConfig, channels int) int {
	if loudspeakerConfig == 4 && channels == 6 {
		return 3
	}
	return -1
}

// DecodeAll decodes the entire track to interleaved float32 PCM.
func (t *Track) DecodeAll() ([]float32, error) {
	pool, engine, err := t.buildEngine()
	if err != nil {
		return nil, err
	}
	defer pool.Close()
	defer engine.Close()

	channels := t.track.Channels
	dsdBytesPerChannel := t.track.SampleRate / 8 / t.track.FrameRate
	pcmPerFrame := t.cfg.PCMSampleRate / t.track.FrameRate

	var out []float32
	pcmBuf := make([]float64, pcmPerFrame*channels)

	// Prime the ring: submit one pool's worth of frames before the first
	// retrieve, matching dstpool's look-ahead contract. Once the
	// source reports EOF nothing further is submitted; the backlog drains
	// what is already in flight.
	backlog := 0
	eof := false
	poolSize := t.cfg.DSTPoolThreads
	if poolSize < 1 {
		poolSize = 1
	}

	submit := func() error {
		if eof {
			return nil
		}
		fr, err := t.fs.NextFrame()
		if err == io.EOF {
			eof = true
			return nil
		}
		if err != nil {
			return err
		}
		switch {
		case fr.Invalid:
			pool.Submit(nil, 0, false)
		case fr.DST:
			pool.Submit(fr.Data, len(fr.Data)*8, false)
		default:
			pool.Submit(fr.Data, 0, true)
		}
		backlog++
		return nil
	}

	for i := 0; i < poolSize && !eof; i++ {
		if err := submit(); err != nil {
			return nil, err
		}
	}

	first := true
	for backlog > 0 {
		dsd, _, wasEmpty := pool.Retrieve()
		backlog--

		if err := submit(); err != nil {
			return nil, err
		}

		if wasEmpty || dsd == nil {
			continue
		}

		// Prime the filter history with a reverse pass before the very
		// first forward frame.
		if first {
			engine.LeadIn(dsd, dsdBytesPerChannel)
			first = false
		}
		n, err := engine.Convert(dsd, dsdBytesPerChannel, pcmBuf)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n*channels; i++ {
			out = append(out, float32(pcmBuf[i]))
		}
	}

	tailN := engine.TailFlush(pcmBuf)
	for i := 0; i < tailN*channels; i++ {
		out = append(out, float32(pcmBuf[i]))
	}
	return out, nil
}
