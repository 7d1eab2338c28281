package sacd

import "runtime"

// ConverterType selects the DSD→PCM decimation topology family.
type ConverterType int

const (
	// ConverterMultistage chains many small decimation stages (stage-1 of
	// 8 or 16, followed by ×2 stages); better numeric behavior with the
	// built-in filter set, and the default.
	ConverterMultistage ConverterType = iota
	// ConverterDirect uses one large stage-1 decimation (8…64) followed by
	// chained ×2 stages; used for the simplest path.
	ConverterDirect
	// ConverterUser uses caller-supplied stage-1 FIR coefficients. Falls
	// back to ConverterDirect when Config.UserFIRCoefs is empty.
	ConverterUser
)

// Precision names a DSD→PCM working float precision. The pipeline does
// not read it: it computes in float64 and DecodeAll returns float32
// whichever value is set.
type Precision int

const (
	PrecisionF32 Precision = iota
	PrecisionF64
)

// AreaMode mirrors internal/container.Mode: which tracks are exposed to
// the caller and whether track bounds are strict or continuous.
// It is redeclared here rather than re-exporting the internal type so the
// internal/container package never needs to be import-safe for external
// callers.
type AreaMode int

const (
	AreaModeTwoChannel AreaMode = 1 << iota
	AreaModeMultiChannel
	AreaModeSingleTrack
	AreaModeFullPlayback

	AreaModeBoth = AreaModeTwoChannel | AreaModeMultiChannel
)

// Config is the decoder's enumerated configuration surface.
type Config struct {
	// GainDB scales stage-1 LUT values. Default 0.
	GainDB float64

	// LFEAdjust multiplies the LFE channel's output. Default
	// 1.0 (no adjustment).
	LFEAdjust float64

	// ConverterType selects the decimation topology family.
	ConverterType ConverterType

	// Precision is stored but not read by the pipeline, which computes
	// in float64 and returns float32 from DecodeAll.
	Precision Precision

	// UserFIRCoefs are the caller-supplied stage-1 coefficients required
	// when ConverterType is ConverterUser.
	UserFIRCoefs []float64

	// AreaMode selects which tracks are exposed and how they are
	// numbered.
	AreaMode AreaMode

	// DSTPoolThreads is the parallelism of the DST decoder pool. Defaults
	// to runtime.NumCPU() when zero.
	DSTPoolThreads int

	// PCMSampleRate is the caller-configured output sample rate; it must
	// be a positive multiple of FrameRate (75) and divide the DSD rate by
	// a power of two in [8, 1024]. Zero selects 44100.
	PCMSampleRate int

	// Logger receives per-frame recoverable-error diagnostics. Nil
	// discards output.
	Logger Logger
}

// DefaultConfig returns a Config with the documented defaults applied.
func DefaultConfig() Config {
	return Config{
		GainDB:         0,
		LFEAdjust:      1.0,
		ConverterType:  ConverterMultistage,
		Precision:      PrecisionF32,
		AreaMode:       AreaModeBoth,
		DSTPoolThreads: runtime.NumCPU(),
		PCMSampleRate:  44100,
	}
}

// validate normalizes and checks a Config, applying the ConverterUser →
// ConverterDirect fallback when UserFIRCoefs is absent.
func (c *Config) validate() error {
	if c.DSTPoolThreads < 1 {
		c.DSTPoolThreads = runtime.NumCPU()
		if c.DSTPoolThreads < 1 {
			c.DSTPoolThreads = 1
		}
	}
	if c.PCMSampleRate == 0 {
		c.PCMSampleRate = 44100
	}
	if c.LFEAdjust == 0 {
		c.LFEAdjust = 1.0
	}
	if c.ConverterType == ConverterUser && len(c.UserFIRCoefs) == 0 {
		c.ConverterType = ConverterDirect
	}
	if c.AreaMode == 0 {
		c.AreaMode = AreaModeBoth
	}
	return nil
}
