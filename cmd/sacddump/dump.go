package main

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/deepteams/sacd"
)

// fileConfig mirrors the dump flags for --config YAML loading. Explicitly
// set flags override file values.
type fileConfig struct {
	Track     int     `yaml:"track"`
	Rate      int     `yaml:"rate"`
	GainDB    float64 `yaml:"gain_db"`
	LFEAdjust float64 `yaml:"lfe_adjust"`
	Converter string  `yaml:"converter"`
	Mode      string  `yaml:"mode"`
	Threads   int     `yaml:"threads"`
	Output    string  `yaml:"output"`
}

func runDump(args []string) error {
	fs := pflag.NewFlagSet("dump", pflag.ContinueOnError)
	track := fs.IntP("track", "t", 1, "1-based track number to decode")
	rate := fs.IntP("rate", "r", 44100, "Output PCM sample rate")
	gainDB := fs.Float64P("gain", "g", 0, "Output gain in dB")
	lfeAdjust := fs.Float64P("lfe-adjust", "l", 1.0, "LFE channel gain multiplier")
	converter := fs.StringP("converter", "c", "multistage", "Converter topology: multistage, direct")
	mode := fs.StringP("mode", "m", "both", "Area mode: twoch, mulch, both")
	threads := fs.IntP("threads", "j", 0, "DST decoder pool size (0 = number of CPUs)")
	output := fs.StringP("output", "o", "", "Output file (.wav for WAV, else raw float32; default <input>.wav)")
	configPath := fs.String("config", "", "YAML config file with the same keys as the flags")
	verbose := fs.BoolP("verbose", "v", false, "Log per-frame diagnostics")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("dump: expected exactly one input file")
	}
	input := fs.Arg(0)

	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			return fmt.Errorf("dump: reading config: %w", err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return fmt.Errorf("dump: parsing config: %w", err)
		}
		applyFileConfig(fs, &fc, track, rate, gainDB, lfeAdjust, converter, mode, threads, output)
	}

	logger := log.Default()
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.WarnLevel)
	}

	cfg := sacd.DefaultConfig()
	cfg.GainDB = *gainDB
	cfg.LFEAdjust = *lfeAdjust
	cfg.PCMSampleRate = *rate
	cfg.DSTPoolThreads = *threads
	cfg.Logger = sacd.NewCharmLogger(logger)

	switch strings.ToLower(*converter) {
	case "multistage":
		cfg.ConverterType = sacd.ConverterMultistage
	case "direct":
		cfg.ConverterType = sacd.ConverterDirect
	default:
		return fmt.Errorf("dump: unknown converter %q", *converter)
	}

	switch strings.ToLower(*mode) {
	case "twoch":
		cfg.AreaMode = sacd.AreaModeTwoChannel
	case "mulch":
		cfg.AreaMode = sacd.AreaModeMultiChannel
	case "both":
		cfg.AreaMode = sacd.AreaModeBoth
	default:
		return fmt.Errorf("dump: unknown area mode %q", *mode)
	}

	dec, closeFn, err := openDecoder(input, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	tr, err := dec.Track(*track)
	if err != nil {
		return err
	}
	info := tr.Info()
	logger.Debugf("decoding track %d: %s, %d channels", info.Number, info.Area, info.Channels)

	pcm, err := tr.DecodeAll()
	if err != nil {
		return err
	}

	outPath := *output
	if outPath == "" {
		outPath = input + ".wav"
	}
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	if strings.HasSuffix(strings.ToLower(outPath), ".wav") {
		err = writeWAV(w, pcm, info.Channels, *rate)
	} else {
		err = writeRaw(w, pcm)
	}
	if err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("wrote %d samples to %s\n", len(pcm), outPath)
	return nil
}

// applyFileConfig copies config-file values into any flag the user did not
// set explicitly on the command line.
func applyFileConfig(fs *pflag.FlagSet, fc *fileConfig, track, rate *int, gainDB, lfeAdjust *float64, converter, mode *string, threads *int, output *string) {
	if fc.Track != 0 && !fs.Changed("track") {
		*track = fc.Track
	}
	if fc.Rate != 0 && !fs.Changed("rate") {
		*rate = fc.Rate
	}
	if fc.GainDB != 0 && !fs.Changed("gain") {
		*gainDB = fc.GainDB
	}
	if fc.LFEAdjust != 0 && !fs.Changed("lfe-adjust") {
		*lfeAdjust = fc.LFEAdjust
	}
	if fc.Converter != "" && !fs.Changed("converter") {
		*converter = fc.Converter
	}
	if fc.Mode != "" && !fs.Changed("mode") {
		*mode = fc.Mode
	}
	if fc.Threads != 0 && !fs.Changed("threads") {
		*threads = fc.Threads
	}
	if fc.Output != "" && !fs.Changed("output") {
		*output = fc.Output
	}
}

// writeWAV emits an IEEE-float (format 3) WAV file.
func writeWAV(w io.Writer, pcm []float32, channels, rate int) error {
	dataLen := len(pcm) * 4
	var hdr [44]byte
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(36+dataLen))
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], 3) // IEEE float
	binary.LittleEndian.PutUint16(hdr[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(rate))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(rate*channels*4))
	binary.LittleEndian.PutUint16(hdr[32:34], uint16(channels*4))
	binary.LittleEndian.PutUint16(hdr[34:36], 32)
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], uint32(dataLen))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	return writeRaw(w, pcm)
}

func writeRaw(w io.Writer, pcm []float32) error {
	buf := make([]byte, 4)
	for _, s := range pcm {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(s))
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}
