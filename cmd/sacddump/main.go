// Command sacddump lists and decodes SACD content from the command line.
//
// Usage:
//
//	sacddump info <input>              List tracks in an ISO/DFF/DSF file
//	sacddump dump [options] <input>    Decode a track to WAV or raw PCM
//
// Options for dump accept a YAML config file (--config) whose keys mirror
// the flags; explicitly set flags win over file values.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/deepteams/sacd"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "info":
		err = runInfo(os.Args[2:])
	case "dump":
		err = runDump(os.Args[2:])
	case "-h", "-help", "--help", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "sacddump: unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "sacddump: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage:
  sacddump info <input>              List tracks in an ISO, DSDIFF, or DSF file
  sacddump dump [options] <input>    Decode a track to WAV or raw float32 PCM

Run "sacddump <command> -h" for command-specific options.
`)
}

func openDecoder(path string, cfg sacd.Config) (*sacd.Decoder, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	dec, err := sacd.Open(f, fi.Size(), cfg)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return dec, f.Close, nil
}

func runInfo(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("info: expected exactly one input file")
	}
	cfg := sacd.DefaultConfig()
	cfg.Logger = sacd.NewCharmLogger(log.Default())
	dec, closeFn, err := openDecoder(args[0], cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	tracks, err := dec.Tracks()
	if err != nil {
		return err
	}
	for _, t := range tracks {
		fmt.Printf("track %2d  %-13s  %dch  %7.2fs\n", t.Number, t.Area, t.Channels, t.DurationSeconds)
	}
	return nil
}
