// Package sacd decodes Super Audio CD content: 1-bit Direct Stream Digital
// (DSD) audio, optionally compressed with the lossless Direct Stream
// Transfer (DST) codec, down-converted to multi-channel linear PCM.
//
// Supported container formats are SACD disc images (.iso / raw sectors),
// DSDIFF (.dff), and DSF (.dsf). This package implements the pure decode
// path — container parsing, DST entropy decoding, and DSD-to-PCM
// conversion — without any CGo dependencies.
//
// Basic usage:
//
//	f, _ := os.Open("album.iso")
//	fi, _ := f.Stat()
//	dec, _ := sacd.Open(f, fi.Size(), sacd.DefaultConfig())
//	track, _ := dec.Track(1)
//	pcm, _ := track.DecodeAll()
package sacd
