// Package dstpool implements the ring-buffered DST frame decoder worker
// pool: a fixed set of slots, each with a dedicated worker goroutine,
// submitted to and drained from in strict FIFO order even though the
// workers themselves run in parallel.
package dstpool

import (
	"github.com/deepteams/sacd/internal/dstframe"
	"github.com/deepteams/sacd/internal/sacdlog"
)

type slotState int

const (
	stateEmpty slotState = iota
	stateLoaded
	stateRunning
	stateReady
	stateReadyWithError
	stateTerminating
)

// slot is one pool entry: an input DST buffer, an output DSD buffer, and
// the worker goroutine that decodes between them. Only the owning worker
// writes dsdOut and state between input.wait() and output.post(); only the
// pool's caller touches them otherwise.
type slot struct {
	dec *dstframe.Decoder

	dstIn   []byte
	dstBits int
	dsdOut  []byte

	state slotState
	empty bool // true when the caller submitted a zero-size frame
	raw   bool // true when dstIn is already uncompressed DSD, no entropy decode needed

	input  chan struct{}
	output chan struct{}

	alive bool
}

func (s *slot) post(c chan struct{}) { c <- struct{}{} }
func (s *slot) wait(c chan struct{}) { <-c }

func (s *slot) run(log sacdlog.Logger) {
	for {
		s.wait(s.input)
		if !s.alive {
			s.post(s.output)
			return
		}
		if s.empty {
			s.state = stateEmpty
			s.post(s.output)
			continue
		}
		s.state = stateRunning
		if s.raw {
			copy(s.dsdOut, s.dstIn)
			s.state = stateReady
			s.post(s.output)
			continue
		}
		if err := s.dec.Decode(s.dstIn, s.dstBits, s.dsdOut); err != nil {
			log.Warnf("dstpool: frame decode failed, substituting silence: %v", err)
			for i := range s.dsdOut {
				s.dsdOut[i] = dstframe.SilenceByte
			}
			s.state = stateReadyWithError
		} else {
			s.state = stateReady
		}
		s.post(s.output)
	}
}

// Pool is the ring-buffered DST decoder pool. Caller writes a frame to
// slot N, posts its input semaphore, advances N; caller immediately waits
// on the oldest slot's output. This gives one full pool's worth of decode
// look-ahead before the caller blocks.
type Pool struct {
	slots    []*slot
	writePos int
	readPos  int
	size     int
	log      sacdlog.Logger
}

// New creates a pool of the given size, each slot sized for channels and
// maxFrameLen bytes per channel.
func New(size, channels, maxFrameLen int, log sacdlog.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	if log == nil {
		log = sacdlog.Discard
	}
	p := &Pool{slots: make([]*slot, size), size: size, log: log}
	dsdLen := channels * maxFrameLen
	for i := range p.slots {
		s := &slot{
			dec:    dstframe.NewDecoder(channels, maxFrameLen),
			dsdOut: make([]byte, dsdLen),
			input:  make(chan struct{}, 1),
			output: make(chan struct{}, 1),
			alive:  true,
		}
		p.slots[i] = s
		go s.run(log)
	}
	return p
}

// Submit writes the next DST frame into the ring's write slot and posts
// its input semaphore. A zero-size frame (empty dst) marks the slot EMPTY
// without decoding. raw marks a frame that is already uncompressed DSD
// needing no entropy decode (e.g. a DSDIFF `DSD ` chunk frame, which
// carries no per-frame header at all, unlike an ISO/DSDIFF DST frame
// whose bitstream embeds its own compressed-or-not bit).
func (p *Pool) Submit(dst []byte, dstBits int, raw bool) {
	s := p.slots[p.writePos]
	s.empty = len(dst) == 0
	s.raw = raw
	if !s.empty {
		if cap(s.dstIn) < len(dst) {
			s.dstIn = make([]byte, len(dst))
		}
		s.dstIn = s.dstIn[:len(dst)]
		copy(s.dstIn, dst)
		s.dstBits = dstBits
	}
	s.post(s.input)
	p.writePos = (p.writePos + 1) % p.size
}

// Retrieve waits on the oldest submitted slot's output and returns its
// decoded DSD buffer, whether decoding succeeded, and whether the slot was
// an empty submission (in which case the DSD buffer is meaningless and the
// consumer has nothing to decode from it).
func (p *Pool) Retrieve() (dsd []byte, ok bool, wasEmpty bool) {
	s := p.slots[p.readPos]
	s.wait(s.output)
	p.readPos = (p.readPos + 1) % p.size
	if s.empty {
		return nil, true, true
	}
	return s.dsdOut, s.state == stateReady, false
}

// Close terminates every worker: clears alive, posts input, joins via
// output.
func (p *Pool) Close() {
	for _, s := range p.slots {
		s.alive = false
		s.post(s.input)
		s.wait(s.output)
	}
}
