// Package fake is an in-memory container: a scripted demuxer that seeks on keyframes and a
// muxer that records what it is given.
package fake

import (
	"errors"
	"fmt"
	"io"

	"github.com/tyrese/smartcut/av"
	"github.com/tyrese/smartcut/av/avutil"
)

type SeekCall struct {
	Stream int
	Ts     int64
	Mode   av.SeekMode
}

type Demuxer struct {
	streams []av.Stream
	pkts    []av.Packet
	pos     int

	Seeks   []SeekCall
	Flushes int
	Reads   int
	Closed  bool
	SeekErr error // returned by every Seek when set
}

// NewDemuxer serves pkts in the given order, which is the container's file order.
func NewDemuxer(streams []av.Stream, pkts []av.Packet) *Demuxer {
	return &Demuxer{streams: streams, pkts: pkts}
}

func (self *Demuxer) Streams() (streams []av.Stream, err error) {
	streams = self.streams
	return
}

// Packets returns the full script.
func (self *Demuxer) Packets() []av.Packet {
	return self.pkts
}

func (self *Demuxer) ReadPacket() (pkt av.Packet, err error) {
	if self.pos >= len(self.pkts) {
		err = io.EOF
		return
	}
	pkt = self.pkts[self.pos]
	pkt.Data = append([]byte(nil), pkt.Data...)
	self.pos++
	self.Reads++
	return
}

// Seek moves the cursor to the last keyframe of stream at or before ts (the stream's first
// packet if there is none), or to the packet of stream nearest to ts.
func (self *Demuxer) Seek(stream int, ts int64, mode av.SeekMode) (err error) {
	self.Seeks = append(self.Seeks, SeekCall{Stream: stream, Ts: ts, Mode: mode})
	if self.SeekErr != nil {
		err = self.SeekErr
		return
	}
	if stream < 0 || stream >= len(self.streams) {
		err = fmt.Errorf("fake: seek on stream #%d", stream)
		return
	}

	first, best := -1, -1
	var bestdiff int64
	for i, pkt := range self.pkts {
		if pkt.Idx != stream {
			continue
		}
		if first == -1 {
			first = i
		}
		t, ok := pkt.Time()
		if !ok {
			continue
		}
		switch mode {
		case av.SeekBackward:
			if pkt.IsKeyFrame && t <= ts {
				best = i
			}
		case av.SeekNearest:
			diff := t - ts
			if diff < 0 {
				diff = -diff
			}
			if best == -1 || diff < bestdiff {
				best, bestdiff = i, diff
			}
		default:
			err = fmt.Errorf("fake: seek mode %v", mode)
			return
		}
	}
	if best == -1 {
		best = first
	}
	if best == -1 {
		best = len(self.pkts)
	}
	self.pos = best
	return
}

func (self *Demuxer) Flush() (err error) {
	self.Flushes++
	return
}

func (self *Demuxer) Close() (err error) {
	self.Closed = true
	return
}

var ErrInjected = errors.New("fake: injected failure")

type Muxer struct {
	Streams []av.CodecParameters
	Packets []av.Packet

	Headers  int
	Trailers int
	Closed   bool

	// FailAfter makes WritePacket fail once this many packets were written, -1 never.
	FailAfter   int
	FailTrailer bool
}

func NewMuxer() *Muxer {
	return &Muxer{FailAfter: -1}
}

func (self *Muxer) AddStream(params av.CodecParameters) (idx int, err error) {
	if self.Headers > 0 {
		err = fmt.Errorf("fake: add stream after header")
		return
	}
	idx = len(self.Streams)
	self.Streams = append(self.Streams, params)
	return
}

func (self *Muxer) WriteHeader() (err error) {
	self.Headers++
	return
}

func (self *Muxer) WritePacket(pkt av.Packet) (err error) {
	if self.FailAfter >= 0 && len(self.Packets) >= self.FailAfter {
		err = ErrInjected
		return
	}
	if pkt.Idx < 0 || pkt.Idx >= len(self.Streams) {
		err = fmt.Errorf("fake: write packet on stream #%d", pkt.Idx)
		return
	}
	pkt.Data = append([]byte(nil), pkt.Data...)
	self.Packets = append(self.Packets, pkt)
	return
}

func (self *Muxer) WriteTrailer() (err error) {
	self.Trailers++
	if self.FailTrailer {
		err = ErrInjected
	}
	return
}

func (self *Muxer) Close() (err error) {
	self.Closed = true
	return
}

// Stream returns the recorded packets of output stream idx.
func (self *Muxer) Stream(idx int) (pkts []av.Packet) {
	for _, pkt := range self.Packets {
		if pkt.Idx == idx {
			pkts = append(pkts, pkt)
		}
	}
	return
}

// Store maps paths to scripted inputs and records created outputs, so the registry can
// open them like files.
type Store struct {
	Ext        string
	Inputs     map[string]*Demuxer
	Outputs    map[string]*Muxer
	CodecTypes []av.CodecType
	// NewMuxer is used for every created output when set.
	NewMuxer func() *Muxer
}

func NewStore(ext string) *Store {
	return &Store{
		Ext:     ext,
		Inputs:  map[string]*Demuxer{},
		Outputs: map[string]*Muxer{},
	}
}

func (self *Store) Handler(h *avutil.RegisterHandler) {
	h.Ext = self.Ext
	h.CodecTypes = self.CodecTypes
	h.OpenDemuxer = func(path string) (av.DemuxCloser, error) {
		if dmx, ok := self.Inputs[path]; ok {
			return dmx, nil
		}
		return nil, fmt.Errorf("fake: no input %s", path)
	}
	h.CreateMuxer = func(path string) (av.MuxCloser, error) {
		var mux *Muxer
		if self.NewMuxer != nil {
			mux = self.NewMuxer()
		} else {
			mux = NewMuxer()
		}
		self.Outputs[path] = mux
		return mux, nil
	}
}
