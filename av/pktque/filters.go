// Package pktque provides packet filters applied on the way to a muxer.
package pktque

import (
	"github.com/tyrese/smartcut/av"
)

type Filter interface {
	ModifyPacket(pkt *av.Packet) (drop bool, err error)
}

type Filters []Filter

func (self Filters) ModifyPacket(pkt *av.Packet) (drop bool, err error) {
	for _, filter := range self {
		if drop, err = filter.ModifyPacket(pkt); err != nil {
			return
		}
		if drop {
			return
		}
	}
	return
}

// FilterWriter runs Filter over every packet before handing it to the wrapped writer.
type FilterWriter struct {
	av.PacketWriter
	Filter Filter
}

func (self FilterWriter) WritePacket(pkt av.Packet) (err error) {
	if self.Filter != nil {
		var drop bool
		if drop, err = self.Filter.ModifyPacket(&pkt); err != nil {
			return
		}
		if drop {
			return
		}
	}
	return self.PacketWriter.WritePacket(pkt)
}

// Rebaser moves every stream to a zero based timeline: the first packet seen on a stream
// fixes that stream's base (its DTS, or PTS when DTS is absent), which is then subtracted
// from both timestamps of it and all later packets.
type Rebaser struct {
	base []int64
	seen []bool
}

func NewRebaser(streams int) *Rebaser {
	return &Rebaser{
		base: make([]int64, streams),
		seen: make([]bool, streams),
	}
}

func (self *Rebaser) ModifyPacket(pkt *av.Packet) (drop bool, err error) {
	i := pkt.Idx
	if !self.seen[i] {
		self.seen[i] = true
		switch {
		case pkt.HasDTS():
			self.base[i] = pkt.DTS
		case pkt.HasPTS():
			self.base[i] = pkt.PTS
		}
	}
	if pkt.HasPTS() {
		pkt.PTS -= self.base[i]
	}
	if pkt.HasDTS() {
		pkt.DTS -= self.base[i]
	}
	return
}

// Base returns the base fixed for stream i, ok is false before its first packet.
func (self *Rebaser) Base(i int) (base int64, ok bool) {
	return self.base[i], self.seen[i]
}

// Restore adds back the base Rebaser subtracted from a stream, so every stream keeps its
// own offset on a timeline shared with other streams.
type Restore struct {
	Rebaser *Rebaser
}

func (self Restore) ModifyPacket(pkt *av.Packet) (drop bool, err error) {
	base, ok := self.Rebaser.Base(pkt.Idx)
	if !ok {
		return
	}
	if pkt.HasPTS() {
		pkt.PTS += base
	}
	if pkt.HasDTS() {
		pkt.DTS += base
	}
	return
}

// Shift adds a fixed per-stream tick offset to both timestamps.
type Shift struct {
	Offsets []int64
}

// NewShift builds a Shift moving every stream by seconds, converted once per stream into
// its own time base.
func NewShift(timebases []av.Rational, seconds float64) *Shift {
	self := &Shift{Offsets: make([]int64, len(timebases))}
	for i, tb := range timebases {
		self.Offsets[i] = tb.ToTicks(seconds)
	}
	return self
}

func (self *Shift) ModifyPacket(pkt *av.Packet) (drop bool, err error) {
	off := self.Offsets[pkt.Idx]
	if pkt.HasPTS() {
		pkt.PTS += off
	}
	if pkt.HasDTS() {
		pkt.DTS += off
	}
	return
}
