// Package joy reads and writes mp4, ts and flv files with github.com/nareix/joy4.
package joy

import (
	"fmt"
	"io"
	"time"

	joyav "github.com/nareix/joy4/av"
	joyavutil "github.com/nareix/joy4/av/avutil"
	"github.com/nareix/joy4/format/flv"
	"github.com/nareix/joy4/format/mp4"
	"github.com/nareix/joy4/format/ts"
	"github.com/tyrese/smartcut/av"
	"github.com/tyrese/smartcut/av/avutil"
)

var joyHandlers = &joyavutil.Handlers{}

func init() {
	joyHandlers.Add(mp4.Handler)
	joyHandlers.Add(ts.Handler)
	joyHandlers.Add(flv.Handler)
}

type timeSeeker interface {
	SeekToTime(time.Duration) error
}

// Demuxer adapts a joy4 demuxer. Containers that cannot seek are reopened and read forward
// to the requested position.
type Demuxer struct {
	path    string
	src     joyav.DemuxCloser
	codecs  []joyav.CodecData
	streams []av.Stream
	pending []av.Packet
}

func Open(path string) (self *Demuxer, err error) {
	self = &Demuxer{path: path}
	if err = self.open(); err != nil {
		self = nil
		return
	}
	self.streams = make([]av.Stream, len(self.codecs))
	for i, codec := range self.codecs {
		self.streams[i] = av.Stream{Index: i, Params: Params(codec)}
	}
	return
}

func (self *Demuxer) open() (err error) {
	if self.src, err = joyHandlers.Open(self.path); err != nil {
		err = fmt.Errorf("joy: open %s: %w", self.path, err)
		return
	}
	if self.codecs, err = self.src.Streams(); err != nil {
		self.src.Close()
		err = fmt.Errorf("joy: read streams of %s: %w", self.path, err)
		return
	}
	return
}

func (self *Demuxer) Streams() (streams []av.Stream, err error) {
	streams = self.streams
	return
}

func (self *Demuxer) read() (pkt av.Packet, err error) {
	var jpkt joyav.Packet
	if jpkt, err = self.src.ReadPacket(); err != nil {
		return
	}
	var codec joyav.CodecData
	if int(jpkt.Idx) < len(self.codecs) {
		codec = self.codecs[jpkt.Idx]
	}
	pkt = FromPacket(jpkt, codec)
	return
}

func (self *Demuxer) ReadPacket() (pkt av.Packet, err error) {
	if len(self.pending) > 0 {
		pkt = self.pending[0]
		self.pending = self.pending[1:]
		return
	}
	return self.read()
}

func (self *Demuxer) seeker() timeSeeker {
	if hd, ok := self.src.(*joyavutil.HandlerDemuxer); ok {
		if s, ok := hd.Demuxer.(timeSeeker); ok {
			return s
		}
	}
	if s, ok := self.src.(timeSeeker); ok {
		return s
	}
	return nil
}

func (self *Demuxer) rewind() (err error) {
	self.pending = nil
	self.src.Close()
	return self.open()
}

// Seek positions the cursor on stream at a time in TimeBase. mp4 seeks to the sync sample
// before ts in both modes.
func (self *Demuxer) Seek(stream int, ts int64, mode av.SeekMode) (err error) {
	if stream < 0 || stream >= len(self.streams) {
		return fmt.Errorf("joy: seek on stream #%d", stream)
	}
	ts = TimeBase.Rescale(ts, self.streams[stream].Params.TimeBase)
	if s := self.seeker(); s != nil {
		self.pending = nil
		if ts < 0 {
			ts = 0
		}
		return s.SeekToTime(time.Duration(ts))
	}

	if err = self.rewind(); err != nil {
		return
	}
	switch mode {
	case av.SeekNearest:
		err = self.skipTo(stream, ts)
	default:
		err = self.skipToKeyframe(stream, ts)
	}
	return
}

// skipTo drops packets up to the first packet of stream at or after ts.
func (self *Demuxer) skipTo(stream int, ts int64) (err error) {
	for {
		var pkt av.Packet
		if pkt, err = self.read(); err != nil {
			if err == io.EOF {
				err = nil
			}
			return
		}
		if t, ok := pkt.Time(); ok && pkt.Idx == stream && t >= ts {
			self.pending = []av.Packet{pkt}
			return
		}
	}
}

// skipToKeyframe keeps the packets from the last keyframe of stream at or before ts, up to
// the first packet of stream after ts.
func (self *Demuxer) skipToKeyframe(stream int, ts int64) (err error) {
	var buf []av.Packet
	found := false
	for {
		var pkt av.Packet
		if pkt, err = self.read(); err != nil {
			if err != io.EOF {
				return
			}
			err = nil
			break
		}
		t, ok := pkt.Time()
		if pkt.Idx == stream && ok {
			if pkt.IsKeyFrame && t <= ts {
				buf = buf[:0]
				found = true
			} else if t > ts {
				buf = append(buf, pkt)
				break
			}
		}
		if found {
			buf = append(buf, pkt)
		}
	}
	if !found {
		return self.rewind()
	}
	self.pending = buf
	return
}

func (self *Demuxer) Flush() (err error) {
	self.pending = nil
	return
}

func (self *Demuxer) Close() (err error) {
	return self.src.Close()
}

// Muxer adapts a joy4 muxer. Streams must come from a joy4 demuxer, the codec data they
// carry is what the container header is written from.
type Muxer struct {
	dst    joyav.MuxCloser
	codecs []joyav.CodecData
	tbs    []av.Rational
}

func Create(path string) (self *Muxer, err error) {
	var dst joyav.MuxCloser
	if dst, err = joyHandlers.Create(path); err != nil {
		err = fmt.Errorf("joy: create %s: %w", path, err)
		return
	}
	self = &Muxer{dst: dst}
	return
}

func (self *Muxer) AddStream(params av.CodecParameters) (idx int, err error) {
	codec, ok := params.Private.(joyav.CodecData)
	if !ok {
		err = fmt.Errorf("joy: %v stream has no joy4 codec data", params.Codec)
		return
	}
	idx = len(self.codecs)
	self.codecs = append(self.codecs, codec)
	self.tbs = append(self.tbs, params.TimeBase)
	return
}

func (self *Muxer) WriteHeader() (err error) {
	return self.dst.WriteHeader(self.codecs)
}

func (self *Muxer) WritePacket(pkt av.Packet) (err error) {
	if pkt.Idx < 0 || pkt.Idx >= len(self.tbs) {
		return fmt.Errorf("joy: write packet on stream #%d", pkt.Idx)
	}
	return self.dst.WritePacket(ToPacket(pkt, self.tbs[pkt.Idx]))
}

func (self *Muxer) WriteTrailer() (err error) {
	return self.dst.WriteTrailer()
}

func (self *Muxer) Close() (err error) {
	return self.dst.Close()
}

type container struct {
	ext   string
	types []joyav.CodecType
}

var containers = []container{
	{".mp4", mp4.CodecTypes},
	{".ts", ts.CodecTypes},
	{".flv", flv.CodecTypes},
}

// Register adds the mp4, ts and flv containers to h.
func Register(h *avutil.Handlers) {
	for _, c := range containers {
		c := c
		h.Add(func(handler *avutil.RegisterHandler) {
			handler.Ext = c.ext
			handler.CodecTypes = CodecTypes(c.types)
			handler.OpenDemuxer = func(path string) (av.DemuxCloser, error) {
				dmx, err := Open(path)
				if err != nil {
					return nil, err
				}
				return dmx, nil
			}
			handler.CreateMuxer = func(path string) (av.MuxCloser, error) {
				mux, err := Create(path)
				if err != nil {
					return nil, err
				}
				return mux, nil
			}
		})
	}
}
