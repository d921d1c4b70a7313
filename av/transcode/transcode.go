// Package transcode binds input streams to output slots and re-encodes the frames of a time
// window around the keyframe-aligned part of a trim.
package transcode

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/tyrese/smartcut/av"
)

var (
	ErrSeek               = errors.New("seek failed")
	ErrWrite              = errors.New("write failed")
	ErrMalformedTimestamp = errors.New("packet has neither pts nor dts")
)

// Window is a time range in seconds. Open ends exclude the boundary itself.
type Window struct {
	Start, End         float64
	OpenStart, OpenEnd bool
	// KeepOverlap marks the first window of the output. It keeps audio frames that begin
	// before Start but still sound after it, and opens streams copied without a codec on
	// the keyframe before Start.
	KeepOverlap bool
}

func (self Window) String() string {
	l, r := "[", "]"
	if self.OpenStart {
		l = "("
	}
	if self.OpenEnd {
		r = ")"
	}
	return fmt.Sprintf("%s%.3f, %.3f%s", l, self.Start, self.End, r)
}

// span is a Window converted to the ticks of one stream.
type span struct {
	lo, hi             int64
	openStart, openEnd bool
	overlap            bool
}

func (self Window) ticks(tb av.Rational) span {
	return span{
		lo:        tb.ToTicks(self.Start),
		hi:        tb.ToTicks(self.End),
		openStart: self.OpenStart,
		openEnd:   self.OpenEnd,
		overlap:   self.KeepOverlap,
	}
}

func (self span) before(ts int64) bool {
	if self.openStart {
		return ts <= self.lo
	}
	return ts < self.lo
}

func (self span) after(ts int64) bool {
	if self.openEnd {
		return ts >= self.hi
	}
	return ts > self.hi
}

type Stats struct {
	Packets int // packets written
	Frames  int // frames submitted to encoders
	Bytes   int
}

// Engine re-encodes a window of the input. The decoders and encoders in Table are shared by
// every Run and never reset between them.
type Engine struct {
	Demuxer   av.Demuxer
	Table     *Table
	Writer    av.PacketWriter // receives packets with output stream indices
	Reference int             // input stream the read cursor is positioned on
	Logger    zerolog.Logger
	Progress  func(seconds float64)
}

type streamState struct {
	b    *Binding
	span span
	done bool
	// head is set on audio/video streams copied without a codec in the first window of
	// the output, they must open on a keyframe
	head  bool
	keyed bool
}

// Run decodes from the keyframe at or before w.Start, drops frames outside w, encodes the
// rest and writes the result. It stops as soon as every transcoded stream has passed w.End.
func (self *Engine) Run(w Window) (stats Stats, err error) {
	ref := self.Table.At(self.Reference)
	if ref == nil {
		err = fmt.Errorf("transcode: reference stream #%d not in table", self.Reference)
		return
	}
	if err = self.Demuxer.Seek(ref.In, ref.Params.TimeBase.ToTicks(w.Start), av.SeekBackward); err != nil {
		err = fmt.Errorf("transcode: %w: %w", ErrSeek, err)
		return
	}

	states := make([]*streamState, len(self.Table.Bindings))
	pending := 0
	for i, b := range self.Table.Bindings {
		if !b.Mapped() {
			continue
		}
		st := &streamState{b: b, span: w.ticks(b.Params.TimeBase)}
		switch b.Codec.(type) {
		case *VideoCodec, *AudioCodec:
			pending++
		default:
			st.head = w.KeepOverlap && b.Params.Kind != av.Other
		}
		states[i] = st
	}
	hasCodecs := pending > 0
	passed := false

	write := func(pkt av.Packet, out int) (err error) {
		pkt.Idx = out
		if err = self.Writer.WritePacket(pkt); err != nil {
			return fmt.Errorf("transcode: %w: stream #%d: %w", ErrWrite, out, err)
		}
		stats.Packets++
		stats.Bytes += len(pkt.Data)
		return
	}

	for {
		var pkt av.Packet
		if pkt, err = self.Demuxer.ReadPacket(); err != nil {
			if err == io.EOF {
				err = nil
				break
			}
			return
		}
		if pkt.Idx < 0 || pkt.Idx >= len(states) {
			continue
		}
		st := states[pkt.Idx]
		if st == nil || st.done {
			continue
		}

		ts, ok := pkt.Time()
		if !ok {
			err = fmt.Errorf("transcode: stream #%d: %w", pkt.Idx, ErrMalformedTimestamp)
			return
		}

		switch codec := st.b.Codec.(type) {
		case *VideoCodec:
			if err = self.video(st, codec, pkt, write, &stats); err != nil {
				return
			}
			if st.done {
				pending--
			}
		case *AudioCodec:
			if err = self.audio(st, codec, pkt, write, &stats); err != nil {
				return
			}
			if st.done {
				pending--
			}
		default:
			if st.span.after(ts) {
				st.done = true
				passed = true
				break
			}
			if st.head {
				if !st.keyed && !pkt.IsKeyFrame {
					break
				}
				if st.span.before(ts) {
					if st.b.Params.Kind != av.Video {
						break
					}
					// frames the window needs to decode, pinned to its start
					clamp(&pkt, st.span.lo)
				}
				st.keyed = true
			} else if st.span.before(ts) {
				break
			}
			if err = write(pkt, st.b.Out); err != nil {
				return
			}
		}

		if hasCodecs && pending == 0 || !hasCodecs && passed {
			break
		}
	}

	for _, st := range states {
		if st == nil {
			continue
		}
		var pkts []av.Packet
		switch codec := st.b.Codec.(type) {
		case *VideoCodec:
			pkts, err = codec.Enc.Flush()
		case *AudioCodec:
			pkts, err = codec.Enc.Flush()
		}
		if err != nil {
			err = fmt.Errorf("transcode: flush stream #%d: %w", st.b.In, err)
			return
		}
		for _, pkt := range pkts {
			if err = write(pkt, st.b.Out); err != nil {
				return
			}
		}
	}

	self.Logger.Debug().Stringer("window", w).Int("packets", stats.Packets).Int("frames", stats.Frames).Msg("window transcoded")
	return
}

func clamp(pkt *av.Packet, lo int64) {
	if pkt.HasDTS() && pkt.DTS < lo {
		pkt.DTS = lo
	}
	if pkt.HasPTS() && pkt.PTS < lo {
		pkt.PTS = lo
	}
}

func (self *Engine) video(st *streamState, codec *VideoCodec, pkt av.Packet, write func(av.Packet, int) error, stats *Stats) (err error) {
	var frames []av.VideoFrame
	if frames, err = codec.Dec.Decode(pkt); err != nil {
		return fmt.Errorf("transcode: decode stream #%d: %w", st.b.In, err)
	}
	for _, frame := range frames {
		if frame.PTS == av.NoTimestamp {
			continue
		}
		if st.span.before(frame.PTS) {
			continue
		}
		if st.span.after(frame.PTS) {
			st.done = true
			break
		}
		if self.Progress != nil && st.b.In == self.Reference {
			self.Progress(codec.InTimeBase.ToSeconds(frame.PTS))
		}
		frame.PTS = codec.OutTimeBase.Rescale(frame.PTS, codec.InTimeBase)
		var pkts []av.Packet
		if pkts, err = codec.Enc.Encode(frame); err != nil {
			return fmt.Errorf("transcode: encode stream #%d: %w", st.b.In, err)
		}
		stats.Frames++
		for _, out := range pkts {
			if err = write(out, st.b.Out); err != nil {
				return
			}
		}
	}
	return
}

func (self *Engine) audio(st *streamState, codec *AudioCodec, pkt av.Packet, write func(av.Packet, int) error, stats *Stats) (err error) {
	var frames []av.AudioFrame
	if frames, err = codec.Dec.Decode(pkt); err != nil {
		return fmt.Errorf("transcode: decode stream #%d: %w", st.b.In, err)
	}
	for _, frame := range frames {
		if frame.PTS == av.NoTimestamp {
			continue
		}
		if st.span.overlap {
			// an audio frame spans SampleCount samples, it is kept while any of them is inside
			if end := frame.PTS + frame.DurationTicks(codec.InTimeBase); end <= st.span.lo {
				continue
			}
		} else if st.span.before(frame.PTS) {
			continue
		}
		if st.span.after(frame.PTS) {
			st.done = true
			break
		}
		frame.PTS = codec.OutTimeBase.Rescale(frame.PTS, codec.InTimeBase)
		var pkts []av.Packet
		if pkts, err = codec.Enc.Encode(frame); err != nil {
			return fmt.Errorf("transcode: encode stream #%d: %w", st.b.In, err)
		}
		stats.Frames++
		for _, out := range pkts {
			if err = write(out, st.b.Out); err != nil {
				return
			}
		}
	}
	return
}
