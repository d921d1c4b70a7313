// Package fake implements payload preserving video and audio codecs. A decoded frame carries
// the compressed bytes it came from and the encoder writes them back unchanged, so tests can
// follow every frame through a decode/encode round trip.
package fake

import (
	"bytes"
	"fmt"

	"github.com/tyrese/smartcut/av"
	"github.com/tyrese/smartcut/av/avutil"
)

var CodecTypes = []av.CodecType{av.H264, av.HEVC, av.AAC, av.MP3}

// DefaultFrameSize is the sample count of one decoded audio packet.
const DefaultFrameSize = 1024

type VideoDecoder struct {
	gotKey bool
	Closed bool
}

// Decode emits one frame per packet, nothing until the first keyframe.
func (self *VideoDecoder) Decode(pkt av.Packet) (frames []av.VideoFrame, err error) {
	if pkt.IsKeyFrame {
		self.gotKey = true
	}
	if !self.gotKey {
		return
	}
	pts, ok := pkt.Time()
	if !ok {
		pts = av.NoTimestamp
	}
	frames = append(frames, av.VideoFrame{
		PTS:  pts,
		Key:  pkt.IsKeyFrame,
		Data: [][]byte{append([]byte(nil), pkt.Data...)},
	})
	return
}

func (self *VideoDecoder) Close() {
	self.Closed = true
}

type VideoEncoder struct {
	// Delay holds back this many frames before emitting packets.
	Delay    int
	Duration int64 // packet duration in ticks
	queue    []av.VideoFrame
	gop      bool
	Frames   int
	Closed   bool
}

func (self *VideoEncoder) packet(frame av.VideoFrame) av.Packet {
	pkt := av.Packet{
		PTS:        frame.PTS,
		DTS:        frame.PTS,
		Duration:   self.Duration,
		IsKeyFrame: !self.gop,
	}
	if len(frame.Data) > 0 {
		pkt.Data = append([]byte(nil), frame.Data[0]...)
	}
	self.gop = true
	return pkt
}

func (self *VideoEncoder) Encode(frame av.VideoFrame) (pkts []av.Packet, err error) {
	if self.Closed {
		err = fmt.Errorf("fake: encode after close")
		return
	}
	self.Frames++
	self.queue = append(self.queue, frame)
	for len(self.queue) > self.Delay {
		pkts = append(pkts, self.packet(self.queue[0]))
		self.queue = self.queue[1:]
	}
	return
}

// Flush drains the delay queue. The next packet starts a new group of pictures.
func (self *VideoEncoder) Flush() (pkts []av.Packet, err error) {
	for _, frame := range self.queue {
		pkts = append(pkts, self.packet(frame))
	}
	self.queue = self.queue[:0]
	self.gop = false
	return
}

func (self *VideoEncoder) Close() {
	self.Closed = true
}

type AudioDecoder struct {
	SampleRate int
	FrameSize  int
	Closed     bool
}

func (self *AudioDecoder) Decode(pkt av.Packet) (frames []av.AudioFrame, err error) {
	pts, ok := pkt.Time()
	if !ok {
		pts = av.NoTimestamp
	}
	frame := av.AudioFrame{
		PTS:           pts,
		SampleFormat:  av.FLTP,
		ChannelLayout: av.CH_STEREO,
		SampleCount:   self.FrameSize,
		SampleRate:    self.SampleRate,
	}
	// silent planes, the packet payload at the start of the first one
	size := frame.PlaneSize()
	frame.Data = make([][]byte, frame.Planes())
	for i := range frame.Data {
		frame.Data[i] = make([]byte, size)
	}
	if len(pkt.Data) > size {
		frame.Data[0] = make([]byte, len(pkt.Data))
	}
	copy(frame.Data[0], pkt.Data)
	frames = append(frames, frame)
	return
}

func (self *AudioDecoder) Close() {
	self.Closed = true
}

type AudioEncoder struct {
	TimeBase av.Rational
	Frames   int
	Closed   bool
}

func (self *AudioEncoder) Encode(frame av.AudioFrame) (pkts []av.Packet, err error) {
	if self.Closed {
		err = fmt.Errorf("fake: encode after close")
		return
	}
	if len(frame.Data) != frame.Planes() {
		err = fmt.Errorf("fake: %d planes for %v %v", len(frame.Data), frame.SampleFormat, frame.ChannelLayout)
		return
	}
	self.Frames++
	pkt := av.Packet{
		PTS:        frame.PTS,
		DTS:        frame.PTS,
		Duration:   frame.DurationTicks(self.TimeBase),
		IsKeyFrame: true,
	}
	if len(frame.Data) > 0 {
		pkt.Data = bytes.TrimRight(frame.Data[0], "\x00")
		pkt.Data = append([]byte(nil), pkt.Data...)
	}
	pkts = append(pkts, pkt)
	return
}

func (self *AudioEncoder) Flush() (pkts []av.Packet, err error) {
	return
}

func (self *AudioEncoder) Close() {
	self.Closed = true
}

func supported(typ av.CodecType) bool {
	for _, t := range CodecTypes {
		if t == typ {
			return true
		}
	}
	return false
}

func NewVideoCodec(params av.CodecParameters) (dec *VideoDecoder, enc *VideoEncoder, err error) {
	if !params.Codec.IsVideo() || !supported(params.Codec) {
		err = fmt.Errorf("fake: video codec %v unsupported", params.Codec)
		return
	}
	dec = &VideoDecoder{}
	enc = &VideoEncoder{}
	return
}

func NewAudioCodec(params av.CodecParameters) (dec *AudioDecoder, enc *AudioEncoder, err error) {
	if !params.Codec.IsAudio() || !supported(params.Codec) {
		err = fmt.Errorf("fake: audio codec %v unsupported", params.Codec)
		return
	}
	dec = &AudioDecoder{SampleRate: params.SampleRate, FrameSize: DefaultFrameSize}
	enc = &AudioEncoder{TimeBase: params.TimeBase}
	return
}

// Handler registers the fake codecs as a codec engine.
func Handler(h *avutil.RegisterHandler) {
	h.VideoCodec = func(params av.CodecParameters) (av.VideoDecoder, av.VideoEncoder, error) {
		dec, enc, err := NewVideoCodec(params)
		if err != nil {
			return nil, nil, err
		}
		return dec, enc, nil
	}
	h.AudioCodec = func(params av.CodecParameters) (av.AudioDecoder, av.AudioEncoder, error) {
		dec, enc, err := NewAudioCodec(params)
		if err != nil {
			return nil, nil, err
		}
		return dec, enc, nil
	}
}
