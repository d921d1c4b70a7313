//go:build ffmpeg

// Package ffmpegcodec decodes and encodes audio with the libav bindings of joy4. Building it
// needs the ffmpeg development libraries and the ffmpeg build tag.
package ffmpegcodec

import (
	"fmt"

	joyav "github.com/nareix/joy4/av"
	"github.com/nareix/joy4/cgo/ffmpeg"
	"github.com/tyrese/smartcut/av"
	"github.com/tyrese/smartcut/av/avutil"
	"github.com/tyrese/smartcut/av/pktque"
	"github.com/tyrese/smartcut/format/joy"
)

type AudioDecoder struct {
	dec *ffmpeg.AudioDecoder
}

func (self *AudioDecoder) Decode(pkt av.Packet) (frames []av.AudioFrame, err error) {
	var ok bool
	var frame joyav.AudioFrame
	if ok, frame, err = self.dec.Decode(pkt.Data); err != nil || !ok {
		return
	}
	pts, has := pkt.Time()
	if !has {
		pts = av.NoTimestamp
	}
	frames = append(frames, av.AudioFrame{
		PTS:           pts,
		SampleFormat:  joy.SampleFormat(frame.SampleFormat),
		ChannelLayout: joy.ChannelLayout(frame.ChannelLayout),
		SampleCount:   frame.SampleCount,
		SampleRate:    frame.SampleRate,
		Data:          frame.Data,
	})
	return
}

func (self *AudioDecoder) Close() {
	self.dec.Close()
}

// AudioEncoder stamps the packets libav hands back with the times of the frames that went
// in, libav reports none.
type AudioEncoder struct {
	enc      *ffmpeg.AudioEncoder
	codec    joyav.AudioCodecData
	timebase av.Rational
	tl       pktque.Timeline
	stale    int64 // ticks of held samples that belong to a finished window
}

func (self *AudioEncoder) Encode(frame av.AudioFrame) (pkts []av.Packet, err error) {
	self.tl.Push(frame.PTS, frame.DurationTicks(self.timebase))
	var datas [][]byte
	if datas, err = self.enc.Encode(joyav.AudioFrame{
		SampleFormat:  joy.JoySampleFormat(frame.SampleFormat),
		ChannelLayout: joy.JoyChannelLayout(frame.ChannelLayout),
		SampleCount:   frame.SampleCount,
		SampleRate:    frame.SampleRate,
		Data:          frame.Data,
	}); err != nil {
		return
	}
	for _, data := range datas {
		var dur int64
		if d, derr := self.codec.PacketDuration(data); derr == nil {
			dur = self.timebase.Rescale(int64(d), joy.TimeBase)
		}
		pts := self.tl.Pop(dur)
		if self.stale > 0 {
			if self.stale -= dur; dur <= 0 {
				self.stale = 0
			}
			continue
		}
		pkts = append(pkts, av.Packet{PTS: pts, DTS: pts, Duration: dur, IsKeyFrame: true, Data: data})
	}
	return
}

// Flush cannot drain libav, joy4 has no call for it. The samples libav still holds belong
// to the window that just ended: their spans stay on the timeline and the packets carrying
// them are dropped when they come out during the next window.
func (self *AudioEncoder) Flush() (pkts []av.Packet, err error) {
	self.stale = self.tl.Pending()
	return
}

func (self *AudioEncoder) Close() {
	self.enc.Close()
}

func NewAudioCodec(params av.CodecParameters) (dec *AudioDecoder, enc *AudioEncoder, err error) {
	codec, ok := params.Private.(joyav.AudioCodecData)
	if !ok {
		err = fmt.Errorf("ffmpegcodec: %v stream has no joy4 codec data", params.Codec)
		return
	}
	var fdec *ffmpeg.AudioDecoder
	if fdec, err = ffmpeg.NewAudioDecoder(codec); err != nil {
		return
	}
	var fenc *ffmpeg.AudioEncoder
	if fenc, err = ffmpeg.NewAudioEncoderByCodecType(codec.Type()); err != nil {
		fdec.Close()
		return
	}
	fenc.SetSampleRate(codec.SampleRate())
	fenc.SetChannelLayout(codec.ChannelLayout())
	var ecodec joyav.AudioCodecData
	if ecodec, err = fenc.CodecData(); err != nil {
		fdec.Close()
		fenc.Close()
		return
	}
	dec = &AudioDecoder{dec: fdec}
	enc = &AudioEncoder{enc: fenc, codec: ecodec, timebase: params.TimeBase}
	return
}

// Handler registers libav as the audio codec engine. Video streams get no codec.
func Handler(h *avutil.RegisterHandler) {
	h.AudioCodec = func(params av.CodecParameters) (av.AudioDecoder, av.AudioEncoder, error) {
		dec, enc, err := NewAudioCodec(params)
		if err != nil {
			return nil, nil, err
		}
		return dec, enc, nil
	}
}
