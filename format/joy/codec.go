package joy

import (
	"time"

	joyav "github.com/nareix/joy4/av"
	"github.com/tyrese/smartcut/av"
)

// TimeBase of every stream read or written through joy4, whose packet times are
// time.Duration values.
var TimeBase = av.Rational{Num: 1, Den: int(time.Second)}

var codecTypes = map[joyav.CodecType]av.CodecType{
	joyav.H264:       av.H264,
	joyav.AAC:        av.AAC,
	joyav.PCM_MULAW:  av.PCM_MULAW,
	joyav.PCM_ALAW:   av.PCM_ALAW,
	joyav.SPEEX:      av.SPEEX,
	joyav.NELLYMOSER: av.NELLYMOSER,
}

var sampleFormats = map[joyav.SampleFormat]av.SampleFormat{
	joyav.U8:   av.U8,
	joyav.S16:  av.S16,
	joyav.S32:  av.S32,
	joyav.FLT:  av.FLT,
	joyav.DBL:  av.DBL,
	joyav.U8P:  av.U8P,
	joyav.S16P: av.S16P,
	joyav.S32P: av.S32P,
	joyav.FLTP: av.FLTP,
	joyav.DBLP: av.DBLP,
}

func CodecType(typ joyav.CodecType) av.CodecType {
	if t, ok := codecTypes[typ]; ok {
		return t
	}
	return av.UnknownCodec
}

// CodecTypes maps a joy4 container's codec list, nil stays nil.
func CodecTypes(types []joyav.CodecType) (out []av.CodecType) {
	if types == nil {
		return
	}
	out = []av.CodecType{}
	for _, typ := range types {
		if t := CodecType(typ); t != av.UnknownCodec {
			out = append(out, t)
		}
	}
	return
}

func SampleFormat(f joyav.SampleFormat) av.SampleFormat {
	return sampleFormats[f]
}

// ChannelLayout converts a joy4 layout, both use the same bit per channel.
func ChannelLayout(l joyav.ChannelLayout) av.ChannelLayout {
	return av.ChannelLayout(l)
}

// Params describes a joy4 stream. The codec data is kept in Private, the muxer needs it back.
func Params(codec joyav.CodecData) (params av.CodecParameters) {
	typ := codec.Type()
	params.Codec = CodecType(typ)
	params.TimeBase = TimeBase
	params.Private = codec

	switch {
	case typ.IsAudio():
		params.Kind = av.Audio
	case params.Codec != av.UnknownCodec:
		params.Kind = params.Codec.Kind()
	default:
		params.Kind = av.Video
	}

	if vcodec, ok := codec.(interface {
		Width() int
		Height() int
	}); ok && params.Kind == av.Video {
		params.Width = vcodec.Width()
		params.Height = vcodec.Height()
	}
	if acodec, ok := codec.(joyav.AudioCodecData); ok {
		params.SampleRate = acodec.SampleRate()
		params.SampleFormat = SampleFormat(acodec.SampleFormat())
		params.ChannelLayout = ChannelLayout(acodec.ChannelLayout())
	}

	switch c := codec.(type) {
	case interface{ AVCDecoderConfRecordBytes() []byte }:
		params.Extradata = c.AVCDecoderConfRecordBytes()
	case interface{ MPEG4AudioConfigBytes() []byte }:
		params.Extradata = c.MPEG4AudioConfigBytes()
	}
	return
}

// FromPacket converts a joy4 packet. Time is the decode time, the presentation time is
// Time plus CompositionTime.
func FromPacket(pkt joyav.Packet, codec joyav.CodecData) (out av.Packet) {
	out = av.Packet{
		Idx:        int(pkt.Idx),
		DTS:        int64(pkt.Time),
		PTS:        int64(pkt.Time + pkt.CompositionTime),
		IsKeyFrame: pkt.IsKeyFrame,
		Data:       pkt.Data,
	}
	if acodec, ok := codec.(joyav.AudioCodecData); ok {
		if dur, err := acodec.PacketDuration(pkt.Data); err == nil {
			out.Duration = int64(dur)
		}
	}
	return
}

// ToPacket converts a packet with timestamps in tb. joy4 containers cannot hold times
// before zero, those are clamped.
func ToPacket(pkt av.Packet, tb av.Rational) (out joyav.Packet) {
	dts, pts := pkt.DTS, pkt.PTS
	if dts == av.NoTimestamp {
		dts = pts
	}
	if pts == av.NoTimestamp {
		pts = dts
	}
	dts = TimeBase.Rescale(dts, tb)
	pts = TimeBase.Rescale(pts, tb)
	if dts < 0 {
		dts = 0
	}
	if pts < dts {
		pts = dts
	}
	out = joyav.Packet{
		Idx:             int8(pkt.Idx),
		Time:            time.Duration(dts),
		CompositionTime: time.Duration(pts - dts),
		IsKeyFrame:      pkt.IsKeyFrame,
		Data:            pkt.Data,
	}
	return
}

// JoySampleFormat is the inverse of SampleFormat.
func JoySampleFormat(f av.SampleFormat) joyav.SampleFormat {
	for jf, af := range sampleFormats {
		if af == f {
			return jf
		}
	}
	return 0
}

func JoyChannelLayout(l av.ChannelLayout) joyav.ChannelLayout {
	return joyav.ChannelLayout(l)
}
