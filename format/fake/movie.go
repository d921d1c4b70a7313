package fake

import (
	"fmt"
	"math"
	"sort"

	"github.com/tyrese/smartcut/av"
)

var (
	VideoTimeBase = av.Rational{Num: 1, Den: 90000}
	AudioTimeBase = av.Rational{Num: 1, Den: 48000}
	DataTimeBase  = av.Rational{Num: 1, Den: 1000}
)

// Movie describes a generated input. Streams are laid out video, audio, data.
type Movie struct {
	Duration  float64   // seconds
	FPS       int       // video frame rate, 25 if zero
	Keyframes []float64 // keyframe times in seconds, a frame is key if it is the nearest one
	Audio     bool      // add an AAC stream at 48kHz with 1024 sample packets
	Data      bool      // add a data stream (codec DATA) with one packet per second
	DataCodec av.CodecType
}

// Payload is the packet content the generator writes, unique per stream and packet.
func Payload(stream, n int) []byte {
	return []byte(fmt.Sprintf("s%d/p%06d", stream, n))
}

type timedPacket struct {
	sec float64
	pkt av.Packet
}

// NewMovie returns a demuxer over the generated packets, interleaved by time.
func NewMovie(m Movie) *Demuxer {
	fps := m.FPS
	if fps == 0 {
		fps = 25
	}
	var streams []av.Stream
	var all []timedPacket

	vidx := len(streams)
	streams = append(streams, av.Stream{Index: vidx, Params: av.CodecParameters{
		Kind: av.Video, Codec: av.H264, TimeBase: VideoTimeBase, Width: 640, Height: 360,
	}})
	frameTicks := int64(VideoTimeBase.Den / fps)
	keys := map[int]bool{}
	for _, k := range m.Keyframes {
		keys[int(math.Round(k*float64(fps)))] = true
	}
	for n := 0; float64(n) < m.Duration*float64(fps); n++ {
		pts := int64(n) * frameTicks
		all = append(all, timedPacket{
			sec: VideoTimeBase.ToSeconds(pts),
			pkt: av.Packet{Idx: vidx, PTS: pts, DTS: pts, Duration: frameTicks, IsKeyFrame: keys[n], Data: Payload(vidx, n)},
		})
	}

	if m.Audio {
		aidx := len(streams)
		streams = append(streams, av.Stream{Index: aidx, Params: av.CodecParameters{
			Kind: av.Audio, Codec: av.AAC, TimeBase: AudioTimeBase,
			SampleRate: 48000, SampleFormat: av.FLTP, ChannelLayout: av.CH_STEREO,
		}})
		for n := 0; ; n++ {
			pts := int64(n) * 1024
			sec := AudioTimeBase.ToSeconds(pts)
			if sec >= m.Duration {
				break
			}
			all = append(all, timedPacket{
				sec: sec,
				pkt: av.Packet{Idx: aidx, PTS: pts, DTS: pts, Duration: 1024, IsKeyFrame: true, Data: Payload(aidx, n)},
			})
		}
	}

	if m.Data {
		didx := len(streams)
		codec := m.DataCodec
		if codec == av.UnknownCodec {
			codec = av.DATA
		}
		streams = append(streams, av.Stream{Index: didx, Params: av.CodecParameters{
			Kind: codec.Kind(), Codec: codec, TimeBase: DataTimeBase,
		}})
		for n := 0; float64(n) < m.Duration; n++ {
			pts := int64(n) * 1000
			all = append(all, timedPacket{
				sec: float64(n),
				pkt: av.Packet{Idx: didx, PTS: pts, DTS: pts, Duration: 1000, IsKeyFrame: true, Data: Payload(didx, n)},
			})
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].sec < all[j].sec
	})
	pkts := make([]av.Packet, len(all))
	for i := range all {
		pkts[i] = all[i].pkt
	}
	return NewDemuxer(streams, pkts)
}
