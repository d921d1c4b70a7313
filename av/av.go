// Package av defines the data model of the trim pipeline: codec parameters, packets and raw
// frames with tick timestamps, and the demux/mux/decode/encode interfaces the pipeline drives.
package av

import (
	"fmt"
	"math"
)

// Media kind of a stream.
type MediaKind uint8

const (
	Other = MediaKind(iota) // subtitles, data, attachments
	Video
	Audio
)

func (self MediaKind) String() string {
	switch self {
	case Video:
		return "video"
	case Audio:
		return "audio"
	default:
		return "other"
	}
}

// Audio sample format.
type SampleFormat uint8

const (
	U8   = SampleFormat(iota + 1) // 8-bit unsigned integer
	S16                           // signed 16-bit integer
	S32                           // signed 32-bit integer
	FLT                           // 32-bit float
	DBL                           // 64-bit float
	U8P                           // 8-bit unsigned integer in planar
	S16P                          // signed 16-bit integer in planar
	S32P                          // signed 32-bit integer in planar
	FLTP                          // 32-bit float in planar
	DBLP                          // 64-bit float in planar
)

func (self SampleFormat) BytesPerSample() int {
	switch self {
	case U8, U8P:
		return 1
	case S16, S16P:
		return 2
	case FLT, FLTP, S32, S32P:
		return 4
	case DBL, DBLP:
		return 8
	default:
		return 0
	}
}

func (self SampleFormat) IsPlanar() bool {
	switch self {
	case U8P, S16P, S32P, FLTP, DBLP:
		return true
	default:
		return false
	}
}

// Audio channel layout.
type ChannelLayout uint16

const (
	CH_FRONT_CENTER = ChannelLayout(1 << iota)
	CH_FRONT_LEFT
	CH_FRONT_RIGHT
	CH_BACK_CENTER
	CH_BACK_LEFT
	CH_BACK_RIGHT
	CH_SIDE_LEFT
	CH_SIDE_RIGHT
	CH_LOW_FREQ

	CH_MONO   = ChannelLayout(CH_FRONT_CENTER)
	CH_STEREO = ChannelLayout(CH_FRONT_LEFT | CH_FRONT_RIGHT)
)

func (self ChannelLayout) Count() (n int) {
	for self != 0 {
		n++
		self = (self - 1) & self
	}
	return
}

func (self ChannelLayout) String() string {
	return fmt.Sprintf("%dch", self.Count())
}

// Codec identifier. The kind a codec belongs to is encoded in the value.
type CodecType uint32

const (
	codecKindShift = 16

	UnknownCodec = CodecType(0)
)

var (
	H264 = MakeCodecType(Video, 1)
	HEVC = MakeCodecType(Video, 2)
	VP9  = MakeCodecType(Video, 3)

	AAC        = MakeCodecType(Audio, 1)
	MP3        = MakeCodecType(Audio, 2)
	OPUS       = MakeCodecType(Audio, 3)
	PCM_MULAW  = MakeCodecType(Audio, 4)
	PCM_ALAW   = MakeCodecType(Audio, 5)
	SPEEX      = MakeCodecType(Audio, 6)
	NELLYMOSER = MakeCodecType(Audio, 7)

	MOV_TEXT = MakeCodecType(Other, 1)
	SUBRIP   = MakeCodecType(Other, 2)
	DATA     = MakeCodecType(Other, 3)
)

var codecNames = map[CodecType]string{
	H264:       "H264",
	HEVC:       "HEVC",
	VP9:        "VP9",
	AAC:        "AAC",
	MP3:        "MP3",
	OPUS:       "OPUS",
	PCM_MULAW:  "PCM_MULAW",
	PCM_ALAW:   "PCM_ALAW",
	SPEEX:      "SPEEX",
	NELLYMOSER: "NELLYMOSER",
	MOV_TEXT:   "MOV_TEXT",
	SUBRIP:     "SUBRIP",
	DATA:       "DATA",
}

// Make a codec type of the given kind.
func MakeCodecType(kind MediaKind, base uint32) CodecType {
	return CodecType(uint32(kind)+1)<<codecKindShift | CodecType(base)
}

func (self CodecType) Kind() MediaKind {
	switch uint32(self>>codecKindShift) - 1 {
	case uint32(Video):
		return Video
	case uint32(Audio):
		return Audio
	default:
		return Other
	}
}

func (self CodecType) IsVideo() bool {
	return self.Kind() == Video
}

func (self CodecType) IsAudio() bool {
	return self.Kind() == Audio
}

func (self CodecType) String() string {
	if name, ok := codecNames[self]; ok {
		return name
	}
	return fmt.Sprintf("codec(%#x)", uint32(self))
}

// CodecParameters describes one stream well enough to clone it into an output container and
// to construct a decoder/encoder pair for it.
type CodecParameters struct {
	Kind     MediaKind
	Codec    CodecType
	TimeBase Rational

	// video
	Width  int
	Height int

	// audio
	SampleRate    int
	SampleFormat  SampleFormat
	ChannelLayout ChannelLayout

	Extradata []byte

	// Private carries the container engine's own codec description, untouched by the pipeline.
	Private interface{}
}

// Stream is one input stream as reported by a Demuxer.
type Stream struct {
	Index  int
	Params CodecParameters
}

// NoTimestamp marks an absent PTS or DTS.
const NoTimestamp = int64(math.MinInt64)

// Packet stores one compressed audio/video/data unit. Timestamps are ticks in the time base
// of the stream the packet belongs to.
type Packet struct {
	Idx        int   // stream index in the container
	PTS        int64 // presentation time, NoTimestamp if absent
	DTS        int64 // decode time, NoTimestamp if absent
	Duration   int64 // ticks, 0 if unknown
	IsKeyFrame bool
	Data       []byte
}

func (self Packet) HasPTS() bool {
	return self.PTS != NoTimestamp
}

func (self Packet) HasDTS() bool {
	return self.DTS != NoTimestamp
}

// Time returns the presentation time, falling back to the decode time.
func (self Packet) Time() (ts int64, ok bool) {
	if self.HasPTS() {
		return self.PTS, true
	}
	if self.HasDTS() {
		return self.DTS, true
	}
	return 0, false
}

// Raw video frame.
type VideoFrame struct {
	PTS    int64
	Width  int
	Height int
	Key    bool
	Data   [][]byte
}

// Raw audio frame.
type AudioFrame struct {
	PTS           int64
	SampleFormat  SampleFormat
	ChannelLayout ChannelLayout
	SampleCount   int
	SampleRate    int
	Data          [][]byte // len(Data) > 1 for planar formats
}

// Planes is the number of entries Data holds: one per channel for planar formats, else one.
func (self AudioFrame) Planes() int {
	if self.SampleFormat.IsPlanar() {
		return self.ChannelLayout.Count()
	}
	return 1
}

// PlaneSize is the byte size of one plane of SampleCount samples.
func (self AudioFrame) PlaneSize() int {
	n := self.SampleCount * self.SampleFormat.BytesPerSample()
	if !self.SampleFormat.IsPlanar() {
		n *= self.ChannelLayout.Count()
	}
	return n
}

// DurationTicks converts the sample count of this frame into ticks of tb.
func (self AudioFrame) DurationTicks(tb Rational) int64 {
	if self.SampleRate <= 0 {
		return 0
	}
	return tb.Rescale(int64(self.SampleCount), Rational{1, self.SampleRate})
}

type PacketWriter interface {
	WritePacket(Packet) error
}

type PacketReader interface {
	ReadPacket() (Packet, error)
}

// How Demuxer.Seek positions the read cursor.
type SeekMode uint8

const (
	SeekBackward = SeekMode(iota + 1) // keyframe at or before the target
	SeekNearest                       // frame nearest to the target
)

func (self SeekMode) String() string {
	switch self {
	case SeekBackward:
		return "backward"
	case SeekNearest:
		return "nearest"
	}
	return "?"
}

// Demuxer reads compressed packets from a container and can reposition its read cursor.
type Demuxer interface {
	PacketReader                                    // io.EOF at end of stream
	Streams() ([]Stream, error)                     // stream list
	Seek(stream int, ts int64, mode SeekMode) error // ts in the stream's time base
	Flush() error                                   // drop read-ahead state after a seek
}

type DemuxCloser interface {
	Demuxer
	Close() error
}

// Muxer writes packets into a container. AddStream is valid only before WriteHeader; the
// header and trailer are each written once.
type Muxer interface {
	AddStream(CodecParameters) (int, error) // returns the output stream index
	WriteHeader() error
	PacketWriter // interleaved write, timestamps in the output stream's time base
	WriteTrailer() error
}

type MuxCloser interface {
	Muxer
	Close() error
}

// VideoDecoder turns compressed packets into frames. A packet may yield zero or more frames.
type VideoDecoder interface {
	Decode(Packet) ([]VideoFrame, error)
	Close()
}

// VideoEncoder turns frames into compressed packets. Flush emits buffered packets and leaves
// the encoder usable.
type VideoEncoder interface {
	Encode(VideoFrame) ([]Packet, error)
	Flush() ([]Packet, error)
	Close()
}

type AudioDecoder interface {
	Decode(Packet) ([]AudioFrame, error)
	Close()
}

type AudioEncoder interface {
	Encode(AudioFrame) ([]Packet, error)
	Flush() ([]Packet, error)
	Close()
}
