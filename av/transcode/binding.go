package transcode

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tyrese/smartcut/av"
)

// Unmapped is the output index of a dropped stream.
const Unmapped = -1

// Codec is the per-stream processing variant chosen once when the table is built:
// *VideoCodec, *AudioCodec or Passthrough.
type Codec interface {
	isCodec()
	Close()
}

type VideoCodec struct {
	Dec         av.VideoDecoder
	Enc         av.VideoEncoder
	InTimeBase  av.Rational
	OutTimeBase av.Rational
}

type AudioCodec struct {
	Dec         av.AudioDecoder
	Enc         av.AudioEncoder
	InTimeBase  av.Rational
	OutTimeBase av.Rational
}

// Passthrough streams are only ever copied.
type Passthrough struct{}

func (*VideoCodec) isCodec() {}
func (*AudioCodec) isCodec() {}
func (Passthrough) isCodec() {}

func (self *VideoCodec) Close() {
	if self.Enc != nil {
		self.Enc.Close()
		self.Enc = nil
	}
	if self.Dec != nil {
		self.Dec.Close()
		self.Dec = nil
	}
}

func (self *AudioCodec) Close() {
	if self.Enc != nil {
		self.Enc.Close()
		self.Enc = nil
	}
	if self.Dec != nil {
		self.Dec.Close()
		self.Dec = nil
	}
}

func (Passthrough) Close() {}

// Binding ties one input stream to its output slot.
type Binding struct {
	In         int
	Out        int // Unmapped if dropped
	Params     av.CodecParameters
	Codec      Codec // nil when dropped
	DropReason string
}

func (self *Binding) Mapped() bool {
	return self.Out != Unmapped
}

func (self *Binding) String() string {
	if !self.Mapped() {
		return fmt.Sprintf("#%d %v %v -> dropped (%s)", self.In, self.Params.Kind, self.Params.Codec, self.DropReason)
	}
	mode := "copy"
	switch self.Codec.(type) {
	case *VideoCodec, *AudioCodec:
		mode = "copy+transcode"
	}
	return fmt.Sprintf("#%d %v %v -> #%d %s", self.In, self.Params.Kind, self.Params.Codec, self.Out, mode)
}

type Options struct {
	// CanMux reports whether the output container can carry the codec. nil accepts all.
	CanMux func(av.CodecType) bool
	// create the decoder and encoder of a stream from its parameters
	FindVideoCodec func(params av.CodecParameters, i int) (av.VideoDecoder, av.VideoEncoder, error)
	FindAudioCodec func(params av.CodecParameters, i int) (av.AudioDecoder, av.AudioEncoder, error)
	// DropUncodable drops audio/video streams no codec can be built for, instead of
	// mapping them for straight copy.
	DropUncodable bool
	Logger        zerolog.Logger
}

// Table is the stream binding table, indexed by input stream index.
type Table struct {
	Bindings []*Binding
	nout     int
	outtb    []av.Rational
}

// NewTable binds every input stream, adding the mapped ones to muxer with parameters cloned
// from the input. Streams that cannot be carried are dropped without error.
func NewTable(streams []av.Stream, muxer av.Muxer, options Options) (_self *Table, err error) {
	self := &Table{}
	log := options.Logger

	defer func() {
		if err != nil {
			self.Close()
		}
	}()

	for _, stream := range streams {
		params := stream.Params
		b := &Binding{In: stream.Index, Out: Unmapped, Params: params}
		self.Bindings = append(self.Bindings, b)

		if options.CanMux != nil && !options.CanMux(params.Codec) {
			b.DropReason = "codec not supported by output container"
			log.Info().Int("stream", b.In).Stringer("codec", params.Codec).Msg("dropping stream")
			continue
		}

		switch params.Kind {
		case av.Video:
			if options.FindVideoCodec != nil {
				dec, enc, ferr := options.FindVideoCodec(params, stream.Index)
				if ferr == nil && dec != nil && enc != nil {
					b.Codec = &VideoCodec{Dec: dec, Enc: enc, InTimeBase: params.TimeBase, OutTimeBase: params.TimeBase}
				}
			}
		case av.Audio:
			if options.FindAudioCodec != nil {
				dec, enc, ferr := options.FindAudioCodec(params, stream.Index)
				if ferr == nil && dec != nil && enc != nil {
					b.Codec = &AudioCodec{Dec: dec, Enc: enc, InTimeBase: params.TimeBase, OutTimeBase: params.TimeBase}
				}
			}
		default:
			b.Codec = Passthrough{}
		}

		if b.Codec == nil {
			if options.DropUncodable {
				b.DropReason = "no codec"
				log.Info().Int("stream", b.In).Stringer("codec", params.Codec).Msg("dropping stream")
				continue
			}
			log.Warn().Int("stream", b.In).Stringer("codec", params.Codec).
				Msg("no codec, stream edges will be copied without re-encoding")
			b.Codec = Passthrough{}
		}

		if b.Out, err = muxer.AddStream(params); err != nil {
			b.Out = Unmapped
			err = fmt.Errorf("transcode: add output stream for #%d: %w", b.In, err)
			return
		}
		self.nout++
		for len(self.outtb) <= b.Out {
			self.outtb = append(self.outtb, av.Rational{})
		}
		self.outtb[b.Out] = params.TimeBase
		log.Debug().Str("binding", b.String()).Msg("mapped stream")
	}

	_self = self
	return
}

// At returns the binding of input stream i, nil if i is out of range.
func (self *Table) At(i int) *Binding {
	if i < 0 || i >= len(self.Bindings) {
		return nil
	}
	return self.Bindings[i]
}

// OutTimeBases returns the time base of every output stream, indexed by output index.
func (self *Table) OutTimeBases() []av.Rational {
	return self.outtb
}

func (self *Table) OutStreams() int {
	return self.nout
}

func (self *Table) Dropped() (dropped []*Binding) {
	for _, b := range self.Bindings {
		if !b.Mapped() {
			dropped = append(dropped, b)
		}
	}
	return
}

// Close frees every decoder and encoder of the table.
func (self *Table) Close() {
	for _, b := range self.Bindings {
		if b.Codec != nil {
			b.Codec.Close()
		}
	}
}
