// Package trim cuts a [start, end] window out of a media file, copying the keyframe aligned
// middle as is and re-encoding only the edges before the first and after the last keyframe.
package trim

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tyrese/smartcut/av"
	"github.com/tyrese/smartcut/av/avutil"
	"github.com/tyrese/smartcut/av/transcode"
)

type Options struct {
	// Handlers resolves containers and codecs, avutil.DefaultHandlers if nil.
	Handlers *avutil.Handlers
	// the zero value logs nothing
	Logger zerolog.Logger
	// ScanLimit bounds the packets read by one keyframe search, 0 for no bound.
	ScanLimit int
	// DropUncodable drops audio/video streams without a codec instead of copying them.
	DropUncodable bool
	// CanMux reports the codecs the output container carries. Open takes it from the output
	// handler, New uses this one; nil accepts all.
	CanMux     func(av.CodecType) bool
	OnProgress func(Progress)
}

func (self Options) handlers() *avutil.Handlers {
	if self.Handlers != nil {
		return self.Handlers
	}
	return avutil.DefaultHandlers
}

// Session owns the input and output of one trim job. Close releases them, exactly once.
type Session struct {
	ID         string
	Start, End float64

	demuxer av.DemuxCloser
	muxer   *avutil.HandlerMuxer
	streams []av.Stream
	table   *transcode.Table
	ref     av.Stream
	options Options
	log     zerolog.Logger

	compositor *Compositor
	ran        bool
	closed     bool
}

// Open opens input and creates output through the registered handlers.
func Open(input, output string, start, end float64, options Options) (self *Session, err error) {
	if err = validWindow(start, end); err != nil {
		return
	}
	handlers := options.handlers()

	var demuxer av.DemuxCloser
	if demuxer, err = handlers.Open(input); err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			err = fmt.Errorf("trim: %w: %w", ErrNotFound, err)
		case errors.Is(err, avutil.ErrNoHandler):
			err = fmt.Errorf("trim: %w: %w", ErrUnsupported, err)
		}
		return
	}

	var handler avutil.RegisterHandler
	var muxer *avutil.HandlerMuxer
	if handler, muxer, err = handlers.FindCreate(output); err != nil {
		demuxer.Close()
		if errors.Is(err, avutil.ErrNoHandler) {
			err = fmt.Errorf("trim: %w: %w", ErrUnsupported, err)
		}
		return
	}
	options.CanMux = handler.CanMux

	if self, err = newSession(demuxer, muxer, start, end, options); err != nil {
		muxer.Close()
		demuxer.Close()
	}
	return
}

// New starts a session over an already opened input and output. The session owns both.
func New(demuxer av.DemuxCloser, muxer av.MuxCloser, start, end float64, options Options) (self *Session, err error) {
	if err = validWindow(start, end); err != nil {
		return
	}
	hm, ok := muxer.(*avutil.HandlerMuxer)
	if !ok {
		hm = avutil.NewHandlerMuxer(muxer)
	}
	if self, err = newSession(demuxer, hm, start, end, options); err != nil {
		hm.Close()
		demuxer.Close()
	}
	return
}

func newSession(demuxer av.DemuxCloser, muxer *avutil.HandlerMuxer, start, end float64, options Options) (self *Session, err error) {
	self = &Session{
		ID:      uuid.NewString(),
		Start:   start,
		End:     end,
		demuxer: demuxer,
		muxer:   muxer,
		options: options,
	}
	self.log = options.Logger.With().Str("session", self.ID).Logger()

	if self.streams, err = demuxer.Streams(); err != nil {
		err = fmt.Errorf("trim: read streams: %w", err)
		self = nil
		return
	}
	if self.ref, err = referenceStream(self.streams); err != nil {
		self = nil
		return
	}
	ref := self.ref
	if options.CanMux != nil && !options.CanMux(ref.Params.Codec) {
		err = fmt.Errorf("trim: video stream #%d %v: %w", ref.Index, ref.Params.Codec, ErrUnsupported)
		self = nil
		return
	}
	if !ref.Params.TimeBase.Valid() {
		err = fmt.Errorf("trim: video stream #%d has time base %v: %w", ref.Index, ref.Params.TimeBase, ErrUnsupported)
		self = nil
		return
	}

	handlers := options.handlers()
	topts := transcode.Options{
		CanMux: options.CanMux,
		FindVideoCodec: func(params av.CodecParameters, i int) (av.VideoDecoder, av.VideoEncoder, error) {
			return handlers.NewVideoCodec(params)
		},
		FindAudioCodec: func(params av.CodecParameters, i int) (av.AudioDecoder, av.AudioEncoder, error) {
			return handlers.NewAudioCodec(params)
		},
		DropUncodable: options.DropUncodable,
		Logger:        self.log,
	}
	if self.table, err = transcode.NewTable(self.streams, muxer, topts); err != nil {
		self = nil
		return
	}
	if b := self.table.At(ref.Index); b == nil || !b.Mapped() {
		self.table.Close()
		err = fmt.Errorf("trim: video stream #%d dropped: %w", ref.Index, ErrUnsupported)
		self = nil
		return
	}
	return
}

// Run resolves the keyframe boundaries, writes the header and runs every phase. The
// session must still be closed.
func (self *Session) Run() (report Report, err error) {
	if self.closed {
		err = fmt.Errorf("trim: session closed")
		return
	}
	if self.ran {
		err = fmt.Errorf("trim: session already ran")
		return
	}
	self.ran = true

	ref := self.ref
	loc := &Locator{
		Demuxer:   self.demuxer,
		Stream:    ref.Index,
		TimeBase:  ref.Params.TimeBase,
		ScanLimit: self.options.ScanLimit,
		Logger:    self.log,
	}
	var markers Markers
	if markers, err = Resolve(loc, self.Start, self.End); err != nil {
		return
	}

	if err = self.muxer.WriteHeader(); err != nil {
		err = fmt.Errorf("trim: write header: %w: %w", ErrWrite, err)
		return
	}

	self.compositor = NewCompositor(self.demuxer, self.muxer, self.table, ref.Index, markers)
	self.compositor.Logger = self.log
	self.compositor.OnProgress = self.options.OnProgress
	err = self.compositor.Run()

	report = self.compositor.Report()
	report.Session = self.ID
	for _, b := range self.table.Dropped() {
		report.Dropped = append(report.Dropped, DroppedStream{Index: b.In, Codec: b.Params.Codec, Reason: b.DropReason})
	}
	return
}

// Markers returns the resolved markers. Before Run only the requested window is set.
func (self *Session) Markers() (m Markers) {
	if self.compositor != nil {
		m = self.compositor.Markers()
	} else {
		m.Start, m.End = self.Start, self.End
	}
	return
}

func (self *Session) Bindings() []*transcode.Binding {
	return self.table.Bindings
}

// Close frees the codecs, finalizes the output if its header was written and closes both
// containers. Later calls do nothing.
func (self *Session) Close() (err error) {
	if self.closed {
		return
	}
	self.closed = true
	self.table.Close()
	if self.muxer.HeaderWritten() && !self.muxer.TrailerWritten() {
		self.log.Warn().Msg("closing output without trailer, writing it now")
	}
	err = self.muxer.Close()
	if derr := self.demuxer.Close(); err == nil {
		err = derr
	}
	return
}

func (self *Session) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "session %s\n", self.ID)
	for _, binding := range self.table.Bindings {
		fmt.Fprintf(&b, "  %v\n", binding)
	}
	fmt.Fprintf(&b, "  %v", self.Markers())
	return b.String()
}
