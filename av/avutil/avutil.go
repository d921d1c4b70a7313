// Package avutil keeps the registry of container and codec engines and opens files through it.
package avutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tyrese/smartcut/av"
)

var (
	ErrHeaderWritten = errors.New("avutil: header already written")
	ErrNoHeader      = errors.New("avutil: header not written")
	ErrNoHandler     = errors.New("avutil: no handler")
)

// HandlerMuxer guards the one-way header/trailer transitions of the wrapped muxer:
// streams are added before the header, the header and the trailer are each written once.
type HandlerMuxer struct {
	av.MuxCloser
	stage int
}

func NewHandlerMuxer(muxer av.MuxCloser) *HandlerMuxer {
	return &HandlerMuxer{MuxCloser: muxer}
}

func (self *HandlerMuxer) AddStream(params av.CodecParameters) (idx int, err error) {
	if self.stage != 0 {
		err = fmt.Errorf("avutil: add %v stream: %w", params.Codec, ErrHeaderWritten)
		return
	}
	return self.MuxCloser.AddStream(params)
}

func (self *HandlerMuxer) WriteHeader() (err error) {
	if self.stage == 0 {
		if err = self.MuxCloser.WriteHeader(); err != nil {
			return
		}
		self.stage++
	}
	return
}

func (self *HandlerMuxer) WritePacket(pkt av.Packet) (err error) {
	if self.stage != 1 {
		if self.stage == 0 {
			return ErrNoHeader
		}
		return fmt.Errorf("avutil: write packet after trailer")
	}
	return self.MuxCloser.WritePacket(pkt)
}

func (self *HandlerMuxer) WriteTrailer() (err error) {
	if self.stage == 1 {
		self.stage++
		if err = self.MuxCloser.WriteTrailer(); err != nil {
			return
		}
	}
	return
}

func (self *HandlerMuxer) HeaderWritten() bool {
	return self.stage >= 1
}

func (self *HandlerMuxer) TrailerWritten() bool {
	return self.stage >= 2
}

// Close writes the trailer if the header was committed, then releases the muxer.
func (self *HandlerMuxer) Close() (err error) {
	terr := self.WriteTrailer()
	if err = self.MuxCloser.Close(); err != nil {
		return
	}
	return terr
}

type RegisterHandler struct {
	Ext         string // lower case, with the dot
	OpenDemuxer func(path string) (av.DemuxCloser, error)
	CreateMuxer func(path string) (av.MuxCloser, error)
	CodecTypes  []av.CodecType // codecs the container can carry, nil for any
	VideoCodec  func(av.CodecParameters) (av.VideoDecoder, av.VideoEncoder, error)
	AudioCodec  func(av.CodecParameters) (av.AudioDecoder, av.AudioEncoder, error)
}

// CanMux reports whether the handler's container can carry typ.
func (self RegisterHandler) CanMux(typ av.CodecType) bool {
	if self.CodecTypes == nil {
		return true
	}
	for _, t := range self.CodecTypes {
		if t == typ {
			return true
		}
	}
	return false
}

type Handlers struct {
	handlers []RegisterHandler
}

func (self *Handlers) Add(fn func(*RegisterHandler)) {
	handler := &RegisterHandler{}
	fn(handler)
	self.handlers = append(self.handlers, *handler)
}

func extOf(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

func (self *Handlers) Open(path string) (demuxer av.DemuxCloser, err error) {
	if _, err = os.Stat(path); err != nil {
		err = fmt.Errorf("avutil: open %s: %w", path, err)
		return
	}
	ext := extOf(path)
	for _, handler := range self.handlers {
		if handler.Ext == ext && handler.OpenDemuxer != nil {
			return handler.OpenDemuxer(path)
		}
	}
	err = fmt.Errorf("avutil: open %s: %w", path, ErrNoHandler)
	return
}

func (self *Handlers) Create(path string) (muxer *HandlerMuxer, err error) {
	_, muxer, err = self.FindCreate(path)
	return
}

// FindCreate creates the output container and also returns the handler that serves it, so
// callers can check which codecs it can carry.
func (self *Handlers) FindCreate(path string) (handler RegisterHandler, muxer *HandlerMuxer, err error) {
	ext := extOf(path)
	for _, handler = range self.handlers {
		if handler.Ext == ext && handler.CreateMuxer != nil {
			var m av.MuxCloser
			if m, err = handler.CreateMuxer(path); err != nil {
				return
			}
			muxer = NewHandlerMuxer(m)
			return
		}
	}
	handler = RegisterHandler{}
	err = fmt.Errorf("avutil: create %s: %w", path, ErrNoHandler)
	return
}

// NewVideoCodec returns the first decoder/encoder pair a registered codec engine can build
// from params.
func (self *Handlers) NewVideoCodec(params av.CodecParameters) (dec av.VideoDecoder, enc av.VideoEncoder, err error) {
	for _, handler := range self.handlers {
		if handler.VideoCodec != nil {
			if dec, enc, _ = handler.VideoCodec(params); dec != nil && enc != nil {
				return
			}
		}
	}
	err = fmt.Errorf("avutil: video codec %v: %w", params.Codec, ErrNoHandler)
	return
}

func (self *Handlers) NewAudioCodec(params av.CodecParameters) (dec av.AudioDecoder, enc av.AudioEncoder, err error) {
	for _, handler := range self.handlers {
		if handler.AudioCodec != nil {
			if dec, enc, _ = handler.AudioCodec(params); dec != nil && enc != nil {
				return
			}
		}
	}
	err = fmt.Errorf("avutil: audio codec %v: %w", params.Codec, ErrNoHandler)
	return
}

var DefaultHandlers = &Handlers{}

func AddHandler(fn func(*RegisterHandler)) {
	DefaultHandlers.Add(fn)
}

func Open(path string) (demuxer av.DemuxCloser, err error) {
	return DefaultHandlers.Open(path)
}

func Create(path string) (muxer *HandlerMuxer, err error) {
	return DefaultHandlers.Create(path)
}
