package trim

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/tyrese/smartcut/av"
	"github.com/tyrese/smartcut/av/pktque"
	"github.com/tyrese/smartcut/av/transcode"
)

// CopyEngine moves the packets of a keyframe aligned range to the writer untouched, with
// every output stream rebased to start at zero.
type CopyEngine struct {
	Demuxer   av.Demuxer
	Table     *transcode.Table
	Writer    av.PacketWriter // receives packets with output stream indices
	Reference int
	Logger    zerolog.Logger
	Progress  func(seconds float64)
	// Rebaser records the base removed from every output stream, a new one is used if nil
	Rebaser *pktque.Rebaser
}

type copyStream struct {
	b      *transcode.Binding
	lo, hi int64
}

// Run copies [start, end]. Reading stops at the first packet later than end.
func (self *CopyEngine) Run(start, end float64) (stats transcode.Stats, err error) {
	ref := self.Table.At(self.Reference)
	if ref == nil {
		err = fmt.Errorf("trim: reference stream #%d not in table", self.Reference)
		return
	}
	if err = self.Demuxer.Seek(ref.In, ref.Params.TimeBase.ToTicks(start), av.SeekBackward); err != nil {
		err = fmt.Errorf("trim: copy: %w: %w", ErrSeek, err)
		return
	}

	streams := make([]*copyStream, len(self.Table.Bindings))
	for i, b := range self.Table.Bindings {
		if b.Mapped() {
			tb := b.Params.TimeBase
			streams[i] = &copyStream{b: b, lo: tb.ToTicks(start), hi: tb.ToTicks(end)}
		}
	}
	// lives as long as this phase
	rebase := self.Rebaser
	if rebase == nil {
		rebase = pktque.NewRebaser(self.Table.OutStreams())
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
		if pkt.Idx < 0 || pkt.Idx >= len(streams) || streams[pkt.Idx] == nil {
			continue
		}
		st := streams[pkt.Idx]

		ts, ok := pkt.Time()
		if !ok {
			// only the first packet of a stream may be placed at zero
			if _, seen := rebase.Base(st.b.Out); seen {
				err = fmt.Errorf("trim: copy stream #%d: %w", st.b.In, ErrMalformedTimestamp)
				return
			}
			ts = st.lo
			pkt.PTS, pkt.DTS = st.lo, st.lo
		}
		if ts < st.lo {
			continue
		}
		if ts > st.hi {
			break
		}
		if self.Progress != nil && st.b.In == self.Reference {
			self.Progress(st.b.Params.TimeBase.ToSeconds(ts))
		}

		pkt.Idx = st.b.Out
		if _, err = rebase.ModifyPacket(&pkt); err != nil {
			return
		}
		if err = self.Writer.WritePacket(pkt); err != nil {
			err = fmt.Errorf("trim: copy: %w: stream #%d: %w", ErrWrite, pkt.Idx, err)
			return
		}
		stats.Packets++
		stats.Bytes += len(pkt.Data)
	}

	self.Logger.Debug().Float64("start", start).Float64("end", end).Int("packets", stats.Packets).Msg("range copied")
	return
}
