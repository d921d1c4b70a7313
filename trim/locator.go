package trim

import (
	"fmt"
	"io"
	"math"

	"github.com/rs/zerolog"
	"github.com/tyrese/smartcut/av"
)

type Direction int

const (
	Forward  Direction = iota // keyframe at or after the target
	Backward                  // keyframe at or before the target
)

func (self Direction) String() string {
	if self == Backward {
		return "backward"
	}
	return "forward"
}

// Locator finds keyframes of one stream, moving the demuxer's read cursor.
type Locator struct {
	Demuxer  av.Demuxer
	Stream   int
	TimeBase av.Rational
	// ScanLimit bounds the packets read per search, 0 for no bound.
	ScanLimit int
	Logger    zerolog.Logger
}

// Locate returns the presentation time of the keyframe nearest to target in direction dir.
// found is false when the scan ran out of packets, in that case the demuxer was flushed.
func (self *Locator) Locate(target float64, dir Direction) (seconds float64, found bool, err error) {
	limit := math.Inf(1)
	if dir == Backward {
		limit = target
	}
	return self.locate(target, limit, dir)
}

// locate scans no further than the first packet of the stream later than limit.
func (self *Locator) locate(target, limit float64, dir Direction) (seconds float64, found bool, err error) {
	ts := self.TimeBase.ToTicks(target)
	mode := av.SeekNearest
	if dir == Backward {
		mode = av.SeekBackward
	}
	if err = self.Demuxer.Seek(self.Stream, ts, mode); err != nil {
		err = fmt.Errorf("trim: locate %v from %.3fs: %w: %w", dir, target, ErrSeek, err)
		return
	}

	var stop int64
	if math.IsInf(limit, 1) {
		stop = math.MaxInt64
	} else {
		stop = self.TimeBase.ToTicks(limit)
	}

	var best int64
	n := 0
	for {
		var pkt av.Packet
		if pkt, err = self.Demuxer.ReadPacket(); err != nil {
			if err != io.EOF {
				return
			}
			err = nil
			break
		}
		n++
		if self.ScanLimit > 0 && n > self.ScanLimit {
			break
		}
		if pkt.Idx != self.Stream {
			continue
		}
		t, ok := pkt.Time()
		if !ok {
			if pkt.IsKeyFrame {
				err = fmt.Errorf("trim: keyframe of stream #%d: %w", self.Stream, ErrMalformedTimestamp)
				return
			}
			continue
		}
		if t > stop {
			break
		}
		if !pkt.IsKeyFrame {
			continue
		}
		if dir == Forward {
			if t >= ts {
				best, found = t, true
				break
			}
			continue
		}
		// backward: the last keyframe not after target wins
		best, found = t, true
	}

	if !found {
		self.Logger.Debug().Stringer("direction", dir).Float64("target", target).Int("scanned", n).Msg("no keyframe")
		if err = self.Demuxer.Flush(); err != nil {
			err = fmt.Errorf("trim: flush: %w: %w", ErrSeek, err)
		}
		return
	}
	seconds = self.TimeBase.ToSeconds(best)
	return
}
