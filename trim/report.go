package trim

import (
	"fmt"
	"math"
	"strings"

	"github.com/tyrese/smartcut/av"
	"github.com/tyrese/smartcut/av/transcode"
)

type PhaseReport struct {
	Phase  Phase
	Ran    bool
	Window transcode.Window
	transcode.Stats
}

type DroppedStream struct {
	Index  int
	Codec  av.CodecType
	Reason string
}

// Report describes a finished job.
type Report struct {
	Session string
	Markers Markers
	Phases  []PhaseReport
	Dropped []DroppedStream
	// distance in ms from the requested edges to the copied range, -1 when nothing was copied
	StartDeltaMs int64
	EndDeltaMs   int64
}

func newReport(m Markers) Report {
	r := Report{Markers: m, StartDeltaMs: -1, EndDeltaMs: -1}
	if m.FirstKf.Valid && m.LastKf.Valid {
		r.StartDeltaMs = int64(math.Round((m.FirstKf.Seconds - m.Start) * 1000))
		r.EndDeltaMs = int64(math.Round((m.End - m.LastKf.Seconds) * 1000))
	}
	return r
}

// Phase returns the report of phase p.
func (self *Report) Phase(p Phase) (pr PhaseReport, ok bool) {
	for _, pr = range self.Phases {
		if pr.Phase == p {
			ok = true
			return
		}
	}
	pr = PhaseReport{}
	return
}

// Copied is the number of packets written without re-encoding.
func (self *Report) Copied() int {
	pr, _ := self.Phase(AlignedCopy)
	return pr.Packets
}

// Transcoded is the number of packets written by the encoders and passthrough streams of the
// pre-roll and post-roll.
func (self *Report) Transcoded() (n int) {
	for _, pr := range self.Phases {
		if pr.Phase != AlignedCopy {
			n += pr.Packets
		}
	}
	return
}

func (self *Report) String() string {
	var b strings.Builder
	if self.Session != "" {
		fmt.Fprintf(&b, "session %s\n", self.Session)
	}
	fmt.Fprintf(&b, "%v\n", self.Markers)
	for _, pr := range self.Phases {
		if !pr.Ran {
			fmt.Fprintf(&b, "  %-12s skipped\n", pr.Phase)
			continue
		}
		fmt.Fprintf(&b, "  %-12s %v packets=%d frames=%d bytes=%d\n", pr.Phase, pr.Window, pr.Packets, pr.Frames, pr.Bytes)
	}
	for _, d := range self.Dropped {
		fmt.Fprintf(&b, "  dropped #%d %v: %s\n", d.Index, d.Codec, d.Reason)
	}
	if self.StartDeltaMs >= 0 {
		fmt.Fprintf(&b, "  keyframe delta start=%dms end=%dms\n", self.StartDeltaMs, self.EndDeltaMs)
	}
	return b.String()
}
