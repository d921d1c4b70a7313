package trim

import (
	"fmt"
	"strings"

	"github.com/tyrese/smartcut/av"
	"github.com/tyrese/smartcut/av/transcode"
)

// Marker is a keyframe time in seconds, or absent.
type Marker struct {
	Seconds float64
	Valid   bool
}

func At(seconds float64) Marker {
	return Marker{Seconds: seconds, Valid: true}
}

func (self Marker) String() string {
	if !self.Valid {
		return "none"
	}
	return fmt.Sprintf("%.3f", self.Seconds)
}

// Markers is the resolved boundary of a job. LastKf is only ever valid together with
// FirstKf, and then later than it.
type Markers struct {
	Start, End      float64
	FirstKf, LastKf Marker
}

func (self Markers) String() string {
	return fmt.Sprintf("start=%.3f first_kf=%v last_kf=%v end=%.3f", self.Start, self.FirstKf, self.LastKf, self.End)
}

func validWindow(start, end float64) error {
	if start < 0 || end <= start {
		return fmt.Errorf("trim: [%.3f, %.3f]: %w", start, end, ErrInvalidWindow)
	}
	return nil
}

// Resolve runs the start (forward) and end (backward) keyframe searches. A start keyframe
// past end counts as none. Equal markers leave LastKf absent.
func Resolve(loc *Locator, start, end float64) (m Markers, err error) {
	m.Start, m.End = start, end
	if err = validWindow(start, end); err != nil {
		return
	}

	var sec float64
	var found bool
	if sec, found, err = loc.locate(start, end, Forward); err != nil || !found {
		return
	}
	m.FirstKf = At(sec)

	if sec, found, err = loc.Locate(end, Backward); err != nil || !found {
		return
	}
	if sec > m.FirstKf.Seconds {
		m.LastKf = At(sec)
	}
	return
}

// Phase is a state of the segment compositor. The zero value is the state before the first
// phase.
type Phase int

const (
	PreRoll Phase = iota + 1
	AlignedCopy
	PostRoll
	Finalized
)

func (self Phase) String() string {
	switch self {
	case PreRoll:
		return "pre-roll"
	case AlignedCopy:
		return "aligned-copy"
	case PostRoll:
		return "post-roll"
	case Finalized:
		return "finalized"
	}
	return "idle"
}

// Step is one phase of a plan. Skipped steps have Run false.
type Step struct {
	Phase  Phase
	Run    bool
	Window transcode.Window
}

func (self Step) String() string {
	if !self.Run {
		return fmt.Sprintf("%-12s skip", self.Phase)
	}
	verb := "transcode"
	if self.Phase == AlignedCopy {
		verb = "copy"
	}
	return fmt.Sprintf("%-12s %-9s %v", self.Phase, verb, self.Window)
}

// Steps returns the pre-roll, aligned copy and post-roll steps implied by the markers.
func (self Markers) Steps() []Step {
	pre := Step{Phase: PreRoll}
	mid := Step{Phase: AlignedCopy}
	post := Step{Phase: PostRoll}

	switch {
	case !self.FirstKf.Valid:
		pre.Run = true
		pre.Window = transcode.Window{Start: self.Start, End: self.End, KeepOverlap: true}

	case !self.LastKf.Valid:
		first := self.FirstKf.Seconds
		if first > self.Start {
			pre.Run = true
			pre.Window = transcode.Window{Start: self.Start, End: first, OpenEnd: true, KeepOverlap: true}
		}
		post.Run = true
		post.Window = transcode.Window{Start: first, End: self.End, KeepOverlap: !pre.Run}

	default:
		first, last := self.FirstKf.Seconds, self.LastKf.Seconds
		if first > self.Start {
			pre.Run = true
			pre.Window = transcode.Window{Start: self.Start, End: first, OpenEnd: true, KeepOverlap: true}
		}
		mid.Run = true
		mid.Window = transcode.Window{Start: first, End: last}
		if self.End > last {
			post.Run = true
			post.Window = transcode.Window{Start: last, End: self.End, OpenStart: true}
		}
	}
	return []Step{pre, mid, post}
}

// Schedule is the outcome of boundary resolution, before any output is written.
type Schedule struct {
	Reference int
	Markers   Markers
	Steps     []Step
}

func (self Schedule) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "reference #%d %v\n", self.Reference, self.Markers)
	for _, step := range self.Steps {
		fmt.Fprintln(&b, step)
	}
	return b.String()
}

// Plan resolves the markers of [start, end] on demuxer and returns the phases a trim would
// run. The demuxer's read cursor is moved.
func Plan(demuxer av.Demuxer, start, end float64) (sched Schedule, err error) {
	return PlanWith(demuxer, start, end, Options{})
}

func PlanWith(demuxer av.Demuxer, start, end float64, options Options) (sched Schedule, err error) {
	if err = validWindow(start, end); err != nil {
		return
	}
	var streams []av.Stream
	if streams, err = demuxer.Streams(); err != nil {
		return
	}
	var ref av.Stream
	if ref, err = referenceStream(streams); err != nil {
		return
	}
	loc := &Locator{
		Demuxer:   demuxer,
		Stream:    ref.Index,
		TimeBase:  ref.Params.TimeBase,
		ScanLimit: options.ScanLimit,
		Logger:    options.Logger,
	}
	sched.Reference = ref.Index
	if sched.Markers, err = Resolve(loc, start, end); err != nil {
		return
	}
	sched.Steps = sched.Markers.Steps()
	return
}

// referenceStream is the first video stream, the one keyframes are searched on.
func referenceStream(streams []av.Stream) (ref av.Stream, err error) {
	for _, stream := range streams {
		if stream.Params.Kind == av.Video {
			ref = stream
			return
		}
	}
	err = fmt.Errorf("trim: no video stream: %w", ErrNotFound)
	return
}
