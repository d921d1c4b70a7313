package trim

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tyrese/smartcut/av"
	"github.com/tyrese/smartcut/av/pktque"
	"github.com/tyrese/smartcut/av/transcode"
)

type Progress struct {
	Phase   Phase
	Seconds float64 // position on the output timeline
}

// Compositor drives the phases of one job over a shared read cursor. All phases write onto
// one output timeline whose origin is the requested start. Muxer must have its header
// written; the compositor writes the trailer.
type Compositor struct {
	Demuxer    av.Demuxer
	Muxer      av.Muxer
	Table      *transcode.Table
	Reference  int
	Logger     zerolog.Logger
	OnProgress func(Progress)

	markers Markers
	phase   Phase
	report  Report
}

func NewCompositor(demuxer av.Demuxer, muxer av.Muxer, table *transcode.Table, reference int, markers Markers) *Compositor {
	return &Compositor{
		Demuxer:   demuxer,
		Muxer:     muxer,
		Table:     table,
		Reference: reference,
		Logger:    zerolog.Nop(),
		markers:   markers,
	}
}

func (self *Compositor) Phase() Phase {
	return self.phase
}

func (self *Compositor) Markers() Markers {
	return self.markers
}

// SetMarkers replaces the markers, it fails once the first phase was entered.
func (self *Compositor) SetMarkers(m Markers) error {
	if self.phase != 0 {
		return fmt.Errorf("trim: set markers in %v: %w", self.phase, ErrMarkersFrozen)
	}
	self.markers = m
	return nil
}

func (self *Compositor) Report() Report {
	return self.report
}

// enter moves the state machine forward to p.
func (self *Compositor) enter(p Phase) error {
	if p <= self.phase {
		return fmt.Errorf("trim: enter %v from %v", p, self.phase)
	}
	self.phase = p
	return nil
}

// Run executes every phase in order and finalizes the output. On a phase failure the trailer
// is still attempted and the phase error is returned.
func (self *Compositor) Run() (err error) {
	if self.phase != 0 {
		return fmt.Errorf("trim: compositor already ran")
	}
	self.report = newReport(self.markers)
	self.Logger.Info().Stringer("markers", self.markers).Msg("boundaries resolved")

	for _, step := range self.markers.Steps() {
		if err = self.enter(step.Phase); err != nil {
			return
		}
		pr := PhaseReport{Phase: step.Phase, Ran: step.Run, Window: step.Window}
		if !step.Run {
			self.Logger.Debug().Stringer("phase", step.Phase).Msg("phase skipped")
			self.report.Phases = append(self.report.Phases, pr)
			continue
		}
		self.Logger.Debug().Stringer("phase", step.Phase).Stringer("window", step.Window).Msg("phase entered")
		pr.Stats, err = self.run(step)
		self.report.Phases = append(self.report.Phases, pr)
		if err != nil {
			self.abort(err)
			return
		}
		self.Logger.Debug().Stringer("phase", step.Phase).Int("packets", pr.Packets).Int("bytes", pr.Bytes).Msg("phase done")
	}

	if err = self.enter(Finalized); err != nil {
		return
	}
	if err = self.Muxer.WriteTrailer(); err != nil {
		err = fmt.Errorf("trim: write trailer: %w: %w", ErrWrite, err)
	}
	return
}

func (self *Compositor) abort(cause error) {
	self.phase = Finalized
	if err := self.Muxer.WriteTrailer(); err != nil {
		self.Logger.Warn().Err(err).AnErr("cause", cause).Msg("trailer write failed while aborting")
		return
	}
	self.Logger.Warn().Err(cause).Msg("job aborted, output finalized")
}

func (self *Compositor) progress(p Phase) func(float64) {
	if self.OnProgress == nil {
		return nil
	}
	start := self.markers.Start
	return func(seconds float64) {
		self.OnProgress(Progress{Phase: p, Seconds: seconds - start})
	}
}

func (self *Compositor) run(step Step) (stats transcode.Stats, err error) {
	outtb := self.Table.OutTimeBases()
	start := self.markers.Start

	if step.Phase == AlignedCopy {
		// copy output starts at zero per stream, each stream is put back at its own first
		// packet time on the output timeline
		rebase := pktque.NewRebaser(self.Table.OutStreams())
		filter := pktque.Filters{pktque.Restore{Rebaser: rebase}, pktque.NewShift(outtb, -start)}
		engine := &CopyEngine{
			Demuxer:   self.Demuxer,
			Table:     self.Table,
			Writer:    pktque.FilterWriter{PacketWriter: self.Muxer, Filter: filter},
			Reference: self.Reference,
			Logger:    self.Logger,
			Progress:  self.progress(step.Phase),
			Rebaser:   rebase,
		}
		return engine.Run(step.Window.Start, step.Window.End)
	}

	engine := &transcode.Engine{
		Demuxer:   self.Demuxer,
		Table:     self.Table,
		Writer:    pktque.FilterWriter{PacketWriter: self.Muxer, Filter: pktque.NewShift(outtb, -start)},
		Reference: self.Reference,
		Logger:    self.Logger,
		Progress:  self.progress(step.Phase),
	}
	return engine.Run(step.Window)
}
