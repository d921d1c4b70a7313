package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/tyrese/smartcut/config"
	"github.com/tyrese/smartcut/logging"
	"github.com/tyrese/smartcut/trim"
)

var (
	trimInput  string
	trimOutput string
	trimStart  string
	trimEnd    string
	trimQuiet  bool
)

var trimCmd = &cobra.Command{
	Use:   "trim",
	Short: "Cut a time window out of a media file",
	Long: `Cut the [start, end] window out of the input file.

Timestamps are seconds (12.5) or clock positions (00:01:12.5). Only the frames before the
first and after the last keyframe of the window are re-encoded, the rest is copied.

Example:
  smartcut trim --input talk.mp4 --output clip.mp4 --start 00:05:30 --end 00:07:00`,
	RunE: runTrim,
}

func init() {
	trimCmd.Flags().StringVarP(&trimInput, "input", "i", "", "input file (required)")
	trimCmd.Flags().StringVarP(&trimOutput, "output", "o", "", "output file (required)")
	trimCmd.Flags().StringVar(&trimStart, "start", "", "window start (required)")
	trimCmd.Flags().StringVar(&trimEnd, "end", "", "window end (required)")
	trimCmd.Flags().BoolVarP(&trimQuiet, "quiet", "q", false, "do not show a progress bar")
	trimCmd.MarkFlagRequired("input")
	trimCmd.MarkFlagRequired("output")
	trimCmd.MarkFlagRequired("start")
	trimCmd.MarkFlagRequired("end")
}

func parseWindow(startArg, endArg string) (start, end float64, err error) {
	if start, err = parseTimestamp(startArg); err != nil {
		err = fmt.Errorf("--start: %w", err)
		return
	}
	if end, err = parseTimestamp(endArg); err != nil {
		err = fmt.Errorf("--end: %w", err)
		return
	}
	return
}

// sessionOptions maps the configuration onto the options of a trim session.
func sessionOptions(cfg *config.Config) trim.Options {
	return trim.Options{
		Logger:        logging.WithComponent("trim"),
		ScanLimit:     cfg.KeyframeScanLimit,
		DropUncodable: !cfg.CopyUnmappedVideo,
	}
}

func newProgressBar(w io.Writer, seconds float64) *progressbar.ProgressBar {
	return progressbar.NewOptions64(int64(seconds*1000),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("trimming"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "▐",
			BarEnd:        "▌",
		}),
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)
}

// trackProgress moves bar to the output position of every progress event. Positions only
// grow within a phase; the bar never moves back.
func trackProgress(bar *progressbar.ProgressBar) func(trim.Progress) {
	var last int64
	return func(p trim.Progress) {
		pos := int64(p.Seconds * 1000)
		if pos <= last {
			return
		}
		last = pos
		bar.Describe(p.Phase.String())
		bar.Set64(pos)
	}
}

func runTrim(cmd *cobra.Command, args []string) error {
	cfg := config.FromContext(cmd.Context())

	start, end, err := parseWindow(trimStart, trimEnd)
	if err != nil {
		return err
	}

	options := sessionOptions(cfg)
	var bar *progressbar.ProgressBar
	if cfg.Progress && !trimQuiet {
		bar = newProgressBar(os.Stderr, end-start)
		options.OnProgress = trackProgress(bar)
	}

	session, err := trim.Open(trimInput, trimOutput, start, end, options)
	if err != nil {
		return err
	}
	log.Info().Str("session", session.ID).Str("input", trimInput).Str("output", trimOutput).
		Float64("start", start).Float64("end", end).Msg("trimming")

	report, err := session.Run()
	if bar != nil {
		bar.Finish()
	}
	if cerr := session.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), report.String())
	return nil
}
