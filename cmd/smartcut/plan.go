package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tyrese/smartcut/av/avutil"
	"github.com/tyrese/smartcut/config"
	"github.com/tyrese/smartcut/trim"
)

var (
	planInput string
	planStart string
	planEnd   string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the keyframe boundaries and phases of a trim without writing anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		start, end, err := parseWindow(planStart, planEnd)
		if err != nil {
			return err
		}
		demuxer, err := avutil.Open(planInput)
		if err != nil {
			return err
		}
		defer demuxer.Close()

		sched, err := trim.PlanWith(demuxer, start, end, sessionOptions(cfg))
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), sched.String())
		return nil
	},
}

func init() {
	planCmd.Flags().StringVarP(&planInput, "input", "i", "", "input file (required)")
	planCmd.Flags().StringVar(&planStart, "start", "", "window start (required)")
	planCmd.Flags().StringVar(&planEnd, "end", "", "window end (required)")
	planCmd.MarkFlagRequired("input")
	planCmd.MarkFlagRequired("start")
	planCmd.MarkFlagRequired("end")
}
