package main

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tyrese/smartcut/av/avutil"
	"github.com/tyrese/smartcut/config"
	"github.com/tyrese/smartcut/format/joy"
	"github.com/tyrese/smartcut/logging"
)

var (
	cfgFile  string
	logLevel string
	noColor  bool
)

func main() {
	ctx := context.Background()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "smartcut",
	Short:        "smartcut - frame accurate trimming without a full re-encode",
	Long:         "Cuts a time window out of a media file, re-encoding only the few frames before the first and after the last keyframe inside the window and copying everything between them.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if noColor {
			cfg.NoColor = true
		}
		logging.Init(cfg.LogLevel, cfg.NoColor)
		log.Debug().Str("config", cfgFile).Msg("configuration loaded")

		ctx := config.WithConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)
		return nil
	},
}

func init() {
	joy.Register(avutil.DefaultHandlers)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./smartcut.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored log output")

	rootCmd.AddCommand(trimCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(configCmd)
}
