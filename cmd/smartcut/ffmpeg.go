//go:build ffmpeg

package main

import (
	"github.com/tyrese/smartcut/av/avutil"
	"github.com/tyrese/smartcut/codec/ffmpegcodec"
)

func init() {
	avutil.AddHandler(ffmpegcodec.Handler)
}
