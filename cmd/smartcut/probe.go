package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/tyrese/smartcut/av"
	"github.com/tyrese/smartcut/av/avutil"
)

var (
	probeInput     string
	probeKeyframes int
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "List the streams of a media file and the keyframes of its video stream",
	RunE: func(cmd *cobra.Command, args []string) error {
		demuxer, err := avutil.Open(probeInput)
		if err != nil {
			return err
		}
		defer demuxer.Close()
		return probe(cmd.OutOrStdout(), demuxer, probeKeyframes)
	},
}

func init() {
	probeCmd.Flags().StringVarP(&probeInput, "input", "i", "", "input file (required)")
	probeCmd.Flags().IntVar(&probeKeyframes, "keyframes", 20, "keyframe times to print, 0 for none, -1 for all")
	probeCmd.MarkFlagRequired("input")
}

type streamInfo struct {
	packets   int
	keyframes int
	first     int64
	last      int64
}

// probe reads the whole input, printing per stream packet counts and the times of the first
// maxKeyframes keyframes of the first video stream.
func probe(w io.Writer, demuxer av.Demuxer, maxKeyframes int) (err error) {
	var streams []av.Stream
	if streams, err = demuxer.Streams(); err != nil {
		return
	}
	ref := -1
	for _, stream := range streams {
		if ref < 0 && stream.Params.Kind == av.Video {
			ref = stream.Index
		}
	}

	infos := make([]streamInfo, len(streams))
	for i := range infos {
		infos[i].first, infos[i].last = av.NoTimestamp, av.NoTimestamp
	}
	var keyframes []float64
	for {
		var pkt av.Packet
		if pkt, err = demuxer.ReadPacket(); err != nil {
			if err == io.EOF {
				err = nil
				break
			}
			return
		}
		if pkt.Idx < 0 || pkt.Idx >= len(infos) {
			continue
		}
		info := &infos[pkt.Idx]
		info.packets++
		ts, ok := pkt.Time()
		if ok {
			if info.first == av.NoTimestamp || ts < info.first {
				info.first = ts
			}
			if info.last == av.NoTimestamp || ts > info.last {
				info.last = ts
			}
		}
		if pkt.IsKeyFrame {
			info.keyframes++
			if pkt.Idx == ref && ok {
				keyframes = append(keyframes, streams[ref].Params.TimeBase.ToSeconds(ts))
			}
		}
	}

	for i, stream := range streams {
		info := infos[i]
		tb := stream.Params.TimeBase
		fmt.Fprintf(w, "#%d %-5v %-6v tb=%v packets=%d keyframes=%d", stream.Index, stream.Params.Kind, stream.Params.Codec, tb, info.packets, info.keyframes)
		if info.first != av.NoTimestamp {
			fmt.Fprintf(w, " range=[%.3f, %.3f]", tb.ToSeconds(info.first), tb.ToSeconds(info.last))
		}
		fmt.Fprintln(w)
	}

	if ref < 0 || maxKeyframes == 0 {
		return
	}
	n := len(keyframes)
	if maxKeyframes > 0 && n > maxKeyframes {
		n = maxKeyframes
	}
	fmt.Fprintf(w, "keyframes of #%d:", ref)
	for _, t := range keyframes[:n] {
		fmt.Fprintf(w, " %.3f", t)
	}
	if n < len(keyframes) {
		fmt.Fprintf(w, " ... (%d more)", len(keyframes)-n)
	}
	fmt.Fprintln(w)
	return
}
