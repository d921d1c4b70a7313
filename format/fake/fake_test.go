package fake

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tyrese/smartcut/av"
)

func TestMovieLayout(t *testing.T) {
	dmx := NewMovie(Movie{Duration: 2, Keyframes: []float64{0, 1}, Audio: true, Data: true})
	streams, err := dmx.Streams()
	require.NoError(t, err)
	require.Len(t, streams, 3)
	assert.Equal(t, av.Video, streams[0].Params.Kind)
	assert.Equal(t, av.Audio, streams[1].Params.Kind)
	assert.Equal(t, av.DATA, streams[2].Params.Codec)

	var keys []int64
	last := map[int]int64{}
	for {
		pkt, err := dmx.ReadPacket()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if prev, ok := last[pkt.Idx]; ok {
			assert.Greater(t, pkt.PTS, prev)
		}
		last[pkt.Idx] = pkt.PTS
		if pkt.Idx == 0 && pkt.IsKeyFrame {
			keys = append(keys, pkt.PTS)
		}
	}
	assert.Equal(t, []int64{0, 90000}, keys)
}

func TestSeekBackward(t *testing.T) {
	dmx := NewMovie(Movie{Duration: 3, Keyframes: []float64{0, 1, 2}})
	require.NoError(t, dmx.Seek(0, VideoTimeBase.ToTicks(1.5), av.SeekBackward))
	pkt, err := dmx.ReadPacket()
	require.NoError(t, err)
	assert.True(t, pkt.IsKeyFrame)
	assert.Equal(t, int64(90000), pkt.PTS)

	require.NoError(t, dmx.Seek(0, VideoTimeBase.ToTicks(2), av.SeekBackward))
	pkt, err = dmx.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, int64(180000), pkt.PTS)
}

func TestSeekNearest(t *testing.T) {
	dmx := NewMovie(Movie{Duration: 3, Keyframes: []float64{0}})
	require.NoError(t, dmx.Seek(0, VideoTimeBase.ToTicks(1.01), av.SeekNearest))
	pkt, err := dmx.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, int64(90000), pkt.PTS)
	assert.False(t, pkt.IsKeyFrame)
	assert.Len(t, dmx.Seeks, 1)
}

func TestMuxerFailAfter(t *testing.T) {
	mux := NewMuxer()
	mux.FailAfter = 1
	_, err := mux.AddStream(av.CodecParameters{Kind: av.Video, Codec: av.H264})
	require.NoError(t, err)
	require.NoError(t, mux.WriteHeader())
	require.NoError(t, mux.WritePacket(av.Packet{Idx: 0}))
	assert.ErrorIs(t, mux.WritePacket(av.Packet{Idx: 0}), ErrInjected)
	_, err = mux.AddStream(av.CodecParameters{})
	assert.Error(t, err)
}
