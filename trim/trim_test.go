package trim

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tyrese/smartcut/av"
	"github.com/tyrese/smartcut/av/avutil"
	"github.com/tyrese/smartcut/codec/fake"
	fakefmt "github.com/tyrese/smartcut/format/fake"
)

func testHandlers() *avutil.Handlers {
	h := &avutil.Handlers{}
	h.Add(fake.Handler)
	return h
}

func frameNumber(t *testing.T, pkt av.Packet) (n int) {
	_, err := fmt.Sscanf(string(pkt.Data), "s0/p%d", &n)
	require.NoError(t, err)
	return
}

func trimMovie(t *testing.T, m fakefmt.Movie, start, end float64, options Options) (*fakefmt.Demuxer, *fakefmt.Muxer, Report, error) {
	dmx := fakefmt.NewMovie(m)
	mux := fakefmt.NewMuxer()
	if options.Handlers == nil {
		options.Handlers = testHandlers()
	}
	s, err := New(dmx, mux, start, end, options)
	require.NoError(t, err)
	report, err := s.Run()
	require.NoError(t, s.Close())
	return dmx, mux, report, err
}

func assertMonotonic(t *testing.T, mux *fakefmt.Muxer) {
	for i := range mux.Streams {
		var last int64
		for j, pkt := range mux.Stream(i) {
			if j > 0 {
				assert.GreaterOrEqual(t, pkt.DTS, last, "stream #%d packet %d", i, j)
			}
			last = pkt.DTS
		}
	}
}

func TestLocate(t *testing.T) {
	dmx := fakefmt.NewMovie(fakefmt.Movie{Duration: 12, Keyframes: []float64{0, 5, 10}})
	loc := &Locator{Demuxer: dmx, Stream: 0, TimeBase: fakefmt.VideoTimeBase}

	sec, ok, err := loc.Locate(3, Forward)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 5.0, sec)

	sec, ok, err = loc.Locate(8, Backward)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 5.0, sec)

	sec, ok, err = loc.Locate(10, Backward)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 10.0, sec)

	sec, ok, err = loc.Locate(5, Forward)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 5.0, sec)

	assert.Zero(t, dmx.Flushes)
	_, ok, err = loc.Locate(11, Forward)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, dmx.Flushes, "a failed search flushes the demuxer")
}

func TestLocateScanLimit(t *testing.T) {
	dmx := fakefmt.NewMovie(fakefmt.Movie{Duration: 12, Keyframes: []float64{0, 10}})
	loc := &Locator{Demuxer: dmx, Stream: 0, TimeBase: fakefmt.VideoTimeBase, ScanLimit: 10}
	_, ok, err := loc.Locate(3, Forward)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, dmx.Flushes)
}

func TestLocateSeekFailure(t *testing.T) {
	dmx := fakefmt.NewMovie(fakefmt.Movie{Duration: 2, Keyframes: []float64{0}})
	dmx.SeekErr = fakefmt.ErrInjected
	loc := &Locator{Demuxer: dmx, Stream: 0, TimeBase: fakefmt.VideoTimeBase}
	_, _, err := loc.Locate(1, Backward)
	assert.ErrorIs(t, err, ErrSeek)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name        string
		keyframes   []float64
		start, end  float64
		first, last Marker
	}{
		{"copy range", []float64{0, 2, 4, 6, 8}, 1, 7, At(2), At(6)},
		{"equal markers", []float64{0, 5, 10}, 3, 8, At(5), Marker{}},
		{"between keyframes", []float64{0, 10}, 2, 4, Marker{}, Marker{}},
		{"start on keyframe", []float64{0, 2, 4}, 2, 5, At(2), At(4)},
		{"past the end", []float64{0, 5}, 20, 30, Marker{}, Marker{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dmx := fakefmt.NewMovie(fakefmt.Movie{Duration: 12, Keyframes: tt.keyframes})
			loc := &Locator{Demuxer: dmx, Stream: 0, TimeBase: fakefmt.VideoTimeBase}
			m, err := Resolve(loc, tt.start, tt.end)
			require.NoError(t, err)
			assert.Equal(t, tt.first, m.FirstKf)
			assert.Equal(t, tt.last, m.LastKf)
		})
	}
}

func TestSteps(t *testing.T) {
	steps := Markers{Start: 1, End: 7, FirstKf: At(2), LastKf: At(6)}.Steps()
	require.Len(t, steps, 3)
	assert.True(t, steps[0].Run)
	assert.Equal(t, "[1.000, 2.000)", steps[0].Window.String())
	assert.Equal(t, "[2.000, 6.000]", steps[1].Window.String())
	assert.Equal(t, "(6.000, 7.000]", steps[2].Window.String())

	steps = Markers{Start: 2, End: 6, FirstKf: At(2), LastKf: At(6)}.Steps()
	assert.False(t, steps[0].Run)
	assert.True(t, steps[1].Run)
	assert.False(t, steps[2].Run)

	steps = Markers{Start: 3, End: 8, FirstKf: At(5)}.Steps()
	assert.Equal(t, "[3.000, 5.000)", steps[0].Window.String())
	assert.False(t, steps[1].Run)
	assert.Equal(t, "[5.000, 8.000]", steps[2].Window.String())
	assert.False(t, steps[2].Window.KeepOverlap)

	steps = Markers{Start: 2, End: 4}.Steps()
	assert.Equal(t, "[2.000, 4.000]", steps[0].Window.String())
	assert.True(t, steps[0].Window.KeepOverlap)
	assert.False(t, steps[1].Run)
	assert.False(t, steps[2].Run)
}

func TestTrimThreePhases(t *testing.T) {
	movie := fakefmt.Movie{Duration: 10, Keyframes: []float64{0, 2, 4, 6, 8}, Audio: true}
	src := fakefmt.NewMovie(movie)
	dmx, mux, report, err := trimMovie(t, movie, 1, 7.3, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, mux.Headers)
	assert.Equal(t, 1, mux.Trailers)
	assert.True(t, mux.Closed)
	assert.True(t, dmx.Closed)
	require.Len(t, report.Phases, 3)
	for _, pr := range report.Phases {
		assert.True(t, pr.Ran, "%v", pr.Phase)
	}
	assert.Equal(t, int64(1000), report.StartDeltaMs)
	assert.Equal(t, int64(1300), report.EndDeltaMs)

	// every video frame of the window, once, placed at its distance from start
	video := mux.Stream(0)
	require.Len(t, video, 182-25+1)
	for i, pkt := range video {
		n := frameNumber(t, pkt)
		assert.Equal(t, 25+i, n)
		assert.Equal(t, int64(n-25)*3600, pkt.PTS, "frame %d", n)
	}
	last := video[len(video)-1]
	assert.InDelta(t, 6.3, fakefmt.VideoTimeBase.ToSeconds(last.PTS+last.Duration), 0.04+1e-9)
	assertMonotonic(t, mux)

	// the copied range is bit identical to the source
	var srcHash, outHash = sha256.New(), sha256.New()
	copied := 0
	for _, pkt := range src.Packets() {
		if pkt.Idx != 0 {
			continue
		}
		if pkt.PTS >= 2*90000 && pkt.PTS <= 6*90000 {
			srcHash.Write(pkt.Data)
			copied++
		}
	}
	for _, pkt := range video {
		if n := frameNumber(t, pkt); n >= 50 && n <= 150 {
			outHash.Write(pkt.Data)
		}
	}
	assert.Equal(t, 101, copied)
	assert.Equal(t, srcHash.Sum(nil), outHash.Sum(nil))

	audioCopied := 0
	for _, pkt := range src.Packets() {
		if pkt.Idx == 1 && pkt.PTS >= 2*48000 && pkt.PTS <= 6*48000 {
			audioCopied++
		}
	}
	assert.Equal(t, copied+audioCopied, report.Copied())
	assert.NotZero(t, report.Transcoded())
}

func TestTrimCopiedAudioKeepsOffset(t *testing.T) {
	movie := fakefmt.Movie{Duration: 10, Keyframes: []float64{0, 2, 4, 6, 8}, Audio: true}
	_, mux, _, err := trimMovie(t, movie, 1, 7.3, Options{})
	require.NoError(t, err)

	// the first copied audio packet starts at 94*1024/48000 = 2.0053s, 1.0053s after start
	var found bool
	for _, pkt := range mux.Stream(1) {
		if string(pkt.Data) == string(fakefmt.Payload(1, 94)) {
			assert.Equal(t, int64(94*1024-48000), pkt.PTS)
			assert.Equal(t, int64(94*1024-48000), pkt.DTS)
			found = true
			break
		}
	}
	assert.True(t, found)
	assertMonotonic(t, mux)
}

func TestTrimWithoutCodecsOpensOnKeyframe(t *testing.T) {
	movie := fakefmt.Movie{Duration: 10, Keyframes: []float64{0, 2, 4, 6, 8}}
	_, mux, report, err := trimMovie(t, movie, 1, 7, Options{Handlers: &avutil.Handlers{}})
	require.NoError(t, err)
	assert.Equal(t, 101, report.Copied())
	assert.Equal(t, 75, report.Transcoded())

	// frames 0..24 lie before start, they are kept so frame 25 decodes and pinned to zero
	video := mux.Stream(0)
	require.Len(t, video, 176)
	assert.True(t, video[0].IsKeyFrame)
	for i, pkt := range video {
		n := frameNumber(t, pkt)
		assert.Equal(t, i, n)
		want := int64(n-25) * 3600
		if want < 0 {
			want = 0
		}
		assert.Equal(t, want, pkt.PTS, "frame %d", n)
	}
	assertMonotonic(t, mux)
}

func TestTrimEqualMarkers(t *testing.T) {
	movie := fakefmt.Movie{Duration: 12, Keyframes: []float64{0, 5, 10}, Audio: true}
	_, mux, report, err := trimMovie(t, movie, 3, 8, Options{})
	require.NoError(t, err)

	assert.Equal(t, At(5), report.Markers.FirstKf)
	assert.False(t, report.Markers.LastKf.Valid)
	pre, _ := report.Phase(PreRoll)
	mid, _ := report.Phase(AlignedCopy)
	post, _ := report.Phase(PostRoll)
	assert.True(t, pre.Ran)
	assert.False(t, mid.Ran)
	assert.True(t, post.Ran)
	assert.Zero(t, report.Copied())
	assert.Equal(t, int64(-1), report.StartDeltaMs)

	video := mux.Stream(0)
	require.Len(t, video, 200-75+1)
	for i, pkt := range video {
		assert.Equal(t, 75+i, frameNumber(t, pkt))
	}
	assert.Equal(t, 1, mux.Headers)
	assert.Equal(t, 1, mux.Trailers)
	assertMonotonic(t, mux)
}

func TestTrimWithoutKeyframe(t *testing.T) {
	movie := fakefmt.Movie{Duration: 12, Keyframes: []float64{0, 10}}
	_, mux, report, err := trimMovie(t, movie, 2, 4, Options{})
	require.NoError(t, err)

	assert.False(t, report.Markers.FirstKf.Valid)
	assert.False(t, report.Markers.LastKf.Valid)
	pre, _ := report.Phase(PreRoll)
	assert.True(t, pre.Ran)
	assert.Equal(t, "[2.000, 4.000]", pre.Window.String())
	assert.Equal(t, pre.Packets, report.Transcoded())

	video := mux.Stream(0)
	require.Len(t, video, 51)
	assert.Equal(t, 50, frameNumber(t, video[0]))
	assert.Equal(t, int64(0), video[0].PTS)
	assert.True(t, video[0].IsKeyFrame)
	assert.Equal(t, 1, mux.Trailers)
}

func TestTrimEmptyOutput(t *testing.T) {
	movie := fakefmt.Movie{Duration: 12, Keyframes: []float64{0, 5}}
	_, mux, report, err := trimMovie(t, movie, 20, 30, Options{})
	require.NoError(t, err)
	assert.Empty(t, mux.Packets)
	assert.Equal(t, 1, mux.Headers)
	assert.Equal(t, 1, mux.Trailers)
	assert.Zero(t, report.Copied())
}

func TestTrimDropsUnsupportedStream(t *testing.T) {
	movie := fakefmt.Movie{Duration: 10, Keyframes: []float64{0, 2, 4, 6, 8}, Audio: true, Data: true, DataCodec: av.SUBRIP}
	options := Options{CanMux: func(typ av.CodecType) bool {
		return typ != av.SUBRIP
	}}
	_, mux, report, err := trimMovie(t, movie, 1, 7, options)
	require.NoError(t, err)

	require.Len(t, mux.Streams, 2)
	assert.Equal(t, av.H264, mux.Streams[0].Codec)
	assert.Equal(t, av.AAC, mux.Streams[1].Codec)
	require.Len(t, report.Dropped, 1)
	assert.Equal(t, 2, report.Dropped[0].Index)
	assert.Equal(t, av.SUBRIP, report.Dropped[0].Codec)
	for _, pkt := range mux.Packets {
		assert.Less(t, pkt.Idx, 2)
	}
}

func TestTrimCopiesDataStream(t *testing.T) {
	movie := fakefmt.Movie{Duration: 10, Keyframes: []float64{0, 2, 4, 6, 8}, Data: true}
	_, mux, _, err := trimMovie(t, movie, 1, 7, Options{})
	require.NoError(t, err)

	// one data packet per second in [1, 7]
	data := mux.Stream(1)
	require.Len(t, data, 7)
	for i, pkt := range data {
		assert.Equal(t, fakefmt.Payload(1, i+1), pkt.Data)
		assert.Equal(t, int64(i)*1000, pkt.PTS)
	}
}

func TestTrimWriteFailureFinalizes(t *testing.T) {
	dmx := fakefmt.NewMovie(fakefmt.Movie{Duration: 10, Keyframes: []float64{0, 2, 4, 6, 8}})
	mux := fakefmt.NewMuxer()
	mux.FailAfter = 30
	s, err := New(dmx, mux, 1, 7, Options{Handlers: testHandlers()})
	require.NoError(t, err)

	_, err = s.Run()
	assert.ErrorIs(t, err, ErrWrite)
	assert.ErrorIs(t, err, fakefmt.ErrInjected)
	assert.Equal(t, 1, mux.Trailers, "trailer attempted on abort")

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, mux.Trailers)
	assert.True(t, mux.Closed)
	assert.True(t, dmx.Closed)
}

func TestTrimTrailerFailureOnAbortKeepsCause(t *testing.T) {
	dmx := fakefmt.NewMovie(fakefmt.Movie{Duration: 10, Keyframes: []float64{0, 2}})
	mux := fakefmt.NewMuxer()
	mux.FailAfter = 0
	mux.FailTrailer = true
	s, err := New(dmx, mux, 1, 3, Options{Handlers: testHandlers()})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Run()
	assert.ErrorIs(t, err, ErrWrite)
	assert.Equal(t, 1, mux.Trailers)
}

func TestInvalidWindow(t *testing.T) {
	_, err := Open("/does/not/exist.fake", "out.fake", 5, 5, Options{})
	assert.ErrorIs(t, err, ErrInvalidWindow)
	_, err = Open("/does/not/exist.fake", "out.fake", 5, 4, Options{})
	assert.ErrorIs(t, err, ErrInvalidWindow)
	_, err = Open("/does/not/exist.fake", "out.fake", -1, 4, Options{})
	assert.ErrorIs(t, err, ErrInvalidWindow)

	dmx := fakefmt.NewMovie(fakefmt.Movie{Duration: 1, Keyframes: []float64{0}})
	_, err = New(dmx, fakefmt.NewMuxer(), 1, 0.5, Options{})
	assert.ErrorIs(t, err, ErrInvalidWindow)
	assert.Empty(t, dmx.Seeks)
}

func TestOpenMissingInput(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.fake"), "out.fake", 0, 1, Options{Handlers: testHandlers()})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNoVideoStream(t *testing.T) {
	streams := []av.Stream{{Index: 0, Params: av.CodecParameters{Kind: av.Audio, Codec: av.AAC, TimeBase: av.Rational{Num: 1, Den: 48000}}}}
	dmx := fakefmt.NewDemuxer(streams, nil)
	mux := fakefmt.NewMuxer()
	_, err := New(dmx, mux, 0, 1, Options{Handlers: testHandlers()})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, dmx.Closed)
	assert.True(t, mux.Closed)
	assert.Zero(t, mux.Headers)
}

func TestOpenThroughHandlers(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.fake")
	output := filepath.Join(dir, "out.fake")
	require.NoError(t, os.WriteFile(input, nil, 0o644))

	store := fakefmt.NewStore(".fake")
	dmx := fakefmt.NewMovie(fakefmt.Movie{Duration: 6, Keyframes: []float64{0, 2, 4}, Audio: true})
	store.Inputs[input] = dmx
	handlers := testHandlers()
	handlers.Add(store.Handler)

	s, err := Open(input, output, 1, 5, Options{Handlers: handlers})
	require.NoError(t, err)
	assert.Contains(t, s.String(), "copy+transcode")
	assert.Contains(t, s.String(), "first_kf=none")

	report, err := s.Run()
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.Equal(t, s.ID, report.Session)
	assert.Equal(t, At(2), s.Markers().FirstKf)
	assert.Equal(t, At(4), s.Markers().LastKf)

	mux := store.Outputs[output]
	require.NotNil(t, mux)
	assert.Equal(t, 1, mux.Trailers)
	assert.True(t, dmx.Closed)
}

func TestOpenReferenceUnsupported(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.fake")
	require.NoError(t, os.WriteFile(input, nil, 0o644))

	store := fakefmt.NewStore(".fake")
	store.CodecTypes = []av.CodecType{av.AAC}
	dmx := fakefmt.NewMovie(fakefmt.Movie{Duration: 2, Keyframes: []float64{0}})
	store.Inputs[input] = dmx
	handlers := testHandlers()
	handlers.Add(store.Handler)

	_, err := Open(input, filepath.Join(dir, "out.fake"), 0, 1, Options{Handlers: handlers})
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.True(t, dmx.Closed)
}

func TestRunTwice(t *testing.T) {
	dmx := fakefmt.NewMovie(fakefmt.Movie{Duration: 4, Keyframes: []float64{0, 2}})
	s, err := New(dmx, fakefmt.NewMuxer(), 1, 3, Options{Handlers: testHandlers()})
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Run()
	require.NoError(t, err)
	_, err = s.Run()
	assert.Error(t, err)
}

func TestProgress(t *testing.T) {
	var got []Progress
	options := Options{OnProgress: func(p Progress) {
		got = append(got, p)
	}}
	movie := fakefmt.Movie{Duration: 10, Keyframes: []float64{0, 2, 4, 6, 8}}
	_, _, _, err := trimMovie(t, movie, 1, 7, options)
	require.NoError(t, err)

	require.NotEmpty(t, got)
	assert.Equal(t, PreRoll, got[0].Phase)
	assert.Equal(t, PostRoll, got[len(got)-1].Phase)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i].Seconds, got[i-1].Seconds)
		assert.GreaterOrEqual(t, got[i].Phase, got[i-1].Phase)
	}
	assert.InDelta(t, 6.0, got[len(got)-1].Seconds, 1e-9)
}
