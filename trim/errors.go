package trim

import (
	"errors"

	"github.com/tyrese/smartcut/av/transcode"
)

var (
	// ErrNotFound: the input does not exist or a required stream cannot be resolved.
	ErrNotFound = errors.New("not found")
	// ErrUnsupported: the reference video stream cannot be carried by the output container.
	ErrUnsupported   = errors.New("unsupported")
	ErrInvalidWindow = errors.New("invalid trim window")
	ErrMarkersFrozen = errors.New("keyframe markers are frozen once output is written")

	ErrSeek               = transcode.ErrSeek
	ErrWrite              = transcode.ErrWrite
	ErrMalformedTimestamp = transcode.ErrMalformedTimestamp
)
