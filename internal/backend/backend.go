// Package backend defines the media backend capability the playback engine
// drives. The vlcbackend subpackage implements it on top of libVLC.
package backend

import (
	"errors"
	"fmt"
)

// State is the backend-reported lifecycle state of an open handle.
type State int

const (
	StateIdle State = iota
	StateOpening
	StateBuffering
	StatePlaying
	StatePaused
	StateEnded
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateOpening:
		return "Opening"
	case StateBuffering:
		return "Buffering"
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	case StateEnded:
		return "Ended"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// TranscodeOptions configures the file-capture stage of a handle.
type TranscodeOptions struct {
	Codec       string
	BitrateKbps int
	Channels    int
	SampleRate  int
}

// DefaultTranscode is the fixed recording format: MP3, 128 kbps, stereo, 44.1 kHz.
var DefaultTranscode = TranscodeOptions{
	Codec:       "mp3",
	BitrateKbps: 128,
	Channels:    2,
	SampleRate:  44100,
}

// ErrSinkAfterPlay is returned when a transcode sink is attached to a handle
// that has already started playing.
var ErrSinkAfterPlay = errors.New("transcode sink must be attached before play")

// ErrStreamFailed reports that a stream stopped with a backend error.
var ErrStreamFailed = errors.New("stream failed")

// ErrReleased is returned by operations on a released handle.
var ErrReleased = errors.New("handle already released")

// Backend opens playable handles for stream URIs.
type Backend interface {
	// Open resolves uri into a handle. It does not start playback.
	Open(uri string) (Handle, error)
	// Close frees the backend itself. Every handle must be released first.
	Close() error
}

// Handle is one open media pipeline bound to a single stream URI. Every
// successful Open must be matched by exactly one Release.
type Handle interface {
	// SetTranscodeSink attaches a re-encoding file output. Only valid before
	// the first Play.
	SetTranscodeSink(path string, opts TranscodeOptions) error
	// Play, Pause and Stop are idempotent.
	Play() error
	Pause() error
	Stop() error
	IsPlaying() bool
	State() State
	// NowPlaying returns stream metadata when the station provides any.
	NowPlaying() (string, bool)
	SetVolume(level int) error
	Release() error
}

// OpenError reports that a URI could not be turned into a playable source.
type OpenError struct {
	URI string
	Err error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open %q: %v", e.URI, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }
