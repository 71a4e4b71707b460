package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrNoStationSelected is returned by Play when nothing was ever selected.
	ErrNoStationSelected = errors.New("no station selected")
	// ErrNotPlaying is returned when recording is requested without an
	// actively playing stream.
	ErrNotPlaying = errors.New("cannot record: not playing")
	// ErrClosed is returned by operations submitted after Run has returned.
	ErrClosed = errors.New("engine closed")
	// ErrBufferingTimeout is wrapped in a BackendError when a stream never
	// leaves the buffering phase.
	ErrBufferingTimeout = errors.New("buffering timed out")
)

// BackendError reports a media backend failure. The pipeline is left stopped.
type BackendError struct {
	Op  string
	URI string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s %s: %v", e.Op, e.URI, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// FilesystemError reports that the recording destination could not be
// prepared. Recording is aborted, playback is untouched.
type FilesystemError struct {
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("recording folder %q: %v", e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }
