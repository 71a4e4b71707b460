// Package engine implements the playback and recording state machine that
// sits between the presentation layer and the media backend.
//
// All session state is owned by the goroutine running Engine.Run. Public
// methods hand a closure to that goroutine and wait for its result, so
// operations are applied in submission order.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/edward-ap/recradio/internal/backend"
	"github.com/edward-ap/recradio/internal/catalog"
)

const (
	DefaultPollInterval     = time.Second
	DefaultBufferingTimeout = 30 * time.Second
)

// Option configures an Engine.
type Option func(*Engine)

// WithFs sets the filesystem used to create the music folder.
func WithFs(fs afero.Fs) Option {
	return func(e *Engine) { e.fs = fs }
}

// WithMusicDir sets where recordings are written.
func WithMusicDir(dir string) Option {
	return func(e *Engine) { e.musicDir = dir }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithPollInterval sets the status poll period. Zero disables the built-in
// poller; Tick can then be driven by the caller.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) { e.pollInterval = d }
}

// WithBufferingTimeout bounds how long a pipeline may stay in Buffering.
// Zero disables the bound.
func WithBufferingTimeout(d time.Duration) Option {
	return func(e *Engine) { e.bufferingTimeout = d }
}

// WithVolume sets the initial volume.
func WithVolume(level int) Option {
	return func(e *Engine) { e.sess.Volume = clamp(level, 0, 100) }
}

// Engine drives one backend pipeline at a time.
type Engine struct {
	cat              *catalog.Catalog
	be               backend.Backend
	fs               afero.Fs
	musicDir         string
	now              func() time.Time
	log              zerolog.Logger
	pollInterval     time.Duration
	bufferingTimeout time.Duration

	ops     chan func()
	done    chan struct{}
	runOnce sync.Once

	// owned by the Run goroutine
	sess     Session
	handle   backend.Handle
	gen      uint64
	bufTimer *time.Timer
	segment  *Recording
	history  []Recording
	subs     map[int]*subscriber
	nextSub  int
}

// New returns an Engine for cat that plays through be. The engine takes
// ownership of be and closes it when Run returns.
func New(cat *catalog.Catalog, be backend.Backend, opts ...Option) *Engine {
	e := &Engine{
		cat:              cat,
		be:               be,
		fs:               afero.NewOsFs(),
		now:              time.Now,
		log:              zerolog.Nop(),
		pollInterval:     DefaultPollInterval,
		bufferingTimeout: DefaultBufferingTimeout,
		ops:              make(chan func()),
		done:             make(chan struct{}),
		subs:             make(map[int]*subscriber),
		sess: Session{
			State:  Stopped,
			Volume: DefaultVolume,
			Status: StatusReady,
		},
	}
	if dir, err := DefaultMusicDir(); err == nil {
		e.musicDir = dir
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the station catalog the engine was built with.
func (e *Engine) Catalog() *catalog.Catalog { return e.cat }

// Run executes submitted operations until ctx is cancelled. On the way out
// it finishes any recording, releases the pipeline, closes the backend and
// closes every subscriber channel. Run may only be called once.
func (e *Engine) Run(ctx context.Context) error {
	started := false
	e.runOnce.Do(func() { started = true })
	if !started {
		return errors.New("engine: Run called twice")
	}

	pollCtx, cancelPoll := context.WithCancel(ctx)
	var wg sync.WaitGroup
	if e.pollInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			NewPoller(e, e.pollInterval).Run(pollCtx)
		}()
	}

	e.log.Debug().Msg("engine loop started")
	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			close(e.done)
			cancelPoll()
			wg.Wait()
			e.log.Debug().Msg("engine loop stopped")
			return nil
		case fn := <-e.ops:
			fn()
		}
	}
}

// do runs fn on the control loop and waits for its result.
func (e *Engine) do(fn func() error) error {
	res := make(chan error, 1)
	select {
	case e.ops <- func() { res <- fn() }:
	case <-e.done:
		return ErrClosed
	}
	return <-res
}

// post queues fn without waiting for it. It reports false once the engine
// has shut down.
func (e *Engine) post(fn func()) bool {
	select {
	case e.ops <- fn:
		return true
	case <-e.done:
		return false
	}
}

func (e *Engine) shutdown() {
	if e.sess.Recording {
		e.finishRecording()
	}
	e.releaseHandle()
	e.sess.State = Stopped
	e.sess.Status = StatusStopped
	e.emit(nil)
	e.closeSubscribers()
	if e.be != nil {
		if err := e.be.Close(); err != nil {
			e.log.Warn().Err(err).Msg("backend close failed")
		}
	}
}

// SelectStation makes st the target of the next Play.
func (e *Engine) SelectStation(st catalog.Station) error {
	return e.do(func() error {
		e.sess.Station = &st
		e.emit(nil)
		return nil
	})
}

// Play resumes a paused pipeline or starts the selected station afresh.
func (e *Engine) Play() error {
	return e.do(e.play)
}

// TogglePlayPause pauses a playing pipeline and otherwise behaves like Play.
func (e *Engine) TogglePlayPause() error {
	return e.do(func() error {
		if e.handle != nil && e.handle.IsPlaying() {
			return e.pause()
		}
		return e.play()
	})
}

// Stop tears the pipeline down. A recording in progress is finished first.
// The selected station is kept.
func (e *Engine) Stop() error {
	return e.do(func() error {
		e.stop()
		return nil
	})
}

// ToggleRecord starts capturing the playing stream to a file, or finishes
// the current capture.
func (e *Engine) ToggleRecord() error {
	return e.do(func() error {
		if e.sess.Recording {
			return e.stopRecording()
		}
		return e.startRecording()
	})
}

// SetVolume clamps level to [0,100], stores it and forwards it to the open
// pipeline. It never fails while the engine is running.
func (e *Engine) SetVolume(level int) error {
	return e.do(func() error {
		e.sess.Volume = clamp(level, 0, 100)
		e.applyVolume()
		return nil
	})
}

// PlayStation finishes any recording, selects st and starts it.
func (e *Engine) PlayStation(st catalog.Station) error {
	return e.do(func() error {
		if e.sess.Recording {
			e.finishRecording()
		}
		e.sess.Station = &st
		return e.start("")
	})
}

// Tick samples the backend once, as the poller does.
func (e *Engine) Tick() error {
	return e.do(func() error {
		e.sample()
		return nil
	})
}

// Session returns a snapshot of the current session.
func (e *Engine) Session() (Session, error) {
	var s Session
	err := e.do(func() error {
		s = e.sess.clone()
		return nil
	})
	return s, err
}

// Recordings returns every finished capture segment, oldest first.
func (e *Engine) Recordings() ([]Recording, error) {
	var out []Recording
	err := e.do(func() error {
		out = make([]Recording, len(e.history))
		copy(out, e.history)
		return nil
	})
	return out, err
}

// RecordingPath is the file a capture of station started at would go to.
func (e *Engine) RecordingPath(station string, at time.Time) string {
	return recordingPath(e.musicDir, station, at)
}

// Subscribe returns a channel of events and a function that cancels the
// subscription. The channel is closed on cancel or when Run returns.
func (e *Engine) Subscribe() (<-chan Event, func()) {
	s := &subscriber{ch: make(chan Event, subscriberBufferDepth)}
	var id int
	if err := e.do(func() error {
		id = e.nextSub
		e.nextSub++
		e.subs[id] = s
		return nil
	}); err != nil {
		close(s.ch)
		return s.ch, func() {}
	}
	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			e.post(func() {
				if _, ok := e.subs[id]; ok {
					close(s.ch)
					delete(e.subs, id)
				}
			})
		})
	}
}

func (e *Engine) play() error {
	if e.handle != nil {
		switch {
		case e.handle.State() == backend.StatePaused:
			return e.resume()
		case e.handle.IsPlaying():
			return nil
		}
	}
	if e.sess.Station == nil {
		e.sess.Status = StatusNoStation
		e.emit(ErrNoStationSelected)
		return ErrNoStationSelected
	}

	sink := ""
	if e.sess.Recording {
		// a fresh start while recording begins a new segment
		e.closeSegment()
		path, err := e.newRecordingPath()
		if err != nil {
			e.sess.Recording = false
			e.sess.RecordingPath = ""
			e.log.Warn().Err(err).Msg("recording aborted")
		} else {
			sink = path
			e.sess.RecordingPath = path
		}
	}
	return e.start(sink)
}

func (e *Engine) resume() error {
	if err := e.handle.Play(); err != nil {
		return e.fail("play", err, StatusOpenFailed)
	}
	e.sess.State = Playing
	e.sess.Status = e.activeStatus()
	e.emit(nil)
	return nil
}

func (e *Engine) pause() error {
	if err := e.handle.Pause(); err != nil {
		return e.fail("pause", err, StatusStreamError)
	}
	e.sess.State = Paused
	if !e.sess.Recording {
		e.sess.Status = StatusPaused
	}
	e.emit(nil)
	return nil
}

// start opens the selected station as a new pipeline. A non-empty sink
// attaches a transcode capture to path before playback begins.
func (e *Engine) start(sink string) error {
	st := e.sess.Station
	if st == nil {
		return ErrNoStationSelected
	}
	e.releaseHandle()

	log := e.log.With().Str("station", st.Name).Str("uri", st.URI).Logger()
	h, err := e.be.Open(st.URI)
	if err != nil {
		return e.fail("open", err, StatusOpenFailed)
	}
	if sink != "" {
		if err := h.SetTranscodeSink(sink, backend.DefaultTranscode); err != nil {
			_ = h.Release()
			return e.fail("transcode", err, StatusOpenFailed)
		}
	}
	if err := h.SetVolume(e.sess.Volume); err != nil {
		log.Debug().Err(err).Msg("initial volume not applied")
	}
	if err := h.Play(); err != nil {
		_ = h.Release()
		return e.fail("play", err, StatusOpenFailed)
	}

	e.handle = h
	e.gen++
	e.sess.Generation = e.gen
	e.sess.State = Buffering
	e.sess.Track = ""
	if sink != "" {
		e.segment = &Recording{
			ID:        newRecordingID(e.now()),
			Station:   st.Name,
			Path:      sink,
			StartedAt: e.now(),
		}
		e.sess.Status = StatusRecording
		log.Info().Str("path", sink).Uint64("generation", e.gen).Msg("recording started")
	} else {
		e.sess.Status = StatusBuffering
		log.Info().Uint64("generation", e.gen).Msg("pipeline started")
	}
	e.armBufferingTimeout()
	e.emit(nil)
	return nil
}

func (e *Engine) stop() {
	if e.handle == nil && e.sess.State == Stopped && !e.sess.Recording {
		return
	}
	saved := ""
	if e.sess.Recording {
		saved = e.finishRecording()
	}
	e.releaseHandle()
	e.sess.State = Stopped
	e.sess.Track = ""
	if saved != "" {
		e.sess.Status = StatusRecordingSaved + saved
	} else {
		e.sess.Status = StatusStopped
	}
	e.emit(nil)
}

func (e *Engine) startRecording() error {
	if e.sess.State != Playing || e.handle == nil {
		e.sess.Status = StatusCannotRecord
		e.emit(ErrNotPlaying)
		return ErrNotPlaying
	}
	path, err := e.newRecordingPath()
	if err != nil {
		e.log.Warn().Err(err).Msg("recording aborted")
		e.sess.Status = StatusMusicDirFailed
		e.emit(err)
		return err
	}
	e.sess.Recording = true
	e.sess.RecordingPath = path
	return e.start(path)
}

func (e *Engine) stopRecording() error {
	saved := e.finishRecording()
	if e.sess.Station == nil {
		return nil
	}
	if err := e.start(""); err != nil {
		return err
	}
	e.sess.Status = StatusRecordingSaved + saved
	e.emit(nil)
	return nil
}

// finishRecording clears the recording flag and files the current segment
// into history. It returns the saved path.
func (e *Engine) finishRecording() string {
	path := e.sess.RecordingPath
	e.sess.Recording = false
	e.sess.RecordingPath = ""
	e.closeSegment()
	return path
}

func (e *Engine) closeSegment() {
	if e.segment == nil {
		return
	}
	rec := *e.segment
	rec.EndedAt = e.now()
	e.history = append(e.history, rec)
	e.segment = nil
	e.log.Info().Str("path", rec.Path).Dur("duration", rec.Duration()).Msg("recording saved")
}

func (e *Engine) newRecordingPath() (string, error) {
	if e.musicDir == "" {
		return "", &FilesystemError{Path: e.musicDir, Err: errors.New("no music folder configured")}
	}
	if err := e.fs.MkdirAll(e.musicDir, musicDirPermission); err != nil {
		return "", &FilesystemError{Path: e.musicDir, Err: err}
	}
	at := e.now()
	path := recordingPath(e.musicDir, e.sess.Station.Name, at)
	for i := 0; i < maxNameAttempts && e.pathTaken(path); i++ {
		at = at.Add(time.Second)
		path = recordingPath(e.musicDir, e.sess.Station.Name, at)
	}
	if e.pathTaken(path) {
		e.log.Warn().Str("path", path).Msg("recording will overwrite an existing file")
	}
	return path, nil
}

// pathTaken reports whether path already holds, or is about to hold, a capture.
func (e *Engine) pathTaken(path string) bool {
	if e.segment != nil && e.segment.Path == path {
		return true
	}
	for _, rec := range e.history {
		if rec.Path == path {
			return true
		}
	}
	ok, err := afero.Exists(e.fs, path)
	return ok || err != nil
}

func (e *Engine) releaseHandle() {
	if e.bufTimer != nil {
		e.bufTimer.Stop()
		e.bufTimer = nil
	}
	if e.handle == nil {
		return
	}
	h := e.handle
	e.handle = nil
	e.sess.Generation = 0
	if err := h.Stop(); err != nil {
		e.log.Debug().Err(err).Msg("stop failed")
	}
	if err := h.Release(); err != nil {
		e.log.Warn().Err(err).Msg("release failed")
	}
}

// fail leaves the session Stopped with the station kept and reports a
// BackendError.
func (e *Engine) fail(op string, cause error, status string) error {
	uri := ""
	if e.sess.Station != nil {
		uri = e.sess.Station.URI
	}
	err := &BackendError{Op: op, URI: uri, Err: cause}
	e.log.Error().Err(cause).Str("op", op).Str("uri", uri).Msg("backend failure")

	if e.sess.Recording {
		e.finishRecording()
	}
	e.releaseHandle()
	e.sess.State = Stopped
	e.sess.Track = ""
	e.sess.Status = status
	e.emit(err)
	return err
}

func (e *Engine) applyVolume() {
	if e.handle == nil {
		return
	}
	if err := e.handle.SetVolume(e.sess.Volume); err != nil {
		e.log.Debug().Err(err).Int("volume", e.sess.Volume).Msg("volume not applied")
	}
}

func (e *Engine) activeStatus() string {
	if e.sess.Recording {
		return StatusRecording
	}
	return StatusPlaying
}

func (e *Engine) armBufferingTimeout() {
	if e.bufferingTimeout <= 0 {
		return
	}
	gen := e.gen
	e.bufTimer = time.AfterFunc(e.bufferingTimeout, func() {
		e.post(func() { e.bufferingExpired(gen) })
	})
}

func (e *Engine) bufferingExpired(gen uint64) {
	if gen != e.gen || e.handle == nil {
		return
	}
	switch e.handle.State() {
	case backend.StatePlaying, backend.StatePaused:
		return
	case backend.StateIdle, backend.StateOpening, backend.StateBuffering:
		e.log.Warn().Uint64("generation", gen).Dur("timeout", e.bufferingTimeout).Msg("stream never left buffering")
		_ = e.fail("buffer", ErrBufferingTimeout, StatusBufferTimeout)
	}
}
