package engine

import (
	"context"
	"time"

	"github.com/edward-ap/recradio/internal/backend"
)

// Poller periodically samples the backend on the engine's control loop.
// State and now-playing data are therefore at most one interval stale.
type Poller struct {
	e        *Engine
	interval time.Duration
}

func NewPoller(e *Engine, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{e: e, interval: interval}
}

// Run ticks until ctx is done or the engine shuts down. A tick that arrives
// while the loop is busy is dropped by the ticker.
func (p *Poller) Run(ctx context.Context) {
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !p.e.post(p.e.sample) {
				return
			}
		}
	}
}

// sample reconciles the session with the backend-reported state and
// publishes the result. Nothing is published without an open pipeline.
func (e *Engine) sample() {
	if e.handle == nil {
		return
	}
	switch e.handle.State() {
	case backend.StateIdle, backend.StateOpening, backend.StateBuffering:
		e.sess.State = Buffering
	case backend.StatePlaying:
		e.sess.State = Playing
		if e.bufTimer != nil {
			e.bufTimer.Stop()
			e.bufTimer = nil
		}
	case backend.StatePaused:
		e.sess.State = Paused
	case backend.StateEnded:
		e.endOfStream(StatusStreamEnded, nil)
		return
	case backend.StateError:
		e.endOfStream(StatusStreamError, &BackendError{
			Op:  "stream",
			URI: e.sess.Station.URI,
			Err: backend.ErrStreamFailed,
		})
		return
	}

	switch {
	case e.sess.Recording:
		e.sess.Status = StatusRecording
	case e.sess.State == Playing:
		e.sess.Status = StatusPlaying
	}
	if track, ok := e.handle.NowPlaying(); ok && track != "" {
		e.sess.Track = track
	} else {
		e.sess.Track = TrackNoMetadata
	}
	e.emit(nil)
}

func (e *Engine) endOfStream(status string, err error) {
	if e.sess.Recording {
		e.finishRecording()
	}
	e.releaseHandle()
	e.sess.State = Stopped
	e.sess.Track = ""
	e.sess.Status = status
	if err != nil {
		e.log.Warn().Err(err).Msg("stream stopped")
	} else {
		e.log.Info().Msg("stream ended")
	}
	e.emit(err)
}
