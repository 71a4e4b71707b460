// Package headless runs the engine without a window, logging every change
// of state. It is used for unattended recording from the command line.
package headless

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/edward-ap/recradio/internal/engine"
)

// Options selects what the runner does once the engine is up.
type Options struct {
	// Station is looked up in the engine's catalog and played on start.
	Station string
	// Record starts a recording as soon as the station is playing.
	Record bool
}

// Run drives eng until ctx is cancelled or the auto-start fails.
func Run(ctx context.Context, eng *engine.Engine, opts Options, log zerolog.Logger) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return eng.Run(ctx)
	})

	events, unsubscribe := eng.Subscribe()
	defer unsubscribe()
	g.Go(func() error {
		logEvents(events, log)
		return nil
	})

	if opts.Station != "" {
		g.Go(func() error {
			return autoStart(ctx, eng, opts, log)
		})
	}
	return g.Wait()
}

// autoStart plays the chosen station and, with Record set, starts a capture
// once it is live. A music folder that cannot be written leaves the station
// playing.
func autoStart(ctx context.Context, eng *engine.Engine, opts Options, log zerolog.Logger) error {
	st, ok := eng.Catalog().Find(opts.Station)
	if !ok {
		return fmt.Errorf("station %q not found in catalog", opts.Station)
	}
	if !opts.Record {
		return ignoreClosed(eng.PlayStation(st))
	}

	watch, stop := eng.Subscribe()
	defer stop()
	if err := eng.PlayStation(st); err != nil {
		return ignoreClosed(err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watch:
			if !ok {
				return nil
			}
			switch {
			case ev.State == engine.Playing && !ev.Recording:
				err := eng.ToggleRecord()
				var fsErr *engine.FilesystemError
				if errors.As(err, &fsErr) {
					log.Warn().Err(err).Str("path", fsErr.Path).Msg("recording not started, playing only")
					return nil
				}
				return ignoreClosed(err)
			case ev.State == engine.Stopped && ev.Err != nil:
				return fmt.Errorf("station %q never started: %w", st.Name, ev.Err)
			}
		}
	}
}

// logEvents writes one line per visible change until the channel closes.
func logEvents(events <-chan engine.Event, log zerolog.Logger) {
	var last engine.Event
	first := true
	for ev := range events {
		if !first && sameView(ev, last) {
			continue
		}
		first = false
		last = ev

		e := log.Info()
		if ev.Err != nil {
			e = log.Warn().Err(ev.Err)
		}
		e = e.Str("station", ev.StationName).
			Str("state", ev.State.String()).
			Str("status", ev.Status)
		if ev.Track != "" {
			e = e.Str("track", ev.Track)
		}
		if ev.Recording {
			e = e.Str("file", ev.RecordingPath)
		}
		e.Msg("radio")
	}
}

func sameView(a, b engine.Event) bool {
	return a.StationName == b.StationName &&
		a.State == b.State &&
		a.Status == b.Status &&
		a.Track == b.Track &&
		a.Recording == b.Recording &&
		a.Err == nil && b.Err == nil
}

func ignoreClosed(err error) error {
	if errors.Is(err, engine.ErrClosed) {
		return nil
	}
	return err
}
