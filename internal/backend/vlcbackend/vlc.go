// Package vlcbackend implements the media backend contract with libVLC.
package vlcbackend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	vlc "github.com/adrg/libvlc-go/v3"
	"github.com/rs/zerolog"

	backend "github.com/edward-ap/recradio/internal/backend"
	metadata "github.com/edward-ap/recradio/internal/metadata"
)

// VLC implements backend.Backend on top of libVLC. libVLC is initialised once per
// VLC value; every handle gets its own player and media instance.
type VLC struct {
	log     zerolog.Logger
	watcher metadata.Watcher

	// single lock guarding all C/libVLC invocations
	vlcMu sync.Mutex

	mu     sync.Mutex
	open   int
	closed bool
}

var (
	_ backend.Backend = (*VLC)(nil)
	_ backend.Handle  = (*vlcHandle)(nil)
)

// zerologPrintf adapts zerolog to the metadata.Logger interface.
type zerologPrintf struct{ log zerolog.Logger }

func (z zerologPrintf) Printf(format string, args ...any) {
	z.log.Debug().Msgf(format, args...)
}

// NewVLC initialises libVLC. Close must be called on shutdown.
func NewVLC(log zerolog.Logger) (*VLC, error) {
	// let libVLC 3 pick up a bundled plugins folder next to the executable
	if exe, err := os.Executable(); err == nil {
		plugins := filepath.Join(filepath.Dir(exe), "plugins")
		if st, err := os.Stat(plugins); err == nil && st.IsDir() {
			_ = os.Setenv("VLC_PLUGIN_PATH", plugins)
		}
	}

	args := []string{
		"--no-video",
		"--no-color",
		"--network-caching=1500",
		"--live-caching=1500",
		"--http-reconnect",
	}
	if isTraceLoggingEnabled() {
		args = append(args,
			"--verbose=2",
			"--file-logging",
			"--log-verbose=2",
			"--logfile=vlc.log",
		)
	}
	if err := vlc.Init(args...); err != nil {
		return nil, fmt.Errorf("libvlc init failed: %w", err)
	}
	v := vlc.Version()
	log.Info().Str("libvlc", v.String()).Msg("media backend ready")

	return &VLC{
		log:     log,
		watcher: metadata.NewWatcher(nil, zerologPrintf{log: log}),
	}, nil
}

// Open creates a player and media for uri. Playback starts with Play.
func (b *VLC) Open(uri string) (backend.Handle, error) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return nil, &backend.OpenError{URI: uri, Err: fmt.Errorf("backend closed")}
	}

	// trim whitespace that sneaks in from pasted catalog entries
	u := strings.TrimSpace(uri)
	if u == "" {
		return nil, &backend.OpenError{URI: uri, Err: fmt.Errorf("empty stream uri")}
	}

	b.vlcMu.Lock()
	defer b.vlcMu.Unlock()

	m, err := vlc.NewMediaFromURL(u)
	if err != nil {
		return nil, &backend.OpenError{URI: uri, Err: err}
	}
	if err := m.AddOptions(
		":metadata-network-access=1",
		":icy-metadata=1",
		":demux=any",
		":http-user-agent=RecRadio/1.0",
		":network-caching=1500",
		":live-caching=1500",
		":http-reconnect",
	); err != nil {
		m.Release()
		return nil, &backend.OpenError{URI: uri, Err: err}
	}
	p, err := vlc.NewPlayer()
	if err != nil {
		m.Release()
		return nil, &backend.OpenError{URI: uri, Err: err}
	}

	b.mu.Lock()
	b.open++
	b.mu.Unlock()
	b.log.Debug().Str("uri", u).Msg("handle opened")
	return &vlcHandle{b: b, uri: u, player: p, media: m}, nil
}

// Close releases libVLC. Handles still open are reported but not touched.
func (b *VLC) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	open := b.open
	b.mu.Unlock()
	if open > 0 {
		b.log.Warn().Int("handles", open).Msg("closing media backend with open handles")
	}
	b.vlcMu.Lock()
	defer b.vlcMu.Unlock()
	return vlc.Release()
}

type vlcHandle struct {
	b      *VLC
	uri    string
	player *vlc.Player
	media  *vlc.Media

	mu       sync.Mutex
	started  bool
	released bool
	sink     string
	title    string

	icyCancel context.CancelFunc
	icyWG     sync.WaitGroup
}

// soutChain builds the stream output that re-encodes into path while still
// sending audio to the local output.
func soutChain(path string, o backend.TranscodeOptions) string {
	return fmt.Sprintf(
		`#transcode{acodec=%s,ab=%d,channels=%d,samplerate=%d}:duplicate{dst=display,dst=std{access=file,mux=raw,dst="%s"}}`,
		o.Codec, o.BitrateKbps, o.Channels, o.SampleRate, path,
	)
}

func (h *vlcHandle) SetTranscodeSink(path string, opts backend.TranscodeOptions) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return backend.ErrReleased
	}
	if h.started {
		return backend.ErrSinkAfterPlay
	}
	h.b.vlcMu.Lock()
	err := h.media.AddOptions(":sout="+soutChain(path, opts), ":sout-keep")
	h.b.vlcMu.Unlock()
	if err != nil {
		return fmt.Errorf("set transcode sink: %w", err)
	}
	h.sink = path
	return nil
}

func (h *vlcHandle) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return backend.ErrReleased
	}

	h.b.vlcMu.Lock()
	defer h.b.vlcMu.Unlock()
	if !h.started {
		if err := h.player.SetMedia(h.media); err != nil {
			return fmt.Errorf("set media failed: %w", err)
		}
	} else if h.player.IsPlaying() {
		return nil
	}
	if err := h.player.Play(); err != nil {
		return fmt.Errorf("play failed: %w", err)
	}
	if !h.started {
		h.started = true
		h.startWatcher()
	}
	return nil
}

func (h *vlcHandle) Pause() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released || !h.started {
		return nil
	}
	h.b.vlcMu.Lock()
	defer h.b.vlcMu.Unlock()
	if !h.player.IsPlaying() {
		return nil
	}
	return h.player.SetPause(true)
}

func (h *vlcHandle) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released || !h.started {
		return nil
	}
	h.b.vlcMu.Lock()
	defer h.b.vlcMu.Unlock()
	return h.player.Stop()
}

func (h *vlcHandle) IsPlaying() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released || !h.started {
		return false
	}
	h.b.vlcMu.Lock()
	defer h.b.vlcMu.Unlock()
	return h.player.IsPlaying()
}

func (h *vlcHandle) State() backend.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released || !h.started {
		return backend.StateIdle
	}
	h.b.vlcMu.Lock()
	st, err := h.player.MediaState()
	h.b.vlcMu.Unlock()
	if err != nil {
		return backend.StateError
	}
	return mapMediaState(st)
}

func mapMediaState(st vlc.MediaState) backend.State {
	switch st {
	case vlc.MediaOpening:
		return backend.StateOpening
	case vlc.MediaBuffering:
		return backend.StateBuffering
	case vlc.MediaPlaying:
		return backend.StatePlaying
	case vlc.MediaPaused:
		return backend.StatePaused
	case vlc.MediaEnded:
		return backend.StateEnded
	case vlc.MediaError:
		return backend.StateError
	default:
		return backend.StateIdle
	}
}

func (h *vlcHandle) NowPlaying() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released || !h.started {
		return "", false
	}
	h.b.vlcMu.Lock()
	s, _ := h.media.Meta(vlc.MediaNowPlaying)
	h.b.vlcMu.Unlock()
	if s = strings.TrimSpace(s); s != "" {
		return s, true
	}
	if h.title != "" {
		return h.title, true
	}
	return "", false
}

func (h *vlcHandle) SetVolume(level int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return backend.ErrReleased
	}
	h.b.vlcMu.Lock()
	defer h.b.vlcMu.Unlock()
	return h.player.SetVolume(level)
}

func (h *vlcHandle) Release() error {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return backend.ErrReleased
	}
	h.released = true
	cancel := h.icyCancel
	h.icyCancel = nil
	h.mu.Unlock()

	// the watcher callback takes h.mu, so wait outside the lock
	if cancel != nil {
		cancel()
		h.icyWG.Wait()
	}

	h.b.vlcMu.Lock()
	_ = h.player.Stop()
	err := h.player.Release()
	if mErr := h.media.Release(); err == nil {
		err = mErr
	}
	h.b.vlcMu.Unlock()

	h.b.mu.Lock()
	h.b.open--
	h.b.mu.Unlock()
	h.b.log.Debug().Str("uri", h.uri).Str("sink", h.sink).Msg("handle released")
	return err
}

// startWatcher runs the ICY watcher for this handle. Caller holds h.mu.
func (h *vlcHandle) startWatcher() {
	if h.b.watcher == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.icyCancel = cancel
	h.icyWG.Add(1)
	go func() {
		defer h.icyWG.Done()
		err := h.b.watcher.Watch(ctx, h.uri, func(info metadata.Info) {
			title := strings.TrimSpace(info.Title)
			if title == "" {
				return
			}
			h.mu.Lock()
			h.title = title
			h.mu.Unlock()
		})
		if err != nil && ctx.Err() == nil {
			h.b.log.Debug().Err(err).Str("uri", h.uri).Msg("metadata watcher stopped")
		}
	}()
}
