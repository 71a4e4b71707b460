package engine

import (
	"errors"
	"sync"

	"github.com/edward-ap/recradio/internal/backend"
)

type fakeBackend struct {
	mu       sync.Mutex
	handles  []*fakeHandle
	openErr  error
	playErr  error
	closed   bool
	newState backend.State
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{newState: backend.StateBuffering}
}

func (b *fakeBackend) Open(uri string) (backend.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openErr != nil {
		return nil, &backend.OpenError{URI: uri, Err: b.openErr}
	}
	h := &fakeHandle{uri: uri, playState: b.newState, playErr: b.playErr, volume: -1}
	b.handles = append(b.handles, h)
	return h, nil
}

func (b *fakeBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *fakeBackend) last() *fakeHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.handles) == 0 {
		return nil
	}
	return b.handles[len(b.handles)-1]
}

func (b *fakeBackend) opened() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handles)
}

// live counts handles that were opened but not yet released.
func (b *fakeBackend) live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, h := range b.handles {
		if !h.isReleased() {
			n++
		}
	}
	return n
}

type fakeHandle struct {
	mu        sync.Mutex
	uri       string
	sink      string
	started   bool
	state     backend.State
	playState backend.State
	playErr   error
	track     string
	volume    int
	released  bool
	releases  int
}

func (h *fakeHandle) SetTranscodeSink(path string, _ backend.TranscodeOptions) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return backend.ErrSinkAfterPlay
	}
	h.sink = path
	return nil
}

func (h *fakeHandle) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return backend.ErrReleased
	}
	if h.playErr != nil {
		return h.playErr
	}
	if h.started && h.state == backend.StatePaused {
		h.state = backend.StatePlaying
		return nil
	}
	h.started = true
	h.state = h.playState
	return nil
}

func (h *fakeHandle) Pause() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == backend.StatePlaying {
		h.state = backend.StatePaused
	}
	return nil
}

func (h *fakeHandle) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = backend.StateIdle
	return nil
}

func (h *fakeHandle) IsPlaying() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state == backend.StatePlaying
}

func (h *fakeHandle) State() backend.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *fakeHandle) NowPlaying() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.track, h.track != ""
}

func (h *fakeHandle) SetVolume(level int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.volume = level
	return nil
}

func (h *fakeHandle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.releases++
	if h.released {
		return backend.ErrReleased
	}
	h.released = true
	return nil
}

func (h *fakeHandle) set(st backend.State) {
	h.mu.Lock()
	h.state = st
	h.mu.Unlock()
}

func (h *fakeHandle) setTrack(t string) {
	h.mu.Lock()
	h.track = t
	h.mu.Unlock()
}

func (h *fakeHandle) isReleased() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

func (h *fakeHandle) sinkPath() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sink
}

func (h *fakeHandle) vol() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.volume
}

var errBoom = errors.New("boom")
