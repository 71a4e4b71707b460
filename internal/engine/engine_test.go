package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/edward-ap/recradio/internal/backend"
	"github.com/edward-ap/recradio/internal/catalog"
)

var (
	jazz24  = catalog.Station{Name: "Jazz24", URI: "https://jazz24.org/streams/high.m3u"}
	tsfJazz = catalog.Station{Name: "TSF Jazz", URI: "http://tsfjazz.ice.infomaniak.ch/tsfjazz-high.mp3"}

	fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local)
)

const musicDir = "/home/user/Music"

type testEngine struct {
	*Engine
	be     *fakeBackend
	fs     afero.Fs
	cancel context.CancelFunc
	exited chan struct{}
}

func startEngine(t *testing.T, opts ...Option) *testEngine {
	t.Helper()
	be := newFakeBackend()
	fs := afero.NewMemMapFs()
	base := []Option{
		WithFs(fs),
		WithMusicDir(musicDir),
		WithClock(func() time.Time { return fixedNow }),
		WithPollInterval(0),
		WithBufferingTimeout(0),
	}
	e := New(catalog.Default(), be, append(base, opts...)...)
	ctx, cancel := context.WithCancel(context.Background())
	te := &testEngine{Engine: e, be: be, fs: fs, cancel: cancel, exited: make(chan struct{})}
	go func() {
		defer close(te.exited)
		_ = e.Run(ctx)
	}()
	t.Cleanup(te.close)
	return te
}

func (te *testEngine) close() {
	te.cancel()
	<-te.exited
}

func (te *testEngine) session(t *testing.T) Session {
	t.Helper()
	s, err := te.Session()
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	return s
}

// playing starts jazz24 and drives it into the Playing state.
func (te *testEngine) playing(t *testing.T) *fakeHandle {
	t.Helper()
	if err := te.SelectStation(jazz24); err != nil {
		t.Fatal(err)
	}
	if err := te.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	h := te.be.last()
	h.set(backend.StatePlaying)
	if err := te.Tick(); err != nil {
		t.Fatal(err)
	}
	if s := te.session(t); s.State != Playing {
		t.Fatalf("state = %v, want Playing", s.State)
	}
	return h
}

func TestPlayWithoutStation(t *testing.T) {
	te := startEngine(t)
	if err := te.Play(); !errors.Is(err, ErrNoStationSelected) {
		t.Fatalf("Play() = %v, want ErrNoStationSelected", err)
	}
	if n := te.be.opened(); n != 0 {
		t.Fatalf("backend opened %d handles", n)
	}
	s := te.session(t)
	if s.State != Stopped || s.Status != StatusNoStation {
		t.Fatalf("unexpected session %+v", s)
	}
}

func TestPlayStartsBuffering(t *testing.T) {
	te := startEngine(t)
	if err := te.SelectStation(jazz24); err != nil {
		t.Fatal(err)
	}
	if err := te.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	s := te.session(t)
	if s.State != Buffering || s.Generation != 1 || s.Status != StatusBuffering {
		t.Fatalf("unexpected session %+v", s)
	}
	h := te.be.last()
	if h.uri != jazz24.URI {
		t.Fatalf("opened %q", h.uri)
	}
	if h.vol() != DefaultVolume {
		t.Fatalf("handle volume = %d, want %d", h.vol(), DefaultVolume)
	}

	h.set(backend.StatePlaying)
	_ = te.Tick()
	s = te.session(t)
	if s.State != Playing || s.Status != StatusPlaying || s.Track != TrackNoMetadata {
		t.Fatalf("after tick %+v", s)
	}

	h.setTrack("Miles Davis - So What")
	_ = te.Tick()
	if s := te.session(t); s.Track != "Miles Davis - So What" {
		t.Fatalf("track = %q", s.Track)
	}
}

func TestPlayWhilePlayingKeepsPipeline(t *testing.T) {
	te := startEngine(t)
	te.playing(t)
	if err := te.Play(); err != nil {
		t.Fatal(err)
	}
	if n := te.be.opened(); n != 1 {
		t.Fatalf("opened %d handles, want 1", n)
	}
}

func TestPauseResume(t *testing.T) {
	te := startEngine(t)
	h := te.playing(t)

	if err := te.TogglePlayPause(); err != nil {
		t.Fatal(err)
	}
	if s := te.session(t); s.State != Paused || s.Status != StatusPaused {
		t.Fatalf("after pause %+v", s)
	}
	if h.State() != backend.StatePaused {
		t.Fatalf("handle state %v", h.State())
	}

	if err := te.TogglePlayPause(); err != nil {
		t.Fatal(err)
	}
	if s := te.session(t); s.State != Playing {
		t.Fatalf("after resume %+v", s)
	}
	if n := te.be.opened(); n != 1 {
		t.Fatalf("resume opened a new handle (%d)", n)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	te := startEngine(t)
	te.playing(t)

	if err := te.Stop(); err != nil {
		t.Fatal(err)
	}
	first := te.session(t)
	if err := te.Stop(); err != nil {
		t.Fatal(err)
	}
	second := te.session(t)

	if first.State != Stopped || first.Generation != 0 {
		t.Fatalf("after stop %+v", first)
	}
	if first.Station == nil || *first.Station != jazz24 {
		t.Fatalf("station not retained: %+v", first.Station)
	}
	if first.Status != second.Status || first.State != second.State || first.Volume != second.Volume {
		t.Fatalf("second stop changed session: %+v vs %+v", first, second)
	}
	if te.be.live() != 0 {
		t.Fatal("handle not released")
	}
	if h := te.be.last(); h.releases != 1 {
		t.Fatalf("handle released %d times", h.releases)
	}
}

func TestToggleRecordRequiresPlaying(t *testing.T) {
	te := startEngine(t)
	_ = te.SelectStation(jazz24)
	_ = te.Play() // still buffering

	if err := te.ToggleRecord(); !errors.Is(err, ErrNotPlaying) {
		t.Fatalf("ToggleRecord() = %v, want ErrNotPlaying", err)
	}
	s := te.session(t)
	if s.Recording || s.State != Buffering || s.Status != StatusCannotRecord {
		t.Fatalf("unexpected session %+v", s)
	}
	if n := te.be.opened(); n != 1 {
		t.Fatalf("pipeline restarted (%d opens)", n)
	}
}

func TestRecordingRoundTrip(t *testing.T) {
	te := startEngine(t)
	first := te.playing(t)

	if err := te.ToggleRecord(); err != nil {
		t.Fatalf("start recording: %v", err)
	}
	wantPath := musicDir + "/rec_Jazz24_20240501_120000.mp3"
	s := te.session(t)
	if !s.Recording || s.RecordingPath != wantPath || s.Status != StatusRecording {
		t.Fatalf("recording session %+v", s)
	}
	if !first.isReleased() {
		t.Fatal("previous handle not released on restart")
	}
	rec := te.be.last()
	if rec.sinkPath() != wantPath {
		t.Fatalf("sink = %q, want %q", rec.sinkPath(), wantPath)
	}
	if ok, _ := afero.DirExists(te.fs, musicDir); !ok {
		t.Fatal("music folder not created")
	}

	rec.set(backend.StatePlaying)
	_ = te.Tick()
	if s := te.session(t); s.Status != StatusRecording {
		t.Fatalf("status while recording = %q", s.Status)
	}

	if err := te.ToggleRecord(); err != nil {
		t.Fatalf("stop recording: %v", err)
	}
	s = te.session(t)
	if s.Recording || s.RecordingPath != "" {
		t.Fatalf("recording flag left set: %+v", s)
	}
	if s.Status != StatusRecordingSaved+wantPath {
		t.Fatalf("status = %q", s.Status)
	}
	if s.State != Buffering || s.Generation != 3 {
		t.Fatalf("live playback not restarted: %+v", s)
	}
	if sink := te.be.last().sinkPath(); sink != "" {
		t.Fatalf("restarted pipeline still captures to %q", sink)
	}
	if te.be.live() != 1 {
		t.Fatalf("%d live handles", te.be.live())
	}

	recs, err := te.Recordings()
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Path != wantPath || recs[0].Station != "Jazz24" || recs[0].ID == "" {
		t.Fatalf("history = %+v", recs)
	}
}

func TestStopWhileRecording(t *testing.T) {
	te := startEngine(t)
	te.playing(t)
	if err := te.ToggleRecord(); err != nil {
		t.Fatal(err)
	}
	if err := te.Stop(); err != nil {
		t.Fatal(err)
	}
	s := te.session(t)
	if s.Recording || s.State != Stopped {
		t.Fatalf("after stop %+v", s)
	}
	if want := StatusRecordingSaved + musicDir + "/rec_Jazz24_20240501_120000.mp3"; s.Status != want {
		t.Fatalf("status = %q, want %q", s.Status, want)
	}
	if n := te.be.opened(); n != 2 {
		t.Fatalf("stop restarted the pipeline (%d opens)", n)
	}
	if te.be.live() != 0 {
		t.Fatal("handle leaked")
	}
	if recs, _ := te.Recordings(); len(recs) != 1 {
		t.Fatalf("history = %+v", recs)
	}
}

func TestRecordingNamesStayUniqueWithinASecond(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		toggles  int
		want     []string
	}{
		{
			name:    "second capture in the same second",
			toggles: 2,
			want: []string{
				"rec_Jazz24_20240501_120000.mp3",
				"rec_Jazz24_20240501_120001.mp3",
			},
		},
		{
			name:    "three captures in the same second",
			toggles: 3,
			want: []string{
				"rec_Jazz24_20240501_120000.mp3",
				"rec_Jazz24_20240501_120001.mp3",
				"rec_Jazz24_20240501_120002.mp3",
			},
		},
		{
			name:     "file left on disk by an earlier run",
			existing: []string{"rec_Jazz24_20240501_120000.mp3"},
			toggles:  1,
			want:     []string{"rec_Jazz24_20240501_120001.mp3"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := startEngine(t)
			if err := te.fs.MkdirAll(musicDir, 0o755); err != nil {
				t.Fatal(err)
			}
			for _, name := range tt.existing {
				if err := afero.WriteFile(te.fs, musicDir+"/"+name, []byte("mp3"), 0o644); err != nil {
					t.Fatal(err)
				}
			}
			te.playing(t)
			for i := 0; i < tt.toggles; i++ {
				if err := te.ToggleRecord(); err != nil {
					t.Fatalf("start recording %d: %v", i, err)
				}
				te.be.last().set(backend.StatePlaying)
				_ = te.Tick()
				if err := te.ToggleRecord(); err != nil {
					t.Fatalf("stop recording %d: %v", i, err)
				}
				te.be.last().set(backend.StatePlaying)
				_ = te.Tick()
			}
			recs, err := te.Recordings()
			if err != nil {
				t.Fatal(err)
			}
			if len(recs) != len(tt.want) {
				t.Fatalf("history = %+v", recs)
			}
			for i, rec := range recs {
				if want := musicDir + "/" + tt.want[i]; rec.Path != want {
					t.Errorf("recording %d path = %q, want %q", i, rec.Path, want)
				}
			}
		})
	}
}

func TestRecordingFilesystemError(t *testing.T) {
	te := startEngine(t, WithFs(afero.NewReadOnlyFs(afero.NewMemMapFs())))
	h := te.playing(t)

	err := te.ToggleRecord()
	var fsErr *FilesystemError
	if !errors.As(err, &fsErr) {
		t.Fatalf("ToggleRecord() = %v, want *FilesystemError", err)
	}
	if fsErr.Path != musicDir {
		t.Fatalf("error path = %q", fsErr.Path)
	}
	s := te.session(t)
	if s.Recording || s.State != Playing {
		t.Fatalf("playback disturbed: %+v", s)
	}
	if h.isReleased() || te.be.opened() != 1 {
		t.Fatal("pipeline was restarted")
	}
}

func TestOpenFailure(t *testing.T) {
	te := startEngine(t)
	te.be.openErr = errBoom
	_ = te.SelectStation(tsfJazz)

	err := te.Play()
	var beErr *BackendError
	if !errors.As(err, &beErr) {
		t.Fatalf("Play() = %v, want *BackendError", err)
	}
	if beErr.Op != "open" || beErr.URI != tsfJazz.URI || !errors.Is(err, errBoom) {
		t.Fatalf("unexpected error %#v", beErr)
	}
	s := te.session(t)
	if s.State != Stopped || s.Station == nil || s.Station.Name != "TSF Jazz" || s.Status != StatusOpenFailed {
		t.Fatalf("session after failure %+v", s)
	}
}

func TestOpenFailureWhileStartingRecording(t *testing.T) {
	te := startEngine(t)
	te.playing(t)
	te.be.mu.Lock()
	te.be.openErr = errBoom
	te.be.mu.Unlock()

	var beErr *BackendError
	if err := te.ToggleRecord(); !errors.As(err, &beErr) {
		t.Fatalf("ToggleRecord() = %v", err)
	}
	s := te.session(t)
	if s.Recording || s.RecordingPath != "" || s.State != Stopped {
		t.Fatalf("session after failure %+v", s)
	}
	if te.be.live() != 0 {
		t.Fatal("handle leaked")
	}
}

func TestPlayFailureReleasesHandle(t *testing.T) {
	te := startEngine(t)
	te.be.playErr = errBoom
	_ = te.SelectStation(jazz24)

	var beErr *BackendError
	if err := te.Play(); !errors.As(err, &beErr) || beErr.Op != "play" {
		t.Fatalf("Play() = %v", err)
	}
	if te.be.live() != 0 {
		t.Fatal("handle leaked after play failure")
	}
}

func TestStreamTermination(t *testing.T) {
	tests := []struct {
		name      string
		state     backend.State
		record    bool
		status    string
		wantErr   bool
		wantSaved int
	}{
		{name: "ended", state: backend.StateEnded, status: StatusStreamEnded},
		{name: "error", state: backend.StateError, status: StatusStreamError, wantErr: true},
		{name: "ended while recording", state: backend.StateEnded, record: true, status: StatusStreamEnded, wantSaved: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := startEngine(t)
			te.playing(t)
			if tt.record {
				if err := te.ToggleRecord(); err != nil {
					t.Fatal(err)
				}
			}
			events, cancel := te.Subscribe()
			defer cancel()

			te.be.last().set(tt.state)
			_ = te.Tick()

			ev := <-events
			if ev.Status != tt.status || ev.State != Stopped || ev.Recording {
				t.Fatalf("event %+v", ev)
			}
			if (ev.Err != nil) != tt.wantErr {
				t.Fatalf("event error = %v", ev.Err)
			}
			if te.be.live() != 0 {
				t.Fatal("handle not released")
			}
			if recs, _ := te.Recordings(); len(recs) != tt.wantSaved {
				t.Fatalf("history = %+v", recs)
			}
		})
	}
}

func TestSetVolume(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{in: -10, want: 0},
		{in: 0, want: 0},
		{in: 55, want: 55},
		{in: 100, want: 100},
		{in: 150, want: 100},
	}
	te := startEngine(t)
	h := te.playing(t)
	for _, tt := range tests {
		if err := te.SetVolume(tt.in); err != nil {
			t.Fatal(err)
		}
		if s := te.session(t); s.Volume != tt.want {
			t.Fatalf("SetVolume(%d): volume = %d, want %d", tt.in, s.Volume, tt.want)
		}
		if h.vol() != tt.want {
			t.Fatalf("SetVolume(%d): handle volume = %d", tt.in, h.vol())
		}
	}
}

func TestVolumeWithoutPipeline(t *testing.T) {
	te := startEngine(t, WithVolume(30))
	if err := te.SetVolume(65); err != nil {
		t.Fatal(err)
	}
	_ = te.SelectStation(jazz24)
	_ = te.Play()
	if v := te.be.last().vol(); v != 65 {
		t.Fatalf("new pipeline volume = %d, want 65", v)
	}
}

func TestPlayStationFinishesRecording(t *testing.T) {
	te := startEngine(t)
	te.playing(t)
	if err := te.ToggleRecord(); err != nil {
		t.Fatal(err)
	}
	if err := te.PlayStation(tsfJazz); err != nil {
		t.Fatal(err)
	}
	s := te.session(t)
	if s.Recording || s.Station.Name != "TSF Jazz" || s.State != Buffering {
		t.Fatalf("session %+v", s)
	}
	if h := te.be.last(); h.uri != tsfJazz.URI || h.sinkPath() != "" {
		t.Fatalf("new pipeline %q sink %q", h.uri, h.sinkPath())
	}
	if te.be.live() != 1 {
		t.Fatalf("%d live handles", te.be.live())
	}
	if recs, _ := te.Recordings(); len(recs) != 1 {
		t.Fatalf("history = %+v", recs)
	}
}

func TestBufferingTimeout(t *testing.T) {
	te := startEngine(t, WithBufferingTimeout(20*time.Millisecond))
	events, cancel := te.Subscribe()
	defer cancel()

	_ = te.SelectStation(jazz24)
	if err := te.Play(); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Err == nil {
				continue
			}
			if !errors.Is(ev.Err, ErrBufferingTimeout) || ev.State != Stopped || ev.Status != StatusBufferTimeout {
				t.Fatalf("event %+v", ev)
			}
			if te.be.live() != 0 {
				t.Fatal("handle not released")
			}
			return
		case <-deadline:
			t.Fatal("buffering timeout never fired")
		}
	}
}

func TestBufferingTimeoutIgnoresStaleGeneration(t *testing.T) {
	te := startEngine(t)
	_ = te.SelectStation(jazz24)
	_ = te.Play()
	_ = te.Stop()
	_ = te.Play()

	if err := te.do(func() error {
		e := te.Engine
		e.bufferingExpired(1)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	s := te.session(t)
	if s.State != Buffering || s.Generation != 2 {
		t.Fatalf("stale timer affected session: %+v", s)
	}
	if te.be.live() != 1 {
		t.Fatal("stale timer released the current handle")
	}
}

func TestBufferingTimeoutIgnoredOncePlaying(t *testing.T) {
	te := startEngine(t)
	_ = te.SelectStation(jazz24)
	_ = te.Play()
	te.be.last().set(backend.StatePlaying)

	_ = te.do(func() error {
		te.Engine.bufferingExpired(te.Engine.gen)
		return nil
	})
	if te.be.live() != 1 {
		t.Fatal("playing pipeline was torn down")
	}
}

func TestTickWithoutPipelineIsSilent(t *testing.T) {
	te := startEngine(t)
	events, cancel := te.Subscribe()
	defer cancel()

	_ = te.Tick()
	_ = te.Tick()
	select {
	case ev := <-events:
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestSlowSubscriberLosesOldest(t *testing.T) {
	te := startEngine(t)
	h := te.playing(t)
	events, cancel := te.Subscribe()
	defer cancel()

	const n = subscriberBufferDepth + 4
	for i := 0; i < n; i++ {
		h.setTrack(fmt.Sprintf("t%d", i))
		if err := te.Tick(); err != nil {
			t.Fatal(err)
		}
	}
	if got := len(events); got != subscriberBufferDepth {
		t.Fatalf("buffered %d events", got)
	}
	if ev := <-events; ev.Track != "t4" {
		t.Fatalf("oldest kept event track = %q, want t4", ev.Track)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	te := startEngine(t)
	events, cancel := te.Subscribe()
	cancel()
	cancel()
	_ = te.Tick() // flushes the cancel through the loop
	if _, ok := <-events; ok {
		t.Fatal("channel still open after cancel")
	}
}

func TestShutdown(t *testing.T) {
	te := startEngine(t)
	te.playing(t)
	if err := te.ToggleRecord(); err != nil {
		t.Fatal(err)
	}
	events, _ := te.Subscribe()

	te.close()

	for range events {
		// drain until closed
	}
	if err := te.Play(); !errors.Is(err, ErrClosed) {
		t.Fatalf("Play after shutdown = %v", err)
	}
	if _, err := te.Session(); !errors.Is(err, ErrClosed) {
		t.Fatalf("Session after shutdown = %v", err)
	}
	if te.be.live() != 0 {
		t.Fatal("handle leaked on shutdown")
	}
	te.be.mu.Lock()
	closed := te.be.closed
	te.be.mu.Unlock()
	if !closed {
		t.Fatal("backend not closed")
	}
	if ch, _ := te.Subscribe(); ch == nil {
		t.Fatal("nil channel after shutdown")
	}
}

func TestPollerDrivesSamples(t *testing.T) {
	te := startEngine(t, WithPollInterval(5*time.Millisecond))
	_ = te.SelectStation(jazz24)
	_ = te.Play()
	te.be.last().set(backend.StatePlaying)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s := te.session(t); s.State == Playing {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("poller never observed Playing")
}
