package engine

// Event is published after every state change and on each poll tick while a
// pipeline is open.
type Event struct {
	Generation    uint64
	StationName   string
	Track         string
	Status        string
	State         PlaybackState
	Recording     bool
	RecordingPath string
	// Err is set when the event reports a failure.
	Err error
}

// Status texts shown by the presentation layer.
const (
	StatusReady           = "Select a station"
	StatusStopped         = "Stopped"
	StatusBuffering       = "Buffering…"
	StatusPlaying         = "Playing"
	StatusPaused          = "Paused"
	StatusRecording       = "RECORDING…"
	StatusNoStation       = "No station selected"
	StatusCannotRecord    = "Cannot record: not playing."
	StatusStreamEnded     = "Stream ended"
	StatusStreamError     = "Stream error"
	StatusBufferTimeout   = "Buffering timed out"
	StatusOpenFailed      = "Failed to open stream"
	StatusMusicDirFailed  = "Cannot create music folder"
	StatusRecordingSaved  = "Recording saved to "
	TrackNoMetadata       = "No metadata"
	subscriberBufferDepth = 16
)

type subscriber struct {
	ch chan Event
}

// deliver never blocks: when the buffer is full the oldest event is dropped.
func (s *subscriber) deliver(ev Event) {
	for {
		select {
		case s.ch <- ev:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

func (e *Engine) event(err error) Event {
	ev := Event{
		Generation:    e.sess.Generation,
		Track:         e.sess.Track,
		Status:        e.sess.Status,
		State:         e.sess.State,
		Recording:     e.sess.Recording,
		RecordingPath: e.sess.RecordingPath,
		Err:           err,
	}
	if e.sess.Station != nil {
		ev.StationName = e.sess.Station.Name
	}
	return ev
}

func (e *Engine) emit(err error) {
	ev := e.event(err)
	for _, s := range e.subs {
		s.deliver(ev)
	}
}

func (e *Engine) closeSubscribers() {
	for id, s := range e.subs {
		close(s.ch)
		delete(e.subs, id)
	}
}
