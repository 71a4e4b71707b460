package engine

import (
	"time"

	"github.com/edward-ap/recradio/internal/catalog"
)

// PlaybackState is the engine-level playback phase. Recording is tracked
// separately as a flag on Session.
type PlaybackState int

const (
	Stopped PlaybackState = iota
	Buffering
	Playing
	Paused
)

func (s PlaybackState) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Buffering:
		return "Buffering"
	case Playing:
		return "Playing"
	case Paused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// DefaultVolume is the volume a new session starts with.
const DefaultVolume = 80

// Session is a snapshot of the engine's playback state.
type Session struct {
	Station       *catalog.Station
	State         PlaybackState
	Recording     bool
	RecordingPath string
	Volume        int
	// Generation identifies the open pipeline; 0 means none is open.
	Generation uint64
	Status     string
	Track      string
}

func (s Session) clone() Session {
	if s.Station != nil {
		st := *s.Station
		s.Station = &st
	}
	return s
}

// Recording describes one finished capture segment.
type Recording struct {
	ID        string
	Station   string
	Path      string
	StartedAt time.Time
	EndedAt   time.Time
}

// Duration is how long the segment was captured for.
func (r Recording) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
