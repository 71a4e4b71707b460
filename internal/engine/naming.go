package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

const (
	recordingPrefix    = "rec_"
	recordingExt       = ".mp3"
	recordingTimestamp = "20060102_150405"
	musicDirPermission = 0o755
	// maxNameAttempts bounds how far a clashing timestamp is moved forward.
	maxNameAttempts = 60
)

// SanitizeName keeps only the letters and digits of a station name. The
// result may be empty.
func SanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, name)
}

// RecordingFileName returns rec_<name>_<YYYYMMDD_HHMMSS>.mp3.
func RecordingFileName(station string, at time.Time) string {
	return fmt.Sprintf("%s%s_%s%s", recordingPrefix, SanitizeName(station), at.Format(recordingTimestamp), recordingExt)
}

func recordingPath(dir, station string, at time.Time) string {
	return filepath.Join(dir, RecordingFileName(station, at))
}

// DefaultMusicDir returns <home>/Music.
func DefaultMusicDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, "Music"), nil
}

// newRecordingID returns a time-ordered identifier for a capture segment.
func newRecordingID(now time.Time) string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf("rec-%d", now.UnixNano())
	}
	return id.String()
}
