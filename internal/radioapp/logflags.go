package radioapp

import "github.com/edward-ap/recradio/internal/backend/vlcbackend"

// SetTraceLogEnabled toggles verbose/file logging for libVLC initialisation.
// Call this before creating the backend so NewVLC can see the flag.
func SetTraceLogEnabled(b bool) { vlcbackend.SetTraceLoggingEnabled(b) }
