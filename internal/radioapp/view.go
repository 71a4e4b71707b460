package radioapp

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/edward-ap/recradio/internal/engine"
	"github.com/edward-ap/recradio/internal/ui"
)

const (
	appTitle      = "RecRadio"
	noStationText = "No station"
	recordText    = "Record"
	stopRecText   = "Stop recording"
)

// viewState is everything the window derives from one engine event.
type viewState struct {
	title        string
	station      string
	status       string
	track        string
	showPause    bool
	recordLabel  string
	recordDanger bool
	recordEnable bool
	stopEnable   bool
	indicator    ui.IndicatorMode
}

func viewFor(ev engine.Event) viewState {
	v := viewState{
		title:        appTitle,
		station:      noStationText,
		status:       ev.Status,
		track:        ev.Track,
		showPause:    ev.State == engine.Playing || ev.State == engine.Buffering,
		recordLabel:  recordText,
		recordEnable: ev.State == engine.Playing || ev.Recording,
		stopEnable:   ev.State != engine.Stopped,
		indicator:    indicatorFor(ev),
	}
	if ev.StationName != "" {
		v.station = ev.StationName
		v.title = appTitle + " - " + ev.StationName
	}
	if ev.Recording {
		v.recordLabel = stopRecText
		v.recordDanger = true
	}
	return v
}

func indicatorFor(ev engine.Event) ui.IndicatorMode {
	switch {
	case ev.Recording && ev.State != engine.Stopped:
		return ui.IndicatorRecording
	case ev.State == engine.Playing:
		return ui.IndicatorLive
	case ev.State == engine.Buffering:
		return ui.IndicatorWaiting
	case ev.State == engine.Paused:
		return ui.IndicatorPaused
	default:
		return ui.IndicatorOff
	}
}

// render applies v to the widgets. Must run on the UI thread.
func (a *App) render(v viewState) {
	a.w.SetTitle(v.title)
	_ = a.stationText.Set(v.station)
	_ = a.statusText.Set(v.status)
	a.ticker.SetText(v.track)
	a.ind.SetMode(v.indicator)

	if v.showPause {
		a.playBtn.SetIcon(theme.MediaPauseIcon())
	} else {
		a.playBtn.SetIcon(theme.MediaPlayIcon())
	}
	setEnabled(a.stopBtn, v.stopEnable)
	setEnabled(a.recBtn, v.recordEnable)
	a.recBtn.SetText(v.recordLabel)
	if v.recordDanger {
		a.recBtn.Importance = widget.DangerImportance
	} else {
		a.recBtn.Importance = widget.MediumImportance
	}
	a.recBtn.Refresh()
}

func setEnabled(w fyne.Disableable, on bool) {
	if on {
		w.Enable()
	} else {
		w.Disable()
	}
}
