// Package radioapp presents the RecRadio desktop window. It forwards user
// gestures to the engine and renders the events it publishes; it keeps no
// playback state of its own.
package radioapp

import (
	"context"
	"errors"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/data/binding"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog"

	"github.com/edward-ap/recradio/internal/catalog"
	"github.com/edward-ap/recradio/internal/config"
	"github.com/edward-ap/recradio/internal/engine"
	"github.com/edward-ap/recradio/internal/ui"
)

// App owns the fyne application, the main window and the engine it drives.
type App struct {
	fa  fyne.App
	w   fyne.Window
	eng *engine.Engine
	cat *catalog.Catalog
	cfg *config.Config
	log zerolog.Logger

	genreSel    *widget.Select
	stationList *widget.List
	stations    []catalog.Station

	playBtn   *widget.Button
	stopBtn   *widget.Button
	recBtn    *widget.Button
	volSlider *widget.Slider
	volume    binding.Float

	stationText binding.String
	statusText  binding.String
	trackLbl    *widget.Label
	ticker      *ui.TickerController
	ind         *ui.StateIndicator
}

// NewApp builds the window around eng. The engine is not started until Run.
func NewApp(eng *engine.Engine, cfg *config.Config, log zerolog.Logger) *App {
	fa := app.NewWithID(cfg.AppID())
	fa.Settings().SetTheme(theme.DarkTheme())
	fa.SetIcon(theme.MediaMusicIcon())

	w := fa.NewWindow(appTitle)
	w.SetMaster()
	w.Resize(fyne.NewSize(float32(cfg.WindowW), float32(cfg.WindowH)))

	a := &App{
		fa:          fa,
		w:           w,
		eng:         eng,
		cat:         eng.Catalog(),
		cfg:         cfg,
		log:         log.With().Str("component", "ui").Logger(),
		volume:      binding.NewFloat(),
		stationText: binding.NewString(),
		statusText:  binding.NewString(),
	}
	a.buildUI()
	w.Canvas().SetOnTypedKey(a.handleShortcutKey)
	return a
}

// Run starts the engine, shows the window and blocks until it is closed.
// The engine is shut down and the config saved before Run returns.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- a.eng.Run(ctx) }()

	events, unsubscribe := a.eng.Subscribe()
	go a.forwardEvents(events)

	a.restoreSelection()

	a.w.SetCloseIntercept(func() {
		a.saveWindow()
		unsubscribe()
		cancel()
		a.ticker.Close()
		a.ind.Close()
		a.w.Close()
		a.fa.Quit()
	})

	a.w.ShowAndRun()
	cancel()
	return <-runErr
}

func (a *App) forwardEvents(events <-chan engine.Event) {
	for ev := range events {
		v := viewFor(ev)
		ui.CallOnMain(func() { a.render(v) })
		if ev.Err != nil {
			a.log.Debug().Err(ev.Err).Str("status", ev.Status).Msg("engine reported failure")
		}
	}
}

func (a *App) buildUI() {
	a.genreSel = widget.NewSelect(a.cat.Genres(), a.onGenreSelected)
	a.genreSel.PlaceHolder = "Select genre"

	a.stationList = widget.NewList(
		func() int { return len(a.stations) },
		func() fyne.CanvasObject { return widget.NewLabel("station") },
		func(id widget.ListItemID, o fyne.CanvasObject) {
			if id < len(a.stations) {
				o.(*widget.Label).SetText(a.stations[id].Name)
			}
		},
	)
	a.stationList.OnSelected = a.onStationSelected

	a.playBtn = widget.NewButtonWithIcon("", theme.MediaPlayIcon(), func() {
		a.report(a.eng.TogglePlayPause())
	})
	a.stopBtn = widget.NewButtonWithIcon("", theme.MediaStopIcon(), func() {
		a.report(a.eng.Stop())
	})
	a.stopBtn.Disable()
	a.recBtn = widget.NewButtonWithIcon(recordText, theme.MediaRecordIcon(), func() {
		a.report(a.eng.ToggleRecord())
	})
	a.recBtn.Disable()

	_ = a.volume.Set(float64(a.cfg.Volume))
	a.volSlider = widget.NewSliderWithData(0, 100, a.volume)
	a.volSlider.Step = 1
	a.volume.AddListener(binding.NewDataListener(a.onVolumeChanged))

	a.ind = ui.NewStateIndicator(12)
	a.trackLbl = widget.NewLabel("")
	a.trackLbl.Truncation = fyne.TextTruncateClip
	trackBox := container.NewStack(a.trackLbl)
	a.ticker = ui.NewTickerController(a.trackLbl, trackBox, engine.TrackNoMetadata)

	stationLbl := widget.NewLabelWithData(a.stationText)
	stationLbl.TextStyle = fyne.TextStyle{Bold: true}
	statusLbl := widget.NewLabelWithData(a.statusText)
	_ = a.stationText.Set(noStationText)
	_ = a.statusText.Set(engine.StatusReady)

	transport := container.NewHBox(a.playBtn, a.stopBtn, a.recBtn, layout.NewSpacer(), widget.NewIcon(theme.VolumeUpIcon()))
	controls := container.NewBorder(nil, nil, transport, nil, a.volSlider)
	info := container.NewVBox(
		container.NewHBox(a.ind.CanvasObject(), stationLbl),
		statusLbl,
		trackBox,
	)
	bottom := container.NewVBox(widget.NewSeparator(), info, controls)

	root := container.NewBorder(a.genreSel, bottom, nil, nil, a.stationList)
	a.w.SetContent(root)
}

// restoreSelection reselects the last genre and station without playing.
func (a *App) restoreSelection() {
	genre, st, ok := restoreTarget(a.cat, a.cfg)
	if genre == "" {
		return
	}
	a.genreSel.SetSelected(genre)
	if ok {
		a.report(a.eng.SelectStation(st))
	}
}

func (a *App) onGenreSelected(genre string) {
	a.stations = a.cat.StationsIn(genre)
	a.stationList.UnselectAll()
	a.stationList.Refresh()
	a.cfg.LastGenre = genre
}

// onStationSelected plays the clicked station straight away.
func (a *App) onStationSelected(id widget.ListItemID) {
	if id < 0 || id >= len(a.stations) {
		return
	}
	st := a.stations[id]
	a.cfg.LastStation = st.Name
	_ = a.cfg.Save()
	a.report(a.eng.PlayStation(st))
}

func (a *App) onVolumeChanged() {
	v, err := a.volume.Get()
	if err != nil {
		return
	}
	level := int(v + 0.5)
	if level == a.cfg.Volume {
		return
	}
	a.cfg.Volume = level
	a.report(a.eng.SetVolume(level))
}

func (a *App) changeVolume(delta int) {
	v := a.cfg.Volume + delta
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	_ = a.volume.Set(float64(v))
}

// handleShortcutKey maps keys to transport gestures.
func (a *App) handleShortcutKey(ke *fyne.KeyEvent) {
	if ke == nil {
		return
	}
	switch ke.Name {
	case fyne.KeySpace:
		a.report(a.eng.TogglePlayPause())
	case fyne.KeyS:
		a.report(a.eng.Stop())
	case fyne.KeyR:
		a.report(a.eng.ToggleRecord())
	case fyne.KeyUp:
		a.changeVolume(+10)
	case fyne.KeyDown:
		a.changeVolume(-10)
	}
}

// report surfaces failures the status line cannot explain on its own.
func (a *App) report(err error) {
	if err == nil || errors.Is(err, engine.ErrClosed) {
		return
	}
	var beErr *engine.BackendError
	var fsErr *engine.FilesystemError
	switch {
	case errors.As(err, &beErr), errors.As(err, &fsErr):
		a.log.Warn().Err(err).Msg("operation failed")
		dialog.ShowError(err, a.w)
	default:
		a.log.Debug().Err(err).Msg("operation rejected")
	}
}

func (a *App) saveWindow() {
	sz := a.w.Canvas().Size()
	a.cfg.WindowW = int(sz.Width)
	a.cfg.WindowH = int(sz.Height)
	if err := a.cfg.Save(); err != nil {
		a.log.Warn().Err(err).Msg("config save failed")
	}
}
