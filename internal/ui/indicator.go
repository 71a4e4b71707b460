package ui

import (
	"image/color"
	"math"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
)

// IndicatorMode selects what the state indicator shows.
type IndicatorMode int

const (
	IndicatorOff IndicatorMode = iota
	IndicatorWaiting
	IndicatorPaused
	IndicatorLive
	IndicatorRecording
)

var (
	colorOff     = color.NRGBA{0x80, 0x80, 0x80, 0xFF}
	colorWaiting = color.NRGBA{0xE0, 0xA0, 0x20, 0xFF}
	colorPaused  = color.NRGBA{0x30, 0x70, 0x40, 0xFF}
)

// StateIndicator is a small circle that stays gray when stopped, amber while
// buffering, breathes through green hues while live and pulses red while
// recording.
type StateIndicator struct {
	wrap   *fyne.Container
	circle *canvas.Circle

	mu   sync.Mutex
	mode IndicatorMode
	stop chan struct{}
}

// NewStateIndicator constructs a StateIndicator with the given diameter.
func NewStateIndicator(diameter float32) *StateIndicator {
	c := canvas.NewCircle(colorOff)
	c.StrokeColor = color.NRGBA{0, 0, 0, 0}
	inner := container.New(layout.NewGridWrapLayout(fyne.NewSize(diameter, diameter)), c)
	return &StateIndicator{wrap: container.NewCenter(inner), circle: c}
}

// CanvasObject returns the fyne object suitable for embedding in layouts.
func (s *StateIndicator) CanvasObject() fyne.CanvasObject { return s.wrap }

// SetMode switches the indicator. Animated modes run their own goroutine
// until the mode changes.
func (s *StateIndicator) SetMode(m IndicatorMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m == s.mode {
		return
	}
	s.mode = m
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	switch m {
	case IndicatorLive, IndicatorRecording:
		s.stop = make(chan struct{})
		go s.animate(m, s.stop)
	default:
		s.paint(staticColor(m))
	}
}

// Close stops any running animation.
func (s *StateIndicator) Close() {
	s.SetMode(IndicatorOff)
}

func (s *StateIndicator) paint(col color.NRGBA) {
	CallOnMain(func() {
		s.circle.FillColor = col
		s.circle.Refresh()
	})
}

func (s *StateIndicator) animate(m IndicatorMode, stop <-chan struct{}) {
	t := time.NewTicker(90 * time.Millisecond)
	defer t.Stop()
	step := 0
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			step++
			s.paint(frameColor(m, step))
		}
	}
}

func staticColor(m IndicatorMode) color.NRGBA {
	switch m {
	case IndicatorWaiting:
		return colorWaiting
	case IndicatorPaused:
		return colorPaused
	default:
		return colorOff
	}
}

// frameColor returns the animation colour for step. Live cycles hues in the
// green band, recording pulses the brightness of pure red.
func frameColor(m IndicatorMode, step int) color.NRGBA {
	switch m {
	case IndicatorRecording:
		v := 0.55 + 0.4*math.Abs(math.Sin(float64(step)*math.Pi/12))
		return hsvToNRGBA(0, 0.85, v)
	case IndicatorLive:
		hue := 90 + math.Mod(float64(step)*4, 80)
		return hsvToNRGBA(hue, 0.65, 0.95)
	default:
		return staticColor(m)
	}
}

// hsvToNRGBA converts HSV (0..360, 0..1, 0..1) to color.NRGBA.
func hsvToNRGBA(h, s, v float64) color.NRGBA {
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60.0, 2)-1))
	m := v - c
	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return color.NRGBA{
		R: uint8((r+m)*255 + 0.5),
		G: uint8((g+m)*255 + 0.5),
		B: uint8((b+m)*255 + 0.5),
		A: 0xFF,
	}
}
