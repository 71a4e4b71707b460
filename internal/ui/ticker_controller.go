package ui

import (
	"context"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/data/binding"
	"fyne.io/fyne/v2/widget"
)

// TickerController shows now-playing text in a label and scrolls it when it
// overflows the parent. SetText is safe to call from any goroutine.
type TickerController struct {
	lbl         *widget.Label
	parent      fyne.CanvasObject // container used to measure visible width
	placeholder string

	mu       sync.Mutex
	cancel   context.CancelFunc
	lastText string

	bind binding.String

	speed   time.Duration
	padding string
}

// NewTickerController binds lbl and shows placeholder whenever the text is
// empty.
func NewTickerController(lbl *widget.Label, parent fyne.CanvasObject, placeholder string) *TickerController {
	b := binding.NewString()
	lbl.Bind(b)
	_ = b.Set(placeholder)
	return &TickerController{
		lbl:         lbl,
		parent:      parent,
		placeholder: placeholder,
		bind:        b,
		speed:       120 * time.Millisecond,
		padding:     "   ",
	}
}

// Close stops any scrolling goroutine.
func (tc *TickerController) Close() {
	tc.mu.Lock()
	if tc.cancel != nil {
		tc.cancel()
		tc.cancel = nil
	}
	tc.mu.Unlock()
}

// SetText updates the ticker text. Repeating the current text is a no-op so
// periodic status samples do not restart the scroll.
func (tc *TickerController) SetText(text string) {
	if text == "" {
		text = tc.placeholder
	}

	tc.mu.Lock()
	if text == tc.lastText {
		tc.mu.Unlock()
		return
	}
	if tc.cancel != nil {
		tc.cancel()
		tc.cancel = nil
	}
	tc.lastText = text
	tc.mu.Unlock()

	_ = tc.bind.Set(text)

	textW := measureLabelTextWidth(tc.lbl, text)
	if !tickerNeedsScroll(textW, tc.parent.Size().Width) {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	tc.mu.Lock()
	tc.cancel = cancel
	tc.mu.Unlock()
	go tc.scroll(ctx, text, textW)
}

func (tc *TickerController) scroll(ctx context.Context, orig string, neededW float32) {
	work := []rune(tc.padding + orig + tc.padding)
	offset := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(tc.speed):
			tc.mu.Lock()
			current := tc.lastText
			tc.mu.Unlock()
			if current != orig || !tickerNeedsScroll(neededW, tc.parent.Size().Width) {
				_ = tc.bind.Set(current)
				return
			}
			offset = (offset + 1) % len(work)
			_ = tc.bind.Set(rotate(work, offset))
		}
	}
}

// rotate returns r shifted left by n runes.
func rotate(r []rune, n int) string {
	if len(r) == 0 {
		return ""
	}
	n %= len(r)
	return string(r[n:]) + string(r[:n])
}

// measureLabelTextWidth estimates the width the label would need for the text.
func measureLabelTextWidth(lbl *widget.Label, text string) float32 {
	if lbl == nil {
		return 0
	}
	tmp := widget.NewLabel(text)
	tmp.Alignment = lbl.Alignment
	tmp.TextStyle = lbl.TextStyle
	tmp.Truncation = lbl.Truncation
	tmp.Refresh()
	return tmp.MinSize().Width
}

const tickerWidthEpsilon float32 = 0.5

// tickerNeedsScroll reports whether the track text overflows the viewport.
func tickerNeedsScroll(textWidth, viewportWidth float32) bool {
	if textWidth <= 0 {
		return false
	}
	if viewportWidth < 0 {
		viewportWidth = 0
	}
	return textWidth-viewportWidth > tickerWidthEpsilon
}
