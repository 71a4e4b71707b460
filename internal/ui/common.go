// Package ui holds the fyne widgets of the RecRadio window that animate on
// their own: the playback state lamp and the scrolling track ticker.
package ui

import "fyne.io/fyne/v2"

type runOnMainDriver interface {
	RunOnMain(func())
}

type callOnMainDriver interface {
	CallOnMain(func())
}

// CallOnMain runs f on the fyne UI thread. Engine events and widget timers
// fire on their own goroutines and must go through here before touching a
// widget. Without a running app or a driver that can dispatch, f runs inline.
func CallOnMain(f func()) {
	if f == nil {
		return
	}
	switch drv := currentDriver().(type) {
	case runOnMainDriver:
		drv.RunOnMain(f)
	case callOnMainDriver:
		drv.CallOnMain(f)
	default:
		f()
	}
}

func currentDriver() fyne.Driver {
	a := fyne.CurrentApp()
	if a == nil {
		return nil
	}
	return a.Driver()
}
