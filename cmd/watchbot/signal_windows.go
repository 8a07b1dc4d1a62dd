// Shutdown signal handling for Windows.

//go:build windows

package main

import (
	"os"
	"os/signal"
)

// ///////////////////////////////////////////////
// Signal Handling
// ///////////////////////////////////////////////

// signalChannel returns a channel that receives os.Interrupt. Windows has no
// SIGTERM; the Go runtime maps Ctrl+C, CTRL_BREAK_EVENT, and console-close
// events onto os.Interrupt, which is enough for a clean stop. The buffer of 1
// keeps a signal from being dropped while the event loop is mid-cycle.
func signalChannel() <-chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	return ch
}
