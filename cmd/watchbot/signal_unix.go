// Shutdown signal handling for Unix-like platforms.

//go:build !windows

package main

import (
	"os"
	"os/signal"
	"syscall"
)

// ///////////////////////////////////////////////
// Signal Handling
// ///////////////////////////////////////////////

// signalChannel returns a channel that receives SIGINT and SIGTERM, covering
// both an operator's Ctrl+C and the stop signal sent by process managers and
// container runtimes. The buffer of 1 keeps a signal from being dropped while
// the event loop is mid-cycle.
func signalChannel() <-chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	return ch
}
