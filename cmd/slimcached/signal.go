package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/cuckoocache/slimcache/log"
)

// ignoreSIGPIPE matches spec.md §6: a client that resets its connection
// mid-write must not take the whole process down.
func ignoreSIGPIPE() {
	signal.Ignore(syscall.SIGPIPE)
}

// handleLogReopen reacts to SIGTTIN, the log-rotation signal from spec.md
// §6. Since Go's log.Logger writes through an io.Writer chosen at startup
// rather than a reopenable file descriptor, "reopen" here means only
// logging that the signal arrived: a log file opened from log_name is not
// closed or reopened, so it keeps writing to the same file descriptor.
// Returns a stop func that ends the goroutine.
func handleLogReopen(logger log.Logger) (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTTIN)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-sigCh:
				logger.Info("SIGTTIN received: log rotation requested")
			case <-done:
				signal.Stop(sigCh)
				return
			}
		}
	}()
	return func() { close(done) }
}
