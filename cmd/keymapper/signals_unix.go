//go:build unix

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/keymapper/internal/app"
)

// watchSignals reloads the key maps on SIGHUP and toggles pause on SIGUSR1
// until ctx is done.
func watchSignals(ctx context.Context, application *app.Application) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGHUP, syscall.SIGUSR1)

	go func() {
		defer signal.Stop(signals)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-signals:
				switch sig {
				case syscall.SIGHUP:
					if err := application.ReloadKeyMaps(); err != nil {
						application.Logger().WithError(err).Error("reload failed")
					}
				case syscall.SIGUSR1:
					application.TogglePause()
				}
			}
		}
	}()
}
