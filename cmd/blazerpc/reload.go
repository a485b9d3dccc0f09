package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	blazerpc "github.com/Ifihan/blazerpc"
)

// reloadPollInterval is how often serveWithReload checks the plugin
// file's mtime. Hot-reload is an external collaborator per spec.md §1
// ("the CLI front-end and process supervision / hot-reload"); this is a
// minimal polling watcher, not a production file-watch implementation.
const reloadPollInterval = time.Second

// serveWithReload restarts App.Serve whenever appRef's plugin file's
// modification time changes, until ctx is canceled. Each restart calls
// loadApp again, but plugin.Open returns the already-loaded plugin for a
// path it has opened before, so a restart serves the App from the plugin
// loaded at startup; the rebuilt file's code is not loaded.
func serveWithReload(ctx context.Context, appRef string, opts []blazerpc.ServeOption) error {
	path, _, _ := strings.Cut(appRef, ":")

	lastMod, err := modTime(path)
	if err != nil {
		return &ConfigurationError{Detail: err.Error()}
	}

	for {
		runCtx, cancelRun := context.WithCancel(ctx)
		serveErrCh := make(chan error, 1)

		app, err := loadApp(appRef)
		if err != nil {
			cancelRun()
			return err
		}
		go func() { serveErrCh <- app.Serve(runCtx, opts...) }()

		ticker := time.NewTicker(reloadPollInterval)
		var restart bool
		for !restart {
			select {
			case <-ctx.Done():
				ticker.Stop()
				cancelRun()
				<-serveErrCh
				return nil
			case err := <-serveErrCh:
				ticker.Stop()
				cancelRun()
				return err
			case <-ticker.C:
				mod, err := modTime(path)
				if err == nil && mod.After(lastMod) {
					lastMod = mod
					restart = true
				}
			}
		}
		ticker.Stop()
		log.Printf("blazerpc: %s changed, reloading", path)
		cancelRun()
		<-serveErrCh
	}
}

func modTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return info.ModTime(), nil
}
