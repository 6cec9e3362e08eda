// Package app wires the keymapper together: configuration, logging, input
// sources, constraints, actions and the controller, and manages their
// lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/dshills/keymapper/internal/action"
	"github.com/dshills/keymapper/internal/config"
	"github.com/dshills/keymapper/internal/constraint"
	"github.com/dshills/keymapper/internal/controller"
	"github.com/dshills/keymapper/internal/detect"
	"github.com/dshills/keymapper/internal/logging"
	"github.com/dshills/keymapper/internal/mapping"
	"github.com/dshills/keymapper/internal/source"
)

// Application is the central coordinator for all keymapper components.
type Application struct {
	cfg config.Config
	log *logging.Logger

	state    *constraint.StaticState
	actions  *action.Registry
	ctl      *controller.Controller
	sources  *source.Group
	terminal *source.Terminal
	listener listenerProxy

	mu      sync.Mutex
	watcher *config.Watcher

	running  atomic.Bool
	shutdown sync.Once

	opts Options
}

// Options configures the application. Non-empty fields override the
// configuration file.
type Options struct {
	// ConfigPath is the path to the TOML configuration file.
	ConfigPath string

	// KeyMapsPath is the key map file.
	KeyMapsPath string

	// LogLevel sets the logging verbosity.
	LogLevel string

	// Source selects the input source (evdev, terminal or none).
	Source string

	// Devices lists evdev device nodes.
	Devices []string

	// LogOutput receives log output. Defaults to stderr, or nowhere when
	// the terminal source owns the screen.
	LogOutput io.Writer

	// Sources replaces the configured input sources.
	Sources []source.Source
}

// New creates an Application and initializes every component. The
// controller is started and the key maps are loaded.
func New(opts Options) (*Application, error) {
	app := &Application{opts: opts}
	if err := newBootstrapper(app, opts).bootstrap(); err != nil {
		return nil, err
	}
	return app, nil
}

// Run reads input until ctx is cancelled or a source asks to quit, in which
// case ErrQuit is returned.
func (app *Application) Run(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	if app.cfg.KeyMaps.Watch {
		app.watch()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg conc.WaitGroup
	if interval := app.cfg.Logging.MetricsInterval.Std(); interval > 0 {
		wg.Go(func() { app.reportMetrics(ctx, interval) })
	}

	err := app.runSources(ctx)
	cancel()
	wg.Wait()

	if err != nil && !errors.Is(err, ErrQuit) {
		app.log.WithError(err).Error("input stopped")
	}
	return err
}

func (app *Application) runSources(ctx context.Context) error {
	if app.sources == nil {
		app.log.Info("no input source, waiting")
		<-ctx.Done()
		return nil
	}
	err := app.sources.Run(ctx, app.ctl)
	if errors.Is(err, source.ErrQuit) {
		return ErrQuit
	}
	return err
}

// Shutdown stops the watcher and the controller. It is safe to call more
// than once.
func (app *Application) Shutdown(ctx context.Context) error {
	var err error
	app.shutdown.Do(func() {
		app.mu.Lock()
		if app.watcher != nil {
			err = multierr.Append(err, app.watcher.Close())
		}
		app.mu.Unlock()
		if app.ctl != nil {
			err = multierr.Append(err, app.ctl.Stop(ctx))
		}
		app.log.Info("shut down")
		_ = app.log.Sync()
	})
	return err
}

// IsRunning reports whether Run is active.
func (app *Application) IsRunning() bool {
	return app.running.Load()
}

// Config returns the effective configuration.
func (app *Application) Config() config.Config {
	return app.cfg
}

// Controller returns the controller.
func (app *Application) Controller() *controller.Controller {
	return app.ctl
}

// Actions returns the action registry.
func (app *Application) Actions() *action.Registry {
	return app.actions
}

// DeviceState returns the state that constraints are evaluated against.
func (app *Application) DeviceState() *constraint.StaticState {
	return app.state
}

// Logger returns the root logger.
func (app *Application) Logger() *logging.Logger {
	return app.log
}

// ReloadKeyMaps reads the key map file and applies it. On any error the
// previous key maps stay active.
func (app *Application) ReloadKeyMaps() error {
	path := app.cfg.KeyMaps.Path
	snap, err := config.LoadKeyMaps(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return &OperationError{Op: "reload", Target: path, Err: err}
		}
		app.log.Warn("key map file %s not found, no key maps active", path)
		snap = mapping.Snapshot{}
	}

	if err := app.ctl.OnConfigurationChanged(snap); err != nil {
		return &OperationError{Op: "reload", Target: path, Err: err}
	}
	return nil
}

// TogglePause pauses or resumes detection.
func (app *Application) TogglePause() {
	paused := !app.ctl.IsPaused()
	if err := app.ctl.SetPaused(paused); err != nil {
		app.log.WithError(err).Warn("cannot change pause state")
		return
	}
	if app.terminal != nil {
		if paused {
			app.terminal.Printf("paused")
		} else {
			app.terminal.Printf("resumed")
		}
	}
}

// Printf shows a message on the terminal source's screen when it is in
// use, and on stderr otherwise.
func (app *Application) Printf(format string, args ...any) {
	if app.terminal != nil {
		app.terminal.Printf(format, args...)
		return
	}
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

func (app *Application) onGesture(g mapping.FingerprintGesture) {
	if err := app.ctl.OnFingerprintGesture(g); err != nil {
		app.log.WithError(err).Info("fingerprint gesture %s ignored", g)
	}
}

func (app *Application) onFiring(f detect.Firing) {
	if app.terminal != nil {
		app.terminal.Printf("fired %s %s", f.KeyMapUID, f.Trigger)
	}
}

func (app *Application) watch() {
	app.mu.Lock()
	defer app.mu.Unlock()
	if app.watcher != nil {
		return
	}

	w, err := config.WatchFile(app.cfg.KeyMaps.Path, func(path string) {
		app.log.Info("key map file %s changed", path)
		if err := app.ReloadKeyMaps(); err != nil {
			app.log.WithError(err).Error("keeping previous key maps")
		}
	}, config.WithWatcherLogger(app.log.WithComponent("watcher")))
	if err != nil {
		app.log.WithError(err).Warn("not watching key maps")
		return
	}
	app.watcher = w
}

func (app *Application) reportMetrics(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log := app.log.WithComponent("metrics")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m := app.ctl.Metrics().Snapshot()
			keys, actions := app.ctl.LoopStats(), app.ctl.ActionStats()
			log.WithFields(map[string]any{
				"events":         m.EventsTotal,
				"consumed":       m.EventsConsumed,
				"firings":        m.Firings,
				"blocked":        m.BlockedFirings,
				"dropped":        m.DroppedFirings,
				"action_errors":  m.ActionFailures,
				"timeouts":       m.SequenceTimeouts,
				"timer_failures": m.TimerFailures,
				"imitations":     m.Imitations,
				"key_latency":    keys.AvgDuration.String(),
				"action_latency": actions.AvgDuration.String(),
				"action_backlog": actions.QueueDepth,
			}).Info("detection metrics")
		}
	}
}

// listenerProxy forwards recording events to the active recording session.
type listenerProxy struct {
	mu     sync.Mutex
	target controller.Listener
}

func (p *listenerProxy) set(l controller.Listener) {
	p.mu.Lock()
	p.target = l
	p.mu.Unlock()
}

func (p *listenerProxy) get() controller.Listener {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.target
}

func (p *listenerProxy) OnRecordedKey(key controller.RecordedKey) {
	if l := p.get(); l != nil {
		l.OnRecordedKey(key)
	}
}

func (p *listenerProxy) OnRecordCountdown(timeLeft int) {
	if l := p.get(); l != nil {
		l.OnRecordCountdown(timeLeft)
	}
}

func (p *listenerProxy) OnRecordingStopped() {
	if l := p.get(); l != nil {
		l.OnRecordingStopped()
	}
}
