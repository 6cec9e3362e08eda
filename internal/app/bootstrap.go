package app

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/dshills/keymapper/internal/action"
	"github.com/dshills/keymapper/internal/config"
	"github.com/dshills/keymapper/internal/constraint"
	"github.com/dshills/keymapper/internal/controller"
	"github.com/dshills/keymapper/internal/detect"
	"github.com/dshills/keymapper/internal/logging"
	"github.com/dshills/keymapper/internal/source"
)

// bootstrapper handles component initialization with proper cleanup on failure.
type bootstrapper struct {
	app       *Application
	opts      Options
	initOrder []string
}

// newBootstrapper creates a new bootstrapper for the application.
func newBootstrapper(app *Application, opts Options) *bootstrapper {
	return &bootstrapper{
		app:       app,
		opts:      opts,
		initOrder: make([]string, 0, 8),
	}
}

// bootstrap initializes all components in dependency order.
// On failure, it cleans up already-initialized components.
func (b *bootstrapper) bootstrap() error {
	steps := []func() error{
		b.initConfig,
		b.initLogging,
		b.initSources,
		b.initConstraints,
		b.initActions,
		b.initController,
		b.initKeyMaps,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			b.cleanup()
			return err
		}
	}
	return nil
}

// initConfig loads the configuration file and applies the options.
func (b *bootstrapper) initConfig() error {
	cfg, err := config.Load(b.opts.ConfigPath)
	if err != nil {
		return &InitError{Component: "config", Err: err}
	}

	if b.opts.KeyMapsPath != "" {
		cfg.KeyMaps.Path = b.opts.KeyMapsPath
	}
	if b.opts.LogLevel != "" {
		cfg.Logging.Level = b.opts.LogLevel
	}
	if b.opts.Source != "" {
		cfg.Input.Source = b.opts.Source
	}
	if len(b.opts.Devices) > 0 {
		cfg.Input.Devices = b.opts.Devices
	}
	if err := cfg.Validate(); err != nil {
		return &InitError{Component: "config", Err: err}
	}

	b.app.cfg = cfg
	b.initOrder = append(b.initOrder, "config")
	return nil
}

// initLogging creates the root logger.
func (b *bootstrapper) initLogging() error {
	out := b.opts.LogOutput
	if out == nil {
		out = os.Stderr
		if b.app.cfg.Input.Source == config.SourceTerminal && b.opts.Sources == nil {
			// The terminal source owns the screen.
			out = io.Discard
		}
	}

	cfg := b.app.cfg.LoggerConfig(out)
	b.app.log = logging.New(cfg)
	b.initOrder = append(b.initOrder, "logging")
	return nil
}

// initSources creates the input sources.
func (b *bootstrapper) initSources() error {
	app := b.app
	log := app.log.WithComponent("source")

	sources := b.opts.Sources
	if sources == nil {
		switch app.cfg.Input.Source {
		case config.SourceEvdev:
			ev, err := source.NewEvdev(source.EvdevConfig{
				Paths: app.cfg.Input.Devices,
				Grab:  app.cfg.Input.Grab,
			}, log)
			if err != nil {
				return &InitError{Component: "evdev", Err: err}
			}
			sources = append(sources, ev)

		case config.SourceTerminal:
			term, err := source.NewTerminal(log,
				source.WithGestureHandler(app.onGesture),
				source.WithPauseToggle(app.TogglePause),
			)
			if err != nil {
				return &InitError{Component: "terminal", Err: err}
			}
			app.terminal = term
			sources = append(sources, term)
		}
	}

	if len(sources) > 0 {
		app.sources = source.NewGroup(log, sources...)
	}
	b.initOrder = append(b.initOrder, "sources")
	return nil
}

// initConstraints creates the device state and seeds it from the config.
func (b *bootstrapper) initConstraints() error {
	b.app.state = constraint.NewStaticState(b.app.cfg.DeviceState())
	b.initOrder = append(b.initOrder, "constraints")
	return nil
}

// initActions registers the built-in action handlers.
func (b *bootstrapper) initActions() error {
	b.app.actions = action.NewDefaultRegistry(b.app.log, b.imitator())
	b.initOrder = append(b.initOrder, "actions")
	return nil
}

// initController creates and starts the controller.
func (b *bootstrapper) initController() error {
	app := b.app

	opts := []controller.Option{
		controller.WithLogger(app.log),
		controller.WithListener(&app.listener),
		controller.WithConstraintChecker(constraint.NewEvaluator(app.state, app.log)),
		controller.WithFiringObserver(app.onFiring),
	}
	if im := b.imitator(); im != nil {
		opts = append(opts, controller.WithKeyImitator(im))
	}

	app.ctl = controller.New(app.cfg.ControllerConfig(), app.actions, opts...)
	if err := app.ctl.Start(); err != nil {
		app.ctl = nil
		return &InitError{Component: "controller", Err: err}
	}
	b.initOrder = append(b.initOrder, "controller")
	return nil
}

// initKeyMaps loads the key map file. An invalid file is fatal at startup;
// later reloads keep the previous key maps instead.
func (b *bootstrapper) initKeyMaps() error {
	if err := b.app.ReloadKeyMaps(); err != nil {
		return &InitError{Component: "keymaps", Err: err}
	}
	b.initOrder = append(b.initOrder, "keymaps")
	return nil
}

func (b *bootstrapper) imitator() detect.KeyImitator {
	if b.app.sources == nil {
		return nil
	}
	return b.app.sources
}

// cleanup performs cleanup in reverse initialization order.
// Called when bootstrap fails partway through.
func (b *bootstrapper) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := len(b.initOrder) - 1; i >= 0; i-- {
		b.cleanupComponent(ctx, b.initOrder[i])
	}
}

// cleanupComponent cleans up a single component.
func (b *bootstrapper) cleanupComponent(ctx context.Context, component string) {
	switch component {
	case "controller":
		if b.app.ctl != nil {
			_ = b.app.ctl.Stop(ctx)
			b.app.ctl = nil
		}
	case "logging":
		if b.app.log != nil {
			_ = b.app.log.Sync()
		}
	case "sources":
		b.app.sources = nil
		b.app.terminal = nil
	}
}
