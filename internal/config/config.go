package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/multierr"

	"github.com/dshills/keymapper/internal/config/loader"
	"github.com/dshills/keymapper/internal/constraint"
	"github.com/dshills/keymapper/internal/controller"
	"github.com/dshills/keymapper/internal/detect"
	"github.com/dshills/keymapper/internal/logging"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "KEYMAPPER_"

// Input sources.
const (
	SourceEvdev    = "evdev"
	SourceTerminal = "terminal"
	SourceNone     = "none"
)

// Duration is a time.Duration written as a string such as "500ms".
type Duration time.Duration

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// DetectionConfig holds trigger timing.
type DetectionConfig struct {
	LongPressDelay         Duration `toml:"long_press_delay"`
	DoublePressDelay       Duration `toml:"double_press_delay"`
	SequenceTriggerTimeout Duration `toml:"sequence_trigger_timeout"`
}

// RecordingConfig holds the trigger recording countdown.
type RecordingConfig struct {
	Ticks int      `toml:"ticks"`
	Tick  Duration `toml:"tick"`
}

// ActionsConfig holds action execution settings.
type ActionsConfig struct {
	// Timeout bounds each action. Zero means no bound.
	Timeout Duration `toml:"timeout"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`

	// MetricsInterval is how often detection metrics are logged. Zero
	// disables the report.
	MetricsInterval Duration `toml:"metrics_interval"`
}

// InputConfig selects where key events come from.
type InputConfig struct {
	Source  string   `toml:"source"`
	Devices []string `toml:"devices"`
	// Grab takes exclusive access to evdev devices so that consumed keys
	// do not reach other programs.
	Grab bool `toml:"grab"`
}

// KeyMapsConfig locates the key map file.
type KeyMapsConfig struct {
	Path  string `toml:"path"`
	Watch bool   `toml:"watch"`
}

// DeviceConfig is the initial device state seen by constraints.
type DeviceConfig struct {
	Orientation   string `toml:"orientation"`
	ForegroundApp string `toml:"foreground_app"`
	ScreenOn      bool   `toml:"screen_on"`
}

// Config is the complete application configuration.
type Config struct {
	Detection DetectionConfig `toml:"detection"`
	Recording RecordingConfig `toml:"recording"`
	Actions   ActionsConfig   `toml:"actions"`
	Logging   LoggingConfig   `toml:"logging"`
	Input     InputConfig     `toml:"input"`
	KeyMaps   KeyMapsConfig   `toml:"keymaps"`
	Device    DeviceConfig    `toml:"device"`
}

// Default returns the built-in configuration.
func Default() Config {
	d := detect.DefaultConfig()
	return Config{
		Detection: DetectionConfig{
			LongPressDelay:         Duration(d.LongPressDelay),
			DoublePressDelay:       Duration(d.DoublePressDelay),
			SequenceTriggerTimeout: Duration(d.SequenceTriggerTimeout),
		},
		Recording: RecordingConfig{
			Ticks: controller.DefaultRecordTicks,
			Tick:  Duration(controller.DefaultRecordTick),
		},
		Actions: ActionsConfig{
			Timeout: Duration(controller.DefaultActionTimeout),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: string(logging.FormatConsole),
		},
		Input: InputConfig{
			Source: SourceEvdev,
		},
		KeyMaps: KeyMapsConfig{
			Path:  "keymaps.yaml",
			Watch: true,
		},
		Device: DeviceConfig{
			ScreenOn: true,
		},
	}
}

// Load reads path on top of the defaults and applies environment
// overrides. A missing file is not an error; path may be empty.
func Load(path string) (Config, error) {
	return load(loader.NewTOMLLoader(path), loader.NewEnvLoader(EnvPrefix))
}

func load(sources ...loader.Loader) (Config, error) {
	var merged map[string]any
	for _, src := range sources {
		m, err := src.Load()
		if err != nil {
			return Config{}, err
		}
		merged = loader.DeepMerge(merged, m)
	}

	cfg := Default()
	if err := cfg.apply(merged); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// apply decodes a settings map onto cfg, keeping values the map omits.
func (c *Config) apply(settings map[string]any) error {
	if len(settings) == 0 {
		return nil
	}
	data, err := toml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.TrimSpace(strict.String()))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Validate reports every unusable setting.
func (c Config) Validate() error {
	var errs []error

	positive := func(field string, d Duration) {
		if d.Std() < time.Millisecond {
			errs = append(errs, invalid(field, "must be at least 1ms, got %s", d.Std()))
		}
	}
	positive("detection.long_press_delay", c.Detection.LongPressDelay)
	positive("detection.double_press_delay", c.Detection.DoublePressDelay)
	positive("detection.sequence_trigger_timeout", c.Detection.SequenceTriggerTimeout)
	positive("recording.tick", c.Recording.Tick)

	if c.Actions.Timeout < 0 {
		errs = append(errs, invalid("actions.timeout", "must not be negative, got %s", c.Actions.Timeout.Std()))
	}
	if c.Logging.MetricsInterval < 0 {
		errs = append(errs, invalid("logging.metrics_interval", "must not be negative, got %s", c.Logging.MetricsInterval.Std()))
	}
	if c.Recording.Ticks <= 0 {
		errs = append(errs, invalid("recording.ticks", "must be positive, got %d", c.Recording.Ticks))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, invalid("logging.level", "unknown level %q", c.Logging.Level))
	}
	switch logging.Format(c.Logging.Format) {
	case logging.FormatConsole, logging.FormatJSON:
	default:
		errs = append(errs, invalid("logging.format", "unknown format %q", c.Logging.Format))
	}

	switch c.Input.Source {
	case SourceEvdev, SourceTerminal, SourceNone:
	default:
		errs = append(errs, invalid("input.source", "unknown source %q", c.Input.Source))
	}

	if _, err := constraint.ParseOrientation(c.Device.Orientation); err != nil {
		errs = append(errs, invalid("device.orientation", "%v", err))
	}

	return multierr.Combine(errs...)
}

// DetectConfig returns the engine timing.
func (c Config) DetectConfig() detect.Config {
	return detect.Config{
		LongPressDelay:         c.Detection.LongPressDelay.Std(),
		DoublePressDelay:       c.Detection.DoublePressDelay.Std(),
		SequenceTriggerTimeout: c.Detection.SequenceTriggerTimeout.Std(),
	}
}

// ControllerConfig returns the controller settings.
func (c Config) ControllerConfig() controller.Config {
	cfg := controller.DefaultConfig()
	cfg.Detection = c.DetectConfig()
	cfg.RecordTicks = c.Recording.Ticks
	cfg.RecordTick = c.Recording.Tick.Std()
	cfg.ActionTimeout = c.Actions.Timeout.Std()
	return cfg
}

// LoggerConfig returns the logger settings writing to w.
func (c Config) LoggerConfig(w io.Writer) logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLogLevel(c.Logging.Level)
	cfg.Format = logging.Format(c.Logging.Format)
	if w == nil {
		w = os.Stderr
	}
	cfg.Output = w
	return cfg
}

// DeviceState returns the initial constraint state.
func (c Config) DeviceState() constraint.State {
	o, _ := constraint.ParseOrientation(c.Device.Orientation)
	return constraint.State{
		ForegroundApp: c.Device.ForegroundApp,
		Orientation:   o,
		ScreenOn:      c.Device.ScreenOn,
	}
}
