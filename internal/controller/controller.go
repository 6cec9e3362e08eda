package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/dshills/keymapper/internal/clock"
	"github.com/dshills/keymapper/internal/detect"
	"github.com/dshills/keymapper/internal/event/dispatch"
	"github.com/dshills/keymapper/internal/logging"
	"github.com/dshills/keymapper/internal/mapping"
)

// Default recording countdown.
const (
	DefaultRecordTicks = 5
	DefaultRecordTick  = time.Second
)

// DefaultActionTimeout bounds actions that honor their context.
const DefaultActionTimeout = 10 * time.Second

// Config holds controller settings.
type Config struct {
	Detection detect.Config

	// RecordTicks is how many countdown ticks a recording lasts.
	RecordTicks int
	// RecordTick is the length of one countdown tick.
	RecordTick time.Duration

	// QueueSize is the loop's queue capacity.
	QueueSize int

	// ActionTimeout bounds the context of every constraint check and
	// action. Zero means no bound.
	ActionTimeout time.Duration
}

// DefaultConfig returns the default controller configuration.
func DefaultConfig() Config {
	return Config{
		Detection:     detect.DefaultConfig(),
		RecordTicks:   DefaultRecordTicks,
		RecordTick:    DefaultRecordTick,
		QueueSize:     1024,
		ActionTimeout: DefaultActionTimeout,
	}
}

// Listener receives recording events. Callbacks run on the controller loop.
type Listener interface {
	OnRecordedKey(key RecordedKey)
	OnRecordCountdown(timeLeft int)
	OnRecordingStopped()
}

// RecordedKey is a key pressed while recording a trigger.
type RecordedKey struct {
	KeyCode    int
	DeviceName string
	Descriptor string
	IsExternal bool
}

// Controller owns the serial loop, the detection engine and the recorder.
// Actions run on a second serial loop so that key events are answered while
// they are performed.
type Controller struct {
	cfg      Config
	loop     *dispatch.Loop
	actions  *dispatch.Loop
	clock    clock.Clock
	engine   *detect.Engine
	recorder *recorder
	listener Listener
	log      *logging.Logger
	ctx      context.Context

	paused atomic.Bool

	// Options collected before the engine is built.
	baseClock  clock.Clock
	checker    detect.ConstraintChecker
	imitator   detect.KeyImitator
	observer   func(detect.Firing)
	engineOpts []detect.Option
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the time source. Timer callbacks are always posted onto the
// controller loop.
func WithClock(c clock.Clock) Option {
	return func(ctl *Controller) {
		ctl.baseClock = c
	}
}

// WithListener sets the recording listener.
func WithListener(l Listener) Option {
	return func(ctl *Controller) {
		ctl.listener = l
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(ctl *Controller) {
		ctl.log = l
	}
}

// WithConstraintChecker sets the checker used for every mapping.
func WithConstraintChecker(c detect.ConstraintChecker) Option {
	return func(ctl *Controller) {
		ctl.checker = c
	}
}

// WithKeyImitator sets the imitator for unused consumed key presses.
func WithKeyImitator(i detect.KeyImitator) Option {
	return func(ctl *Controller) {
		ctl.imitator = i
	}
}

// WithFiringObserver registers a function called for every detected trigger.
func WithFiringObserver(f func(detect.Firing)) Option {
	return func(ctl *Controller) {
		ctl.observer = f
	}
}

// WithEngineOptions passes extra options to the engine.
func WithEngineOptions(opts ...detect.Option) Option {
	return func(ctl *Controller) {
		ctl.engineOpts = append(ctl.engineOpts, opts...)
	}
}

// New creates a controller. Call Start before feeding events.
func New(cfg Config, performer detect.ActionPerformer, opts ...Option) *Controller {
	if cfg.RecordTicks <= 0 {
		cfg.RecordTicks = DefaultRecordTicks
	}
	if cfg.RecordTick <= 0 {
		cfg.RecordTick = DefaultRecordTick
	}

	c := &Controller{
		cfg:       cfg,
		baseClock: clock.Real(),
		log:       logging.Nop(),
		ctx:       context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithComponent("controller")

	c.loop = c.newLoop("loop")
	c.actions = c.newLoop("action loop")
	c.clock = clock.OnLoop(c.baseClock, clock.PosterFunc(c.loop.Send), c.onTimerDropped)

	executor := dispatch.NewExecutor(
		dispatch.WithExecutorTimeout(cfg.ActionTimeout),
		// Results carry the panic and its stack; the runner logs them.
		dispatch.WithExecutorPanicHandler(nil),
	)

	engineOpts := []detect.Option{
		detect.WithClock(c.clock),
		detect.WithExecutor(executor),
		detect.WithActionQueue(c.actions),
		detect.WithLogger(c.log.WithComponent("detect")),
		detect.WithContext(c.ctx),
	}
	if c.checker != nil {
		engineOpts = append(engineOpts, detect.WithConstraintChecker(c.checker))
	}
	if c.imitator != nil {
		engineOpts = append(engineOpts, detect.WithKeyImitator(c.imitator))
	}
	if c.observer != nil {
		engineOpts = append(engineOpts, detect.WithFiringObserver(c.observer))
	}
	engineOpts = append(engineOpts, c.engineOpts...)

	c.engine = detect.NewEngine(cfg.Detection, performer, engineOpts...)
	c.recorder = newRecorder(c.clock, cfg.RecordTicks, cfg.RecordTick)
	return c
}

func (c *Controller) newLoop(name string) *dispatch.Loop {
	opts := []dispatch.LoopOption{
		dispatch.WithLoopPanicHandler(func(_ any, r any, stack []byte) {
			c.log.WithField("panic", r).Error("%s task panicked\n%s", name, stack)
		}),
	}
	if c.cfg.QueueSize > 0 {
		opts = append(opts, dispatch.WithQueueSize(c.cfg.QueueSize))
	}
	return dispatch.NewLoop(opts...)
}

// onTimerDropped runs when a timer callback could not reach the loop. The
// matcher waiting on it stays armed until its next key or reset.
func (c *Controller) onTimerDropped(err error) {
	if errors.Is(err, dispatch.ErrNotRunning) {
		c.log.Debug("timer fired after stop")
		return
	}
	c.engine.Metrics().TimerFailed()
	c.log.WithError(err).Error("dropped timer callback")
}

// Start starts the loops.
func (c *Controller) Start() error {
	if err := c.actions.Start(); err != nil {
		return err
	}
	if err := c.loop.Start(); err != nil {
		_ = c.actions.Stop(context.Background())
		return err
	}
	c.log.Info("started")
	return nil
}

// Stop ends any recording, discards partial matches and stops the loops.
// Actions already queued are performed before it returns.
func (c *Controller) Stop(ctx context.Context) error {
	if err := c.loop.Call(func() {
		c.stopRecording()
		c.engine.Reset()
	}); err != nil {
		return err
	}
	return multierr.Combine(c.loop.Stop(ctx), c.actions.Stop(ctx))
}

// Engine returns the detection engine. Its methods must only be called
// through the controller.
func (c *Controller) Engine() *detect.Engine {
	return c.engine
}

// Metrics returns the engine metrics.
func (c *Controller) Metrics() *detect.Metrics {
	return c.engine.Metrics()
}

// LoopStats returns statistics of the serial loop.
func (c *Controller) LoopStats() dispatch.LoopStats {
	return c.loop.Stats()
}

// ActionStats returns statistics of the action loop.
func (c *Controller) ActionStats() dispatch.LoopStats {
	return c.actions.Stats()
}

// OnKeyEvent handles a key event and returns whether it is consumed.
// If the loop is not running the event is passed through.
func (c *Controller) OnKeyEvent(ev detect.KeyEvent) bool {
	var consumed bool
	err := c.loop.Call(func() {
		consumed = c.onKeyEvent(ev)
	})
	if err != nil {
		c.log.WithError(err).Warn("passing %s through", ev)
		return false
	}
	return consumed
}

// onKeyEvent keeps the engine's held keys current while recording or paused,
// so that a release gets the verdict of its press in every mode.
func (c *Controller) onKeyEvent(ev detect.KeyEvent) bool {
	switch {
	case c.recorder.active():
		if ev.Action == detect.KeyUp {
			if consumed, ok := c.engine.Release(ev); ok {
				return consumed
			}
			return true
		}
		if !ev.Repeat {
			c.record(ev)
		}
		return c.engine.Hold(ev, true)

	case c.paused.Load():
		if ev.Action == detect.KeyUp {
			consumed, _ := c.engine.Release(ev)
			return consumed
		}
		return c.engine.Hold(ev, false)
	}
	return c.engine.OnKeyEvent(ev)
}

func (c *Controller) record(ev detect.KeyEvent) {
	key := RecordedKey{
		KeyCode:    ev.KeyCode,
		DeviceName: ev.DeviceName,
		Descriptor: ev.Descriptor,
		IsExternal: ev.IsExternal,
	}
	c.recorder.add(key)
	if c.listener != nil {
		c.listener.OnRecordedKey(key)
	}
}

// OnConfigurationChanged replaces the mapping configuration. An invalid
// snapshot is rejected and the previous one stays active.
func (c *Controller) OnConfigurationChanged(snapshot mapping.Snapshot) error {
	var err error
	if callErr := c.loop.Call(func() {
		err = c.engine.OnConfigurationChanged(snapshot)
	}); callErr != nil {
		return callErr
	}
	return err
}

// Snapshot returns the active configuration.
func (c *Controller) Snapshot() mapping.Snapshot {
	return c.engine.Snapshot()
}

// SetPaused pauses or resumes detection. Any change discards partial
// matches. While paused, key events pass through and fingerprint and intent
// requests are refused.
func (c *Controller) SetPaused(paused bool) error {
	changed := false
	if err := c.loop.Call(func() {
		if c.paused.Swap(paused) == paused {
			return
		}
		changed = true
		c.engine.Reset()
	}); err != nil {
		return err
	}
	if changed {
		c.log.Info("paused: %t", paused)
	}
	return nil
}

// IsPaused reports whether detection is paused.
func (c *Controller) IsPaused() bool {
	return c.paused.Load()
}

// WantsFingerprintGestures reports whether fingerprint gesture detection
// should be requested from the platform.
func (c *Controller) WantsFingerprintGestures() bool {
	if c.paused.Load() {
		return false
	}
	for _, fm := range c.engine.Snapshot().FingerprintMaps {
		if fm.Enabled && len(fm.Actions) > 0 {
			return true
		}
	}
	return false
}

// OnFingerprintGesture performs the actions mapped to a gesture.
func (c *Controller) OnFingerprintGesture(g mapping.FingerprintGesture) error {
	if c.paused.Load() {
		return ErrPaused
	}

	var err error
	if callErr := c.actions.Call(func() {
		fm, ok := c.engine.Snapshot().FingerprintMap(g)
		if !ok || !fm.Enabled || len(fm.Actions) == 0 {
			err = fmt.Errorf("%w: %s", ErrNoFingerprintMap, g)
			return
		}
		if !c.engine.Runner().Run(c.ctx, g, fm.Constraints, fm.Actions) {
			err = fmt.Errorf("%s: %w", g, ErrConstraintsNotMet)
		}
	}); callErr != nil {
		return callErr
	}
	return err
}

// TriggerKeyMapFromIntent performs the actions of the key map with the given
// UID if it allows being triggered from other apps.
func (c *Controller) TriggerKeyMapFromIntent(uid string) error {
	if c.paused.Load() {
		return ErrPaused
	}

	var err error
	if callErr := c.actions.Call(func() {
		km, ok := c.engine.Snapshot().KeyMapByUID(uid)
		switch {
		case !ok:
			err = fmt.Errorf("%w: %s", ErrKeyMapNotFound, uid)
		case !km.TriggerFromOtherApps || !km.Enabled || len(km.Actions) == 0:
			err = fmt.Errorf("%w: %s", ErrNotTriggerable, uid)
		case !c.engine.Runner().Run(c.ctx, uid, km.Constraints, km.Actions):
			err = fmt.Errorf("%s: %w", uid, ErrConstraintsNotMet)
		}
	}); callErr != nil {
		return callErr
	}
	return err
}

// StartRecording starts recording a trigger. Partial matches are discarded.
func (c *Controller) StartRecording() error {
	var err error
	if callErr := c.loop.Call(func() {
		if c.recorder.active() {
			err = ErrAlreadyRecording
			return
		}
		c.engine.Reset()
		err = c.recorder.start(c.onCountdown, c.onRecordingTimeout)
		if err != nil {
			c.log.WithError(err).Error("cannot start recording")
			return
		}
		c.log.Debug("recording started")
	}); callErr != nil {
		return callErr
	}
	return err
}

// StopRecording stops recording and returns the keys recorded so far.
// Returns nil if not recording.
func (c *Controller) StopRecording() []RecordedKey {
	var keys []RecordedKey
	if err := c.loop.Call(func() {
		keys = c.stopRecording()
	}); err != nil {
		return nil
	}
	return keys
}

// IsRecording reports whether a trigger is being recorded.
func (c *Controller) IsRecording() bool {
	var active bool
	if err := c.loop.Call(func() {
		active = c.recorder.active()
	}); err != nil {
		return false
	}
	return active
}

func (c *Controller) stopRecording() []RecordedKey {
	if !c.recorder.active() {
		return nil
	}
	keys := c.recorder.stop()
	c.log.Debug("recording stopped with %d keys", len(keys))
	if c.listener != nil {
		c.listener.OnRecordingStopped()
	}
	return keys
}

func (c *Controller) onCountdown(timeLeft int) {
	if c.listener != nil {
		c.listener.OnRecordCountdown(timeLeft)
	}
}

func (c *Controller) onRecordingTimeout() {
	c.stopRecording()
}
