package detect

import (
	"context"

	"go.uber.org/atomic"

	"github.com/dshills/keymapper/internal/clock"
	"github.com/dshills/keymapper/internal/event/dispatch"
	"github.com/dshills/keymapper/internal/logging"
	"github.com/dshills/keymapper/internal/mapping"
)

// matcherSet is the immutable unit swapped in on every configuration change.
type matcherSet struct {
	snapshot mapping.Snapshot
	matchers []matcher
}

func (s *matcherSet) reset() {
	for _, m := range s.matchers {
		m.reset()
	}
}

// heldKey identifies a physically held key.
type heldKey struct {
	keyCode    int
	descriptor string
}

// press tracks the consume verdict of a held key.
type press struct {
	event    KeyEvent
	consumed bool

	// used is set once a trigger made use of the press. A consumed press
	// that is released unused is imitated.
	used bool
}

// Engine detects triggers in a stream of key events.
//
// The engine is not safe for concurrent use. OnKeyEvent, Hold, Release,
// OnConfigurationChanged, Reset and every timer callback must run on one
// serial loop; use a clock built with clock.OnLoop so that timers are posted
// there. Actions may run elsewhere, see WithActionQueue. Metrics and Snapshot
// may be read from any goroutine.
type Engine struct {
	cfg      Config
	env      *matchEnv
	ctx      context.Context
	log      *logging.Logger
	metrics  *Metrics
	runner   *ActionRunner
	imitator KeyImitator
	observer func(Firing)

	performer ActionPerformer
	checker   ConstraintChecker
	executor  *dispatch.Executor
	actions   Queue

	set  atomic.Pointer[matcherSet]
	held map[heldKey]*press
}

// Queue runs posted tasks one at a time in order. dispatch.Loop satisfies it.
type Queue interface {
	Post(task func()) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock. Defaults to clock.Real().
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		e.env.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithConstraintChecker sets the constraint checker consulted before firing.
func WithConstraintChecker(c ConstraintChecker) Option {
	return func(e *Engine) {
		e.checker = c
	}
}

// WithKeyImitator sets the imitator for consumed but unused key presses.
func WithKeyImitator(i KeyImitator) Option {
	return func(e *Engine) {
		e.imitator = i
	}
}

// WithExecutor sets the executor that guards constraint checks and actions.
func WithExecutor(x *dispatch.Executor) Option {
	return func(e *Engine) {
		e.executor = x
	}
}

// WithActionQueue runs the constraint checks and actions of firings on q, so
// that OnKeyEvent does not wait for them. Without a queue they run inline.
func WithActionQueue(q Queue) Option {
	return func(e *Engine) {
		e.actions = q
	}
}

// WithFiringObserver registers a function called for every firing, before
// constraints are checked.
func WithFiringObserver(f func(Firing)) Option {
	return func(e *Engine) {
		e.observer = f
	}
}

// WithMetrics shares a metrics tracker.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithContext sets the context passed to actions.
func WithContext(ctx context.Context) Option {
	return func(e *Engine) {
		e.ctx = ctx
	}
}

// NewEngine creates an engine with an empty configuration.
func NewEngine(cfg Config, performer ActionPerformer, opts ...Option) *Engine {
	e := &Engine{
		cfg:       cfg,
		ctx:       context.Background(),
		log:       logging.Nop(),
		performer: performer,
		held:      make(map[heldKey]*press),
	}
	e.env = &matchEnv{
		clock:  clock.Real(),
		cfg:    cfg,
		notify: e.onTimer,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = NewMetrics()
	}
	e.runner = NewActionRunner(e.performer, e.checker, e.executor, e.log)
	e.runner.metrics = e.metrics
	e.set.Store(&matcherSet{})
	return e
}

// Metrics returns the engine's metrics.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// Runner returns the action runner used for firings.
func (e *Engine) Runner() *ActionRunner {
	return e.runner
}

// Snapshot returns the active configuration.
func (e *Engine) Snapshot() mapping.Snapshot {
	return e.set.Load().snapshot
}

// OnConfigurationChanged validates snapshot and replaces every matcher.
// Partial matches in progress are discarded. If validation fails the
// previous configuration stays active and the combined
// *mapping.ConfigurationError list is returned.
func (e *Engine) OnConfigurationChanged(snapshot mapping.Snapshot) error {
	if err := snapshot.Validate(); err != nil {
		e.metrics.configRejections.Inc()
		e.log.WithError(err).Warn("rejected key map configuration")
		return err
	}

	next := &matcherSet{snapshot: snapshot}
	for i := range snapshot.KeyMaps {
		km := snapshot.KeyMaps[i]
		if !km.Detectable() {
			continue
		}
		next.matchers = append(next.matchers, newMatcher(&km, e.env))
	}

	prev := e.set.Swap(next)
	prev.reset()
	e.releaseHeld()

	e.metrics.configChanges.Inc()
	e.log.Info("loaded %d key maps, %d detectable", len(snapshot.KeyMaps), len(next.matchers))
	return nil
}

// Reset discards all partial matches and cancels their timers.
func (e *Engine) Reset() {
	e.set.Load().reset()
	e.releaseHeld()
	e.log.Debug("detection reset")
}

// releaseHeld keeps the consume verdicts of held keys, so their releases
// stay consistent, but stops them from being imitated.
func (e *Engine) releaseHeld() {
	for _, p := range e.held {
		p.used = true
	}
}

// OnKeyEvent feeds one key event to every matcher and returns whether the
// event should be consumed.
//
// A key down is consumed when some trigger accepts it and that trigger key
// has ConsumeEvent set. A key up is consumed exactly when its key down was.
// A repeated key down of a key that is already held returns the verdict of
// the first down. A down that is not marked Repeat always starts a new press,
// even if the release of the previous press was never seen.
func (e *Engine) OnKeyEvent(ev KeyEvent) bool {
	var consumed bool
	if ev.Action == KeyDown {
		consumed = e.onKeyDown(ev)
	} else {
		consumed = e.onKeyUp(ev)
	}
	e.metrics.recordEvent(consumed)
	return consumed
}

func (e *Engine) onKeyDown(ev KeyEvent) bool {
	hk := heldKey{keyCode: ev.KeyCode, descriptor: ev.Descriptor}
	if p, ok := e.held[hk]; ok {
		if ev.Repeat {
			return p.consumed
		}
		e.log.Debug("release of %s was missed", ev)
	}

	p := &press{event: ev}
	e.held[hk] = p

	now := e.env.clock.Now()
	for _, m := range e.set.Load().matchers {
		if m.idle() && !m.handles(ev.KeyCode) {
			continue
		}
		s := m.onKey(ev, now)
		if s.claimed && s.consume {
			p.consumed = true
		}
		e.apply(m, s)
	}

	return p.consumed
}

func (e *Engine) onKeyUp(ev KeyEvent) bool {
	hk := heldKey{keyCode: ev.KeyCode, descriptor: ev.Descriptor}
	p, ok := e.held[hk]
	delete(e.held, hk)

	used := false
	now := e.env.clock.Now()
	for _, m := range e.set.Load().matchers {
		if m.idle() && !m.handles(ev.KeyCode) {
			continue
		}
		s := m.onKey(ev, now)
		if s.outcome.progressed() {
			used = true
			e.markUsed(m.keyMap().Trigger)
		}
		e.apply(m, s)
	}

	if !ok {
		return false
	}
	if p.consumed && !used && !p.used {
		e.imitate(p.event)
	}
	return p.consumed
}

// Hold records a press handled outside detection, such as while recording,
// so that its release gets the same verdict. The press is never imitated.
// A repeated down keeps the verdict of the first one.
func (e *Engine) Hold(ev KeyEvent, consumed bool) bool {
	hk := heldKey{keyCode: ev.KeyCode, descriptor: ev.Descriptor}
	if p, ok := e.held[hk]; ok && ev.Repeat {
		return p.consumed
	}
	e.held[hk] = &press{event: ev, consumed: consumed, used: true}
	return consumed
}

// Release forgets a held key without running detection and returns the
// verdict of its down. ok is false if the key was not held.
func (e *Engine) Release(ev KeyEvent) (consumed, ok bool) {
	hk := heldKey{keyCode: ev.KeyCode, descriptor: ev.Descriptor}
	p, ok := e.held[hk]
	if !ok {
		return false, false
	}
	delete(e.held, hk)
	return p.consumed, true
}

// onTimer receives outcomes produced by matcher timers.
func (e *Engine) onTimer(m matcher, s step) {
	if s.outcome.progressed() {
		e.markUsed(m.keyMap().Trigger)
	}
	e.apply(m, s)
}

func (e *Engine) apply(m matcher, s step) {
	if s.err != nil {
		e.metrics.timerFailures.Inc()
		e.log.WithError(s.err).WithField("keymap", m.keyMap().UID).Error("matcher reset")
	}
	if s.timedOut {
		e.metrics.sequenceTimeouts.Inc()
	}
	if s.outcome == outcomeMatched {
		e.markUsed(m.keyMap().Trigger)
		e.fire(m.keyMap(), s.click)
	}
}

// markUsed marks every held key of the trigger as used.
func (e *Engine) markUsed(t mapping.Trigger) {
	for hk, p := range e.held {
		if t.HasKeyCode(hk.keyCode) {
			p.used = true
		}
	}
}

func (e *Engine) fire(km *mapping.KeyMap, click mapping.ClickType) {
	f := Firing{
		KeyMapID:  km.ID,
		KeyMapUID: km.UID,
		ClickType: click,
		Trigger:   km.Trigger,
	}

	e.metrics.firings.Inc()
	e.log.WithField("keymap", km.UID).Debug("trigger %s fired (%s)", km.Trigger, click)

	if e.observer != nil {
		e.observer(f)
	}

	constraints, actions := km.Constraints, km.Actions
	run := func() {
		e.runner.Run(e.ctx, f, constraints, actions)
	}
	if e.actions == nil {
		run()
		return
	}
	if err := e.actions.Post(run); err != nil {
		e.metrics.droppedFirings.Inc()
		e.log.WithError(err).WithField("keymap", km.UID).Error("dropped actions of %s", km.Trigger)
	}
}

func (e *Engine) imitate(ev KeyEvent) {
	if e.imitator == nil {
		return
	}
	e.metrics.imitations.Inc()
	e.log.Debug("imitating unused key %s", ev)

	res := e.runner.executor.Execute(e.ctx, ev, dispatch.HandlerFunc(func(context.Context, any) error {
		e.imitator.ImitateKeyPress(ev)
		return nil
	}))
	if res.IsPanic() {
		e.log.WithField("panic", res.PanicValue).Error("key imitation panicked\n%s", res.PanicStack)
	}
}
