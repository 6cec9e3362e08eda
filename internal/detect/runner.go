package detect

import (
	"context"
	"errors"

	"github.com/dshills/keymapper/internal/event/dispatch"
	"github.com/dshills/keymapper/internal/logging"
	"github.com/dshills/keymapper/internal/mapping"
)

// ConstraintChecker decides whether a mapping may fire right now.
type ConstraintChecker interface {
	Allowed(state mapping.ConstraintState) bool
}

// ActionPerformer executes one action.
type ActionPerformer interface {
	Perform(ctx context.Context, action mapping.Action) error
}

// KeyImitator re-emits a key press that was consumed but not used by any
// trigger, so that the key keeps its normal function.
type KeyImitator interface {
	ImitateKeyPress(ev KeyEvent)
}

// ActionRunner checks constraints and performs actions through a
// panic-safe executor. Failures are logged and never propagate.
type ActionRunner struct {
	checker   ConstraintChecker
	performer ActionPerformer
	executor  *dispatch.Executor
	metrics   *Metrics
	log       *logging.Logger
}

// NewActionRunner creates a runner. checker may be nil, in which case every
// firing is allowed.
func NewActionRunner(performer ActionPerformer, checker ConstraintChecker, executor *dispatch.Executor, log *logging.Logger) *ActionRunner {
	if executor == nil {
		executor = dispatch.NewExecutor()
	}
	if log == nil {
		log = logging.Nop()
	}
	return &ActionRunner{
		checker:   checker,
		performer: performer,
		executor:  executor,
		metrics:   NewMetrics(),
		log:       log,
	}
}

// Run evaluates the constraints and, if they hold, performs the actions
// sequentially in order. source identifies the firing in logs and panic
// reports. Returns false if the constraints blocked the actions.
func (r *ActionRunner) Run(ctx context.Context, source any, constraints mapping.ConstraintState, actions []mapping.Action) bool {
	if r.checker != nil {
		res := r.executor.Execute(ctx, source, dispatch.HandlerFunc(func(ctx context.Context, _ any) error {
			if !r.checker.Allowed(constraints) {
				return ErrConstraintsNotMet
			}
			return nil
		}))
		if !res.IsSuccess() {
			r.metrics.blockedFirings.Inc()
			switch {
			case errors.Is(res.Error, ErrConstraintsNotMet):
				r.log.Debug("constraints not met for %v", source)
			case res.IsPanic():
				r.log.WithField("panic", res.PanicValue).Error("constraint check panicked for %v\n%s", source, res.PanicStack)
			default:
				r.log.WithError(res.Error).Error("constraint check failed for %v", source)
			}
			return false
		}
	}

	if r.performer == nil {
		return true
	}

	handlers := make([]dispatch.Handler, len(actions))
	for i, a := range actions {
		a := a
		handlers[i] = dispatch.HandlerFunc(func(ctx context.Context, _ any) error {
			return r.performer.Perform(ctx, a)
		})
	}

	for i, res := range r.executor.ExecuteAll(ctx, source, handlers) {
		log := r.log.WithField("action", actions[i].String())
		switch {
		case res.Skipped:
			log.WithError(res.Error).Debug("action skipped for %v", source)
		case res.IsPanic():
			r.metrics.actionFailures.Inc()
			log.WithField("panic", res.PanicValue).Error("action panicked for %v\n%s", source, res.PanicStack)
		case res.IsError():
			r.metrics.actionFailures.Inc()
			log.WithError(res.Error).Error("action failed for %v after %v", source, res.Duration)
		default:
			log.Debug("action performed for %v in %v", source, res.Duration)
		}
	}
	return true
}
