package controller

import (
	"time"

	"github.com/dshills/keymapper/internal/clock"
)

// recorder collects the keys of a trigger being recorded and runs the
// countdown. It is only used from the controller loop.
type recorder struct {
	clock clock.Clock
	ticks int
	tick  time.Duration

	recording bool
	keys      []RecordedKey
	remaining int

	timer clock.Timer
	// gen invalidates tick callbacks of earlier recordings.
	gen uint64

	onCountdown func(timeLeft int)
	onTimeout   func()
}

func newRecorder(c clock.Clock, ticks int, tick time.Duration) *recorder {
	return &recorder{clock: c, ticks: ticks, tick: tick}
}

func (r *recorder) active() bool {
	return r.recording
}

// start begins recording and reports the first countdown value immediately.
func (r *recorder) start(onCountdown func(int), onTimeout func()) error {
	r.gen++
	r.recording = true
	r.keys = nil
	r.remaining = r.ticks
	r.onCountdown = onCountdown
	r.onTimeout = onTimeout

	if err := r.schedule(); err != nil {
		r.recording = false
		return err
	}
	r.onCountdown(r.remaining)
	return nil
}

func (r *recorder) schedule() error {
	gen := r.gen
	t, err := r.clock.AfterFunc(r.tick, func() { r.onTick(gen) })
	if err != nil {
		return err
	}
	r.timer = t
	return nil
}

func (r *recorder) onTick(gen uint64) {
	if gen != r.gen || !r.recording {
		return
	}

	r.remaining--
	if r.remaining <= 0 {
		r.onTimeout()
		return
	}
	if err := r.schedule(); err != nil {
		r.onTimeout()
		return
	}
	r.onCountdown(r.remaining)
}

func (r *recorder) add(key RecordedKey) {
	r.keys = append(r.keys, key)
}

// stop ends the recording and returns a copy of the recorded keys.
func (r *recorder) stop() []RecordedKey {
	if !r.recording {
		return nil
	}
	r.recording = false
	r.gen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}

	keys := make([]RecordedKey, len(r.keys))
	copy(keys, r.keys)
	r.keys = nil
	return keys
}
