package detect

import (
	"fmt"
	"time"

	"github.com/dshills/keymapper/internal/clock"
)

// timerSlot holds at most one armed timer. Arming or stopping the slot bumps
// its generation, so a callback that was already queued when the slot moved
// on finds a newer generation and does nothing.
type timerSlot struct {
	clock clock.Clock
	timer clock.Timer
	gen   uint64
}

func (s *timerSlot) arm(d time.Duration, fn func()) error {
	s.stop()
	gen := s.gen

	t, err := s.clock.AfterFunc(d, func() {
		if s.gen != gen {
			return
		}
		s.timer = nil
		s.gen++
		fn()
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTimerScheduling, err)
	}
	s.timer = t
	return nil
}

func (s *timerSlot) stop() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *timerSlot) armed() bool {
	return s.timer != nil
}
