package detect

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dshills/keymapper/internal/logging"
	"github.com/dshills/keymapper/internal/mapping"
)

func newBufferRunner(p ActionPerformer) (*ActionRunner, *bytes.Buffer) {
	var buf bytes.Buffer
	log := logging.New(logging.Config{Level: logging.LogLevelDebug, Format: logging.FormatJSON, Output: &buf})
	return NewActionRunner(p, nil, nil, log), &buf
}

func TestActionRunner_LogsEachResult(t *testing.T) {
	p := &recordingPerformer{
		panicOn: "boom",
		fail:    map[string]error{"fails": errors.New("failed")},
	}
	r, buf := newBufferRunner(p)

	r.Run(context.Background(), "km", mapping.ConstraintState{}, []mapping.Action{
		testAction,
		{Type: "test", Data: "fails"},
		{Type: "test", Data: "boom"},
	})

	out := buf.String()
	for _, want := range []string{"action performed for km in", "action failed for km after", "action panicked for km", "goroutine"} {
		if !strings.Contains(out, want) {
			t.Errorf("log is missing %q:\n%s", want, out)
		}
	}
	if got := r.metrics.Snapshot().ActionFailures; got != 2 {
		t.Errorf("ActionFailures = %d, expected 2", got)
	}
}

func TestActionRunner_CancelledContextSkips(t *testing.T) {
	p := &recordingPerformer{}
	r, buf := newBufferRunner(p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if !r.Run(ctx, "km", mapping.ConstraintState{}, []mapping.Action{testAction, testAction2}) {
		t.Error("Run() = false without a checker")
	}

	if len(p.actions) != 0 {
		t.Errorf("performed %v with a cancelled context", p.actions)
	}
	if got := r.metrics.Snapshot().ActionFailures; got != 0 {
		t.Errorf("ActionFailures = %d, expected skipped actions not to count", got)
	}
	if n := strings.Count(buf.String(), "action skipped"); n != 2 {
		t.Errorf("logged %d skipped actions, expected 2", n)
	}
}
