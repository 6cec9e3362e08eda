package action

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/dshills/keymapper/internal/logging"
	"github.com/dshills/keymapper/internal/mapping"
)

// DefaultCommandTimeout bounds commands run with "wait".
const DefaultCommandTimeout = 10 * time.Second

// CommandHandler runs the action data as a shell command.
//
// By default the process is started and left running; its exit is logged
// from a separate goroutine. With the argument wait=true the handler blocks
// until the command exits or the timeout elapses and returns its failure.
type CommandHandler struct {
	shell   string
	timeout time.Duration
	log     *logging.Logger
}

// CommandOption configures a CommandHandler.
type CommandOption func(*CommandHandler)

// WithShell sets the shell used to interpret commands. Defaults to /bin/sh.
func WithShell(shell string) CommandOption {
	return func(h *CommandHandler) {
		h.shell = shell
	}
}

// WithCommandTimeout bounds commands run with wait=true.
func WithCommandTimeout(d time.Duration) CommandOption {
	return func(h *CommandHandler) {
		h.timeout = d
	}
}

// NewCommandHandler creates a command handler.
func NewCommandHandler(log *logging.Logger, opts ...CommandOption) *CommandHandler {
	h := &CommandHandler{
		shell:   "/bin/sh",
		timeout: DefaultCommandTimeout,
		log:     log.WithComponent("action.command"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle runs a.Data.
func (h *CommandHandler) Handle(ctx context.Context, a mapping.Action) error {
	line := strings.TrimSpace(a.Data)
	if line == "" {
		return ErrMissingData
	}

	if a.Args["wait"] == "true" {
		return h.run(ctx, line, a.Args["dir"])
	}

	cmd := exec.Command(h.shell, "-c", line)
	cmd.Dir = a.Args["dir"]
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %q: %w", line, err)
	}

	pid := cmd.Process.Pid
	h.log.WithField("pid", pid).Debug("started %q", line)
	go func() {
		if err := cmd.Wait(); err != nil {
			h.log.WithField("pid", pid).WithError(err).Warn("command %q exited", line)
		}
	}()
	return nil
}

func (h *CommandHandler) run(ctx context.Context, line, dir string) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, h.shell, "-c", line)
	cmd.Dir = dir
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("command %q: %w", line, ctx.Err())
		}
		return fmt.Errorf("command %q: %w: %s", line, err, strings.TrimSpace(out.String()))
	}
	h.log.Debug("command %q: %s", line, strings.TrimSpace(out.String()))
	return nil
}
