package action

import (
	"context"

	"github.com/dshills/keymapper/internal/logging"
	"github.com/dshills/keymapper/internal/mapping"
)

// LogHandler writes the action data to a logger. The "level" argument
// selects debug, info, warn or error; info is the default.
type LogHandler struct {
	log *logging.Logger
}

// NewLogHandler creates a log handler.
func NewLogHandler(log *logging.Logger) *LogHandler {
	return &LogHandler{log: log.WithComponent("action.log")}
}

// Handle logs a.Data.
func (h *LogHandler) Handle(_ context.Context, a mapping.Action) error {
	level := logging.ParseLogLevel(a.Args["level"])

	log := h.log
	for k, v := range a.Args {
		if k != "level" {
			log = log.WithField(k, v)
		}
	}

	switch level {
	case logging.LogLevelDebug:
		log.Debug("%s", a.Data)
	case logging.LogLevelWarn:
		log.Warn("%s", a.Data)
	case logging.LogLevelError:
		log.Error("%s", a.Data)
	default:
		log.Info("%s", a.Data)
	}
	return nil
}
