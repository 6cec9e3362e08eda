package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"github.com/dshills/keymapper/internal/detect"
	"github.com/dshills/keymapper/internal/logging"
)

// Group runs several sources concurrently against one sink.
type Group struct {
	sources []Source
	log     *logging.Logger
}

// NewGroup creates a group of sources.
func NewGroup(log *logging.Logger, sources ...Source) *Group {
	if log == nil {
		log = logging.Nop()
	}
	return &Group{sources: sources, log: log}
}

// Name lists the member sources.
func (g *Group) Name() string {
	names := make([]string, len(g.sources))
	for i, s := range g.sources {
		names[i] = s.Name()
	}
	return "group(" + strings.Join(names, ",") + ")"
}

// Run starts every source and waits for all of them to return. A source
// that fails does not stop the others; the errors are combined. A source
// returning ErrQuit, or cancelling ctx, stops all sources.
func (g *Group) Run(ctx context.Context, sink Sink) error {
	if len(g.sources) == 0 {
		return ErrNoDevices
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := pool.New().WithContext(ctx)
	for _, s := range g.sources {
		s := s
		p.Go(func(ctx context.Context) error {
			g.log.Debug("source %s started", s.Name())
			err := s.Run(ctx, sink)
			if errors.Is(err, ErrQuit) {
				cancel()
				return err
			}
			if err != nil && ctx.Err() == nil {
				g.log.WithError(err).Warn("source %s stopped", s.Name())
				return fmt.Errorf("%s: %w", s.Name(), err)
			}
			g.log.Debug("source %s stopped", s.Name())
			return nil
		})
	}
	return p.Wait()
}

// ImitateKeyPress forwards to every member source that can imitate keys.
func (g *Group) ImitateKeyPress(ev detect.KeyEvent) {
	for _, s := range g.sources {
		if im, ok := s.(detect.KeyImitator); ok {
			im.ImitateKeyPress(ev)
		}
	}
}

var (
	_ Source             = (*Group)(nil)
	_ detect.KeyImitator = (*Group)(nil)
)
