package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dshills/keymapper/internal/action"
	"github.com/dshills/keymapper/internal/app"
	"github.com/dshills/keymapper/internal/config"
	"github.com/dshills/keymapper/internal/controller"
	"github.com/dshills/keymapper/internal/mapping"
)

// recordOptions are the flags of the record command.
type recordOptions struct {
	output     string
	actionType string
	actionData string
}

func runRecord(args []string) int {
	var ropts recordOptions
	opts, code := parseFlags("keymapper record", args, func(fs *flag.FlagSet) {
		fs.StringVar(&ropts.output, "o", "", "Append the recorded key map to this file (default: print YAML)")
		fs.StringVar(&ropts.actionType, "action", action.TypeLog, "Action type of the new key map")
		fs.StringVar(&ropts.actionData, "data", "", "Action data of the new key map")
	})
	if code >= 0 {
		return code
	}
	if opts.logFile != "" {
		f, err := openLog(opts.logFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		defer f.Close()
		opts.LogOutput = f
	}

	application, err := app.New(opts.Options)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}
	defer application.Shutdown(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	trigger, err := record(ctx, application)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	data := ropts.actionData
	if data == "" {
		data = fmt.Sprintf("%s pressed", trigger)
	}
	km := mapping.NewKeyMap(trigger, mapping.Action{Type: ropts.actionType, Data: data})
	if err := writeKeyMap(ropts.output, km); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// record runs input until one trigger is recorded.
func record(ctx context.Context, application *app.Application) (mapping.Trigger, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	for !application.IsRunning() {
		select {
		case err := <-done:
			if err == nil {
				err = app.ErrNotRunning
			}
			done <- err
			return mapping.Trigger{}, err
		case <-ctx.Done():
			return mapping.Trigger{}, app.ErrRecordingCancelled
		case <-time.After(10 * time.Millisecond):
		}
	}

	trigger, err := application.Record(ctx, &printListener{app: application})
	if err != nil {
		return trigger, err
	}
	if len(trigger.Keys) == 0 {
		return trigger, errors.New("no keys pressed")
	}
	return trigger, nil
}

// printListener shows recording progress to the user.
type printListener struct {
	app *app.Application
}

func (l *printListener) OnRecordedKey(key controller.RecordedKey) {
	if key.DeviceName != "" {
		l.app.Printf("recorded %s on %s", mapping.KeyCodeName(key.KeyCode), key.DeviceName)
		return
	}
	l.app.Printf("recorded %s", mapping.KeyCodeName(key.KeyCode))
}

func (l *printListener) OnRecordCountdown(timeLeft int) {
	l.app.Printf("recording, %d seconds left", timeLeft)
}

func (l *printListener) OnRecordingStopped() {
	l.app.Printf("recording stopped")
}

// writeKeyMap appends km to the key map file at path, or prints it as YAML
// when path is empty.
func writeKeyMap(path string, km mapping.KeyMap) error {
	if path == "" {
		out, err := config.EncodeKeyMaps(mapping.Snapshot{KeyMaps: []mapping.KeyMap{km}}, config.FormatYAML)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(out)
		return err
	}

	format, err := config.FormatOf(path)
	if err != nil {
		return err
	}
	snap, err := config.LoadKeyMaps(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	snap.KeyMaps = append(snap.KeyMaps, km)

	out, err := config.EncodeKeyMaps(snap, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write key maps: %w", err)
	}
	fmt.Printf("added key map %s (%s) to %s\n", km.UID, km.Trigger, path)
	return nil
}
