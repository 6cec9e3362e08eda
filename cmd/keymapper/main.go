// Package main is the entry point for keymapper.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dshills/keymapper/internal/app"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) > 0 && args[0] == "record" {
		return runRecord(args[1:])
	}

	opts, code := parseFlags("keymapper", args, nil)
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
	// Ensure cleanup on all exit paths
	defer application.Shutdown(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	watchSignals(ctx, application)

	if err := application.Run(ctx); err != nil {
		if errors.Is(err, app.ErrQuit) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// stringList is a repeatable flag.
type stringList []string

func (l *stringList) String() string {
	return strings.Join(*l, ",")
}

func (l *stringList) Set(v string) error {
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			*l = append(*l, s)
		}
	}
	return nil
}

// options are the parsed command line options.
type options struct {
	app.Options
	logFile string
}

// parseFlags parses the options shared by every command. extra registers
// command-specific flags. A non-negative code means the command should exit
// with it.
func parseFlags(name string, args []string, extra func(fs *flag.FlagSet)) (opts options, code int) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	var (
		devices     stringList
		showVersion bool
	)

	fs.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file")
	fs.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	fs.StringVar(&opts.KeyMapsPath, "keymaps", "", "Path to key map file (.yaml or .toml)")
	fs.StringVar(&opts.KeyMapsPath, "k", "", "Path to key map file (shorthand)")
	fs.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&opts.logFile, "log-file", "", "Write logs to a file")
	fs.StringVar(&opts.Source, "source", "", "Input source (evdev, terminal, none)")
	fs.StringVar(&opts.Source, "s", "", "Input source (shorthand)")
	fs.Var(&devices, "device", "Input device node, may be repeated (evdev only)")
	fs.BoolVar(&showVersion, "version", false, "Show version information")
	fs.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	if extra != nil {
		extra(fs)
	}

	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintf(out, "keymapper - remap key combinations to actions\n\n")
		fmt.Fprintf(out, "Usage: keymapper [options]\n")
		fmt.Fprintf(out, "       keymapper record [options] [-o file]\n\n")
		fmt.Fprintf(out, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(out, "\nExamples:\n")
		fmt.Fprintf(out, "  keymapper -k keymaps.yaml               Detect triggers on all keyboards\n")
		fmt.Fprintf(out, "  keymapper -s terminal -k keymaps.yaml   Try key maps in the terminal\n")
		fmt.Fprintf(out, "  keymapper record -s terminal -o new.yaml\n")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return opts, 0
		}
		return opts, 2
	}

	if showVersion {
		fmt.Printf("keymapper %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		return opts, 0
	}

	switch opts.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.LogLevel)
		return opts, 1
	}

	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "Error: unexpected arguments %v\n", fs.Args())
		return opts, 2
	}

	opts.Devices = devices
	return opts, -1
}

func openLog(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}
