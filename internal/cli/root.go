package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/safeedit/safeedit/pkg/color"
	"github.com/safeedit/safeedit/pkg/logging"
	"github.com/safeedit/safeedit/pkg/metrics"
	"github.com/safeedit/safeedit/pkg/telemetry"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "dev"

// errFailed reports that at least one file failed. Details were already
// printed per file, so Execute only sets the exit status.
var errFailed = errors.New("one or more operations failed")

var (
	jsonOutput  bool
	noColor     bool
	logLevel    string
	configPath  string
	metricsFile string
	traceDest   string

	shutdownTracing func(context.Context) error

	rootCmd = &cobra.Command{
		Use:   "safeedit",
		Short: "safeedit - guarded rewrites of source files by a language model",
		Long: `safeedit rewrites source files in place through a language-generation API,
wrapped in a file-safety pipeline: every file is backed up first, generated
content is checked against a dangerous-pattern denylist and an external syntax
checker, and every write is recorded in an operation log so it can be rolled
back.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return teardown()
		},
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&jsonOutput, "json", false, "output in JSON format")
	flags.BoolVar(&noColor, "no-color", false, "disable colored output")
	flags.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides config")
	flags.StringVar(&configPath, "config", "", "config file (default .safeedit/config.yaml)")
	flags.StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")
	flags.StringVar(&traceDest, "trace", "", "write trace spans to a file, or - for stderr")
}

// Execute runs the root command and exits non-zero on any failure.
func Execute() {
	err := rootCmd.Execute()
	// Flush even when RunE failed, PersistentPostRunE is skipped then.
	if terr := teardown(); err == nil {
		err = terr
	}
	if err != nil {
		if !errors.Is(err, errFailed) {
			fmtErr("%v", err)
		}
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	color.Init(noColor || jsonOutput)

	level := logging.LevelWarn
	if logLevel != "" {
		l, err := logging.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		level = l
	}
	logging.SetGlobal(logging.New(level, logging.FormatJSON, os.Stderr))

	shutdown, err := telemetry.Init(cmd.Context(), telemetry.Config{
		ServiceVersion: Version,
		Destination:    traceDest,
	})
	if err != nil {
		return err
	}
	shutdownTracing = shutdown
	return nil
}

// teardown flushes spans and metrics. It runs at most once per invocation.
func teardown() error {
	var errs []error
	if shutdownTracing != nil {
		errs = append(errs, shutdownTracing(context.Background()))
		shutdownTracing = nil
	}
	if metricsFile != "" {
		errs = append(errs, metrics.Default().WriteTextfile(metricsFile))
		metricsFile = ""
	}
	return errors.Join(errs...)
}

// applyLogConfig re-creates the global logger from the workspace config
// unless --log-level was given.
func applyLogConfig(level, format string) {
	l := logging.LevelWarn
	if logLevel != "" {
		l, _ = logging.ParseLevel(logLevel)
	} else if level != "" {
		if parsed, err := logging.ParseLevel(level); err == nil {
			l = parsed
		}
	}
	logging.SetGlobal(logging.New(l, logging.Format(format), os.Stderr))
}

// outputJSON prints v as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fmtErr(format string, args ...any) {
	prefix := "safeedit: "
	if color.Enabled() {
		prefix = color.Error("safeedit:") + " "
	}
	fmt.Fprintf(os.Stderr, prefix+format+"\n", args...)
}
