// Package telemetry wires OpenTelemetry tracing for pipeline stages.
//
// Tracing is off unless Init is called with a destination. Spans are written
// as JSON by the stdout exporter, to a file or to stderr.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope used by safeedit spans.
const TracerName = "github.com/safeedit/safeedit"

// Config controls where spans go.
type Config struct {
	ServiceVersion string
	// Destination is "" or "none" to disable, "-" or "stderr" for stderr, or a file path.
	Destination string
}

// Init installs a global tracer provider. The returned shutdown flushes
// pending spans and closes the destination; it must be called on exit.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if ctx == nil {
		return nil, errors.New("telemetry: nil context")
	}
	if cfg.Destination == "" || cfg.Destination == "none" {
		return func(context.Context) error { return nil }, nil
	}

	var (
		w      io.Writer
		closer io.Closer
	)
	switch cfg.Destination {
	case "-", "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Destination, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		w, closer = f, f
	}

	tp, err := NewProvider(w, cfg.ServiceVersion)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, err
	}
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		var errs []error
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		if closer != nil {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}, nil
}

// NewProvider builds a tracer provider exporting synchronously to w.
func NewProvider(w io.Writer, version string) (*sdktrace.TracerProvider, error) {
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("create stdout exporter: %w", err)
	}
	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", "safeedit"),
		attribute.String("service.version", version),
	)
	return sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exp),
		sdktrace.WithResource(res),
	), nil
}

// Tracer returns the safeedit tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}
