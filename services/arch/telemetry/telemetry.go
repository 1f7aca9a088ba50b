// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires trace and metric providers for a single analyzer
// run. Instrumented packages use the otel API unconditionally; without this
// wiring every span and instrument is a no-op, so telemetry stays opt-in.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
)

// pushJobName labels pushed metrics in the Pushgateway.
const pushJobName = "archtrace"

// Options selects which exporters to install. Empty fields disable the
// corresponding exporter.
type Options struct {
	// ServiceName and Version identify this process in exported telemetry.
	ServiceName string
	Version     string

	// TraceOut writes completed spans as pretty-printed JSON to a file,
	// or to stdout when set to "-".
	TraceOut string

	// OTLPEndpoint streams spans to an OTLP collector over gRPC. The
	// connection is plaintext; collectors live on localhost or inside
	// the CI network.
	OTLPEndpoint string

	// MetricsOut dumps the final OTel metric state as JSON to a file,
	// or to stdout when set to "-".
	MetricsOut string

	// PushGateway pushes the Prometheus default gatherer to this URL at
	// shutdown.
	PushGateway string

	// Registerer receives the bridged OTel instruments. Defaults to
	// prometheus.DefaultRegisterer; tests pass a fresh registry so
	// repeated setups do not collide.
	Registerer prometheus.Registerer

	Logger *slog.Logger
}

// Telemetry owns the installed providers and their cleanup.
//
// Thread Safety: Setup and Shutdown are not safe for concurrent use; call
// each once from main.
type Telemetry struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	pushGateway    string
	logger         *slog.Logger
	closers        []io.Closer
}

// Setup installs trace and metric providers according to opts.
//
// Description:
//
//	Trace exporters are installed only when requested. The metric provider
//	is always installed with the Prometheus bridge so OTel instruments
//	land in the same registry as the promauto metrics, which is what the
//	Pushgateway push and the stdout dump read from.
//
// Outputs:
//   - *Telemetry: handle whose Shutdown flushes and uninstalls everything.
//   - error: nil on success; a partially constructed setup is torn down.
func Setup(ctx context.Context, opts Options) (*Telemetry, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	t := &Telemetry{pushGateway: opts.PushGateway, logger: logger}

	res := sdkresource.NewSchemaless(
		attribute.String("service.name", opts.ServiceName),
		attribute.String("service.version", opts.Version),
	)

	tracerOpts, err := t.traceExporters(ctx, opts)
	if err != nil {
		t.closeFiles()
		return nil, err
	}
	if len(tracerOpts) > 0 {
		tracerOpts = append(tracerOpts, sdktrace.WithResource(res))
		t.tracerProvider = sdktrace.NewTracerProvider(tracerOpts...)
		otel.SetTracerProvider(t.tracerProvider)
	}

	meterOpts, err := t.metricReaders(opts)
	if err != nil {
		t.closeFiles()
		return nil, err
	}
	meterOpts = append(meterOpts, sdkmetric.WithResource(res))
	t.meterProvider = sdkmetric.NewMeterProvider(meterOpts...)
	otel.SetMeterProvider(t.meterProvider)

	return t, nil
}

// traceExporters builds the span exporter options requested by opts.
func (t *Telemetry) traceExporters(ctx context.Context, opts Options) ([]sdktrace.TracerProviderOption, error) {
	var out []sdktrace.TracerProviderOption

	if opts.TraceOut != "" {
		w, err := t.openSink(opts.TraceOut)
		if err != nil {
			return nil, fmt.Errorf("opening trace output: %w", err)
		}
		exp, err := stdouttrace.New(
			stdouttrace.WithWriter(w),
			stdouttrace.WithPrettyPrint(),
		)
		if err != nil {
			return nil, fmt.Errorf("creating stdout trace exporter: %w", err)
		}
		out = append(out, sdktrace.WithBatcher(exp))
	}

	if opts.OTLPEndpoint != "" {
		conn, err := grpc.NewClient(opts.OTLPEndpoint,
			grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, fmt.Errorf("dialing OTLP endpoint %s: %w", opts.OTLPEndpoint, err)
		}
		t.closers = append(t.closers, conn)
		exp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
		if err != nil {
			return nil, fmt.Errorf("creating OTLP trace exporter: %w", err)
		}
		out = append(out, sdktrace.WithBatcher(exp))
	}

	return out, nil
}

// metricReaders builds the metric readers: the Prometheus bridge always,
// the stdout dump when requested.
func (t *Telemetry) metricReaders(opts Options) ([]sdkmetric.Option, error) {
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	bridge, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("creating prometheus bridge: %w", err)
	}
	out := []sdkmetric.Option{sdkmetric.WithReader(bridge)}

	if opts.MetricsOut != "" {
		w, err := t.openSink(opts.MetricsOut)
		if err != nil {
			return nil, fmt.Errorf("opening metrics output: %w", err)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		exp, err := stdoutmetric.New(stdoutmetric.WithEncoder(enc))
		if err != nil {
			return nil, fmt.Errorf("creating stdout metric exporter: %w", err)
		}
		out = append(out, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
	}

	return out, nil
}

// openSink opens a telemetry output destination. "-" means stdout, which
// is never closed.
func (t *Telemetry) openSink(path string) (io.Writer, error) {
	if path == "-" {
		return os.Stdout, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	t.closers = append(t.closers, f)
	return f, nil
}

// Shutdown flushes exporters, pushes metrics if configured, and closes
// output files. Push failures are logged as warnings; telemetry delivery
// never fails an analysis that already completed.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var errs []error

	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider shutdown: %w", err))
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if t.pushGateway != "" {
		err := push.New(t.pushGateway, pushJobName).
			Gatherer(prometheus.DefaultGatherer).
			Push()
		if err != nil {
			t.logger.Warn("metrics push failed", "gateway", t.pushGateway, "error", err)
		} else {
			t.logger.Debug("metrics pushed", "gateway", t.pushGateway)
		}
	}

	t.closeFiles()
	return errors.Join(errs...)
}

func (t *Telemetry) closeFiles() {
	for _, c := range t.closers {
		if err := c.Close(); err != nil {
			t.logger.Warn("closing telemetry output", "error", err)
		}
	}
	t.closers = nil
}
