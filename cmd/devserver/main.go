// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command devserver runs a local stand-in for the askdesk backend.
//
//	AUTH_USERNAME=admin AUTH_PASSWORD=secret SECRET_KEY=dev devserver --addr :5000
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AleutianAI/askdesk/pkg/logging"
	"github.com/AleutianAI/askdesk/services/devserver"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type options struct {
	addr       string
	tokenDelay time.Duration
	logLevel   string
	logDir     string
	debug      bool
	traceOut   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "devserver:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:          "devserver",
		Short:        "Serve the askdesk API from a fixture corpus",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", ":5000", "Listen address")
	cmd.Flags().DurationVar(&opts.tokenDelay, "token-delay", 40*time.Millisecond, "Pause between streamed answer tokens")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")
	cmd.Flags().StringVar(&opts.logDir, "log-dir", "", "Also write rotating JSON logs here")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Run gin in debug mode")
	cmd.Flags().StringVar(&opts.traceOut, "trace-out", "", "Write request spans as JSON to this file (\"-\" for stdout)")
	return cmd
}

// initTracer builds the tracer provider and installs it with the W3C trace
// context propagator. Spans are exported only when out is set.
func initTracer(out string) (*sdktrace.TracerProvider, func(context.Context) error, error) {
	res, err := resource.Merge(resource.Default(),
		resource.NewSchemaless(semconv.ServiceNameKey.String(devserver.ServiceName)))
	if err != nil {
		return nil, nil, fmt.Errorf("tracer resource: %w", err)
	}
	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
	}

	var closeOut func() error
	if out != "" {
		w := io.Writer(os.Stdout)
		if out != "-" {
			f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				return nil, nil, fmt.Errorf("open trace output: %w", err)
			}
			w, closeOut = f, f.Close
		}
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, nil, fmt.Errorf("trace exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp, func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if closeOut != nil {
			err = errors.Join(err, closeOut())
		}
		return err
	}, nil
}

func run(ctx context.Context, opts *options) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	if !opts.debug {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(opts.logLevel),
		LogDir:  opts.logDir,
		Service: "devserver",
	})
	defer logger.Close()

	tp, shutdownTracer, err := initTracer(opts.traceOut)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			logger.Error("failed to shutdown tracer", "error", err)
		}
	}()

	cfg := devserver.ConfigFromEnv()
	cfg.TokenDelay = opts.tokenDelay
	cfg.Logger = logger.Slog()
	cfg.TracerProvider = tp
	srv, err := devserver.New(cfg)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              opts.addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("devserver listening", "addr", opts.addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("devserver shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
