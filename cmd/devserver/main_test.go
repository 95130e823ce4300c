// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Defaults(t *testing.T) {
	cmd := newRootCmd()

	addr, err := cmd.Flags().GetString("addr")
	require.NoError(t, err)
	assert.Equal(t, ":5000", addr)

	delay, err := cmd.Flags().GetDuration("token-delay")
	require.NoError(t, err)
	assert.Equal(t, 40*time.Millisecond, delay)
}

func TestInitTracer_WritesSpansToFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "spans.json")

	tp, shutdown, err := initTracer(out)
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(context.Background(), "POST /api/chat")
	traceID := span.SpanContext().TraceID().String()
	span.End()
	require.NoError(t, shutdown(context.Background()))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), traceID)
	assert.Contains(t, string(data), "devserver")
}

func TestInitTracer_NoOutputStillTraces(t *testing.T) {
	tp, shutdown, err := initTracer("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	_, span := tp.Tracer("test").Start(context.Background(), "GET /health")
	defer span.End()
	assert.True(t, span.SpanContext().HasTraceID())
}

func TestRun_RequiresSecretKey(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AUTH_USERNAME", "admin")
	t.Setenv("AUTH_PASSWORD", "hunter2")
	t.Setenv("SECRET_KEY", "")

	err := run(context.Background(), &options{addr: "127.0.0.1:0", logLevel: "error"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SecretKey")
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AUTH_USERNAME", "admin")
	t.Setenv("AUTH_PASSWORD", "hunter2")
	t.Setenv("SECRET_KEY", "test-secret")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, &options{addr: "127.0.0.1:0", logLevel: "error"})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
