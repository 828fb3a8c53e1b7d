// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/simscript/internal/core"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "not JSON: %s", buf.String())
	return entry
}

func TestSetupJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Options{Service: "simscript", Version: "0.3.0", Format: "json", Writer: &buf})

	logger.Info("region started", "scripts", 4)

	entry := decode(t, &buf)
	assert.Equal(t, "region started", entry["msg"])
	assert.Equal(t, "simscript", entry["service"])
	assert.Equal(t, "0.3.0", entry["version"])
	assert.InDelta(t, 4, entry["scripts"], 0)
	assert.NotContains(t, entry, "trace_id")
}

func TestSetupDefaultsToJSON(t *testing.T) {
	var buf bytes.Buffer
	Setup(Options{Writer: &buf}).Info("hello")
	decode(t, &buf)
}

func TestSetupText(t *testing.T) {
	var buf bytes.Buffer
	Setup(Options{Service: "simscript", Format: "text", Writer: &buf}).Info("hello")

	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "service=simscript")
}

func TestSetupLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Options{Level: slog.LevelWarn, Writer: &buf})

	logger.Info("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn("kept")
	assert.Equal(t, "kept", decode(t, &buf)["msg"])
}

func TestTraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Options{Service: "simscript", Writer: &buf})

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	logger.With("token", "t1").WithGroup("op").InfoContext(ctx, "dispatched", "name", "agent_data")

	entry := decode(t, &buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
	assert.Equal(t, "t1", entry["token"])
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	require.Error(t, err)
}

func TestForScript(t *testing.T) {
	var buf bytes.Buffer
	ref := core.NewScriptRef(core.NewULID())

	ForScript(Setup(Options{Writer: &buf}), ref, "greeter").Info("state_entry")

	entry := decode(t, &buf)
	assert.Equal(t, ref.ItemID.String(), entry["script"])
	assert.Equal(t, ref.PartID.String(), entry["part"])
	assert.Equal(t, "greeter", entry["name"])
}

func TestSetDefault(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	logger := SetDefault(Options{Service: "simscript"})
	assert.Same(t, logger, slog.Default())
}
