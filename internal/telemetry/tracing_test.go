/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTestTracer installs an in-memory span exporter for test assertions.
func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := trace.NewTracerProvider(
		trace.WithSyncer(exporter),
	)
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})
	return exporter
}

func TestInitTraceProviderNoopWhenEmpty(t *testing.T) {
	shutdown, err := InitTraceProvider(context.Background(), "", "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Should be a no-op shutdown
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestStartExecuteSpan(t *testing.T) {
	exporter := setupTestTracer(t)

	ctx := context.Background()
	_, span := StartExecuteSpan(ctx, "web01", "systemctl status unbound")
	EndExecuteSpan(span, "auto", true, false)

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "broker.execute" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "broker.execute")
	}

	foundHost := false
	foundLevel := false
	for _, a := range spans[0].Attributes {
		if string(a.Key) == "linuxmcp.host" && a.Value.AsString() == "web01" {
			foundHost = true
		}
		if string(a.Key) == "linuxmcp.auth_level" && a.Value.AsString() == "auto" {
			foundLevel = true
		}
	}
	if !foundHost {
		t.Error("missing linuxmcp.host attribute")
	}
	if !foundLevel {
		t.Error("missing linuxmcp.auth_level attribute")
	}
}

func TestSSHSpanRecordsError(t *testing.T) {
	exporter := setupTestTracer(t)

	_, span := StartSSHSpan(context.Background(), "web01", "read")
	EndSSHSpan(span, 1, errors.New("connection reset"))

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if len(spans[0].Events) == 0 {
		t.Error("error not recorded on span")
	}
}

func TestNestedSpans(t *testing.T) {
	exporter := setupTestTracer(t)

	ctx := context.Background()
	ctx, execSpan := StartExecuteSpan(ctx, "web01", "uptime")
	_, sshSpan := StartSSHSpan(ctx, "web01", "read")
	sshSpan.End()
	execSpan.End()

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}

	sshStub := spans[0] // SSH span ends first
	execStub := spans[1]

	if sshStub.Parent.TraceID() != execStub.SpanContext.TraceID() {
		t.Error("ssh span should share trace ID with execute span")
	}
	if !sshStub.Parent.SpanID().IsValid() {
		t.Error("ssh span should have a valid parent span ID")
	}
}
