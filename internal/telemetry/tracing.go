/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package telemetry configures OpenTelemetry tracing for the broker.
// Custom span attributes use the `linuxmcp.` prefix.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "mipsou.github.io/mcp-linux-infra"
)

// Tracer returns the package-level tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// InitTraceProvider initialises the OTel trace provider with an OTLP gRPC
// exporter. If endpoint is empty, tracing is disabled (noop provider).
// Returns a shutdown function that must be called on application exit.
func InitTraceProvider(ctx context.Context, endpoint string, version string) (func(context.Context) error, error) {
	if endpoint == "" {
		// No-op: tracing disabled
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(), // TLS configurable via env (OTEL_EXPORTER_OTLP_INSECURE)
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String("mcp-linux-infra"),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// --- Span helpers ---

// StartExecuteSpan creates the parent span for a remote command execution.
func StartExecuteSpan(ctx context.Context, host, command string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "broker.execute",
		trace.WithAttributes(
			attribute.String("linuxmcp.host", host),
			attribute.String("linuxmcp.command", command),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndExecuteSpan enriches the execute span with the decision outcome.
func EndExecuteSpan(span trace.Span, authLevel string, allowed, needsApproval bool) {
	span.SetAttributes(
		attribute.String("linuxmcp.auth_level", authLevel),
		attribute.Bool("linuxmcp.allowed", allowed),
		attribute.Bool("linuxmcp.needs_approval", needsApproval),
	)
	span.End()
}

// StartSSHSpan creates a child span for the remote dispatch itself.
func StartSSHSpan(ctx context.Context, host, channel string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "ssh.command",
		trace.WithAttributes(
			attribute.String("linuxmcp.host", host),
			attribute.String("linuxmcp.channel", channel),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSSHSpan enriches the dispatch span with the exit status.
func EndSSHSpan(span trace.Span, exitCode int, err error) {
	span.SetAttributes(attribute.Int("linuxmcp.exit_code", exitCode))
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

// StartRemediationSpan creates a span for one remediation action.
func StartRemediationSpan(ctx context.Context, action, host string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "remediation.action",
		trace.WithAttributes(
			attribute.String("linuxmcp.action", action),
			attribute.String("linuxmcp.host", host),
		),
	)
}

// StartToolSpan creates a span for an MCP tool invocation.
func StartToolSpan(ctx context.Context, tool string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "mcp.tool_call",
		trace.WithAttributes(
			attribute.String("linuxmcp.tool", tool),
		),
	)
}
