package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for protocol operations.
// These follow OpenTelemetry semantic conventions where applicable.
const (
	AttrProtocol  = "protocol.name" // rpc, etc.
	AttrOperation = "fs.operation"  // Generic operation name
)

// Protocol returns an attribute for protocol name.
func Protocol(name string) attribute.KeyValue {
	return attribute.String(AttrProtocol, name)
}

// FSOperation returns an attribute for filesystem operation name.
func FSOperation(op string) attribute.KeyValue {
	return attribute.String(AttrOperation, op)
}

// StartProtocolSpan starts a span for a generic protocol operation.
// Use this for new protocol adapters, passing the protocol name and operation.
func StartProtocolSpan(ctx context.Context, protocol, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		Protocol(protocol),
		FSOperation(operation),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, protocol+"."+operation, trace.WithAttributes(allAttrs...))
}
