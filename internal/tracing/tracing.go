// Package tracing wraps OpenTelemetry setup and the span helpers shared
// by the gateway entrypoints. Traces export to X-Ray.
package tracing

import (
	"context"

	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-lambda-go/otellambda/xrayconfig"
	"go.opentelemetry.io/contrib/propagators/aws/xray"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "remote-gateway"

// Init creates the X-Ray tracer provider and registers the propagators.
// The caller installs the provider and owns its shutdown.
func Init(ctx context.Context) (*sdktrace.TracerProvider, error) {
	tp, err := xrayconfig.NewTracerProvider(ctx)
	if err != nil {
		return nil, err
	}
	InitPropagator()
	return tp, nil
}

// InitPropagator registers the W3C and X-Ray trace propagators.
func InitPropagator() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
		xray.Propagator{},
	))
}

// StartHandlerSpan starts the top-level span for a Lambda handler.
func StartHandlerSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name,
		trace.WithAttributes(attrs...),
	)
}

// StartColdStartSpan starts the span covering process initialization, so
// the AWS calls made during init become its children.
func StartColdStartSpan(ctx context.Context, function string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "ColdStart",
		trace.WithAttributes(Function(function)),
	)
}

// StartDispatchSpan starts the span for one dispatched method call.
func StartDispatchSpan(ctx context.Context, method string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "Remote Method",
		trace.WithAttributes(Method(method)),
	)
}

// RecordError records an error on the span and marks it failed.
func RecordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Function is the span attribute for the Lambda function name.
func Function(name string) attribute.KeyValue {
	return attribute.String("function", name)
}

// RequestID is the span attribute for the API Gateway request id.
func RequestID(id string) attribute.KeyValue {
	return attribute.String("request_id", id)
}

// Method is the span attribute for the qualified method name.
func Method(name string) attribute.KeyValue {
	return attribute.String("remote.method", name)
}

// Plugin is the span attribute for the plugin name.
func Plugin(name string) attribute.KeyValue {
	return attribute.String("remote.plugin", name)
}

// User is the span attribute for the caller identity.
func User(name string) attribute.KeyValue {
	return attribute.String("remote.user", name)
}
