package observability

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Error classification values for [RecordSpanError] span attributes.
const (
	// ErrTypeDependencyUnavailable marks failures of an upstream API.
	ErrTypeDependencyUnavailable = "dependency_unavailable"
	// ErrTypeValidation marks rejected input (bad config, unknown kind).
	ErrTypeValidation = "validation"
	// ErrTypeInternal marks failures inside this process (store I/O).
	ErrTypeInternal = "internal"

	// ErrSourceDependency attributes the error to an external dependency.
	ErrSourceDependency = "dependency"
	// ErrSourceServer attributes the error to this process.
	ErrSourceServer = "server"
)

const (
	attrErrorType   = "error.type"
	attrErrorSource = "error.source"
)

// RecordSpanError marks a span failed: records the error event, sets error
// status, and attaches classification attributes. An empty errSource is
// omitted.
func RecordSpanError(span trace.Span, err error, errType, errSource string) {
	if err == nil {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String(attrErrorType, errType))

	if errSource != "" {
		span.SetAttributes(attribute.String(attrErrorSource, errSource))
	}
}
