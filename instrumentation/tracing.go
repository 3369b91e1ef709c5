package instrumentation

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span and metric attribute keys.
//
// Never place credential values (access tokens, refresh tokens, assertions,
// client secrets, authorization codes) in attributes. Only metadata such as
// grant types, stage names and boolean results belongs here.
const (
	AttrGrantType     = "sfoauth.grant_type"
	AttrClientID      = "sfoauth.client_id"
	AttrIssuer        = "sfoauth.issuer"
	AttrTokenActive   = "sfoauth.token.active"
	AttrRevocationOK  = "sfoauth.revocation.ok"
	AttrCacheHit      = "sfoauth.cache.hit"
	AttrPipelineStage = "sfoauth.pipeline.stage"
	AttrClientIP      = "sfoauth.client_ip"
	AttrError         = "sfoauth.error"
)

// EndSpan ends a span (nil-safe).
func EndSpan(span trace.Span) {
	if span != nil {
		span.End()
	}
}

// RecordError records an error on a span with an error status (nil-safe).
func RecordError(span trace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess marks a span as successful (nil-safe).
func SetSpanSuccess(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// SetSpanAttributes sets attributes on a span (nil-safe).
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span != nil {
		span.SetAttributes(attrs...)
	}
}
