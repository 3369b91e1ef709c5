// Package instrumentation provides OpenTelemetry metrics and tracing for the
// sfdc-oauth engine.
//
// Instrumentation is optional: a nil *Metrics receiver is valid and records
// nothing, and a disabled configuration uses no-op providers with zero
// overhead. Components accept an *Instrumentation via SetInstrumentation and
// record protocol-level events (grant exchanges, introspections, revocations,
// discovery calls, cache lookups, pipeline failures) without ever placing
// credential values in attributes.
package instrumentation
