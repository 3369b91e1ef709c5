// Package security provides the security-adjacent helpers the engine's
// request pipeline relies on: domain event names, audit logging with hashed
// PII, per-IP rate limiting, client IP extraction and request ID handling.
package security
