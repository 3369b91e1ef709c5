package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	sfoauth "github.com/giantswarm/sfdc-oauth"
	"github.com/giantswarm/sfdc-oauth/instrumentation"
	"github.com/giantswarm/sfdc-oauth/security"
)

// ErrorHandlerFunc receives every pipeline failure. The error message is
// already client-IP qualified; mapping it to a status code is the handler's
// business, not the pipeline's.
type ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)

// EventSink receives domain event names (see package security) as single
// descriptive strings.
type EventSink func(event string)

// Config configures the pipeline stages.
type Config struct {
	// Env is the provider configuration (required).
	Env *sfoauth.Environment

	// Registry caches initialized protocol clients (required). Owned by
	// the process bootstrap and shared across pipelines.
	Registry *sfoauth.Registry

	// Logger for structured logging. Nil uses slog.Default().
	Logger *slog.Logger

	// Auditor for security audit logging. Optional.
	Auditor *security.Auditor

	// Events receives domain events. Optional.
	Events EventSink

	// ErrorHandler receives pipeline failures.
	// Nil uses DefaultErrorHandler.
	ErrorHandler ErrorHandlerFunc

	// RateLimiter applies per-IP limiting before any stage work. Optional.
	RateLimiter *security.RateLimiter

	// Instrumentation records pipeline metrics. Optional.
	Instrumentation *instrumentation.Instrumentation

	// TrustProxy trusts X-Forwarded-For / X-Real-IP for client IPs.
	// Only enable behind a trusted reverse proxy.
	TrustProxy bool
}

// Middleware builds the pipeline stages for one provider configuration.
type Middleware struct {
	cfg     Config
	logger  *slog.Logger
	metrics *instrumentation.Metrics
	tracer  trace.Tracer
}

// New validates the configuration and returns a stage builder.
func New(cfg Config) (*Middleware, error) {
	if cfg.Env == nil {
		return nil, fmt.Errorf("environment is required")
	}
	if err := cfg.Env.Validate(); err != nil {
		return nil, err
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	m := &Middleware{cfg: cfg, logger: cfg.Logger}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if cfg.Instrumentation != nil {
		m.metrics = cfg.Instrumentation.Metrics()
		m.tracer = cfg.Instrumentation.Tracer("middleware")
	}
	return m, nil
}

// DefaultErrorHandler writes a 401 with an OAuth-style JSON body. Routing
// frameworks that map errors themselves should install their own handler.
func DefaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	security.SetSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(sfoauth.ErrorResponse{
		Error:            sfoauth.ErrorCodeAccessDenied,
		ErrorDescription: err.Error(),
	})
}

// stageFunc does one stage's work. A non-nil error routes to the shared
// failure path; nil continues to the next handler.
type stageFunc func(w http.ResponseWriter, r *http.Request, actx *AuthContext, client *sfoauth.Client) error

// stage wraps a stageFunc with the shared plumbing: request ID, rate
// limiting, client lookup, AuthContext attachment and the failure path.
func (m *Middleware) stage(name string, fn stageFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := security.RequestIDFromRequest(r)
			r = r.WithContext(security.WithRequestID(r.Context(), requestID))
			w.Header().Set(security.RequestIDHeader, requestID)

			ctx, span := m.startSpan(r.Context(), "sfoauth.pipeline."+name,
				attribute.String(instrumentation.AttrPipelineStage, name))
			r = r.WithContext(ctx)
			defer instrumentation.EndSpan(span)

			if m.cfg.RateLimiter != nil {
				ip := security.GetClientIP(r, m.cfg.TrustProxy)
				if !m.cfg.RateLimiter.Allow(ip) {
					m.emit(security.EventRateLimitExceeded)
					m.cfg.Auditor.LogRateLimitExceeded(ip)
					m.fail(w, r, name, errors.New("rate limit exceeded"))
					return
				}
			}

			client, err := m.cfg.Registry.FindOrCreate(r.Context(), m.cfg.Env)
			if err != nil {
				m.fail(w, r, name, err)
				return
			}

			r, actx := ensureAuthContext(r)
			if err := fn(w, r, actx, client); err != nil {
				m.fail(w, r, name, err)
				return
			}
			instrumentation.SetSpanSuccess(span)
			next.ServeHTTP(w, r)
		})
	}
}

// fail is the single failure sink of the pipeline. It emits exactly one
// access_denied event per failed request and never lets the next handler run.
func (m *Middleware) fail(w http.ResponseWriter, r *http.Request, stage string, err error) {
	ip := security.GetClientIP(r, m.cfg.TrustProxy)
	qualified := fmt.Errorf("request from %s denied: %w", ip, err)

	span := trace.SpanFromContext(r.Context())
	instrumentation.SetSpanAttributes(span,
		attribute.String(instrumentation.AttrClientIP, ip),
		attribute.String(instrumentation.AttrError, err.Error()))
	instrumentation.RecordError(span, err)

	m.logger.Warn("pipeline stage failed",
		"stage", stage,
		"client_ip", ip,
		"request_id", security.RequestIDFromContext(r.Context()),
		"error", err)

	m.emit(security.EventAccessDenied)

	var username string
	if actx, ok := FromContext(r.Context()); ok {
		username = actx.Username
	}
	m.cfg.Auditor.LogAccessDenied(username, m.cfg.Env.ClientID, ip, err.Error())
	m.metrics.RecordPipelineFailure(r.Context(), stage)

	handler := m.cfg.ErrorHandler
	if handler == nil {
		handler = DefaultErrorHandler
	}
	handler(w, r, qualified)
}

func (m *Middleware) emit(event string) {
	if m.cfg.Events != nil {
		m.cfg.Events(event)
	}
}

func (m *Middleware) clientIP(r *http.Request) string {
	return security.GetClientIP(r, m.cfg.TrustProxy)
}

// startSpan opens a stage span when tracing is attached. The returned span
// may be nil; the nil-safe helpers in the instrumentation package accept it.
func (m *Middleware) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if m.tracer == nil {
		return ctx, nil
	}
	return m.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// bearerToken extracts the token from an "Authorization: Bearer {token}"
// header.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", errors.New("authorization header format must be Bearer {token}")
	}
	return parts[1], nil
}
