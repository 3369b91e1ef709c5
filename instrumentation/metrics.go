package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments for the engine. The Record methods
// are nil-safe so uninstrumented components can call them unconditionally.
type Metrics struct {
	// Protocol client metrics
	GrantExchanged    metric.Int64Counter
	TokenIntrospected metric.Int64Counter
	TokenRevoked      metric.Int64Counter
	UserInfoFetched   metric.Int64Counter
	DiscoveryCalls    metric.Int64Counter

	// Client cache metrics
	CacheLookups metric.Int64Counter

	// Pipeline metrics
	PipelineFailures metric.Int64Counter
}

// newMetrics creates and registers all metric instruments.
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	clientMeter := inst.Meter("client")
	cacheMeter := inst.Meter("cache")
	pipelineMeter := inst.Meter("middleware")

	m := &Metrics{}
	var err error

	m.GrantExchanged, err = clientMeter.Int64Counter(
		"sfoauth.grant.exchanged",
		metric.WithDescription("Number of grant exchanges performed"),
		metric.WithUnit("{exchange}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create grant.exchanged counter: %w", err)
	}

	m.TokenIntrospected, err = clientMeter.Int64Counter(
		"sfoauth.token.introspected",
		metric.WithDescription("Number of token introspections performed"),
		metric.WithUnit("{introspection}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token.introspected counter: %w", err)
	}

	m.TokenRevoked, err = clientMeter.Int64Counter(
		"sfoauth.token.revoked",
		metric.WithDescription("Number of token revocations attempted"),
		metric.WithUnit("{revocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token.revoked counter: %w", err)
	}

	m.UserInfoFetched, err = clientMeter.Int64Counter(
		"sfoauth.userinfo.fetched",
		metric.WithDescription("Number of userinfo endpoint calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo.fetched counter: %w", err)
	}

	m.DiscoveryCalls, err = clientMeter.Int64Counter(
		"sfoauth.discovery.calls",
		metric.WithDescription("Number of discovery document fetches"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery.calls counter: %w", err)
	}

	m.CacheLookups, err = cacheMeter.Int64Counter(
		"sfoauth.cache.lookups",
		metric.WithDescription("Number of client cache lookups, labelled by result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache.lookups counter: %w", err)
	}

	m.PipelineFailures, err = pipelineMeter.Int64Counter(
		"sfoauth.pipeline.failures",
		metric.WithDescription("Number of request pipeline failures"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline.failures counter: %w", err)
	}

	return m, nil
}

// RecordGrantExchanged records a completed grant exchange.
func (m *Metrics) RecordGrantExchanged(ctx context.Context, grantType string) {
	if m == nil {
		return
	}
	m.GrantExchanged.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrGrantType, grantType),
	))
}

// RecordTokenIntrospected records a token introspection and its result.
func (m *Metrics) RecordTokenIntrospected(ctx context.Context, active bool) {
	if m == nil {
		return
	}
	m.TokenIntrospected.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool(AttrTokenActive, active),
	))
}

// RecordTokenRevoked records a revocation attempt and whether it succeeded.
func (m *Metrics) RecordTokenRevoked(ctx context.Context, ok bool) {
	if m == nil {
		return
	}
	m.TokenRevoked.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool(AttrRevocationOK, ok),
	))
}

// RecordUserInfoFetched records a userinfo endpoint call.
func (m *Metrics) RecordUserInfoFetched(ctx context.Context) {
	if m == nil {
		return
	}
	m.UserInfoFetched.Add(ctx, 1)
}

// RecordDiscoveryPerformed records a discovery document fetch.
func (m *Metrics) RecordDiscoveryPerformed(ctx context.Context) {
	if m == nil {
		return
	}
	m.DiscoveryCalls.Add(ctx, 1)
}

// RecordCacheLookup records a client cache lookup and whether it hit.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	m.CacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool(AttrCacheHit, hit),
	))
}

// RecordPipelineFailure records a pipeline stage failure.
func (m *Metrics) RecordPipelineFailure(ctx context.Context, stage string) {
	if m == nil {
		return
	}
	m.PipelineFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrPipelineStage, stage),
	))
}
