package sfoauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/giantswarm/sfdc-oauth/assertion"
	"github.com/giantswarm/sfdc-oauth/instrumentation"
	"github.com/giantswarm/sfdc-oauth/internal/util"
)

// discoveryPath is the well-known path of the OIDC discovery document.
const discoveryPath = "/.well-known/openid-configuration"

// Client is the protocol client for one provider configuration. It owns
// endpoint discovery, authorization URL generation, the three grant
// exchanges, token introspection, revocation and userinfo calls.
//
// A Client starts uninitialized; Init performs discovery and populates the
// endpoint URIs. Every other operation fails with ErrNotInitialized until
// Init has succeeded. After initialization a Client is read-mostly and safe
// for concurrent use.
type Client struct {
	env        *Environment
	httpClient *http.Client
	logger     *slog.Logger
	signer     *assertion.Signer
	metrics    *instrumentation.Metrics
	tracer     trace.Tracer

	ready atomic.Bool
	doc   DiscoveryDocument
}

// NewClient creates an uninitialized Client for the environment.
// Configuration errors (missing fields, unparseable signing key) surface here
// and are never retried.
func NewClient(env *Environment) (*Client, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	signer, err := assertion.NewSigner(env.ClientID, env.IssuerURL, env.JWTSigningKey)
	if err != nil {
		return nil, err
	}
	return &Client{
		env:        env,
		httpClient: env.httpClient(),
		logger:     env.logger(),
		signer:     signer,
	}, nil
}

// SetInstrumentation attaches OpenTelemetry metrics and tracing to the
// client. Must be called before the client is shared across goroutines.
func (c *Client) SetInstrumentation(inst *instrumentation.Instrumentation) {
	if inst != nil {
		c.metrics = inst.Metrics()
		c.tracer = inst.Tracer("client")
	}
}

// startSpan opens a client span when tracing is attached. The returned span
// may be nil; the nil-safe helpers in the instrumentation package accept it.
func (c *Client) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if c.tracer == nil {
		return ctx, nil
	}
	return c.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// Environment returns the provider configuration the client is bound to.
func (c *Client) Environment() *Environment {
	return c.env
}

// Init fetches the discovery document and populates the endpoint URIs.
// A failed discovery leaves the client uninitialized and the error propagates
// unchanged; there is no retry. Calling Init on an initialized client is a
// no-op.
func (c *Client) Init(ctx context.Context) error {
	if c.ready.Load() {
		return nil
	}

	ctx, cancel := c.ensureContextTimeout(ctx)
	defer cancel()

	discoveryURL := util.NormalizeURL(c.env.IssuerURL) + discoveryPath
	c.logger.Debug("fetching discovery document", "url", discoveryURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, discoveryURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create discovery request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch discovery document: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("discovery failed with status %d", resp.StatusCode)
	}

	var doc DiscoveryDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("failed to decode discovery document: %w", err)
	}
	if err := validateDiscoveryDocument(&doc); err != nil {
		return fmt.Errorf("invalid discovery document: %w", err)
	}

	c.doc = doc
	c.ready.Store(true)
	c.metrics.RecordDiscoveryPerformed(ctx)

	c.logger.Info("discovery successful",
		"issuer", c.env.IssuerURL,
		"authorization_endpoint", doc.AuthorizationEndpoint,
		"token_endpoint", doc.TokenEndpoint)
	return nil
}

// validateDiscoveryDocument checks that the four endpoints the engine depends
// on are present. The introspection endpoint is optional.
func validateDiscoveryDocument(doc *DiscoveryDocument) error {
	endpoints := []struct {
		name string
		url  string
	}{
		{"authorization_endpoint", doc.AuthorizationEndpoint},
		{"token_endpoint", doc.TokenEndpoint},
		{"revocation_endpoint", doc.RevocationEndpoint},
		{"userinfo_endpoint", doc.UserInfoEndpoint},
	}
	for _, ep := range endpoints {
		if ep.url == "" {
			return fmt.Errorf("%s is required but missing", ep.name)
		}
	}
	return nil
}

// Discovery returns the discovered endpoint document.
// Valid only after Init.
func (c *Client) Discovery() (DiscoveryDocument, error) {
	if err := c.requireInit(); err != nil {
		return DiscoveryDocument{}, err
	}
	return c.doc, nil
}

// AuthorizationURL builds the authorization endpoint URL for a code flow.
// Defaults (client_id, redirect_uri from the Environment, response_type=code)
// are merged with opts and params; caller-supplied values win. A "state"
// entry in params becomes the OAuth state parameter.
func (c *Client) AuthorizationURL(params map[string]string, opts *AuthorizationURLOptions) (string, error) {
	if err := c.requireInit(); err != nil {
		return "", err
	}
	if opts == nil {
		opts = &AuthorizationURLOptions{}
	}

	cfg := oauth2.Config{
		ClientID:    c.env.ClientID,
		RedirectURL: c.env.RedirectURI,
		Scopes:      opts.Scopes,
		Endpoint:    oauth2.Endpoint{AuthURL: c.doc.AuthorizationEndpoint},
	}

	state := params["state"]
	keys := make([]string, 0, len(params))
	for k := range params {
		if k != "state" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	acOpts := make([]oauth2.AuthCodeOption, 0, len(keys))
	for _, k := range keys {
		acOpts = append(acOpts, oauth2.SetAuthURLParam(k, params[k]))
	}
	return cfg.AuthCodeURL(state, acOpts...), nil
}

// Grant performs one of the three grant exchanges against the token endpoint
// and runs the enabled verification steps on the response.
//
// Protocol errors (non-200 with an error/error_description pair) surface as a
// *ProtocolError; verification failures are wrapped as
// "failed to obtain grant: ...". There is no retry on either.
func (c *Client) Grant(ctx context.Context, req GrantRequest, opts *GrantOptions) (*AccessTokenResponse, error) {
	if err := c.requireInit(); err != nil {
		return nil, err
	}

	ctx, span := c.startSpan(ctx, "sfoauth.grant",
		attribute.String(instrumentation.AttrGrantType, req.grantType()),
		attribute.String(instrumentation.AttrClientID, c.env.ClientID),
		attribute.String(instrumentation.AttrIssuer, c.env.IssuerURL),
	)
	defer instrumentation.EndSpan(span)

	verified, err := c.grant(ctx, req, opts)
	if err != nil {
		instrumentation.RecordError(span, err)
		return nil, err
	}
	instrumentation.SetSpanSuccess(span)
	return verified, nil
}

func (c *Client) grant(ctx context.Context, req GrantRequest, opts *GrantOptions) (*AccessTokenResponse, error) {
	form, err := c.grantParams(req, opts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := c.ensureContextTimeout(ctx)
	defer cancel()

	resp, err := c.postForm(ctx, c.doc.TokenEndpoint, form)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, protocolError(resp)
	}

	var token AccessTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	verified, err := verifyGrantResponse(c.env, &token, opts.verifyOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to obtain grant: %w", err)
	}

	c.metrics.RecordGrantExchanged(ctx, req.grantType())
	c.logger.Debug("grant exchanged",
		"grant_type", req.grantType(),
		"access_token", util.SafeTruncate(verified.AccessToken, 8))
	return verified, nil
}

// grantParams builds the token endpoint form for a grant request.
func (c *Client) grantParams(req GrantRequest, opts *GrantOptions) (url.Values, error) {
	form := url.Values{}
	form.Set("grant_type", req.grantType())

	switch g := req.(type) {
	case AuthCodeGrant:
		if g.Code == "" {
			return nil, &MissingParameterError{Name: "code"}
		}
		redirectURI := g.RedirectURI
		if redirectURI == "" {
			redirectURI = c.env.RedirectURI
		}
		if redirectURI == "" {
			return nil, &MissingParameterError{Name: "redirectUri"}
		}
		form.Set("code", g.Code)
		form.Set("redirect_uri", redirectURI)
		if err := c.addClientAuth(form, opts); err != nil {
			return nil, err
		}

	case RefreshGrant:
		if g.RefreshToken == "" {
			return nil, &MissingParameterError{Name: "refreshToken"}
		}
		form.Set("refresh_token", g.RefreshToken)
		if err := c.addClientAuth(form, opts); err != nil {
			return nil, err
		}

	case JWTBearerGrant:
		if g.Username == "" {
			return nil, &MissingParameterError{Name: "user"}
		}
		// The signed assertion authenticates both client and user; no
		// client authentication parameters for this variant.
		signed, err := c.signer.GrantAssertion(g.Username)
		if err != nil {
			return nil, err
		}
		form.Set("assertion", signed)

	default:
		return nil, fmt.Errorf("unsupported grant request type %T", req)
	}
	return form, nil
}

// addClientAuth appends client authentication parameters: client_id plus
// either client_secret or (default) a signed client assertion.
func (c *Client) addClientAuth(form url.Values, opts *GrantOptions) error {
	form.Set("client_id", c.env.ClientID)

	if opts != nil && opts.UseClientSecret {
		if c.env.ClientSecret == "" {
			return fmt.Errorf("client secret is required for client_secret authentication")
		}
		form.Set("client_secret", c.env.ClientSecret)
		return nil
	}

	signed, err := c.signer.ClientAssertion(c.doc.TokenEndpoint)
	if err != nil {
		return err
	}
	form.Set("client_assertion", signed)
	form.Set("client_assertion_type", ClientAssertionTypeJWTBearer)
	return nil
}

// Revoke revokes a token. The success flag derives strictly from HTTP status
// 200; any other status is an unsuccessful revocation, not an error.
func (c *Client) Revoke(ctx context.Context, token string, opts *RevokeOptions) (bool, error) {
	if err := c.requireInit(); err != nil {
		return false, err
	}

	ctx, cancel := c.ensureContextTimeout(ctx)
	defer cancel()

	var resp *http.Response
	var err error
	if opts != nil && opts.UseGet {
		q := url.Values{}
		q.Set("token", token)
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, c.doc.RevocationEndpoint+"?"+q.Encode(), nil)
		if reqErr != nil {
			return false, fmt.Errorf("failed to create revoke request: %w", reqErr)
		}
		resp, err = c.httpClient.Do(req)
	} else {
		form := url.Values{}
		form.Set("token", token)
		resp, err = c.postForm(ctx, c.doc.RevocationEndpoint, form)
	}
	if err != nil {
		return false, fmt.Errorf("revoke request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	ok := resp.StatusCode == http.StatusOK
	c.metrics.RecordTokenRevoked(ctx, ok)
	return ok, nil
}

// UserInfo fetches the userinfo endpoint with the given bearer token.
func (c *Client) UserInfo(ctx context.Context, accessToken string, opts *UserInfoOptions) (*UserInfoResponse, error) {
	if err := c.requireInit(); err != nil {
		return nil, err
	}

	accept := "application/json"
	if opts != nil && opts.ResponseFormat != "" {
		accept = opts.ResponseFormat
	}

	ctx, cancel := c.ensureContextTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.doc.UserInfoEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", accept)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("userinfo request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var ui UserInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&ui); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo response: %w", err)
	}

	c.metrics.RecordUserInfoFetched(ctx)
	return &ui, nil
}

// Introspect queries whether a token is currently active (RFC 7662).
// Requires the provider to advertise an introspection endpoint.
func (c *Client) Introspect(ctx context.Context, token string) (*IntrospectionResponse, error) {
	if err := c.requireInit(); err != nil {
		return nil, err
	}

	ctx, span := c.startSpan(ctx, "sfoauth.introspect",
		attribute.String(instrumentation.AttrClientID, c.env.ClientID),
		attribute.String(instrumentation.AttrIssuer, c.env.IssuerURL),
	)
	defer instrumentation.EndSpan(span)

	ir, err := c.introspect(ctx, token)
	if err != nil {
		instrumentation.RecordError(span, err)
		return nil, err
	}
	instrumentation.SetSpanAttributes(span, attribute.Bool(instrumentation.AttrTokenActive, ir.Active))
	instrumentation.SetSpanSuccess(span)
	return ir, nil
}

func (c *Client) introspect(ctx context.Context, token string) (*IntrospectionResponse, error) {
	if c.doc.IntrospectionEndpoint == "" {
		return nil, fmt.Errorf("introspection endpoint not available in discovery document")
	}

	form := url.Values{}
	form.Set("token", token)
	form.Set("token_type_hint", "access_token")
	form.Set("client_id", c.env.ClientID)
	if c.env.ClientSecret != "" {
		form.Set("client_secret", c.env.ClientSecret)
	} else {
		signed, err := c.signer.ClientAssertion(c.doc.TokenEndpoint)
		if err != nil {
			return nil, err
		}
		form.Set("client_assertion", signed)
		form.Set("client_assertion_type", ClientAssertionTypeJWTBearer)
	}

	ctx, cancel := c.ensureContextTimeout(ctx)
	defer cancel()

	resp, err := c.postForm(ctx, c.doc.IntrospectionEndpoint, form)
	if err != nil {
		return nil, fmt.Errorf("introspection request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, protocolError(resp)
	}

	var ir IntrospectionResponse
	if err := json.NewDecoder(resp.Body).Decode(&ir); err != nil {
		return nil, fmt.Errorf("failed to decode introspection response: %w", err)
	}

	c.metrics.RecordTokenIntrospected(ctx, ir.Active)
	return &ir, nil
}

// Identity fetches the Identity URL of a token response with the given
// bearer token and returns the raw identity claims.
func (c *Client) Identity(ctx context.Context, identityURL, accessToken string) (map[string]any, error) {
	if err := c.requireInit(); err != nil {
		return nil, err
	}
	if identityURL == "" {
		return nil, fmt.Errorf("identity URL is required")
	}

	ctx, cancel := c.ensureContextTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, identityURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("identity request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	claims := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return nil, fmt.Errorf("failed to decode identity response: %w", err)
	}
	return claims, nil
}

func (c *Client) requireInit() error {
	if !c.ready.Load() {
		return ErrNotInitialized
	}
	return nil
}

// ensureContextTimeout bounds the context with the environment timeout unless
// the caller already set a deadline.
func (c *Client) ensureContextTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.env.timeout())
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.httpClient.Do(req)
}

// protocolError converts a non-200 endpoint response into a *ProtocolError,
// surfacing the provider's error and error_description verbatim.
func protocolError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var er ErrorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error != "" {
		return &ProtocolError{Code: er.Error, Description: er.ErrorDescription, Status: resp.StatusCode}
	}
	return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
