package sfoauth

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"
)

// DefaultHTTPTimeout is applied when an Environment does not set HTTPTimeout.
const DefaultHTTPTimeout = 30 * time.Second

// Environment is an immutable provider configuration. It is validated once by
// Validate (or implicitly by NewClient) and never mutated afterwards.
//
// The configuration is normally produced by an external loader; this package
// only checks that the required fields are present and well-formed.
type Environment struct {
	// IssuerURL is the identity provider's issuer (e.g. https://login.example.com).
	// Endpoint discovery appends /.well-known/openid-configuration to it.
	IssuerURL string

	// ClientID is the OAuth client identifier (required).
	ClientID string

	// ClientSecret is the OAuth client secret. Optional: when absent, token
	// endpoint authentication always uses a signed client assertion, and
	// response signature verification is unavailable.
	ClientSecret string

	// JWTSigningKey is a PEM-encoded RSA private key used to sign client and
	// grant assertions (required).
	JWTSigningKey string

	// HTTPTimeout bounds every HTTP call to the provider.
	// Zero means DefaultHTTPTimeout.
	HTTPTimeout time.Duration

	// RedirectURI is the default redirect URI for authorization-code flows.
	// Optional: a GrantRequest may carry its own.
	RedirectURI string

	// HTTPClient is an optional custom HTTP client. When nil, a client with
	// HTTPTimeout is used. Useful for tests and custom transports.
	HTTPClient *http.Client

	// Logger is an optional structured logger. Nil uses slog.Default().
	Logger *slog.Logger
}

// Validate checks that required fields are present and well-formed.
// The returned error names the offending field.
func (e *Environment) Validate() error {
	if e == nil {
		return fmt.Errorf("environment is required")
	}
	if e.IssuerURL == "" {
		return fmt.Errorf("issuer URL is required")
	}
	if err := validateIssuerURL(e.IssuerURL); err != nil {
		return fmt.Errorf("invalid issuer URL: %w", err)
	}
	if e.ClientID == "" {
		return fmt.Errorf("client ID is required")
	}
	if e.JWTSigningKey == "" {
		return fmt.Errorf("JWT signing key is required")
	}
	if e.HTTPTimeout < 0 {
		return fmt.Errorf("HTTP timeout must not be negative")
	}
	return nil
}

// validateIssuerURL enforces HTTPS for issuer URLs. Plain HTTP is allowed only
// for loopback hosts so local test servers keep working (RFC 8252 section 8.3
// makes the same allowance for native apps).
func validateIssuerURL(issuer string) error {
	u, err := url.Parse(issuer)
	if err != nil {
		return fmt.Errorf("not a valid URL: %w", err)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		host := u.Hostname()
		if host == "localhost" {
			return nil
		}
		if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
			return nil
		}
		return fmt.Errorf("must use HTTPS: %s", issuer)
	default:
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
}

// timeout returns the effective HTTP timeout.
func (e *Environment) timeout() time.Duration {
	if e.HTTPTimeout > 0 {
		return e.HTTPTimeout
	}
	return DefaultHTTPTimeout
}

// httpClient returns the configured HTTP client or a default one bounded by
// the environment timeout.
func (e *Environment) httpClient() *http.Client {
	if e.HTTPClient != nil {
		return e.HTTPClient
	}
	return &http.Client{Timeout: e.timeout()}
}

// logger returns the configured logger or slog.Default().
func (e *Environment) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// cacheKey derives the Registry key for this environment. Issuer, client ID
// and timeout fully determine provider identity for caching purposes; two
// environments differing only in other fields share one client.
func (e *Environment) cacheKey() string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s|%s|%d", e.IssuerURL, e.ClientID, e.timeout())))
	return hex.EncodeToString(sum[:])
}
