package sfoauth

import (
	"golang.org/x/oauth2"
)

// DiscoveryDocument is the subset of the OpenID Connect provider metadata
// this engine consumes (RFC 8414).
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserInfoEndpoint      string `json:"userinfo_endpoint"`
	RevocationEndpoint    string `json:"revocation_endpoint"`
	IntrospectionEndpoint string `json:"introspection_endpoint,omitempty"`
	JWKSUri               string `json:"jwks_uri,omitempty"`
}

// ErrorResponse is an OAuth 2.0 error response body.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// UserInfo carries the user and organization identifiers derived from the
// Identity URL of a token response.
//
// Validated reports whether the provider's HMAC signature over the response
// has been checked. VerifySignature must succeed before ID and
// OrganizationID are trusted for authorization decisions; the verification
// steps are independently skippable, so this ordering is the caller's
// responsibility.
type UserInfo struct {
	// ID is the user identifier, 15 or 18 characters.
	ID string
	// OrganizationID is the organization identifier, 15 or 18 characters.
	OrganizationID string
	// URL is the canonical Identity URL the identifiers were parsed from.
	URL string
	// Validated is true once the response signature has been verified.
	Validated bool
}

// AccessTokenResponse is a successful token endpoint response.
//
// The verification steps (DecodeIDToken, VerifySignature, ParseUserInfo) do
// not mutate a response in place; each returns a new value with the decoded
// claims or derived UserInfo filled in.
type AccessTokenResponse struct {
	// AccessToken is the issued access token.
	AccessToken string `json:"access_token"`

	// TokenType is the token type, normally "Bearer".
	TokenType string `json:"token_type"`

	// RefreshToken is the optional refresh token.
	RefreshToken string `json:"refresh_token,omitempty"`

	// Scope is the space-separated granted scope.
	Scope string `json:"scope,omitempty"`

	// RawIDToken is the compact-serialized ID token, when the granted scope
	// includes openid.
	RawIDToken string `json:"id_token,omitempty"`

	// ID is the Identity URL: an opaque issuer-assigned URL whose last two
	// path segments are the organization and user identifiers.
	ID string `json:"id,omitempty"`

	// InstanceURL is the API host the token is valid against.
	InstanceURL string `json:"instance_url,omitempty"`

	// IssuedAt is the issuance timestamp in epoch milliseconds, as a string.
	IssuedAt string `json:"issued_at,omitempty"`

	// Signature is base64(HMAC-SHA256(clientSecret, ID || IssuedAt)).
	Signature string `json:"signature,omitempty"`

	// IDTokenClaims holds the decoded (not verified) ID token claims.
	// Populated by DecodeIDToken.
	IDTokenClaims map[string]any `json:"-"`

	// UserInfo holds identifiers derived from ID. Populated by
	// VerifySignature and ParseUserInfo.
	UserInfo *UserInfo `json:"-"`
}

// Token converts the response to a golang.org/x/oauth2 token so it can feed
// standard token sources and clients.
func (r *AccessTokenResponse) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  r.AccessToken,
		TokenType:    r.TokenType,
		RefreshToken: r.RefreshToken,
	}
}

// UserInfoResponse is the provider's userinfo endpoint response.
type UserInfoResponse struct {
	Sub               string `json:"sub"`
	UserID            string `json:"user_id,omitempty"`
	OrganizationID    string `json:"organization_id,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	Email             string `json:"email,omitempty"`
	EmailVerified     bool   `json:"email_verified,omitempty"`
	Name              string `json:"name,omitempty"`
}

// IntrospectionResponse is a token introspection result (RFC 7662).
type IntrospectionResponse struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Username  string `json:"username,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Exp       int64  `json:"exp,omitempty"`
	Iat       int64  `json:"iat,omitempty"`
	Sub       string `json:"sub,omitempty"`
}
