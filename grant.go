package sfoauth

// Wire values for grant_type and client_assertion_type.
const (
	grantTypeAuthorizationCode = "authorization_code"
	grantTypeRefreshToken      = "refresh_token"

	// GrantTypeJWTBearer is the grant_type wire value of a JWT-bearer
	// exchange (RFC 7523).
	GrantTypeJWTBearer = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// ClientAssertionTypeJWTBearer is the client_assertion_type wire value
	// for private_key_jwt client authentication (RFC 7523).
	ClientAssertionTypeJWTBearer = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"
)

// GrantRequest is one of the three supported grant exchanges. The variants
// are distinct types so that an exchange can only carry the parameters its
// grant_type defines.
type GrantRequest interface {
	grantType() string
}

// AuthCodeGrant exchanges an authorization code for tokens.
type AuthCodeGrant struct {
	// Code is the authorization code from the provider callback (required).
	Code string

	// RedirectURI overrides the Environment's redirect URI. One of the two
	// must be set.
	RedirectURI string
}

func (AuthCodeGrant) grantType() string { return grantTypeAuthorizationCode }

// RefreshGrant exchanges a refresh token for a fresh access token.
type RefreshGrant struct {
	// RefreshToken is the refresh token to redeem (required).
	RefreshToken string
}

func (RefreshGrant) grantType() string { return grantTypeRefreshToken }

// JWTBearerGrant obtains tokens for a user via a signed JWT assertion instead
// of user interaction. The assertion itself authenticates the client, so no
// client authentication parameters are sent.
type JWTBearerGrant struct {
	// Username is the subject the assertion is issued for (required).
	Username string
}

func (JWTBearerGrant) grantType() string { return GrantTypeJWTBearer }

// GrantOptions tunes a single Grant call. The zero value gives the defaults:
// client authentication via signed client assertion, and all three
// verification steps enabled.
type GrantOptions struct {
	// UseClientSecret authenticates to the token endpoint with
	// client_id+client_secret instead of the default signed client
	// assertion. Ignored for JWT-bearer grants, which carry no client
	// authentication. Requires Environment.ClientSecret.
	UseClientSecret bool

	// SkipDecodeIDToken disables ID token decoding on the response.
	SkipDecodeIDToken bool

	// SkipVerifySignature disables HMAC signature verification on the
	// response.
	SkipVerifySignature bool

	// SkipParseUserInfo disables Identity URL parsing on the response.
	SkipParseUserInfo bool
}

func (o *GrantOptions) verifyOptions() VerifyOptions {
	if o == nil {
		return VerifyOptions{}
	}
	return VerifyOptions{
		SkipDecodeIDToken:   o.SkipDecodeIDToken,
		SkipVerifySignature: o.SkipVerifySignature,
		SkipParseUserInfo:   o.SkipParseUserInfo,
	}
}

// RevokeOptions tunes a Revoke call.
type RevokeOptions struct {
	// UseGet issues the revocation as a GET with the token in the query
	// string instead of the default form-encoded POST.
	UseGet bool
}

// UserInfoOptions tunes a UserInfo call.
type UserInfoOptions struct {
	// ResponseFormat is sent as the Accept header.
	// Default: application/json.
	ResponseFormat string
}

// AuthorizationURLOptions tunes AuthorizationURL.
type AuthorizationURLOptions struct {
	// Scopes requests specific scopes. Empty requests none explicitly.
	Scopes []string
}
