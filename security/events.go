package security

// Domain event names emitted by the request pipeline. Each event is a single
// descriptive string; consumers attach their own structure.
const (
	// EventAuthorizationHeaderSet is emitted after a callback exchange has
	// placed the obtained access token on the request.
	EventAuthorizationHeaderSet = "authorization_header_set"

	// EventAccessDenied is emitted exactly once per failed request, on the
	// pipeline's shared failure path.
	EventAccessDenied = "access_denied"

	// EventTokenValidated is emitted when a bearer token has been validated
	// against the provider's userinfo endpoint.
	EventTokenValidated = "token_validated"

	// EventTokenIntrospected is emitted when a bearer token has been checked
	// via the provider's introspection endpoint.
	EventTokenIntrospected = "token_introspected" //nolint:gosec // event name, not a credential

	// EventGrantChecked is emitted when a JWT-bearer grant probe confirmed
	// the user has granted the client access.
	EventGrantChecked = "grant_checked"

	// EventIdentityRetrieved is emitted when the identity claims behind a
	// validated Identity URL have been fetched.
	EventIdentityRetrieved = "identity_retrieved"

	// EventTokenRevoked is emitted when a token revocation was attempted.
	EventTokenRevoked = "token_revoked" //nolint:gosec // event name, not a credential

	// EventRateLimitExceeded is emitted when a request exceeds the
	// pipeline's per-IP rate limit.
	EventRateLimitExceeded = "rate_limit_exceeded"
)
