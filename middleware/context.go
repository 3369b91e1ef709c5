package middleware

import (
	"context"
	"net/http"

	sfoauth "github.com/giantswarm/sfdc-oauth"
)

// AuthContext accumulates authentication state as the pipeline stages run.
// It is created lazily on first write and shared by pointer through the
// request context, so later stages see (and must preserve) what earlier
// stages wrote.
type AuthContext struct {
	// Username is the authenticated user, as reported by userinfo or
	// introspection.
	Username string

	// OrganizationID is the user's organization identifier.
	OrganizationID string

	// AccessToken is the raw bearer token for the request, when known.
	AccessToken string

	// IdentityURL is the Identity URL from a token response, and
	// IdentityValidated whether its signature was verified.
	IdentityURL       string
	IdentityValidated bool

	// Identity holds the raw claims fetched from the Identity URL.
	Identity map[string]any

	// GrantChecked is set once a JWT-bearer grant probe has confirmed the
	// user granted this client access.
	GrantChecked bool

	// Introspection is the most recent introspection result, when the
	// validation stage ran in introspection mode.
	Introspection *sfoauth.IntrospectionResponse
}

type authContextKey struct{}

// FromContext returns the request's AuthContext, if any stage has run.
func FromContext(ctx context.Context) (*AuthContext, bool) {
	actx, ok := ctx.Value(authContextKey{}).(*AuthContext)
	return actx, ok
}

// ensureAuthContext returns the request's AuthContext, attaching a fresh one
// (and a derived request) on first use.
func ensureAuthContext(r *http.Request) (*http.Request, *AuthContext) {
	if actx, ok := FromContext(r.Context()); ok {
		return r, actx
	}
	actx := &AuthContext{}
	return r.WithContext(context.WithValue(r.Context(), authContextKey{}, actx)), actx
}
