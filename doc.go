// Package sfoauth implements an OAuth 2.0 / OpenID Connect client engine for
// Salesforce-style identity providers.
//
// The engine obtains, introspects and revokes access tokens and verifies the
// authenticity of the identity claims a provider returns alongside them. It
// supports three grant exchanges (authorization code, refresh token and
// JWT bearer), authenticates to the token endpoint with either a client
// secret or a signed private_key_jwt client assertion, and validates the
// provider's HMAC signature over the token response before trusting the
// Identity URL embedded in it.
//
// Basic usage:
//
//	env := &sfoauth.Environment{
//	    IssuerURL:     "https://login.example.com",
//	    ClientID:      "my-connected-app",
//	    JWTSigningKey: privateKeyPEM,
//	    HTTPTimeout:   30 * time.Second,
//	}
//	registry := sfoauth.NewRegistry()
//	client, err := registry.FindOrCreate(ctx, env)
//	if err != nil {
//	    return err
//	}
//	resp, err := client.Grant(ctx, sfoauth.JWTBearerGrant{Username: "user@example.com"}, nil)
//
// The Registry memoizes initialized clients per provider configuration so
// endpoint discovery happens at most once per distinct (issuer, client id,
// timeout) triple. Clients are safe for concurrent use after initialization.
//
// The middleware package layers request-processing stages (callback exchange,
// token validation, grant check, identity retrieval) on top of this engine
// for HTTP servers.
package sfoauth
