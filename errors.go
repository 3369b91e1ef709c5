package sfoauth

import (
	"errors"
	"fmt"
)

// OAuth error codes returned by Salesforce-style token endpoints.
const (
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeInvalidGrant         = "invalid_grant"
	ErrorCodeInvalidClient        = "invalid_client"
	ErrorCodeInvalidScope         = "invalid_scope"
	ErrorCodeInvalidToken         = "invalid_token"
	ErrorCodeUnsupportedGrantType = "unsupported_grant_type"
	ErrorCodeServerError          = "server_error"
	ErrorCodeAccessDenied         = "access_denied"
)

// ErrNotInitialized is returned when a Client operation runs before Init.
var ErrNotInitialized = errors.New("client is not initialized: call Init first")

// ProtocolError is a non-2xx token endpoint response carrying the provider's
// error and error_description pair, surfaced verbatim.
type ProtocolError struct {
	// Code is the OAuth error code (e.g. "invalid_grant").
	Code string
	// Description is the provider's human-readable error description.
	Description string
	// Status is the HTTP status code of the response.
	Status int
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s (%s)", e.Code, e.Description)
}

// MissingParameterError reports a required request parameter that was absent
// from both the grant request and the Environment.
type MissingParameterError struct {
	// Name is the camelCase parameter name, matching the provider's own
	// error vocabulary (e.g. "redirectUri").
	Name string
}

// Error implements the error interface.
func (e *MissingParameterError) Error() string {
	return "Missing required string parameter: " + e.Name
}

// SignatureError reports a failed or impossible HMAC verification of a token
// response.
type SignatureError struct {
	Reason string
}

// Error implements the error interface.
func (e *SignatureError) Error() string {
	return "access token response signature verification failed: " + e.Reason
}
