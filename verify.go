package sfoauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/go-jose/go-jose/v3/jwt"
)

// Provider user and organization identifiers come in exactly two lengths:
// the legacy 15-character case-sensitive form and the 18-character
// case-insensitive form.
const (
	idLengthShort = 15
	idLengthLong  = 18
)

// VerifyOptions controls which verification steps run after a successful
// grant exchange. Each step defaults to enabled and is independently
// skippable; skipping one must not break the ones that follow.
type VerifyOptions struct {
	// SkipDecodeIDToken disables decoding of the id_token field.
	SkipDecodeIDToken bool

	// SkipVerifySignature disables HMAC verification of the response
	// signature. Responses whose UserInfo came only from ParseUserInfo
	// remain unvalidated and must not drive authorization decisions.
	SkipVerifySignature bool

	// SkipParseUserInfo disables parsing of the Identity URL.
	SkipParseUserInfo bool
}

// DecodeIDToken decodes the response's id_token into structured claims
// without verifying its signature, returning a new response value.
//
// A missing id_token is permitted only when the granted scope does not
// include openid; otherwise the decode fails.
func DecodeIDToken(resp *AccessTokenResponse) (*AccessTokenResponse, error) {
	if resp.RawIDToken == "" {
		if scopeContains(resp.Scope, "openid") {
			return nil, fmt.Errorf("no id_token present in token response")
		}
		return resp, nil
	}

	tok, err := jwt.ParseSigned(resp.RawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to parse id_token: %w", err)
	}
	claims := map[string]any{}
	if err := tok.UnsafeClaimsWithoutVerification(&claims); err != nil {
		return nil, fmt.Errorf("failed to decode id_token claims: %w", err)
	}

	out := *resp
	out.IDTokenClaims = claims
	return &out, nil
}

// VerifySignature checks the provider's HMAC signature over the token
// response: base64(HMAC-SHA256(clientSecret, id || issued_at)) must equal the
// received signature. The comparison is constant-time; a length mismatch is
// reported as a plain mismatch without short-circuiting on content.
//
// On success the returned response carries UserInfo{URL: id, Validated: true},
// replacing any earlier unvalidated value. Re-verifying an already validated
// response with the same inputs succeeds and yields the same result.
//
// The Environment must carry the client secret the provider signed with.
func VerifySignature(env *Environment, resp *AccessTokenResponse) (*AccessTokenResponse, error) {
	if resp.Signature == "" {
		return nil, &SignatureError{Reason: "no signature field in token response"}
	}
	if env.ClientSecret == "" {
		return nil, &SignatureError{Reason: "client secret is required to verify the signature"}
	}

	mac := hmac.New(sha256.New, []byte(env.ClientSecret))
	mac.Write([]byte(resp.ID + resp.IssuedAt))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	got, want := []byte(resp.Signature), []byte(expected)
	if len(got) != len(want) || !hmac.Equal(got, want) {
		return nil, &SignatureError{Reason: "signature mismatch"}
	}

	out := *resp
	out.UserInfo = &UserInfo{URL: resp.ID, Validated: true}
	return &out, nil
}

// ParseUserInfo extracts the organization and user identifiers from the
// response's Identity URL (last two path segments, each 15 or 18 characters)
// and returns a new response whose UserInfo carries them.
//
// Fields set by an earlier VerifySignature (URL, Validated) are preserved;
// ParseUserInfo never upgrades a response to validated by itself.
func ParseUserInfo(resp *AccessTokenResponse) (*AccessTokenResponse, error) {
	if resp.ID == "" {
		return nil, fmt.Errorf("no identity URL present in token response")
	}

	segments := strings.Split(strings.TrimRight(resp.ID, "/"), "/")
	var userID, orgID string
	if len(segments) >= 1 {
		userID = segments[len(segments)-1]
	}
	if len(segments) >= 2 {
		orgID = segments[len(segments)-2]
	}
	if !validProviderID(orgID) {
		return nil, fmt.Errorf("identity URL %q is missing an organization identifier", resp.ID)
	}
	if !validProviderID(userID) {
		return nil, fmt.Errorf("identity URL %q is missing a user identifier", resp.ID)
	}

	ui := UserInfo{
		ID:             userID,
		OrganizationID: orgID,
		URL:            resp.ID,
	}
	if prev := resp.UserInfo; prev != nil {
		if prev.URL != "" {
			ui.URL = prev.URL
		}
		ui.Validated = prev.Validated
	}

	out := *resp
	out.UserInfo = &ui
	return &out, nil
}

// verifyGrantResponse folds the enabled verification steps over a token
// response, threading the accumulating result through each step.
func verifyGrantResponse(env *Environment, resp *AccessTokenResponse, opts VerifyOptions) (*AccessTokenResponse, error) {
	var err error
	if !opts.SkipDecodeIDToken {
		if resp, err = DecodeIDToken(resp); err != nil {
			return nil, err
		}
	}
	if !opts.SkipVerifySignature {
		if resp, err = VerifySignature(env, resp); err != nil {
			return nil, err
		}
	}
	if !opts.SkipParseUserInfo {
		if resp, err = ParseUserInfo(resp); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func validProviderID(id string) bool {
	return len(id) == idLengthShort || len(id) == idLengthLong
}

func scopeContains(scope, want string) bool {
	for _, s := range strings.Fields(scope) {
		if s == want {
			return true
		}
	}
	return false
}
