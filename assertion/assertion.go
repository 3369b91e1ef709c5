// Package assertion builds the signed JWT assertions used to authenticate to
// a Salesforce-style token endpoint without a shared secret: the
// private_key_jwt client assertion and the JWT-bearer grant assertion.
package assertion

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Lifetime is the fixed validity window of every assertion: exp = iat + 240s.
// Providers reject assertions with longer windows, so it is not configurable.
const Lifetime = 240 * time.Second

// Signer produces RS256-signed assertions for one client configuration.
// It is safe for concurrent use.
type Signer struct {
	clientID string
	issuer   string
	key      *rsa.PrivateKey
	now      func() time.Time
}

// NewSigner creates a Signer for the given client.
//
// clientID is the OAuth client identifier, issuer the provider's issuer URL
// (the audience of grant assertions) and signingKeyPEM a PEM-encoded RSA
// private key.
func NewSigner(clientID, issuer, signingKeyPEM string) (*Signer, error) {
	if clientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	if issuer == "" {
		return nil, fmt.Errorf("issuer is required")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(signingKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}
	return &Signer{
		clientID: clientID,
		issuer:   issuer,
		key:      key,
		now:      time.Now,
	}, nil
}

// ClientAssertion builds a private_key_jwt client authentication assertion
// addressed to the given token endpoint: iss and sub are both the client ID,
// aud is the token endpoint.
func (s *Signer) ClientAssertion(tokenEndpoint string) (string, error) {
	signed, err := s.sign(s.clientID, tokenEndpoint)
	if err != nil {
		return "", fmt.Errorf("failed to sign client assertion: %w", err)
	}
	return signed, nil
}

// GrantAssertion builds a JWT-bearer grant assertion for the given username:
// iss is the client ID, sub the username, aud the issuer URL.
func (s *Signer) GrantAssertion(username string) (string, error) {
	signed, err := s.sign(username, s.issuer)
	if err != nil {
		return "", fmt.Errorf("failed to sign grant assertion: %w", err)
	}
	return signed, nil
}

// sign issues an RS256 JWT with the shared claim shape. jti is a fresh random
// identifier per call for replay resistance.
func (s *Signer) sign(subject, audience string) (string, error) {
	iat := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    s.clientID,
		Subject:   subject,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(iat),
		ExpiresAt: jwt.NewNumericDate(iat.Add(Lifetime)),
		ID:        uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.key)
}
