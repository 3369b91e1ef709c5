package testutil

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

// Fixed identifiers used by the mock provider. Both are valid 18-character
// provider IDs.
const (
	TestOrgID        = "00Dxx0000001gPFEAY"
	TestUserID       = "005xx000001SvogAAC"
	TestClientSecret = "1955279925675241571"
)

// ProviderServer is a mock Salesforce-style identity provider backed by
// httptest. Endpoints: discovery, token, userinfo, revocation, introspection
// and the Identity URL. Responses are configurable per test; request forms
// posted to the token endpoint are captured for assertions.
type ProviderServer struct {
	*httptest.Server

	mu                sync.Mutex
	discoveryCalls    int
	withIntrospection bool

	tokenStatus int
	tokenBody   map[string]any
	tokenForms  []url.Values

	userinfoStatus int
	userinfoBody   map[string]any

	introspectBody map[string]any
	revokeStatus   int
	identityBody   map[string]any
}

// NewProviderServer starts a mock provider with sensible defaults: a signed
// token response for TestClientSecret, an active introspection result and a
// 200 revocation. The server is closed via t.Cleanup.
func NewProviderServer(t *testing.T) *ProviderServer {
	t.Helper()

	s := &ProviderServer{
		withIntrospection: true,
		tokenStatus:       http.StatusOK,
		userinfoStatus:    http.StatusOK,
		revokeStatus:      http.StatusOK,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", s.handleDiscovery)
	mux.HandleFunc("/services/oauth2/token", s.handleToken)
	mux.HandleFunc("/services/oauth2/userinfo", s.handleUserinfo)
	mux.HandleFunc("/services/oauth2/revoke", s.handleRevoke)
	mux.HandleFunc("/services/oauth2/introspect", s.handleIntrospect)
	mux.HandleFunc("/id/", s.handleIdentity)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)

	s.tokenBody = s.SignedTokenBody()
	s.userinfoBody = map[string]any{
		"sub":                s.IdentityURL(),
		"user_id":            TestUserID,
		"organization_id":    TestOrgID,
		"preferred_username": "test@example.com",
		"email":              "test@example.com",
		"name":               "Test User",
	}
	s.introspectBody = map[string]any{
		"active":    true,
		"scope":     "api web",
		"client_id": "test-client",
		"username":  "test@example.com",
	}
	s.identityBody = map[string]any{
		"user_id":         TestUserID,
		"organization_id": TestOrgID,
		"username":        "test@example.com",
		"display_name":    "Test User",
	}
	return s
}

// IdentityURL returns the Identity URL the default token response carries.
func (s *ProviderServer) IdentityURL() string {
	return s.URL + "/id/" + TestOrgID + "/" + TestUserID
}

// SignedTokenBody builds a token response whose signature verifies against
// TestClientSecret.
func (s *ProviderServer) SignedTokenBody() map[string]any {
	id := s.IdentityURL()
	issuedAt := "1713900000000"
	return map[string]any{
		"access_token":  "00Dxx0000001gPF!AQEAQTestAccessToken",
		"token_type":    "Bearer",
		"refresh_token": "5Aep861TestRefreshToken",
		"scope":         "api web id",
		"instance_url":  s.URL,
		"id":            id,
		"issued_at":     issuedAt,
		"signature":     ComputeSignature(TestClientSecret, id, issuedAt),
	}
}

// SetTokenResponse overrides the token endpoint status and body.
func (s *ProviderServer) SetTokenResponse(status int, body map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenStatus = status
	s.tokenBody = body
}

// SetUserinfoResponse overrides the userinfo endpoint status and body.
func (s *ProviderServer) SetUserinfoResponse(status int, body map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userinfoStatus = status
	s.userinfoBody = body
}

// SetIntrospectionResponse overrides the introspection result.
func (s *ProviderServer) SetIntrospectionResponse(body map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.introspectBody = body
}

// SetRevokeStatus overrides the revocation endpoint status.
func (s *ProviderServer) SetRevokeStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revokeStatus = status
}

// DisableIntrospection removes the introspection endpoint from the discovery
// document. Call before the first discovery.
func (s *ProviderServer) DisableIntrospection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.withIntrospection = false
}

// DiscoveryCalls returns how many times the discovery document was fetched.
func (s *ProviderServer) DiscoveryCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.discoveryCalls
}

// TokenForms returns the captured token endpoint request forms, oldest first.
func (s *ProviderServer) TokenForms() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]url.Values, len(s.tokenForms))
	copy(out, s.tokenForms)
	return out
}

// LastTokenForm returns the most recent token endpoint request form, or nil.
func (s *ProviderServer) LastTokenForm() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tokenForms) == 0 {
		return nil
	}
	return s.tokenForms[len(s.tokenForms)-1]
}

func (s *ProviderServer) handleDiscovery(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.discoveryCalls++
	withIntrospection := s.withIntrospection
	s.mu.Unlock()

	doc := map[string]any{
		"issuer":                 s.URL,
		"authorization_endpoint": s.URL + "/services/oauth2/authorize",
		"token_endpoint":         s.URL + "/services/oauth2/token",
		"userinfo_endpoint":      s.URL + "/services/oauth2/userinfo",
		"revocation_endpoint":    s.URL + "/services/oauth2/revoke",
		"jwks_uri":               s.URL + "/id/keys",
	}
	if withIntrospection {
		doc["introspection_endpoint"] = s.URL + "/services/oauth2/introspect"
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *ProviderServer) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_request"})
		return
	}
	s.mu.Lock()
	s.tokenForms = append(s.tokenForms, r.PostForm)
	status, body := s.tokenStatus, s.tokenBody
	s.mu.Unlock()
	writeJSON(w, status, body)
}

func (s *ProviderServer) handleUserinfo(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid_token"})
		return
	}
	s.mu.Lock()
	status, body := s.userinfoStatus, s.userinfoBody
	s.mu.Unlock()
	writeJSON(w, status, body)
}

func (s *ProviderServer) handleRevoke(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	status := s.revokeStatus
	s.mu.Unlock()
	w.WriteHeader(status)
}

func (s *ProviderServer) handleIntrospect(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_request"})
		return
	}
	s.mu.Lock()
	body := s.introspectBody
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, body)
}

func (s *ProviderServer) handleIdentity(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid_token"})
		return
	}
	s.mu.Lock()
	body := s.identityBody
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// ComputeSignature computes base64(HMAC-SHA256(secret, id || issuedAt)), the
// signature a provider attaches to token responses.
func ComputeSignature(secret, id, issuedAt string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(id + issuedAt))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// GenerateSigningKey generates a fresh RSA private key and returns it
// PEM-encoded along with its public half for verification.
func GenerateSigningKey(t *testing.T) (string, *rsa.PublicKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}
	block := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}
	return string(pem.EncodeToMemory(block)), &key.PublicKey
}

// MakeIDToken builds a compact-serialized JWT with the given claims, signed
// HS256 with a throwaway key. Suitable for decode-without-verification tests.
func MakeIDToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("testutil-hs256-key"))
	if err != nil {
		t.Fatalf("failed to sign test id_token: %v", err)
	}
	return signed
}
