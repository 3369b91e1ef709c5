package security

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"regexp"
)

// requestIDContextKey is the context key for request IDs.
type requestIDContextKey struct{}

// RequestIDHeader is the HTTP header carrying request IDs.
const RequestIDHeader = "X-Request-ID"

// requestIDPattern validates inbound request IDs to prevent log and header
// injection. Allows alphanumerics, hyphens and underscores, 1-128 chars.
var requestIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,128}$`)

// GenerateRequestID generates a random request ID: 16 bytes of entropy as a
// 22-character base64url string. Panics only on system RNG failure.
func GenerateRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand.Read failed: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// RequestIDFromRequest returns the request's ID, trusting a well-formed
// inbound header and generating a fresh ID otherwise.
func RequestIDFromRequest(r *http.Request) string {
	if id := r.Header.Get(RequestIDHeader); id != "" && requestIDPattern.MatchString(id) {
		return id
	}
	return GenerateRequestID()
}

// WithRequestID stores a request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

// RequestIDFromContext retrieves the request ID from the context, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}
