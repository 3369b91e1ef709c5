package security

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"
)

// Auditor handles security event logging with PII protection. Usernames are
// hashed before they reach the log stream.
type Auditor struct {
	logger  *slog.Logger
	enabled bool
}

// NewAuditor creates a new security auditor.
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{logger: logger, enabled: enabled}
}

// Event is a security audit event.
type Event struct {
	Type      string
	Username  string
	ClientID  string
	IPAddress string
	Details   map[string]any
	Timestamp time.Time
}

// LogEvent logs a security event with hashed PII. Safe on a nil Auditor.
func (a *Auditor) LogEvent(event Event) {
	if a == nil || !a.enabled {
		return
	}
	event.Timestamp = time.Now()
	a.logger.Info("security_audit",
		"event_type", event.Type,
		"username_hash", hashForLogging(event.Username),
		"client_id", event.ClientID,
		"ip_address", event.IPAddress,
		"details", event.Details,
		"timestamp", event.Timestamp,
	)
}

// LogTokenValidated logs a successful bearer token validation.
func (a *Auditor) LogTokenValidated(username, clientID, ipAddress string) {
	a.LogEvent(Event{
		Type:      EventTokenValidated,
		Username:  username,
		ClientID:  clientID,
		IPAddress: ipAddress,
	})
}

// LogTokenIntrospected logs a token introspection and its result.
func (a *Auditor) LogTokenIntrospected(username, clientID, ipAddress string, active bool) {
	a.LogEvent(Event{
		Type:      EventTokenIntrospected,
		Username:  username,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details:   map[string]any{"active": active},
	})
}

// LogGrantChecked logs a successful grant availability probe.
func (a *Auditor) LogGrantChecked(username, clientID, ipAddress string) {
	a.LogEvent(Event{
		Type:      EventGrantChecked,
		Username:  username,
		ClientID:  clientID,
		IPAddress: ipAddress,
	})
}

// LogIdentityRetrieved logs a successful identity claims fetch.
func (a *Auditor) LogIdentityRetrieved(username, clientID, ipAddress string) {
	a.LogEvent(Event{
		Type:      EventIdentityRetrieved,
		Username:  username,
		ClientID:  clientID,
		IPAddress: ipAddress,
	})
}

// LogTokenRevoked logs a token revocation attempt and whether the provider
// accepted it.
func (a *Auditor) LogTokenRevoked(clientID, ipAddress string, accepted bool) {
	a.LogEvent(Event{
		Type:      EventTokenRevoked,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details:   map[string]any{"accepted": accepted},
	})
}

// LogAccessDenied logs a pipeline failure with its reason.
func (a *Auditor) LogAccessDenied(username, clientID, ipAddress, reason string) {
	a.LogEvent(Event{
		Type:      EventAccessDenied,
		Username:  username,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details:   map[string]any{"reason": reason},
	})
}

// LogRateLimitExceeded logs a rate limit violation.
func (a *Auditor) LogRateLimitExceeded(ipAddress string) {
	a.LogEvent(Event{
		Type:      EventRateLimitExceeded,
		IPAddress: ipAddress,
	})
}

// hashForLogging creates a short SHA256 digest of sensitive data for logging.
func hashForLogging(sensitive string) string {
	if sensitive == "" {
		return "<empty>"
	}
	hash := sha256.Sum256([]byte(sensitive))
	return hex.EncodeToString(hash[:])[:16]
}
