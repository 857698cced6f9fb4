package sessions

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"

	"github.com/mcpframe/mcp-frame-go/mcp"
)

// Session is the per-client protocol state created at initialize. All mutable
// fields are guarded by a single per-session mutex; sessions are small and
// lookups are not a contention point at target throughput.
type Session struct {
	id              string
	protocolVersion string
	clientInfo      mcp.ImplementationInfo
	caps            mcp.ClientCapabilities
	createdAt       time.Time

	mu           sync.Mutex
	lastActivity time.Time
	initialized  bool
	protected    bool
	userID       string
	logLevel     mcp.LoggingLevel
	subs         map[string]struct{}

	events *EventBuffer
	bucket *TokenBucket
}

// newSessionID mints a cryptographically random, URL-safe id with 192 bits of
// entropy. IDs are opaque and never reused.
func newSessionID() string {
	var b [24]byte
	if _, err := rand.Read(b[:]); err != nil {
		// rand.Read does not fail on supported platforms.
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ID returns the opaque session id.
func (s *Session) ID() string { return s.id }

// ProtocolVersion returns the negotiated protocol version.
func (s *Session) ProtocolVersion() string { return s.protocolVersion }

// ClientInfo returns the client's declared implementation info.
func (s *Session) ClientInfo() mcp.ImplementationInfo { return s.clientInfo }

// Capabilities returns the client's declared capabilities.
func (s *Session) Capabilities() mcp.ClientCapabilities { return s.caps }

// CreatedAt returns the creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Touch advances last activity. Activity is non-decreasing.
func (s *Session) Touch() {
	s.mu.Lock()
	now := time.Now()
	if now.After(s.lastActivity) {
		s.lastActivity = now
	}
	s.mu.Unlock()
}

// LastActivity returns the time of the most recent request.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// MarkInitialized records receipt of notifications/initialized.
func (s *Session) MarkInitialized() {
	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()
}

// Initialized reports whether the client completed the handshake.
func (s *Session) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// SetProtected marks the session as having an active SSE push stream, which
// shields it from LRU eviction.
func (s *Session) SetProtected(v bool) {
	s.mu.Lock()
	s.protected = v
	s.mu.Unlock()
}

// Protected reports whether an SSE push stream is open.
func (s *Session) Protected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.protected
}

// SetUserID records the authenticated user for the session.
func (s *Session) SetUserID(id string) {
	s.mu.Lock()
	s.userID = id
	s.mu.Unlock()
}

// UserID returns the authenticated user id, if any.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// SetLogLevel records the session's requested logging threshold.
func (s *Session) SetLogLevel(level mcp.LoggingLevel) {
	s.mu.Lock()
	s.logLevel = level
	s.mu.Unlock()
}

// LogLevel returns the session's logging threshold ("" when unset).
func (s *Session) LogLevel() mcp.LoggingLevel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logLevel
}

// Subscribe adds a resource subscription. Subscribing twice is a no-op.
func (s *Session) Subscribe(uri string) {
	s.mu.Lock()
	if s.subs == nil {
		s.subs = make(map[string]struct{})
	}
	s.subs[uri] = struct{}{}
	s.mu.Unlock()
}

// Unsubscribe removes a resource subscription.
func (s *Session) Unsubscribe(uri string) {
	s.mu.Lock()
	delete(s.subs, uri)
	s.mu.Unlock()
}

// Subscribed reports whether the session subscribes to the URI.
func (s *Session) Subscribed(uri string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.subs[uri]
	return ok
}

// Subscriptions returns a snapshot of the subscribed URIs.
func (s *Session) Subscriptions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.subs))
	for uri := range s.subs {
		out = append(out, uri)
	}
	return out
}

// Events returns the session's SSE replay buffer.
func (s *Session) Events() *EventBuffer { return s.events }

// Allow consumes one rate-limit token. It returns true when no limiter is
// configured.
func (s *Session) Allow() bool {
	if s.bucket == nil {
		return true
	}
	return s.bucket.Allow()
}

// SupportsSampling reports whether the client declared the sampling capability.
func (s *Session) SupportsSampling() bool { return s.caps.Sampling != nil }

// SupportsElicitation reports whether the client declared elicitation.
func (s *Session) SupportsElicitation() bool { return s.caps.Elicitation != nil }

// SupportsRoots reports whether the client declared roots.
func (s *Session) SupportsRoots() bool { return s.caps.Roots != nil }

// clearState drops subscriptions, buffered events, and the rate bucket. Called
// on eviction so no per-session state outlives the session.
func (s *Session) clearState() {
	s.mu.Lock()
	s.subs = nil
	s.mu.Unlock()
	if s.events != nil {
		s.events.Clear()
	}
	if s.bucket != nil {
		s.bucket.Reset()
	}
}
