package sessions

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mcpframe/mcp-frame-go/mcp"
)

// ErrSessionNotFound indicates the session id is unknown or expired.
var ErrSessionNotFound = errors.New("session not found")

const (
	defaultMaxSessions = 1000
	defaultIdleTTL     = time.Hour
	defaultSweepEvery  = 100
	// evictionGrace shields the globally-oldest session when every candidate
	// is protected; a protected session younger than this is never evicted.
	evictionGrace = 30 * time.Second
)

// Manager allocates, looks up, and evicts sessions. All mutations are
// serialized by one mutex.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	maxSessions int
	idleTTL     time.Duration
	sweepEvery  int

	rateRPS   float64
	rateBurst float64

	creations int

	onEvict func(*Session)

	log *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithMaxSessions overrides the soft session cap.
func WithMaxSessions(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.maxSessions = n
		}
	}
}

// WithIdleTTL overrides the idle expiry window.
func WithIdleTTL(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.idleTTL = d
		}
	}
}

// WithRateLimit enables per-session token buckets refilling at rps with the
// given burst capacity (0 burst defaults to 2x rps).
func WithRateLimit(rps, burst float64) ManagerOption {
	return func(m *Manager) {
		m.rateRPS = rps
		m.rateBurst = burst
	}
}

// WithOnEvict registers a cleanup callback invoked for every evicted or
// expired session, before its state is cleared.
func WithOnEvict(fn func(*Session)) ManagerOption {
	return func(m *Manager) { m.onEvict = fn }
}

// WithManagerLogger sets the logger.
func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// NewManager constructs a Manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		sessions:    make(map[string]*Session),
		maxSessions: defaultMaxSessions,
		idleTTL:     defaultIdleTTL,
		sweepEvery:  defaultSweepEvery,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create mints a session for the negotiated protocol version and declared
// client capabilities. The sweeper runs inline after every 100 creations, and
// the LRU eviction runs when the soft cap is reached.
func (m *Manager) Create(clientInfo mcp.ImplementationInfo, protocolVersion string, caps mcp.ClientCapabilities) *Session {
	now := time.Now()
	sess := &Session{
		id:              newSessionID(),
		protocolVersion: protocolVersion,
		clientInfo:      clientInfo,
		caps:            caps,
		createdAt:       now,
		lastActivity:    now,
		events:          NewEventBuffer(),
	}
	if m.rateRPS > 0 {
		sess.bucket = NewTokenBucket(m.rateRPS, m.rateBurst)
	}

	m.mu.Lock()
	m.creations++
	if m.creations%m.sweepEvery == 0 {
		m.sweepLocked(now)
	}
	if len(m.sessions) >= m.maxSessions {
		m.evictOldestLocked(now)
	}
	m.sessions[sess.id] = sess
	m.mu.Unlock()

	m.log.Debug("session.create", slog.String("session_id", sess.id), slog.String("client", clientInfo.Name))
	return sess
}

// Get returns the session by id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Delete removes the session, invoking the eviction callback. It reports
// whether the session existed.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	m.evicted(sess)
	return true
}

// Len returns the current session count.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Snapshot returns the current sessions; used by notification fan-out.
func (m *Manager) Snapshot() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Clear evicts every session; used during shutdown.
func (m *Manager) Clear() {
	m.mu.Lock()
	evicted := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		delete(m.sessions, id)
		evicted = append(evicted, s)
	}
	m.mu.Unlock()
	for _, s := range evicted {
		m.evicted(s)
	}
}

func (m *Manager) evicted(sess *Session) {
	if m.onEvict != nil {
		m.onEvict(sess)
	}
	sess.clearState()
}

// sweepLocked removes idle-expired sessions. Idle expiry applies to protected
// sessions too; an active stream keeps refreshing last activity.
func (m *Manager) sweepLocked(now time.Time) {
	var expired []*Session
	for id, s := range m.sessions {
		if now.Sub(s.LastActivity()) > m.idleTTL {
			delete(m.sessions, id)
			expired = append(expired, s)
		}
	}
	if len(expired) > 0 {
		m.log.Debug("session.sweep", slog.Int("expired", len(expired)))
		go func() {
			for _, s := range expired {
				m.evicted(s)
			}
		}()
	}
}

// evictOldestLocked selects the victim with the oldest last activity whose
// protected flag is false. When every candidate is protected, it falls back
// to the global oldest, provided it is older than the eviction grace.
func (m *Manager) evictOldestLocked(now time.Time) {
	var victim *Session
	for _, s := range m.sessions {
		if s.Protected() {
			continue
		}
		if victim == nil || s.LastActivity().Before(victim.LastActivity()) {
			victim = s
		}
	}
	if victim == nil {
		for _, s := range m.sessions {
			if victim == nil || s.LastActivity().Before(victim.LastActivity()) {
				victim = s
			}
		}
		if victim != nil && now.Sub(victim.LastActivity()) < evictionGrace {
			return
		}
	}
	if victim == nil {
		return
	}
	delete(m.sessions, victim.ID())
	m.log.Debug("session.evict", slog.String("session_id", victim.ID()))
	go m.evicted(victim)
}
