package sessions

import (
	"sync"
	"testing"
	"time"

	"github.com/mcpframe/mcp-frame-go/mcp"
)

func TestSessionIDUniqueAndOpaque(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := newSessionID()
		if len(id) < 22 {
			t.Fatalf("session id too short for 128 bits of entropy: %q", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate session id: %q", id)
		}
		seen[id] = struct{}{}
	}
}

func TestManagerCreateGetDelete(t *testing.T) {
	m := NewManager()
	sess := m.Create(mcp.ImplementationInfo{Name: "t", Version: "1"}, mcp.LatestProtocolVersion, mcp.ClientCapabilities{})

	got, err := m.Get(sess.ID())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != sess {
		t.Fatal("Get returned a different session")
	}

	if !m.Delete(sess.ID()) {
		t.Fatal("Delete reported missing session")
	}
	if _, err := m.Get(sess.ID()); err == nil {
		t.Fatal("expected ErrSessionNotFound after delete")
	}
	if m.Delete(sess.ID()) {
		t.Fatal("second delete should report false")
	}
}

func TestLastActivityMonotonic(t *testing.T) {
	m := NewManager()
	sess := m.Create(mcp.ImplementationInfo{}, mcp.LatestProtocolVersion, mcp.ClientCapabilities{})

	prev := sess.LastActivity()
	for i := 0; i < 10; i++ {
		sess.Touch()
		cur := sess.LastActivity()
		if cur.Before(prev) {
			t.Fatal("last activity regressed")
		}
		prev = cur
	}
}

func TestEvictionPrefersUnprotected(t *testing.T) {
	var mu sync.Mutex
	evicted := []string{}

	m := NewManager(
		WithMaxSessions(2),
		WithOnEvict(func(s *Session) {
			mu.Lock()
			evicted = append(evicted, s.ID())
			mu.Unlock()
		}),
	)

	oldest := m.Create(mcp.ImplementationInfo{}, mcp.LatestProtocolVersion, mcp.ClientCapabilities{})
	oldest.SetProtected(true)
	middle := m.Create(mcp.ImplementationInfo{}, mcp.LatestProtocolVersion, mcp.ClientCapabilities{})
	time.Sleep(5 * time.Millisecond)
	middle.Touch()

	// Third creation overflows the cap; the unprotected session must go even
	// though the protected one is older.
	m.Create(mcp.ImplementationInfo{}, mcp.LatestProtocolVersion, mcp.ClientCapabilities{})

	deadline := time.After(time.Second)
	for {
		mu.Lock()
		n := len(evicted)
		mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("no eviction happened")
		case <-time.After(5 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if evicted[0] != middle.ID() {
		t.Fatalf("expected unprotected victim %q, got %q", middle.ID(), evicted[0])
	}
}

func TestEvictionClearsSessionState(t *testing.T) {
	done := make(chan *Session, 1)
	m := NewManager(WithOnEvict(func(s *Session) { done <- s }), WithRateLimit(10, 20))

	sess := m.Create(mcp.ImplementationInfo{}, mcp.LatestProtocolVersion, mcp.ClientCapabilities{})
	sess.Subscribe("config://x")
	sess.Events().Append("message", []byte("{}"))

	m.Delete(sess.ID())

	select {
	case s := <-done:
		if s.ID() != sess.ID() {
			t.Fatal("wrong session in eviction callback")
		}
	case <-time.After(time.Second):
		t.Fatal("eviction callback not invoked")
	}

	if len(sess.Subscriptions()) != 0 {
		t.Fatal("subscriptions survived eviction")
	}
	if sess.Events().Len() != 0 {
		t.Fatal("event buffer survived eviction")
	}
}

func TestClearEvictsEverything(t *testing.T) {
	n := 0
	m := NewManager(WithOnEvict(func(*Session) { n++ }))
	for i := 0; i < 5; i++ {
		m.Create(mcp.ImplementationInfo{}, mcp.LatestProtocolVersion, mcp.ClientCapabilities{})
	}
	m.Clear()
	if m.Len() != 0 {
		t.Fatalf("expected empty manager, got %d", m.Len())
	}
	if n != 5 {
		t.Fatalf("expected 5 eviction callbacks, got %d", n)
	}
}

func TestCapabilityAccessors(t *testing.T) {
	caps := mcp.ClientCapabilities{Sampling: &struct{}{}}
	m := NewManager()
	sess := m.Create(mcp.ImplementationInfo{}, mcp.LatestProtocolVersion, caps)

	if !sess.SupportsSampling() {
		t.Fatal("expected sampling capability")
	}
	if sess.SupportsElicitation() || sess.SupportsRoots() {
		t.Fatal("unexpected capabilities")
	}
}

func TestEventBufferReplay(t *testing.T) {
	b := NewEventBuffer()

	var ids []uint64
	for i := 0; i < 5; i++ {
		ids = append(ids, b.Append("message", []byte{byte('a' + i)}))
	}

	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Fatal("event ids not monotonic")
		}
	}

	replay := b.Since(ids[1])
	if len(replay) != 3 {
		t.Fatalf("expected 3 replayed events, got %d", len(replay))
	}
	for i, ev := range replay {
		if ev.ID != ids[2+i] {
			t.Fatalf("replay out of order: %v", replay)
		}
	}

	if got := b.Since(ids[4]); len(got) != 0 {
		t.Fatalf("expected empty replay past the tip, got %d", len(got))
	}
}

func TestEventBufferSizeBound(t *testing.T) {
	b := NewEventBuffer()
	for i := 0; i < maxBufferedEvents+50; i++ {
		b.Append("message", []byte("x"))
	}
	if b.Len() > maxBufferedEvents {
		t.Fatalf("buffer exceeded bound: %d", b.Len())
	}
	// The oldest events must have been dropped.
	replay := b.Since(0)
	if replay[0].ID != 51 {
		t.Fatalf("expected oldest surviving event id 51, got %d", replay[0].ID)
	}
}

func TestTokenBucketBurstAndRefill(t *testing.T) {
	b := NewTokenBucket(100, 2)

	if !b.Allow() || !b.Allow() {
		t.Fatal("burst capacity should allow first requests")
	}
	if b.Allow() {
		t.Fatal("expected exhausted bucket to deny")
	}

	// 100 tokens/sec refills one token in ~10ms.
	time.Sleep(25 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("expected refill to permit a request")
	}
}

func TestTokenBucketDefaultCapacity(t *testing.T) {
	b := NewTokenBucket(5, 0)
	allowed := 0
	for i := 0; i < 20; i++ {
		if b.Allow() {
			allowed++
		}
	}
	if allowed != 10 {
		t.Fatalf("expected burst of 2x rate (10), got %d", allowed)
	}
}

func TestTokenBucketRetryAfter(t *testing.T) {
	b := NewTokenBucket(10, 1)
	if !b.Allow() {
		t.Fatal("first request should pass")
	}
	if b.Allow() {
		t.Fatal("second request should be limited")
	}
	ra := b.RetryAfter()
	if ra <= 0 || ra > time.Second {
		t.Fatalf("implausible retry-after: %v", ra)
	}
}
