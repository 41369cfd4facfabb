package session_test

import (
	"testing"
	"time"

	"github.com/cadenza-audio/cadenza/internal/session"
)

func TestCreateAndValidate(t *testing.T) {
	s := session.New()
	token, err := s.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(token) != 20 {
		t.Errorf("token length = %d, want 20", len(token))
	}
	if !s.Validate(token) {
		t.Error("fresh token should validate")
	}
	if s.Validate("0123456789abcdef0123") {
		t.Error("unknown token should not validate")
	}
}

func TestSlidingExpiry(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	s := session.NewWithClock(clock)

	token, _ := s.Create()

	// Touch the session just before expiry; the window restarts.
	now = now.Add(session.Lifetime - time.Minute)
	if !s.Validate(token) {
		t.Fatal("token should still be valid")
	}

	// Another near-lifetime later it is still alive because of the extension.
	now = now.Add(session.Lifetime - time.Minute)
	if !s.Validate(token) {
		t.Error("validation should have extended the session")
	}

	// Without further touches it expires.
	now = now.Add(session.Lifetime + time.Second)
	if s.Validate(token) {
		t.Error("token should have expired")
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d after expiry", s.Len())
	}
}

func TestSizeCapEvictsOldest(t *testing.T) {
	s := session.New()
	first, _ := s.Create()
	for i := 1; i < session.MaxSessions; i++ {
		s.Create()
	}
	if s.Len() != session.MaxSessions {
		t.Fatalf("Len = %d", s.Len())
	}

	// One more pushes out the oldest.
	s.Create()
	if s.Len() != session.MaxSessions {
		t.Errorf("Len = %d after overflow", s.Len())
	}
	if s.Validate(first) {
		t.Error("oldest session should have been evicted")
	}
}

func TestRemove(t *testing.T) {
	s := session.New()
	token, _ := s.Create()
	if !s.Remove(token) {
		t.Error("Remove should report the token was found")
	}
	if s.Validate(token) {
		t.Error("removed token should not validate")
	}
	if s.Remove(token) {
		t.Error("second Remove should report missing")
	}
}
