package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStore("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestSaveAndLookup(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveRefreshSession(ctx, "hash-1", "usr_abc", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession: %v", err)
	}

	userID, err := s.LookupRefreshSession(ctx, "hash-1")
	if err != nil {
		t.Fatalf("LookupRefreshSession: %v", err)
	}
	if userID != "usr_abc" {
		t.Errorf("expected usr_abc, got %s", userID)
	}
}

func TestSaveRejectsExpired(t *testing.T) {
	s, _ := newTestStore(t)

	err := s.SaveRefreshSession(context.Background(), "hash-2", "usr_abc", time.Now().Add(-time.Minute))
	if err == nil {
		t.Fatal("expected error for already-expired session")
	}
}

func TestLookupExpired(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveRefreshSession(ctx, "hash-3", "usr_abc", time.Now().Add(time.Second)); err != nil {
		t.Fatalf("SaveRefreshSession: %v", err)
	}
	mr.FastForward(2 * time.Second)

	_, err := s.LookupRefreshSession(ctx, "hash-3")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestLookupUnknown(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.LookupRefreshSession(context.Background(), "no-such-hash")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRevoke(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveRefreshSession(ctx, "hash-4", "usr_abc", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession: %v", err)
	}
	if err := s.RevokeRefreshSession(ctx, "hash-4"); err != nil {
		t.Fatalf("RevokeRefreshSession: %v", err)
	}

	_, err := s.LookupRefreshSession(ctx, "hash-4")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after revoke, got %v", err)
	}

	// Revoking again is a no-op.
	if err := s.RevokeRefreshSession(ctx, "hash-4"); err != nil {
		t.Errorf("RevokeRefreshSession repeat: %v", err)
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	if err := s.SaveRefreshSession(ctx, "hash-a", "usr_a", expiry); err != nil {
		t.Fatalf("SaveRefreshSession a: %v", err)
	}
	if err := s.SaveRefreshSession(ctx, "hash-b", "usr_b", expiry); err != nil {
		t.Fatalf("SaveRefreshSession b: %v", err)
	}
	if err := s.RevokeRefreshSession(ctx, "hash-a"); err != nil {
		t.Fatalf("RevokeRefreshSession a: %v", err)
	}

	if _, err := s.LookupRefreshSession(ctx, "hash-a"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected hash-a gone, got %v", err)
	}
	userID, err := s.LookupRefreshSession(ctx, "hash-b")
	if err != nil {
		t.Fatalf("LookupRefreshSession b: %v", err)
	}
	if userID != "usr_b" {
		t.Errorf("expected usr_b, got %s", userID)
	}
}
