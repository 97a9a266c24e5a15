package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryTokens_IssueResolveRevoke(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokens()

	token, err := store.Issue(ctx, RoleAdmin)
	if err != nil || token == "" {
		t.Fatalf("issue: %v", err)
	}

	role, err := store.Resolve(ctx, token)
	if err != nil || role != RoleAdmin {
		t.Fatalf("resolve: role=%v err=%v", role, err)
	}

	if _, err := store.Resolve(ctx, "bogus"); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}

	if err := store.Revoke(ctx, token); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := store.Resolve(ctx, token); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound after revoke, got %v", err)
	}
}

func TestMemoryTokens_Expiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokens()

	now := time.Now()
	store.now = func() time.Time { return now }

	token, err := store.Issue(ctx, RoleGuest)
	if err != nil {
		t.Fatal(err)
	}

	// just before expiry
	now = now.Add(TokenTTL - time.Minute)
	if _, err := store.Resolve(ctx, token); err != nil {
		t.Fatalf("resolve before expiry: %v", err)
	}

	// past expiry
	now = now.Add(2 * time.Minute)
	if _, err := store.Resolve(ctx, token); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound after expiry, got %v", err)
	}
}
