package tokens

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/formcoach/server/pkg/faults"
	"github.com/formcoach/server/pkg/testing/mocks"
	"github.com/formcoach/server/pkg/types"
)

func TestIssueDefaults(t *testing.T) {
	var created *types.DashboardToken
	db := &mocks.MockDatabase{
		CreateDashboardTokenFunc: func(ctx context.Context, token *types.DashboardToken) error {
			created = token
			return nil
		},
	}

	issuer := NewIssuer(db)
	token, err := issuer.Issue(context.Background(), "+491", 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if created == nil || token != created {
		t.Fatal("Expected the token to be persisted and returned")
	}
	if token.Token == "" {
		t.Error("Expected an opaque token value")
	}
	if token.PhoneNumber != "+491" {
		t.Errorf("Unexpected phone number: %s", token.PhoneNumber)
	}
	wantExpiry := time.Now().Add(DefaultTTL)
	if token.ExpiresAt.Before(wantExpiry.Add(-time.Minute)) || token.ExpiresAt.After(wantExpiry.Add(time.Minute)) {
		t.Errorf("Expected expiry near default TTL, got %v", token.ExpiresAt)
	}
}

func TestIssueUniqueValues(t *testing.T) {
	issuer := NewIssuer(&mocks.MockDatabase{})
	a, err := issuer.Issue(context.Background(), "+491", time.Hour)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	b, err := issuer.Issue(context.Background(), "+491", time.Hour)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if a.Token == b.Token {
		t.Error("Tokens must be unique per issue")
	}
}

func TestResolveValid(t *testing.T) {
	db := &mocks.MockDatabase{
		GetDashboardTokenFunc: func(ctx context.Context, token string) (*types.DashboardToken, error) {
			return &types.DashboardToken{
				Token:       token,
				PhoneNumber: "+491",
				ExpiresAt:   time.Now().Add(time.Hour),
			}, nil
		},
	}

	issuer := NewIssuer(db)
	phone, err := issuer.Resolve(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if phone != "+491" {
		t.Errorf("Unexpected phone: %s", phone)
	}
}

func TestResolveUnknown(t *testing.T) {
	issuer := NewIssuer(&mocks.MockDatabase{})
	_, err := issuer.Resolve(context.Background(), "nope")
	if !errors.Is(err, faults.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestResolveExpired(t *testing.T) {
	db := &mocks.MockDatabase{
		GetDashboardTokenFunc: func(ctx context.Context, token string) (*types.DashboardToken, error) {
			return &types.DashboardToken{
				Token:       token,
				PhoneNumber: "+491",
				ExpiresAt:   time.Now().Add(-time.Minute),
			}, nil
		},
	}

	issuer := NewIssuer(db)
	_, err := issuer.Resolve(context.Background(), "tok-1")
	if !errors.Is(err, faults.ErrExpired) {
		t.Errorf("Expected ErrExpired, got %v", err)
	}
	if errors.Is(err, faults.ErrNotFound) {
		t.Error("Expired must be distinguishable from unknown")
	}
}
