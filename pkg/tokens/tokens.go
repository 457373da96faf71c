// Package tokens issues and resolves opaque dashboard access tokens.
package tokens

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	shared "github.com/formcoach/server/pkg"
	"github.com/formcoach/server/pkg/faults"
	"github.com/formcoach/server/pkg/types"
)

// DefaultTTL is how long an issued token stays valid.
const DefaultTTL = 30 * 24 * time.Hour

type Issuer struct {
	db shared.Database
}

func NewIssuer(db shared.Database) *Issuer {
	return &Issuer{db: db}
}

// Issue mints a token for the phone number. ttl <= 0 uses DefaultTTL.
func (i *Issuer) Issue(ctx context.Context, phoneNumber string, ttl time.Duration) (*types.DashboardToken, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now().UTC()
	token := &types.DashboardToken{
		Token:       uuid.New().String(),
		PhoneNumber: phoneNumber,
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
	}
	if err := i.db.CreateDashboardToken(ctx, token); err != nil {
		return nil, fmt.Errorf("create dashboard token for %s: %w", phoneNumber, err)
	}
	return token, nil
}

// Resolve maps a token back to its phone number. Unknown tokens return
// faults.ErrNotFound; known but stale tokens return faults.ErrExpired so
// callers can tell the two apart.
func (i *Issuer) Resolve(ctx context.Context, token string) (string, error) {
	record, err := i.db.GetDashboardToken(ctx, token)
	if err != nil {
		return "", err
	}
	if time.Now().After(record.ExpiresAt) {
		return "", faults.ErrExpired
	}
	return record.PhoneNumber, nil
}
