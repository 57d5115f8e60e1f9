package domain

import (
	"context"
	"time"
)

// PasswordReset is a single-use password reset grant. Only the SHA-256 hash
// of the emailed token is stored.
type PasswordReset struct {
	TokenHash string
	UserID    int64
	ExpiresAt time.Time
	UsedAt    *time.Time
}

type PasswordResetRepository interface {
	Create(ctx context.Context, reset *PasswordReset) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*PasswordReset, error)
	MarkUsed(ctx context.Context, tokenHash string) error
}
