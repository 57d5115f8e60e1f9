package domain

import (
	"context"
	"time"
)

// ProviderGoogle identifies users created through Google sign-in.
const ProviderGoogle = "google"

// User represents a registered user of the application.
type User struct {
	ID              int64
	Email           string
	DisplayName     string
	PasswordHash    string // Empty for accounts that only sign in through a provider
	Provider        string
	ProviderSubject string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByProvider(ctx context.Context, provider, subject string) (*User, error)
	LinkProvider(ctx context.Context, id int64, provider, subject string) error
	UpdateDisplayName(ctx context.Context, id int64, displayName string) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}
