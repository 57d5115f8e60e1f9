package domain

import "context"

// Database is the lifecycle of the backing store. Migrations ship with the
// implementation.
type Database interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
