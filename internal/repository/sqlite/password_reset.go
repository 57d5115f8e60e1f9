package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/msomdec/realty/internal/domain"
)

type passwordResetRepo struct {
	db *sql.DB
}

func (r *passwordResetRepo) Create(ctx context.Context, reset *domain.PasswordReset) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO password_resets (token_hash, user_id, expires_at) VALUES (?, ?, ?)`,
		reset.TokenHash, reset.UserID, reset.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert password reset: %w", err)
	}
	return nil
}

func (r *passwordResetRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.PasswordReset, error) {
	reset := &domain.PasswordReset{}
	var usedAt sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT token_hash, user_id, expires_at, used_at FROM password_resets WHERE token_hash = ?`, tokenHash,
	).Scan(&reset.TokenHash, &reset.UserID, &reset.ExpiresAt, &usedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get password reset: %w", err)
	}
	if usedAt.Valid {
		reset.UsedAt = &usedAt.Time
	}
	return reset, nil
}

func (r *passwordResetRepo) MarkUsed(ctx context.Context, tokenHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE password_resets SET used_at = ? WHERE token_hash = ? AND used_at IS NULL`,
		time.Now().UTC(), tokenHash,
	)
	if err != nil {
		return fmt.Errorf("mark password reset used: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
