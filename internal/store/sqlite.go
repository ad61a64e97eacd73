package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lmckone/dwsaver/internal/shared"
)

// SQLiteStore implements [AccountStore] over a SQLite accounts table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLiteStore with the given database connection.
// The accounts table is created by the setup migrations.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) List(ctx context.Context) ([]Account, error) {
	query := `
		SELECT user_id, refresh_token, nonce, created_at, updated_at
		FROM accounts
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var account Account
		if err := rows.Scan(&account.UserID, &account.RefreshToken, &account.Nonce, &account.CreatedAt, &account.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return accounts, nil
}

func (s *SQLiteStore) Get(ctx context.Context, userID string) (*Account, error) {
	query := `
		SELECT user_id, refresh_token, nonce, created_at, updated_at
		FROM accounts
		WHERE user_id = ?
	`

	var account Account
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&account.UserID, &account.RefreshToken, &account.Nonce, &account.CreatedAt, &account.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrAccountNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query account: %w", err)
	}

	return &account, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, account Account) error {
	now := time.Now()

	query := `
		INSERT INTO accounts (user_id, refresh_token, nonce, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`

	if _, err := s.db.ExecContext(ctx, query, account.UserID, account.RefreshToken, account.Nonce, now, now); err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}

	return nil
}

func (s *SQLiteStore) UpdateToken(ctx context.Context, userID, refreshToken, nonce string) error {
	query := `
		UPDATE accounts
		SET refresh_token = ?, nonce = ?, updated_at = ?
		WHERE user_id = ?
	`

	result, err := s.db.ExecContext(ctx, query, refreshToken, nonce, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrAccountNotFound, userID)
	}

	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, userID string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM accounts WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrAccountNotFound, userID)
	}

	return nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return count, nil
}
