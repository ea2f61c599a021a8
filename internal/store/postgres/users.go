package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"tokoban/backend/internal/domain"
)

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT id::text, username, password_hash, role, COALESCE(store_id, ''), active, created_at
		FROM users
		WHERE lower(username) = lower($1)
	`, strings.TrimSpace(username)).Scan(
		&user.ID, &user.Username, &user.Password, &user.Role, &user.StoreID, &user.Active, &user.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id::text, username, role, COALESCE(store_id, ''), active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.ID, &user.Username, &user.Role, &user.StoreID, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" {
		return domain.ErrInvalidData
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, role, store_id, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, user.ID, username, user.Password, user.Role, nullIfEmpty(user.StoreID), user.Active, user.CreatedAt)
	return mapError(err)
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2 WHERE lower(username) = lower($1)
	`, strings.TrimSpace(username), passwordHash)
	if err != nil {
		return err
	}
	return expectAffected(res, domain.ErrReferenceNotFound)
}
